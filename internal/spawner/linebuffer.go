package spawner

import "strings"

// lineBuffer incrementally splits a byte stream into lines. Chunks arrive
// at arbitrary boundaries; complete lines are returned as they form and the
// trailing partial line is retained for the next chunk.
type lineBuffer struct {
	rest string
}

// Feed appends chunk and returns every complete line, in order, with line
// terminators stripped. Both \n and \r\n terminate a line.
func (b *lineBuffer) Feed(chunk string) []string {
	parts := strings.Split(b.rest+chunk, "\n")
	b.rest = parts[len(parts)-1]
	lines := parts[:len(parts)-1]
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// Flush returns whatever partial line is buffered and empties the buffer.
// Called when the stream closes; the residue needs no terminator.
func (b *lineBuffer) Flush() string {
	rest := b.rest
	b.rest = ""
	return rest
}
