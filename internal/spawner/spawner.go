// Package spawner wraps os/exec to supervise one externally managed process.
//
// It standardizes what every supervised child needs:
//
//   - decorate and stream stdout and stderr line by line
//   - render a config file and inject its path into the argument list
//   - reload configuration and rotate logs through signals
//   - stop the child as the system shuts down
//   - report child termination, which shuts the whole system down
package spawner

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"authgateway/internal/shutdown"
)

// Tagger decorates a process name into a line prefix.
type Tagger func(name string) string

// Options configures a Spawner beyond its name and command.
type Options struct {
	Args []string

	// Signals for lifecycle operations. Zero reload or logrotate mean the
	// child does not support the operation; a zero stop defaults to SIGINT.
	StopSignal      syscall.Signal
	ReloadSignal    syscall.Signal
	LogrotateSignal syscall.Signal

	// MakeConfig renders the child's config file content. When set, a
	// scoped temporary file is allocated and its path appended to the
	// arguments, preceded by ConfigFlag when that is non-empty.
	MakeConfig func() (string, error)
	ConfigFlag string

	// Output receives every tagged line. Defaults to stdout.
	Output func(line string)

	// TagLine prefixes child output; TagInformLine prefixes lines about the
	// child that the gateway itself emits. Both default to the bare name.
	TagLine       Tagger
	TagInformLine Tagger
}

// Spawner owns the full lifecycle of one supervised child process.
type Spawner struct {
	name    string
	command string
	args    []string

	stopSignal      syscall.Signal
	reloadSignal    syscall.Signal
	logrotateSignal syscall.Signal

	makeConfig func() (string, error)
	configPath string

	output    func(string)
	tagLine   Tagger
	tagInform Tagger

	shutdown *shutdown.Manager

	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool

	stdout lineBuffer
	stderr lineBuffer

	// exited is closed once the child is gone, releasing the shutdown
	// watcher so a dead child is never signalled.
	exited chan struct{}
}

// New builds a supervisor for one child process. The temporary config file,
// if any, is allocated here so Spawn can stay close to a plain exec.
func New(name, command string, sh *shutdown.Manager, opts Options) (*Spawner, error) {
	s := &Spawner{
		name:            name,
		command:         command,
		args:            opts.Args,
		stopSignal:      opts.StopSignal,
		reloadSignal:    opts.ReloadSignal,
		logrotateSignal: opts.LogrotateSignal,
		makeConfig:      opts.MakeConfig,
		output:          opts.Output,
		tagLine:         opts.TagLine,
		tagInform:       opts.TagInformLine,
		shutdown:        sh,
		exited:          make(chan struct{}),
	}
	if s.stopSignal == 0 {
		s.stopSignal = syscall.SIGINT
	}
	if s.output == nil {
		s.output = func(line string) { fmt.Println(line) }
	}
	if s.tagLine == nil {
		s.tagLine = func(name string) string { return name }
	}
	if s.tagInform == nil {
		s.tagInform = s.tagLine
	}

	if s.makeConfig != nil {
		f, err := os.CreateTemp("", "authgateway-*."+name)
		if err != nil {
			return nil, fmt.Errorf("allocating config file for %s: %w", name, err)
		}
		s.configPath = f.Name()
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("allocating config file for %s: %w", name, err)
		}
		if opts.ConfigFlag != "" {
			s.args = append(s.args, opts.ConfigFlag)
		}
		s.args = append(s.args, s.configPath)
	}
	return s, nil
}

// Name returns the name of the supervised child.
func (s *Spawner) Name() string { return s.name }

// Wait blocks until the child process is gone. It returns immediately for a
// child that was never spawned.
func (s *Spawner) Wait() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	<-s.exited
}

// ConfigPath returns the rendered config file path, or "" when the child
// takes no config file.
func (s *Spawner) ConfigPath() string { return s.configPath }

// Spawn renders the config file and starts the child process. It must be
// called at most once per Spawner; a second call is a programming defect
// and panics. A child that fails to start is reported as a child failure,
// which shuts the system down.
func (s *Spawner) Spawn() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		panic("spawner: cannot spawn a process more than once")
	}
	s.started = true
	s.mu.Unlock()

	if err := s.renderConfig(); err != nil {
		s.inform(fmt.Sprintf("Child emitted an error: %v", err))
		close(s.exited)
		s.shutdown.ChildExited(-1)
		return err
	}

	cmd := exec.Command(s.command, s.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("piping stdout of %s: %w", s.name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("piping stderr of %s: %w", s.name, err)
	}

	if err := cmd.Start(); err != nil {
		s.inform(fmt.Sprintf("Child emitted an error: %v", err))
		close(s.exited)
		s.shutdown.ChildExited(-1)
		return fmt.Errorf("starting %s: %w", s.name, err)
	}
	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	var pumps errgroup.Group
	pumps.Go(func() error { return s.pump(stdout, &s.stdout) })
	pumps.Go(func() error { return s.pump(stderr, &s.stderr) })

	// Stop the child on system shutdown, unless it is already gone.
	go func() {
		select {
		case <-s.shutdown.Done():
			_ = cmd.Process.Signal(s.stopSignal)
			<-s.exited
		case <-s.exited:
		}
	}()

	go s.wait(cmd, &pumps)
	return nil
}

// renderConfig writes the rendered configuration to the temporary file.
func (s *Spawner) renderConfig() error {
	if s.makeConfig == nil {
		return nil
	}
	content, err := s.makeConfig()
	if err != nil {
		return fmt.Errorf("rendering config for %s: %w", s.name, err)
	}
	if err := os.WriteFile(s.configPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing config for %s: %w", s.name, err)
	}
	s.inform("Rendered configuration file at " + s.configPath)
	return nil
}

// pump streams one pipe through a line buffer, emitting tagged lines.
func (s *Spawner) pump(r io.Reader, buf *lineBuffer) error {
	chunk := make([]byte, 4096)
	tag := s.tagLine(s.name)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			for _, line := range buf.Feed(string(chunk[:n])) {
				s.output(tag + line)
			}
		}
		if err != nil {
			return nil
		}
	}
}

// wait blocks for child termination, flushes residual output, and reports
// the exit to the shutdown manager. It runs on its own goroutine.
func (s *Spawner) wait(cmd *exec.Cmd, pumps *errgroup.Group) {
	// Pipes reach EOF before Wait may release them.
	_ = pumps.Wait()
	err := cmd.Wait()

	s.flushOutput()
	code := 0
	reason := ""
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			s.inform(fmt.Sprintf("Child emitted an error: %v", err))
			s.finish(-1)
			return
		}
		code = exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			reason = fmt.Sprintf(" because of %v", status.Signal())
		}
	}
	s.inform(fmt.Sprintf("Exited with code %d%s", code, reason))
	s.finish(code)
}

func (s *Spawner) finish(code int) {
	if s.configPath != "" {
		_ = os.Remove(s.configPath)
	}
	close(s.exited)
	s.shutdown.ChildExited(code)
}

// flushOutput emits whatever partial lines remain once the child is gone.
func (s *Spawner) flushOutput() {
	tag := s.tagLine(s.name)
	if rest := s.stderr.Flush(); rest != "" {
		s.output(tag + rest)
	}
	if rest := s.stdout.Flush(); rest != "" {
		s.output(tag + rest)
	}
}

// inform emits a line about the child that comes from the gateway itself.
func (s *Spawner) inform(message string) {
	s.output(s.tagInform(s.name) + message)
}

// Reload signals the child with its reload signal and reports whether a
// signal was sent. Callers treat false as "this process cannot reload".
func (s *Spawner) Reload() bool {
	return s.signal(s.reloadSignal)
}

// Logrotate signals the child with its logrotate signal and reports whether
// a signal was sent.
func (s *Spawner) Logrotate() bool {
	return s.signal(s.logrotateSignal)
}

func (s *Spawner) signal(sig syscall.Signal) bool {
	if sig == 0 {
		return false
	}
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return false
	}
	_ = cmd.Process.Signal(sig)
	return true
}
