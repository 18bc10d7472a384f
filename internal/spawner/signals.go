package spawner

import (
	"fmt"
	"syscall"
)

var signalsByName = map[string]syscall.Signal{
	"SIGHUP":   syscall.SIGHUP,
	"SIGINT":   syscall.SIGINT,
	"SIGQUIT":  syscall.SIGQUIT,
	"SIGKILL":  syscall.SIGKILL,
	"SIGUSR1":  syscall.SIGUSR1,
	"SIGUSR2":  syscall.SIGUSR2,
	"SIGTERM":  syscall.SIGTERM,
	"SIGWINCH": syscall.SIGWINCH,
}

// ParseSignal resolves a configured signal name like "SIGHUP". The empty
// string resolves to 0, meaning the operation is not supported.
func ParseSignal(name string) (syscall.Signal, error) {
	if name == "" {
		return 0, nil
	}
	sig, ok := signalsByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown signal name %q", name)
	}
	return sig, nil
}
