// Package shutdown coordinates process-wide termination.
//
// A single Manager is created in main and injected into every component
// that owns a resource: the web listener and each process supervisor. The
// first terminator wins; everyone else observes the broadcast Done channel
// and releases what it holds.
package shutdown

import (
	"log/slog"
	"os"
	"sync"
)

// Manager is the single authority on whether the process is stopping and
// how forcefully. All methods are safe for concurrent use: signal handlers
// and child watchers run on their own goroutines.
type Manager struct {
	logger *slog.Logger

	mu        sync.Mutex
	signalled bool
	stopping  bool
	exitCode  int
	done      chan struct{}

	// exit is called on the forceful path. Replaced in tests.
	exit func(code int)
}

// New returns a Manager that terminates via os.Exit when escalated.
func New(logger *slog.Logger) *Manager {
	return &Manager{
		logger: logger,
		done:   make(chan struct{}),
		exit:   os.Exit,
	}
}

// Done returns a channel closed exactly once when a stop is underway.
// Subscribers release their resources when it fires.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// ExitCode returns the code the process should exit with.
func (m *Manager) ExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitCode
}

// Stop starts a graceful shutdown. The first call emits the stop broadcast
// (unless a child exit already has) and returns. A second call means the
// operator signalled twice: the process terminates immediately, with exit
// code 1 if none was set before.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.signalled {
		m.signalled = true
		m.logger.Warn("stopping gracefully, signal again to force exit")
		if !m.stopping {
			m.stopping = true
			close(m.done)
		}
		m.mu.Unlock()
		return
	}
	if m.exitCode == 0 {
		m.exitCode = 1
	}
	code := m.exitCode
	m.mu.Unlock()

	m.logger.Error("stopping abruptly now, sorry you had to do that")
	m.exit(code)
}

// ChildExited reports that a supervised process terminated. If a stop is
// already underway this is a no-op: the first terminator decides the exit
// code. Otherwise the child's code becomes the process exit code and the
// stop broadcast fires.
func (m *Manager) ChildExited(code int) {
	m.fail(code)
}

// Fatal reports an unrecoverable runtime failure, such as the listener
// dying or a mandatory reload being refused. Same rules as a child exit.
func (m *Manager) Fatal(code int) {
	m.fail(code)
}

func (m *Manager) fail(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopping {
		return
	}
	m.stopping = true
	m.exitCode = code
	close(m.done)
}
