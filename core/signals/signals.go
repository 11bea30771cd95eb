// Package signals tracks the shell's dispositions for the job-control signals.
//
// The shell must survive keyboard and terminal-access signals, but the
// programs it starts must see them at their default disposition. A signal that
// is ignored (SIG_IGN) stays ignored across exec, while a caught signal is
// reset to SIG_DFL in the child, so the shell "ignores" by catching and
// discarding.
package signals

import (
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Disposition is how the shell currently treats a signal.
type Disposition int

const (
	// Default leaves the signal to the kernel's default action.
	Default Disposition = iota
	// Swallowed signals are caught and dropped by the shell.
	Swallowed
	// Ignored signals are set to SIG_IGN and stay that way in exec'd children.
	Ignored
)

func (d Disposition) String() string {
	switch d {
	case Swallowed:
		return "swallowed"
	case Ignored:
		return "ignored"
	default:
		return "default"
	}
}

// ShellIgnored are the signals an interactive shell must not act on.
var ShellIgnored = []os.Signal{syscall.SIGQUIT, syscall.SIGTSTP, syscall.SIGTTIN, syscall.SIGTTOU}

// Saved is a snapshot of dispositions that can be reapplied with Restore.
type Saved map[os.Signal]Disposition

// Manager owns the process-wide signal dispositions for the shell.
type Manager struct {
	mu     sync.Mutex
	sink   chan os.Signal
	state  map[os.Signal]Disposition
	logger *log.Logger
	done   chan struct{}
}

// NewManager creates a manager that believes every signal is at its default.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	m := &Manager{
		sink:   make(chan os.Signal, 8),
		state:  make(map[os.Signal]Disposition),
		logger: logger,
		done:   make(chan struct{}),
	}
	go m.drain()
	return m
}

func (m *Manager) drain() {
	for {
		select {
		case sig := <-m.sink:
			m.logger.Printf("signals: swallowed %v", sig)
		case <-m.done:
			return
		}
	}
}

// Ignore makes the shell itself immune to sigs without passing SIG_IGN on to
// the programs it starts. It returns the dispositions it replaced.
func (m *Manager) Ignore(sigs ...os.Signal) Saved {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := m.snapshot(sigs)
	signal.Notify(m.sink, sigs...)
	for _, sig := range sigs {
		m.state[sig] = Swallowed
	}
	return saved
}

// Restore reapplies dispositions previously returned by Ignore.
func (m *Manager) Restore(saved Saved) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sig, d := range saved {
		m.apply(sig, d)
	}
}

// Disposition reports what the manager last set for sig.
func (m *Manager) Disposition(sig os.Signal) Disposition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state[sig]
}

// WithIgnored runs fn with sigs truly ignored. tcsetpgrp from a background
// process group raises SIGTTOU unless the signal is ignored, and a caught
// SIGTTOU just restarts the call forever.
func (m *Manager) WithIgnored(fn func() error, sigs ...os.Signal) error {
	m.mu.Lock()
	saved := m.snapshot(sigs)
	signal.Ignore(sigs...)
	for _, sig := range sigs {
		m.state[sig] = Ignored
	}
	m.mu.Unlock()

	defer m.Restore(saved)
	return fn()
}

// Stop releases every signal the manager caught and stops the drain goroutine.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	signal.Stop(m.sink)
	for sig, d := range m.state {
		if d != Default {
			m.reset(sig)
		}
	}
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

func (m *Manager) snapshot(sigs []os.Signal) Saved {
	saved := make(Saved, len(sigs))
	for _, sig := range sigs {
		saved[sig] = m.state[sig]
	}
	return saved
}

// apply must be called with mu held.
func (m *Manager) apply(sig os.Signal, d Disposition) {
	switch d {
	case Swallowed:
		signal.Notify(m.sink, sig)
	case Ignored:
		signal.Ignore(sig)
	default:
		m.reset(sig)
	}
	m.state[sig] = d
}

// reset returns sig to its default action. The runtime leaves SIG_IGN in
// place on Reset, so an ignored signal is caught once first to put the
// runtime's own handler back. Must be called with mu held.
func (m *Manager) reset(sig os.Signal) {
	if m.state[sig] == Ignored {
		signal.Notify(m.sink, sig)
	}
	signal.Reset(sig)
	m.state[sig] = Default
}
