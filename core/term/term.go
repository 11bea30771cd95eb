// Package term controls ownership of the shell's controlling terminal.
package term

import (
	"errors"
	"os"
	"syscall"

	"github.com/josephlewis42/pgsh/core/signals"
	"golang.org/x/sys/unix"
	xterm "golang.org/x/term"
)

// ErrNotInteractive is returned by queries that need a terminal.
var ErrNotInteractive = errors.New("not a terminal")

// Attributes is a snapshot of terminal modes.
type Attributes = unix.Termios

// Terminal mediates which process group owns the controlling terminal.
//
// When the input is not a terminal every operation is a no-op, so jobs run
// without group isolation.
type Terminal struct {
	file        *os.File
	fd          int
	interactive bool
	shellPgid   int
	saved       *Attributes
	signals     *signals.Manager
}

// New creates a controller for f. The controller is interactive iff f is a
// terminal device.
func New(f *os.File, sigs *signals.Manager) *Terminal {
	fd := int(f.Fd())
	return &Terminal{
		file:        f,
		fd:          fd,
		interactive: xterm.IsTerminal(fd),
		shellPgid:   unix.Getpgrp(),
		signals:     sigs,
	}
}

// Detached creates a non-interactive controller for f even if f is a
// terminal.
func Detached(f *os.File) *Terminal {
	return &Terminal{
		file:      f,
		fd:        int(f.Fd()),
		shellPgid: unix.Getpgrp(),
	}
}

// Interactive is fixed at construction.
func (t *Terminal) Interactive() bool {
	return t.interactive
}

// Fd is the terminal's descriptor in this process.
func (t *Terminal) Fd() int {
	return t.fd
}

// ShellPgid is the process group that owns the terminal between jobs.
func (t *Terminal) ShellPgid() int {
	return t.shellPgid
}

// SetShellPgid records the shell's own process group.
func (t *Terminal) SetShellPgid(pgid int) {
	t.shellPgid = pgid
}

// ForegroundPgid asks the kernel which group owns the terminal.
func (t *Terminal) ForegroundPgid() (int, error) {
	if !t.interactive {
		return 0, ErrNotInteractive
	}
	return unix.IoctlGetInt(t.fd, unix.TIOCGPGRP)
}

// GrabControl makes pgid the terminal's foreground process group.
func (t *Terminal) GrabControl(pgid int) error {
	if !t.interactive || pgid <= 0 {
		return nil
	}
	set := func() error {
		return unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid)
	}
	if t.signals == nil {
		return set()
	}
	return t.signals.WithIgnored(set, syscall.SIGTTOU)
}

// LoopUntilForeground stops the shell with SIGTTIN until the kernel puts its
// process group in the foreground. SIGTTIN must be at its default disposition.
func (t *Terminal) LoopUntilForeground() error {
	if !t.interactive {
		return nil
	}
	pgrp := unix.Getpgrp()
	for {
		fg, err := t.ForegroundPgid()
		if err != nil {
			return err
		}
		if fg == pgrp {
			return nil
		}
		if err := unix.Kill(-pgrp, unix.SIGTTIN); err != nil {
			return err
		}
	}
}

// Attributes reads the current terminal modes.
func (t *Terminal) Attributes() (*Attributes, error) {
	if !t.interactive {
		return nil, ErrNotInteractive
	}
	return unix.IoctlGetTermios(t.fd, ioctlReadTermios)
}

// SaveAttributes snapshots the shell's own terminal modes.
func (t *Terminal) SaveAttributes() error {
	if !t.interactive {
		return nil
	}
	attrs, err := t.Attributes()
	if err != nil {
		return err
	}
	t.saved = attrs
	return nil
}

// RestoreAttributes applies attrs after pending output drains. A nil attrs
// reapplies the snapshot taken by SaveAttributes.
func (t *Terminal) RestoreAttributes(attrs *Attributes) error {
	if !t.interactive {
		return nil
	}
	if attrs == nil {
		attrs = t.saved
	}
	if attrs == nil {
		return nil
	}
	set := func() error {
		return unix.IoctlSetTermios(t.fd, ioctlWriteTermiosDrain, attrs)
	}
	if t.signals == nil {
		return set()
	}
	return t.signals.WithIgnored(set, syscall.SIGTTOU)
}
