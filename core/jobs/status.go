package jobs

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// State is the coarse lifecycle of a process.
type State int

const (
	Running State = iota
	Stopped
	Exited
	Signaled
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Exited:
		return "Exited"
	case Signaled:
		return "Signaled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is the outcome of a process. Code is set for Exited, Signal for
// Signaled and Stopped.
type Status struct {
	State  State
	Code   int
	Signal unix.Signal
}

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	return s.State == Exited || s.State == Signaled
}

// ExitCode follows the usual shell convention of 128+n for signals.
func (s Status) ExitCode() int {
	switch s.State {
	case Exited:
		return s.Code
	case Signaled, Stopped:
		return 128 + int(s.Signal)
	default:
		return 0
	}
}

func (s Status) String() string {
	switch s.State {
	case Exited:
		return fmt.Sprintf("Exited(%d)", s.Code)
	case Signaled, Stopped:
		return fmt.Sprintf("%s(%s)", s.State, unix.SignalName(s.Signal))
	default:
		return s.State.String()
	}
}

// DecodeWaitStatus turns a raw wait status into a Status. Continued is
// reported as Running.
func DecodeWaitStatus(ws unix.WaitStatus) Status {
	switch {
	case ws.Stopped():
		return Status{State: Stopped, Signal: ws.StopSignal()}
	case ws.Signaled():
		return Status{State: Signaled, Signal: ws.Signal()}
	case ws.Exited():
		return Status{State: Exited, Code: ws.ExitStatus()}
	default:
		return Status{State: Running}
	}
}

func exitedWith(code int) Status {
	return Status{State: Exited, Code: code}
}
