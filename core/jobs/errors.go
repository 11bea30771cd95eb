package jobs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrJobNotFound is returned by table lookups that match no job.
	ErrJobNotFound = errors.New("no such job")
	// ErrProcessNotFound is returned when no job owns a pid.
	ErrProcessNotFound = errors.New("no such process")
	// ErrNoChildren means a wait found nothing left to reap.
	ErrNoChildren = errors.New("no child processes")
	// ErrExit is returned by a builtin that asks the shell to terminate.
	ErrExit = errors.New("exit requested")
)

// LaunchError is a failure to create a stage's process. Stages started before
// the failure keep running.
type LaunchError struct {
	Argv []string
	Err  error
}

func (e *LaunchError) Error() string {
	if e == nil {
		return ""
	}
	name := ""
	if len(e.Argv) > 0 {
		name = e.Argv[0]
	}
	return fmt.Sprintf("%s: %v", name, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

func commandString(argv []string) string {
	return strings.Join(argv, " ")
}
