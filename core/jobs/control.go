// Package jobs turns pipelines into process groups and tracks them until they
// finish.
//
// Everything here is owned by a single goroutine: the table is never locked,
// and child state is collected by explicit wait calls rather than from a
// SIGCHLD handler.
package jobs

import (
	"io"
	"log"
	"os"

	"github.com/josephlewis42/pgsh/core/term"
)

// Stdio are the three descriptors a job or stage inherits.
type Stdio struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// IO is what an in-process builtin reads and writes.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// ChildExec describes how to start a copy of the shell that runs a single
// builtin, for builtins that are one stage of a longer pipeline.
type ChildExec func(argv []string) (path string, args []string, env []string, err error)

// Control is the job-control context shared by every operation of a shell
// session.
type Control struct {
	Terminal *term.Terminal
	Table    *Table

	// Stdio are the descriptors jobs inherit unless they set their own.
	Stdio Stdio
	// Notices receives job start and state-change messages.
	Notices io.Writer
	// ShellName prefixes diagnostics.
	ShellName string
	// Logger receives debug output.
	Logger *log.Logger
	// ChildExec starts pipelined builtins. Launching one fails without it.
	ChildExec ChildExec
	// Label decorates the status word of state-change notices.
	Label func(status string) string
}

// NewControl creates a context with an empty table that reports to stdio's
// error stream.
func NewControl(t *term.Terminal, stdio Stdio) *Control {
	return &Control{
		Terminal:  t,
		Table:     NewTable(),
		Stdio:     stdio,
		Notices:   stdio.Stderr,
		ShellName: "pgsh",
		Logger:    log.New(io.Discard, "", 0),
	}
}

func (c *Control) logf(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}
