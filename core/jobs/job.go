package jobs

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/josephlewis42/pgsh/core/term"
	"golang.org/x/sys/unix"
)

// Job is a pipeline of processes that share one process group.
type Job struct {
	ID int

	pgid        int
	commandLine string
	processes   []*Process
	tmodes      *term.Attributes
	notified    bool
	stdio       *Stdio
}

// NewJob creates an empty job displayed as commandLine.
func NewJob(commandLine string) *Job {
	return &Job{commandLine: commandLine}
}

// AddStage appends a pipeline stage. Stages must be added before Launch.
func (j *Job) AddStage(p *Process) {
	j.processes = append(j.processes, p)
}

// SetStdio overrides the descriptors the job inherits from its Control.
func (j *Job) SetStdio(stdio Stdio) {
	j.stdio = &stdio
}

// Pgid is zero until the first stage has been started in an interactive
// session.
func (j *Job) Pgid() int {
	return j.pgid
}

// CommandLine is the text shown in job listings.
func (j *Job) CommandLine() string {
	return j.commandLine
}

// Processes returns the stages in pipeline order.
func (j *Job) Processes() []*Process {
	return append([]*Process(nil), j.processes...)
}

// Notified reports whether the current state has already been announced.
func (j *Job) Notified() bool {
	return j.notified
}

// MarkNotified suppresses the notice for the job's current state.
func (j *Job) MarkNotified() {
	j.notified = true
}

// Completed is true once every stage has exited or been killed.
func (j *Job) Completed() bool {
	for _, p := range j.processes {
		if !p.status.Terminal() {
			return false
		}
	}
	return len(j.processes) > 0
}

// Stopped is true when no stage is running and at least one is stopped.
func (j *Job) Stopped() bool {
	stopped := false
	for _, p := range j.processes {
		switch {
		case p.status.State == Stopped:
			stopped = true
		case !p.status.Terminal():
			return false
		}
	}
	return stopped
}

// TerminatedBySignal is true if any stage was killed by a signal.
func (j *Job) TerminatedBySignal() bool {
	for _, p := range j.processes {
		if p.status.State == Signaled {
			return true
		}
	}
	return false
}

// StatusLabel is the word shown for the job in listings and notices.
func (j *Job) StatusLabel() string {
	switch {
	case j.Completed() && j.TerminatedBySignal():
		return "Terminated"
	case j.Completed():
		return "Done"
	case j.Stopped():
		return "Stopped"
	default:
		return "Running"
	}
}

// ExitCode is the status of the last stage.
func (j *Job) ExitCode() int {
	if len(j.processes) == 0 {
		return 0
	}
	return j.processes[len(j.processes)-1].status.ExitCode()
}

// Launch starts every stage, wiring each stage's output to the next stage's
// input. A foreground job is waited for before Launch returns.
//
// If a stage cannot be started the stages after it are never launched and
// are recorded as failed, while the ones already running are handled as
// usual. The LaunchError is returned once that handling is done.
func (j *Job) Launch(ctl *Control, foreground bool) error {
	if len(j.processes) == 0 {
		return errors.New("job has no stages")
	}

	stdio := ctl.Stdio
	if j.stdio != nil {
		stdio = *j.stdio
	}
	interactive := ctl.Terminal != nil && ctl.Terminal.Interactive()
	pipelined := len(j.processes) > 1

	var launchErr error
	in := stdio.Stdin
	for i, p := range j.processes {
		p.pipelined = pipelined

		out := stdio.Stdout
		var next *os.File
		if i < len(j.processes)-1 {
			r, w, err := os.Pipe()
			if err != nil {
				if in != stdio.Stdin {
					in.Close()
				}
				launchErr = &LaunchError{Argv: p.argv, Err: err}
				j.abandon(i)
				break
			}
			next, out = r, w
		}

		pid, err := p.Launch(ctl, j.pgid, Stdio{Stdin: in, Stdout: out, Stderr: stdio.Stderr}, foreground)
		if pid > 0 && interactive && j.pgid == 0 {
			j.pgid = pid
		}

		if in != stdio.Stdin {
			in.Close()
		}
		if out != stdio.Stdout {
			out.Close()
		}
		in = next

		if errors.Is(err, ErrExit) {
			j.notified = true
			return err
		}
		if err != nil {
			if next != nil {
				next.Close()
			}
			launchErr = err
			j.abandon(i)
			break
		}
	}

	var err error
	switch {
	case interactive && foreground:
		err = j.foreground(ctl, false)
	case foreground:
		err = j.Wait(ctl)
	default:
		j.announce(ctl)
	}

	if foreground && j.Completed() {
		j.notified = true
	}
	if launchErr != nil {
		return launchErr
	}
	return err
}

// abandon records stages from index i on as failed without running them.
func (j *Job) abandon(i int) {
	for _, p := range j.processes[i:] {
		p.status = exitedWith(1)
	}
}

// announce prints the short background notice if any stage got a pid.
func (j *Job) announce(ctl *Control) {
	for i := len(j.processes) - 1; i >= 0; i-- {
		if j.processes[i].pid != 0 {
			j.PrintInfo(ctl.Notices, true)
			return
		}
	}
}

// Continue resumes a stopped job, in the foreground or in the background.
func (j *Job) Continue(ctl *Control, foreground bool) error {
	for _, p := range j.processes {
		p.resume()
	}
	j.notified = false

	if foreground && ctl.Terminal != nil && ctl.Terminal.Interactive() {
		err := j.foreground(ctl, true)
		if j.Completed() {
			j.notified = true
		}
		return err
	}
	if err := j.signal(unix.SIGCONT); err != nil {
		return err
	}
	if !foreground {
		return nil
	}
	err := j.Wait(ctl)
	if j.Completed() {
		j.notified = true
	}
	return err
}

// Wait blocks until the job stops or completes, or until there is nothing
// left to wait for.
func (j *Job) Wait(ctl *Control) error {
	for !j.Stopped() && !j.Completed() {
		err := ctl.ReapBlocking()
		if errors.Is(err, ErrNoChildren) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// foreground hands the terminal to the job, waits, and takes it back.
func (j *Job) foreground(ctl *Control, cont bool) error {
	t := ctl.Terminal
	if err := t.GrabControl(j.pgid); err != nil {
		return err
	}
	if cont {
		if j.tmodes != nil {
			if err := t.RestoreAttributes(j.tmodes); err != nil {
				ctl.logf("restoring modes for job %d: %v", j.ID, err)
			}
		}
		if err := j.signal(unix.SIGCONT); err != nil {
			return err
		}
	}

	waitErr := j.Wait(ctl)

	if err := t.GrabControl(t.ShellPgid()); err != nil {
		return err
	}
	if attrs, err := t.Attributes(); err == nil {
		j.tmodes = attrs
	}
	if err := t.RestoreAttributes(nil); err != nil {
		return err
	}
	return waitErr
}

// signal delivers sig to the job's process group, or to each live stage when
// the job never got a group of its own.
func (j *Job) signal(sig unix.Signal) error {
	if j.pgid > 0 {
		return unix.Kill(-j.pgid, sig)
	}
	for _, p := range j.processes {
		if p.pid == 0 || p.status.Terminal() {
			continue
		}
		if err := unix.Kill(p.pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
			return err
		}
	}
	return nil
}

// PrintInfo writes "[id] pid" for the short form and
// "[id]\t<status>\t\t<command>" otherwise.
func (j *Job) PrintInfo(w io.Writer, short bool) {
	j.printInfo(w, short, nil)
}

func (j *Job) printInfo(w io.Writer, short bool, label func(string) string) {
	if short {
		pid := 0
		if len(j.processes) > 0 {
			pid = j.processes[len(j.processes)-1].pid
		}
		fmt.Fprintf(w, "[%d] %d\n", j.ID, pid)
		return
	}
	status := j.StatusLabel()
	if label != nil {
		status = label(status)
	}
	fmt.Fprintf(w, "[%d]\t%s\t\t%s\n", j.ID, status, j.commandLine)
}
