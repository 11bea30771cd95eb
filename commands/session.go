package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/josephlewis42/pgsh/core/config"
	"github.com/josephlewis42/pgsh/core/jobs"
	"github.com/josephlewis42/pgsh/core/logger"
	"github.com/josephlewis42/pgsh/core/shell"
	"github.com/josephlewis42/pgsh/core/signals"
	"github.com/josephlewis42/pgsh/core/term"
	"golang.org/x/sys/unix"
	"mvdan.cc/sh/v3/expand"
)

// Options configure a new Session.
type Options struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	Config *config.Configuration
	Logger *logger.Logger

	// JobControl turns on process groups and terminal handoff when Stdin is
	// a terminal.
	JobControl bool
}

// JobInfo describes one entry of the job table.
type JobInfo struct {
	ID          int
	Status      string
	CommandLine string
	Pgid        int
	Pids        []int
}

// Session is one running shell: its job table, terminal, and builtin state.
type Session struct {
	ctl     *jobs.Control
	signals *signals.Manager
	config  *config.Configuration
	log     *logger.SessionLogger
	stdio   jobs.Stdio

	dirs         DirStack
	flags        map[string]bool
	history      []string
	resetHistory func()

	// launching is the job being started, hidden from job listings and from
	// fg/bg while its own builtin runs.
	launching  *jobs.Job
	lastStatus int
}

// NewSession sets up a shell. With job control on and a terminal on stdin, it
// waits to be in the foreground, takes over the terminal, and starts
// swallowing the signals a job-control shell must survive.
func NewSession(opts Options) (*Session, error) {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	sessionLog := opts.Logger.NewSession()
	sigs := signals.NewManager(sessionLog.Logger)

	var t *term.Terminal
	if opts.JobControl {
		t = term.New(opts.Stdin, sigs)
	} else {
		t = term.Detached(opts.Stdin)
	}

	stdio := jobs.Stdio{Stdin: opts.Stdin, Stdout: opts.Stdout, Stderr: opts.Stderr}
	ctl := jobs.NewControl(t, stdio)
	ctl.Logger = sessionLog.Logger
	ctl.ChildExec = builtinChildExec

	s := &Session{
		ctl:     ctl,
		signals: sigs,
		config:  opts.Config,
		log:     sessionLog,
		stdio:   stdio,
		flags:   make(map[string]bool),
	}
	for _, name := range config.KnownFlags {
		s.setFlag(name, opts.Config.Flag(name))
	}

	if t.Interactive() {
		if err := s.takeTerminal(); err != nil {
			sigs.Stop()
			return nil, err
		}
	}
	s.log.Printf("session started interactive=%v pgid=%d", t.Interactive(), t.ShellPgid())
	return s, nil
}

func (s *Session) takeTerminal() error {
	t := s.ctl.Terminal
	if err := t.LoopUntilForeground(); err != nil {
		return fmt.Errorf("waiting for the terminal: %w", err)
	}

	s.signals.Ignore(signals.ShellIgnored...)
	s.signals.Ignore(syscall.SIGINT)

	pid := os.Getpid()
	if unix.Getpgrp() != pid {
		if err := unix.Setpgid(0, 0); err != nil {
			return fmt.Errorf("creating process group: %w", err)
		}
	}
	t.SetShellPgid(pid)

	if err := t.GrabControl(pid); err != nil {
		return fmt.Errorf("taking the terminal: %w", err)
	}
	return t.SaveAttributes()
}

// Close gives the terminal modes back and stops watching signals.
func (s *Session) Close() error {
	err := s.ctl.Terminal.RestoreAttributes(nil)
	s.signals.Stop()
	return err
}

// Interactive reports whether the session controls a terminal.
func (s *Session) Interactive() bool {
	return s.ctl.Terminal.Interactive()
}

// LastStatus is the exit status of the most recent foreground job.
func (s *Session) LastStatus() int {
	return s.lastStatus
}

// Submit registers and launches a pipeline as a new job.
func (s *Session) Submit(pl shell.Pipeline, foreground bool) error {
	if len(pl.Stages) == 0 {
		return nil
	}

	j := jobs.NewJob(pl.Text)
	for _, stage := range pl.Stages {
		if b, ok := AllBuiltins[stage.Name()]; ok {
			j.AddStage(jobs.NewBuiltinProcess(stage.Args, s.bind(b), stage.Redirects...))
			continue
		}
		j.AddStage(jobs.NewProcess(stage.Args, stage.Redirects...))
	}

	s.ctl.Table.Register(j)
	s.launching = j
	err := j.Launch(s.ctl, foreground)
	s.launching = nil

	if foreground {
		s.lastStatus = j.ExitCode()
	} else {
		s.lastStatus = 0
	}
	return err
}

func (s *Session) bind(b Builtin) jobs.BuiltinFunc {
	return func(argv []string, stdio jobs.IO) (int, error) {
		return b.Main(s, argv, stdio)
	}
}

// NotifyCycle reaps finished and stopped children and reports them. Call it
// once before every prompt.
func (s *Session) NotifyCycle() {
	if err := s.ctl.Notify(); err != nil {
		s.log.Printf("notify: %v", err)
	}
}

// ResolveAndResume continues the job with the given id, or the last one
// referenced when selector is nil.
func (s *Session) ResolveAndResume(selector *int, foreground bool) error {
	_, err := s.resume(selector, foreground)
	return err
}

func (s *Session) resume(selector *int, foreground bool) (*jobs.Job, error) {
	id := 0
	if selector != nil {
		if *selector <= 0 {
			return nil, jobs.ErrJobNotFound
		}
		id = *selector
	}

	j, err := s.ctl.Table.Find(0, id)
	switch {
	case err != nil:
		return nil, err
	case j == s.launching:
		return nil, jobs.ErrJobNotFound
	case j.Completed():
		return nil, fmt.Errorf("job %d has terminated", j.ID)
	}

	s.log.Printf("resuming job %d foreground=%v", j.ID, foreground)
	err = j.Continue(s.ctl, foreground)
	if foreground {
		s.lastStatus = j.ExitCode()
	}
	return j, err
}

// ListJobs describes every job except the one running the listing. Finished
// jobs that are listed will not be announced again.
func (s *Session) ListJobs() []JobInfo {
	var out []JobInfo
	for _, j := range s.ctl.Table.All() {
		if j == s.launching {
			continue
		}
		info := JobInfo{
			ID:          j.ID,
			Status:      j.StatusLabel(),
			CommandLine: j.CommandLine(),
			Pgid:        j.Pgid(),
		}
		for _, p := range j.Processes() {
			info.Pids = append(info.Pids, p.Pid())
		}
		out = append(out, info)

		if j.Completed() {
			j.MarkNotified()
		}
	}
	return out
}

// RunLine parses, expands and runs each pipeline of line. Errors are
// reported on the session's error stream; only jobs.ErrExit is returned.
func (s *Session) RunLine(line string) error {
	stmts, err := shell.Parse(line)
	if err != nil {
		s.reportError(err)
		s.lastStatus = 2
		return nil
	}

	for _, st := range stmts {
		pl, err := st.Expand(shell.Config(s.environ()))
		if err != nil {
			s.reportError(err)
			s.lastStatus = 1
			continue
		}

		err = s.Submit(pl, !pl.Background)
		switch {
		case errors.Is(err, jobs.ErrExit):
			return err
		case err != nil:
			s.reportError(err)
		}
	}
	return nil
}

// RunScript runs r line by line until it ends or a builtin asks to exit.
// Blank lines and # comments are skipped.
func (s *Session) RunScript(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := s.RunLine(line); err != nil {
			return err
		}
		s.NotifyCycle()
	}
	return scanner.Err()
}

// RunFile runs the commands in the file at path.
func (s *Session) RunFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.RunScript(f)
}

// AddHistory records a line for the history builtin.
func (s *Session) AddHistory(line string) {
	s.history = append(s.history, line)
	if limit := s.config.HistoryLimit; limit > 0 && len(s.history) > limit {
		s.history = s.history[len(s.history)-limit:]
	}
}

func (s *Session) environ() expand.Environ {
	env := append(os.Environ(),
		"?="+strconv.Itoa(s.lastStatus),
		"$="+strconv.Itoa(os.Getpid()),
	)
	// Relative globs are matched against PWD.
	if wd, err := os.Getwd(); err == nil {
		env = append(env, "PWD="+wd)
	}
	return expand.ListEnviron(env...)
}

// reportError prints err, and with tracebacks on, every error it wraps.
func (s *Session) reportError(err error) {
	w := s.stdio.Stderr
	fmt.Fprintf(w, "pgsh: %v\n", err)
	if !s.flags[config.FlagTracebacks] {
		return
	}
	fmt.Fprintln(w, "Traceback:")
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(w, "  %T: %v\n", e, e)
	}
}

func (s *Session) setFlag(name string, value bool) {
	s.flags[name] = value
	if name == config.FlagNotifyColor {
		s.ctl.Label = nil
		if value {
			s.ctl.Label = colorStatus
		}
	}
}

var statusColors = map[string]*color.Color{
	"Running":    color.New(color.FgCyan),
	"Stopped":    color.New(color.FgYellow, color.Bold),
	"Done":       color.New(color.FgGreen),
	"Terminated": color.New(color.FgRed, color.Bold),
}

func init() {
	// Notice colors follow the set flag, not whether stderr is a terminal.
	for _, c := range statusColors {
		c.EnableColor()
	}
}

func colorStatus(status string) string {
	c, ok := statusColors[status]
	if !ok {
		return status
	}
	return c.Sprint(status)
}
