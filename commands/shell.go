package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"
	"github.com/josephlewis42/pgsh/core/config"
	"github.com/josephlewis42/pgsh/core/jobs"
)

const (
	DefaultPrompt = `\u@\h:\w\$ `
)

var (
	ColorBoldBlue  = color.New(color.FgHiBlue, color.Bold)
	ColorBoldGreen = color.New(color.FgHiGreen, color.Bold)
)

// Shell is the interactive read-eval loop around a Session.
type Shell struct {
	Session  *Session
	Readline *readline.Instance

	gate *ttyGate
}

// NewShell attaches a line editor to the session's terminal.
func NewShell(s *Session) (*Shell, error) {
	gate := newTTYGate(s.stdio.Stdin)

	cfg := &readline.Config{
		Stdin:        gate,
		Stdout:       s.stdio.Stdout,
		Stderr:       s.stdio.Stderr,
		HistoryFile:  config.ExpandPath(s.config.HistoryFile),
		HistoryLimit: s.config.HistoryLimit,
		// Suspending the shell itself would leave nobody to resume it.
		FuncFilterInputRune: func(r rune) (rune, bool) {
			return r, r != readline.CharCtrlZ
		},
	}
	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}

	s.resetHistory = rl.Operation.ResetHistory
	return &Shell{Session: s, Readline: rl, gate: gate}, nil
}

// Close releases the line editor.
func (sh *Shell) Close() error {
	sh.gate.Close()
	return sh.Readline.Close()
}

// Run reads and runs lines until end of input or exit, and returns the exit
// status for the shell.
func (sh *Shell) Run() int {
	s := sh.Session
	for {
		s.NotifyCycle()
		sh.Readline.SetPrompt(sh.prompt())

		sh.gate.Resume()
		line, err := sh.Readline.Readline()
		sh.gate.Pause()

		switch {
		case err == io.EOF:
			fmt.Fprintln(s.stdio.Stderr, "exit")
			return s.LastStatus()
		case err == readline.ErrInterrupt:
			// Interrupt clears line.
			continue
		case err != nil:
			s.log.Printf("Error readline: %v", err)
			return 1
		case strings.TrimSpace(line) == "":
			continue // empty line
		}

		s.AddHistory(line)
		if errors.Is(s.RunLine(line), jobs.ErrExit) {
			return s.LastStatus()
		}
	}
}

func (sh *Shell) prompt() string {
	tmpl := sh.Session.config.Prompt
	if tmpl == "" {
		tmpl = DefaultPrompt
	}
	return renderPrompt(tmpl, currentPromptInfo(), sh.Session.config.Color)
}

type promptInfo struct {
	User string
	Host string
	Cwd  string
	Home string
	Root bool
}

func currentPromptInfo() promptInfo {
	var info promptInfo
	if u, err := user.Current(); err == nil {
		info.User = u.Username
		info.Home = u.HomeDir
	}
	if home := os.Getenv("HOME"); home != "" {
		info.Home = home
	}
	info.Host, _ = os.Hostname()
	info.Cwd, _ = os.Getwd()
	info.Root = os.Geteuid() == 0
	return info
}

// renderPrompt expands \u, \h, \w, \$ and \n in tmpl.
func renderPrompt(tmpl string, info promptInfo, colored bool) string {
	paint := func(c *color.Color, s string) string {
		if !colored {
			return s
		}
		painted := *c
		painted.EnableColor()
		return painted.Sprint(s)
	}

	cwd := info.Cwd
	if info.Home != "" && info.Home != "/" && (cwd == info.Home || strings.HasPrefix(cwd, info.Home+"/")) {
		cwd = "~" + strings.TrimPrefix(cwd, info.Home)
	}

	dollar := "$"
	if info.Root {
		dollar = "#"
	}

	return strings.NewReplacer(
		`\u`, paint(ColorBoldGreen, info.User),
		`\h`, paint(ColorBoldGreen, info.Host),
		`\w`, paint(ColorBoldBlue, cwd),
		`\$`, dollar,
		`\n`, "\n",
	).Replace(tmpl)
}

// RunShell runs a session in one of three modes: a single command, a script
// file, or reading standard input (interactively when it is a terminal).
func RunShell(opts Options, command, script string) int {
	opts.JobControl = command == "" && script == ""

	s, err := NewSession(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pgsh: %v\n", err)
		return 1
	}
	defer s.Close()

	switch {
	case command != "":
		s.RunLine(command)
		return s.LastStatus()

	case script != "":
		if err := s.RunFile(script); err != nil && !errors.Is(err, jobs.ErrExit) {
			s.reportError(err)
			return 127
		}
		return s.LastStatus()

	case !s.Interactive():
		if err := s.RunScript(s.stdio.Stdin); err != nil && !errors.Is(err, jobs.ErrExit) {
			s.reportError(err)
		}
		return s.LastStatus()
	}

	if rc := config.ExpandPath(s.config.RCFile); rc != "" {
		if _, err := os.Stat(rc); err == nil {
			if err := s.RunFile(rc); errors.Is(err, jobs.ErrExit) {
				return s.LastStatus()
			} else if err != nil {
				s.reportError(err)
			}
		}
	}

	sh, err := NewShell(s)
	if err != nil {
		s.reportError(err)
		return 1
	}
	defer sh.Close()
	return sh.Run()
}
