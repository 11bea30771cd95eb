package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/josephlewis42/pgsh/core/config"
	"github.com/josephlewis42/pgsh/core/jobs"
)

var errInvalidJobID = errors.New("invalid job id")

// Cd is the cd shell builtin
func Cd(s *Session, args []string, stdio jobs.IO) (int, error) {
	switch len(args) {
	case 1:
		home := os.Getenv("HOME")
		if home == "" {
			return 1, errNoHome
		}
		args = append(args, home)
		fallthrough
	case 2:
		if args[1] == "-" {
			dir, err := s.dirs.Back()
			if err != nil {
				return 1, err
			}
			fmt.Fprintln(stdio.Stdout, dir)
			return 0, nil
		}
		if err := s.dirs.Chdir(args[1]); err != nil {
			return 1, err
		}
	default:
		return 1, errors.New("too many arguments")
	}
	return 0, nil
}

// Pushd changes directory, saving the current one on the stack.
func Pushd(s *Session, args []string, stdio jobs.IO) (int, error) {
	var err error
	switch len(args) {
	case 1:
		err = s.dirs.Swap()
	case 2:
		err = s.dirs.Push(args[1])
	default:
		err = errors.New("too many arguments")
	}
	if err != nil {
		return 1, err
	}
	fmt.Fprintln(stdio.Stdout, s.dirs.String())
	return 0, nil
}

// Popd returns to the directory on top of the stack.
func Popd(s *Session, args []string, stdio jobs.IO) (int, error) {
	if len(args) > 1 {
		return 1, errors.New("too many arguments")
	}
	if err := s.dirs.Pop(); err != nil {
		return 1, err
	}
	fmt.Fprintln(stdio.Stdout, s.dirs.String())
	return 0, nil
}

// Dirs prints the directory stack.
func Dirs(s *Session, args []string, stdio jobs.IO) (int, error) {
	cmd := &SimpleCommand{
		Use:   "dirs [-c]",
		Short: "Display the directory stack, most recent first.",
	}
	clear := cmd.Flags().Bool('c', "clear the directory stack")

	return cmd.Run(args, stdio, func([]string) (int, error) {
		if *clear {
			s.dirs.stack = nil
			return 0, nil
		}
		fmt.Fprintln(stdio.Stdout, s.dirs.String())
		return 0, nil
	})
}

// Exit quits the shell
func Exit(s *Session, args []string, stdio jobs.IO) (int, error) {
	switch len(args) {
	case 1:
		return s.lastStatus, jobs.ErrExit
	case 2:
		code, err := strconv.Atoi(args[1])
		if err != nil {
			return 2, fmt.Errorf("%s: numeric argument required", args[1])
		}
		return code & 0xff, jobs.ErrExit
	default:
		return 1, errors.New("too many arguments")
	}
}

// parseJobSelector accepts "N" or "%N".
func parseJobSelector(args []string) (*int, error) {
	switch len(args) {
	case 1:
		return nil, nil
	case 2:
		id, err := strconv.Atoi(strings.TrimPrefix(args[1], "%"))
		if err != nil || id <= 0 {
			return nil, errInvalidJobID
		}
		return &id, nil
	default:
		return nil, errors.New("too many arguments")
	}
}

// Fg resumes a job in the foreground.
func Fg(s *Session, args []string, stdio jobs.IO) (int, error) {
	selector, err := parseJobSelector(args)
	if err != nil {
		return 1, err
	}
	j, err := s.resume(selector, true)
	if err != nil {
		return 1, err
	}
	return j.ExitCode(), nil
}

// Bg resumes a job in the background.
func Bg(s *Session, args []string, stdio jobs.IO) (int, error) {
	selector, err := parseJobSelector(args)
	if err != nil {
		return 1, err
	}
	j, err := s.resume(selector, false)
	if err != nil {
		return 1, err
	}
	fmt.Fprintf(stdio.Stdout, "[%d] %s &\n", j.ID, j.CommandLine())
	return 0, nil
}

// Jobs lists the session's jobs.
func Jobs(s *Session, args []string, stdio jobs.IO) (int, error) {
	cmd := &SimpleCommand{
		Use:   "jobs [-lp]",
		Short: "Display status of jobs.",
	}
	long := cmd.Flags().Bool('l', "list process IDs in addition to the normal information")
	pidsOnly := cmd.Flags().Bool('p', "list process group IDs only")

	return cmd.Run(args, stdio, func([]string) (int, error) {
		w := stdio.Stdout
		for _, info := range s.ListJobs() {
			switch {
			case *pidsOnly:
				fmt.Fprintln(w, leaderPid(info))
			case *long:
				fmt.Fprintf(w, "[%d]\t%d\t%s\t\t%s\n", info.ID, leaderPid(info), info.Status, info.CommandLine)
			default:
				fmt.Fprintf(w, "[%d]\t%s\t\t%s\n", info.ID, info.Status, info.CommandLine)
			}
		}
		return 0, nil
	})
}

// leaderPid is the process group, or the first pid for jobs without one.
func leaderPid(info JobInfo) int {
	if info.Pgid != 0 {
		return info.Pgid
	}
	for _, pid := range info.Pids {
		if pid != 0 {
			return pid
		}
	}
	return 0
}

// Set toggles shell flags.
func Set(s *Session, args []string, stdio jobs.IO) (int, error) {
	if len(args) == 1 {
		for _, name := range config.KnownFlags {
			state := "disabled"
			if s.flags[name] {
				state = "enabled"
			}
			fmt.Fprintf(stdio.Stdout, "%s\t%s\n", name, state)
		}
		return 0, nil
	}
	if len(args) != 3 || (args[1] != "enable" && args[1] != "disable") {
		return 1, errors.New("required usage: set [enable|disable] [flag]")
	}
	if _, ok := s.flags[args[2]]; !ok {
		return 1, fmt.Errorf("%s not a valid flag", args[2])
	}
	s.setFlag(args[2], args[1] == "enable")
	return 0, nil
}

// History shows or clears the line history.
func History(s *Session, args []string, stdio jobs.IO) (int, error) {
	cmd := &SimpleCommand{
		Use:   "history [-c]",
		Short: "Display the history list with line numbers.",
	}
	clear := cmd.Flags().Bool('c', "clear the history by deleting all entries")

	return cmd.Run(args, stdio, func([]string) (int, error) {
		if *clear {
			s.history = nil
			if s.resetHistory != nil {
				s.resetHistory()
			}
			return 0, nil
		}
		for i, line := range s.history {
			fmt.Fprintf(stdio.Stdout, "% 5d  %s\n", i+1, line)
		}
		return 0, nil
	})
}

// Help lists the builtins.
func Help(s *Session, args []string, stdio jobs.IO) (int, error) {
	w := stdio.Stdout
	fmt.Fprintln(w, "pgsh, a job control shell")
	fmt.Fprintln(w, "These shell commands are defined internally.")
	fmt.Fprintln(w, "Use `name --help' on jobs, dirs and history for their flags.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Builtins:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Join(BuiltinNames(), "\n"))
	return 0, nil
}

func init() {
	addBuiltin("cd", Cd)
	addBuiltin("pushd", Pushd)
	addBuiltin("popd", Popd)
	addBuiltin("dirs", Dirs)
	addBuiltin("exit", Exit)
	addBuiltin("fg", Fg)
	addBuiltin("bg", Bg)
	addBuiltin("jobs", Jobs)
	addBuiltin("set", Set)
	addBuiltin("history", History)
	addBuiltin("help", Help)
}
