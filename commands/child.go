package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/josephlewis42/pgsh/core/jobs"
)

// BuiltinChildEnv marks a process started to run one pipelined builtin.
const BuiltinChildEnv = "PGSH_BUILTIN_CHILD"

// builtinChildExec starts this executable again to run argv as a builtin.
func builtinChildExec(argv []string) (string, []string, []string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", nil, nil, fmt.Errorf("locating the shell: %w", err)
	}
	args := append([]string{exe}, argv...)
	env := append(os.Environ(), BuiltinChildEnv+"=1")
	return exe, args, env, nil
}

// RunBuiltinChild runs the builtin named on the command line and exits when
// the process was started by builtinChildExec. It returns immediately
// otherwise, so call it first thing in main.
func RunBuiltinChild() {
	if os.Getenv(BuiltinChildEnv) != "1" {
		return
	}
	os.Unsetenv(BuiltinChildEnv)
	os.Exit(runBuiltinChild(os.Args[1:]))
}

func runBuiltinChild(argv []string) int {
	if len(argv) == 0 {
		fmt.Fprintln(os.Stderr, "pgsh: no builtin given")
		return 2
	}
	b, ok := AllBuiltins[argv[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "pgsh: %s: not a builtin\n", argv[0])
		return 127
	}

	s, err := NewSession(Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pgsh: %v\n", err)
		return 1
	}
	defer s.Close()

	code, err := b.Main(s, argv, jobs.IO{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr})
	switch {
	case errors.Is(err, jobs.ErrExit):
	case err != nil:
		fmt.Fprintf(os.Stderr, "pgsh: %s: %v\n", argv[0], err)
		code = 1
	}
	return code
}
