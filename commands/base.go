package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/josephlewis42/pgsh/core/jobs"
	getopt "github.com/pborman/getopt/v2"
)

// AllBuiltins holds every command the shell runs itself.
var AllBuiltins = make(map[string]Builtin)

// Builtin is a command implemented inside the shell. argv[0] is the name it
// was invoked as. Returning jobs.ErrExit ends the session with the returned
// code.
type Builtin interface {
	Main(s *Session, argv []string, stdio jobs.IO) (int, error)
}

type BuiltinFunc func(s *Session, argv []string, stdio jobs.IO) (int, error)

func (f BuiltinFunc) Main(s *Session, argv []string, stdio jobs.IO) (int, error) {
	return f(s, argv, stdio)
}

var _ Builtin = (BuiltinFunc)(nil)

func addBuiltin(name string, b BuiltinFunc) {
	AllBuiltins[name] = b
}

// BuiltinNames returns the registered builtins in sorted order.
func BuiltinNames() []string {
	var names []string
	for name := range AllBuiltins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was successful call the callback with the
// remaining arguments.
func (s *SimpleCommand) Run(argv []string, stdio jobs.IO, callback func(args []string) (int, error)) (int, error) {
	opts := s.Flags()

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	if err := opts.Getopt(argv, nil); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n\n", argv[0], err)
		s.PrintHelp(stdio.Stderr)
		return 2, nil
	}

	if *s.ShowHelp {
		s.PrintHelp(stdio.Stdout)
		return 0, nil
	}

	return callback(opts.Args())
}
