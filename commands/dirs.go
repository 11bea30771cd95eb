package commands

import (
	"errors"
	"os"
	"strings"
)

var (
	errNoHome       = errors.New("HOME not set")
	errNoPrevious   = errors.New("OLDPWD not set")
	errStackEmpty   = errors.New("directory stack empty")
	errNoPushTarget = errors.New("no other directory")
)

// DirStack is the shell's directory history: the previous directory for
// "cd -" and the pushd/popd stack, most recent last.
type DirStack struct {
	previous string
	stack    []string
}

// Chdir changes the working directory, remembering where it came from.
func (d *DirStack) Chdir(dir string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := os.Chdir(dir); err != nil {
		return err
	}
	d.previous = cwd

	if newDir, err := os.Getwd(); err == nil {
		os.Setenv("OLDPWD", cwd)
		os.Setenv("PWD", newDir)
	}
	return nil
}

// Back returns to the previous directory.
func (d *DirStack) Back() (string, error) {
	if d.previous == "" {
		return "", errNoPrevious
	}
	target := d.previous
	return target, d.Chdir(target)
}

// Push changes to dir and saves the current directory on the stack.
func (d *DirStack) Push(dir string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := d.Chdir(dir); err != nil {
		return err
	}
	d.stack = append(d.stack, cwd)
	return nil
}

// Pop returns to the most recently pushed directory.
func (d *DirStack) Pop() error {
	if len(d.stack) == 0 {
		return errStackEmpty
	}
	top := d.stack[len(d.stack)-1]
	if err := d.Chdir(top); err != nil {
		return err
	}
	d.stack = d.stack[:len(d.stack)-1]
	return nil
}

// Swap exchanges the working directory with the top of the stack.
func (d *DirStack) Swap() error {
	if len(d.stack) == 0 {
		return errNoPushTarget
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := d.Chdir(d.stack[len(d.stack)-1]); err != nil {
		return err
	}
	d.stack[len(d.stack)-1] = cwd
	return nil
}

// String lists the working directory followed by the stack, newest first,
// with the home directory shown as ~.
func (d *DirStack) String() string {
	cwd, _ := os.Getwd()
	entries := []string{tildify(cwd)}
	for i := len(d.stack) - 1; i >= 0; i-- {
		entries = append(entries, tildify(d.stack[i]))
	}
	return strings.Join(entries, " ")
}

// Len is the depth of the stack.
func (d *DirStack) Len() int {
	return len(d.stack)
}

func tildify(path string) string {
	home := os.Getenv("HOME")
	switch {
	case home == "" || home == "/":
		return path
	case path == home:
		return "~"
	case strings.HasPrefix(path, home+"/"):
		return "~" + strings.TrimPrefix(path, home)
	default:
		return path
	}
}
