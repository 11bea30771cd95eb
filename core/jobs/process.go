package jobs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// BuiltinFunc runs a builtin inside the shell. argv[0] is the builtin's name.
type BuiltinFunc func(argv []string, stdio IO) (int, error)

// launcher is the per-variant launch strategy of a Process.
type launcher interface {
	launch(ctl *Control, p *Process, pgid int, stdio Stdio, foreground bool) (int, error)
}

// Process is one stage of a pipeline.
type Process struct {
	argv      []string
	redirects []Redirect
	launcher  launcher

	pid       int
	status    Status
	pipelined bool
}

// NewProcess creates a stage that always runs an external program.
func NewProcess(argv []string, redirects ...Redirect) *Process {
	return &Process{
		argv:      append([]string(nil), argv...),
		redirects: redirects,
		launcher:  plainLauncher{},
	}
}

// NewBuiltinProcess creates a stage that runs fn inside the shell when it is
// the only stage of its job, and in a child copy of the shell otherwise.
func NewBuiltinProcess(argv []string, fn BuiltinFunc, redirects ...Redirect) *Process {
	return &Process{
		argv:      append([]string(nil), argv...),
		redirects: redirects,
		launcher:  builtinLauncher{fn: fn},
	}
}

// Argv returns the command and its arguments.
func (p *Process) Argv() []string {
	return append([]string(nil), p.argv...)
}

// Pid is zero until a child has been started for the stage.
func (p *Process) Pid() int {
	return p.pid
}

// Status returns the last known state.
func (p *Process) Status() Status {
	return p.status
}

// Builtin reports whether the stage is the builtin variant.
func (p *Process) Builtin() bool {
	_, ok := p.launcher.(builtinLauncher)
	return ok
}

// Launch starts the stage with its standard streams bound to stdio. It
// returns the child's pid, or 0 if the stage finished without a child (an
// in-process builtin, or a program that could not be executed).
func (p *Process) Launch(ctl *Control, pgid int, stdio Stdio, foreground bool) (int, error) {
	p.status = Status{State: Running}
	return p.launcher.launch(ctl, p, pgid, stdio, foreground)
}

// MarkStatus records a status reported by wait. Terminal states are final.
func (p *Process) MarkStatus(ws unix.WaitStatus) {
	p.setStatus(DecodeWaitStatus(ws))
}

func (p *Process) setStatus(s Status) {
	if p.status.Terminal() {
		return
	}
	p.status = s
}

// resume is the only way back from Stopped besides a wait result.
func (p *Process) resume() {
	if p.status.State == Stopped {
		p.status = Status{State: Running}
	}
}

type plainLauncher struct{}

func (plainLauncher) launch(ctl *Control, p *Process, pgid int, stdio Stdio, foreground bool) (int, error) {
	return p.fork(ctl, pgid, stdio, foreground, func() (string, []string, []string, error) {
		path, err := exec.LookPath(p.argv[0])
		if errors.Is(err, exec.ErrDot) {
			err = nil
		}
		return path, p.argv, os.Environ(), err
	})
}

type builtinLauncher struct {
	fn BuiltinFunc
}

func (b builtinLauncher) launch(ctl *Control, p *Process, pgid int, stdio Stdio, foreground bool) (int, error) {
	if p.pipelined {
		return p.fork(ctl, pgid, stdio, foreground, func() (string, []string, []string, error) {
			if ctl.ChildExec == nil {
				return "", nil, nil, &LaunchError{Argv: p.argv, Err: errors.New("builtins cannot run in a pipeline")}
			}
			path, args, env, err := ctl.ChildExec(p.argv)
			if err != nil {
				return "", nil, nil, &LaunchError{Argv: p.argv, Err: err}
			}
			return path, args, env, nil
		})
	}

	files, closeFiles, err := applyRedirects(stdio, p.redirects)
	if err != nil {
		p.diagnose(ctl, stdio.Stderr, err)
		p.status = exitedWith(1)
		return 0, nil
	}
	defer closeFiles()

	code, err := b.fn(p.argv, IO{
		Stdin:  fileOrNil(files[0]),
		Stdout: writerOrDiscard(files[1]),
		Stderr: writerOrDiscard(files[2]),
	})
	switch {
	case errors.Is(err, ErrExit):
		p.status = exitedWith(code)
		return 0, err
	case err != nil:
		p.diagnose(ctl, files[2], err)
		code = 1
	}
	p.status = exitedWith(code)
	ctl.logf("builtin %q exited %d", p.argv[0], code)
	return 0, nil
}

// fork starts a child for the stage. resolve picks the program image; an
// image that cannot be executed is reported on the stage's error stream and
// recorded as exit 127, while a failure to create the child is a
// LaunchError.
func (p *Process) fork(ctl *Control, pgid int, stdio Stdio, foreground bool, resolve func() (string, []string, []string, error)) (int, error) {
	files, closeFiles, err := applyRedirects(stdio, p.redirects)
	if err != nil {
		p.diagnose(ctl, stdio.Stderr, err)
		p.status = exitedWith(1)
		return 0, nil
	}
	defer closeFiles()

	path, args, env, err := resolve()
	var launchErr *LaunchError
	switch {
	case errors.As(err, &launchErr):
		return 0, launchErr
	case err != nil:
		return p.execFailed(ctl, files[2], err)
	}

	proc, err := os.StartProcess(path, args, &os.ProcAttr{
		Env:   env,
		Files: files,
		Sys:   ctl.sysProcAttr(pgid, foreground),
	})
	if err != nil {
		if isExecFailure(err) {
			return p.execFailed(ctl, files[2], err)
		}
		return 0, &LaunchError{Argv: p.argv, Err: err}
	}

	p.pid = proc.Pid
	// The wait status belongs to the reaper, not to os.Process.
	_ = proc.Release()
	ctl.logf("started %q pid=%d pgid=%d fg=%v", commandString(p.argv), p.pid, pgid, foreground)
	return p.pid, nil
}

func (p *Process) execFailed(ctl *Control, stderr *os.File, err error) (int, error) {
	if errors.Is(err, exec.ErrNotFound) {
		err = errors.New("command not found")
	}
	p.diagnose(ctl, stderr, err)
	p.status = exitedWith(127)
	return 0, nil
}

// diagnose prints "<shell>: <cmd>: <message>".
func (p *Process) diagnose(ctl *Control, w io.Writer, err error) {
	if w == nil || isNilFile(w) {
		return
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		if pathErr.Path == p.argv[0] {
			err = pathErr.Err
		} else {
			err = fmt.Errorf("%s: %w", pathErr.Path, pathErr.Err)
		}
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		err = execErr.Err
	}
	fmt.Fprintf(w, "%s: %s: %v\n", ctl.ShellName, p.argv[0], err)
}

func (c *Control) sysProcAttr(pgid int, foreground bool) *syscall.SysProcAttr {
	if c.Terminal == nil || !c.Terminal.Interactive() {
		return nil
	}
	return &syscall.SysProcAttr{
		Setpgid:    true,
		Pgid:       pgid,
		Foreground: foreground,
		Ctty:       c.Terminal.Fd(),
	}
}

func isExecFailure(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, unix.ENOEXEC) ||
		errors.Is(err, unix.EISDIR) ||
		errors.Is(err, unix.ENOTDIR)
}

func fileOrNil(f *os.File) io.Reader {
	if f == nil {
		return eofReader{}
	}
	return f
}

func writerOrDiscard(f *os.File) io.Writer {
	if f == nil {
		return io.Discard
	}
	return f
}

func isNilFile(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && f == nil
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
