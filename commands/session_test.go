package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/josephlewis42/pgsh/core/jobs"
	"github.com/josephlewis42/pgsh/core/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type testShell struct {
	*Session
	out    *os.File
	errOut *os.File
}

// newTestShell creates a session without job control whose output goes to
// files the test can read back.
func newTestShell(t *testing.T) *testShell {
	t.Helper()
	dir := t.TempDir()

	devnull, err := os.Open(os.DevNull)
	require.NoError(t, err)
	out, err := os.Create(filepath.Join(dir, "stdout"))
	require.NoError(t, err)
	errOut, err := os.Create(filepath.Join(dir, "stderr"))
	require.NoError(t, err)

	s, err := NewSession(Options{Stdin: devnull, Stdout: out, Stderr: errOut})
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
		devnull.Close()
		out.Close()
		errOut.Close()
	})
	return &testShell{Session: s, out: out, errOut: errOut}
}

func (ts *testShell) stdout(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile(ts.out.Name())
	require.NoError(t, err)
	return string(b)
}

func (ts *testShell) stderr(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile(ts.errOut.Name())
	require.NoError(t, err)
	return string(b)
}

func (ts *testShell) run(t *testing.T, line string) {
	t.Helper()
	require.NoError(t, ts.RunLine(line))
}

// keepWd restores the working directory after tests that cd.
func keepWd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(wd) })

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestSession_foregroundJob(t *testing.T) {
	ts := newTestShell(t)

	ts.run(t, "echo hello")
	assert.Equal(t, "hello\n", ts.stdout(t))
	assert.Equal(t, 0, ts.LastStatus())

	ts.NotifyCycle()
	assert.Empty(t, ts.ListJobs())
	assert.Empty(t, ts.stderr(t), "foreground jobs are not announced")
}

func TestSession_lastStatus(t *testing.T) {
	ts := newTestShell(t)

	ts.run(t, "false")
	assert.Equal(t, 1, ts.LastStatus())

	ts.run(t, "echo $?; true; echo $?")
	assert.Equal(t, "1\n0\n", ts.stdout(t))
}

func TestSession_pipeline(t *testing.T) {
	ts := newTestShell(t)

	ts.run(t, "printf 'x\\nfoo\\n' | cat | grep x")
	assert.Equal(t, "x\n", ts.stdout(t))
}

func TestSession_syntaxError(t *testing.T) {
	ts := newTestShell(t)

	ts.run(t, "true && false")
	assert.Equal(t, 2, ts.LastStatus())
	assert.Contains(t, ts.stderr(t), "pgsh: ")
	assert.Contains(t, ts.stderr(t), "not supported")
}

func TestSession_commandNotFound(t *testing.T) {
	ts := newTestShell(t)

	ts.run(t, "pgsh-test-missing-command arg")
	assert.Equal(t, 127, ts.LastStatus())
	assert.Equal(t, "pgsh: pgsh-test-missing-command: command not found\n", ts.stderr(t))
}

func TestSession_exit(t *testing.T) {
	ts := newTestShell(t)

	assert.ErrorIs(t, ts.RunLine("exit 3; echo unreachable"), jobs.ErrExit)
	assert.Equal(t, 3, ts.LastStatus())
	assert.Empty(t, ts.stdout(t))

	ts.run(t, "exit nope")
	assert.Contains(t, ts.stderr(t), "pgsh: exit: nope: numeric argument required")
}

func TestSession_backgroundJobs(t *testing.T) {
	ts := newTestShell(t)

	ts.run(t, "sleep 5 &")
	infos := ts.ListJobs()
	require.Len(t, infos, 1)
	pid := infos[0].Pids[0]
	assert.Contains(t, ts.stderr(t), "[1] ")

	ts.run(t, "jobs")
	assert.Equal(t, "[1]\tRunning\t\tsleep 5\n", ts.stdout(t), "jobs does not list itself")

	require.NoError(t, unix.Kill(pid, unix.SIGKILL))
	deadline := time.Now().Add(5 * time.Second)
	for ts.ctl.Table.Len() > 0 && time.Now().Before(deadline) {
		ts.NotifyCycle()
		time.Sleep(10 * time.Millisecond)
	}
	assert.Contains(t, ts.stderr(t), "[1]\tTerminated\t\tsleep 5\n")
}

func TestSession_resume(t *testing.T) {
	ts := newTestShell(t)

	require.NoError(t, ts.Submit(shell.Pipeline{
		Stages: []shell.Stage{{Args: []string{"sh", "-c", "kill -STOP $$; echo resumed"}}},
		Text:   "stopper",
	}, true))

	infos := ts.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, "Stopped", infos[0].Status)

	ts.NotifyCycle()
	ts.NotifyCycle()
	assert.Equal(t, 1, strings.Count(ts.stderr(t), "Stopped"))

	id := infos[0].ID
	require.NoError(t, ts.ResolveAndResume(&id, true))
	assert.Equal(t, "resumed\n", ts.stdout(t))
	assert.Equal(t, 0, ts.LastStatus())

	bad := 42
	assert.ErrorIs(t, ts.ResolveAndResume(&bad, true), jobs.ErrJobNotFound)
}

func TestSession_fgErrors(t *testing.T) {
	cases := map[string]struct {
		line string
		want string
	}{
		"no-jobs":  {"fg", "pgsh: fg: no such job\n"},
		"bad-id":   {"fg x", "pgsh: fg: invalid job id\n"},
		"zero":     {"bg %0", "pgsh: bg: invalid job id\n"},
		"unknown":  {"bg %7", "pgsh: bg: no such job\n"},
		"too-many": {"fg 1 2", "pgsh: fg: too many arguments\n"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			ts := newTestShell(t)
			ts.run(t, tc.line)
			assert.Equal(t, tc.want, ts.stderr(t))
			assert.Equal(t, 1, ts.LastStatus())
		})
	}
}

func TestSession_deferredExpansion(t *testing.T) {
	dir := keepWd(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "only.txt"), nil, 0600))

	ts := newTestShell(t)
	ts.run(t, "cd "+dir+"; echo *.txt")
	assert.Equal(t, "only.txt\n", ts.stdout(t))
}

func TestSession_pipelinedBuiltin(t *testing.T) {
	ts := newTestShell(t)

	ts.run(t, "help | grep -x fg")
	assert.Equal(t, "fg\n", ts.stdout(t))
	assert.Equal(t, 0, ts.LastStatus())
}

func TestSession_redirectedBuiltin(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "help.txt")

	ts := newTestShell(t)
	ts.run(t, "help > "+target)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(got), "Builtins:")
	assert.Empty(t, ts.stdout(t))
}

func TestSession_RunScript(t *testing.T) {
	ts := newTestShell(t)

	script := "echo a\n# comment\n\necho b\nexit 4\necho unreachable\n"
	assert.ErrorIs(t, ts.RunScript(strings.NewReader(script)), jobs.ErrExit)
	assert.Equal(t, "a\nb\n", ts.stdout(t))
	assert.Equal(t, 4, ts.LastStatus())
}

func TestSession_tracebacks(t *testing.T) {
	ts := newTestShell(t)

	ts.run(t, "set enable tracebacks")
	ts.run(t, "cd /pgsh/does/not/exist")
	assert.Contains(t, ts.stderr(t), "pgsh: cd: /pgsh/does/not/exist: no such file or directory")

	ts.run(t, "echo 'unterminated")
	assert.Contains(t, ts.stderr(t), "Traceback:")
}
