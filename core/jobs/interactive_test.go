package jobs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/josephlewis42/pgsh/core/signals"
	"github.com/josephlewis42/pgsh/core/term"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// sessionLeaderEnv makes the test binary run TestInteractiveSessionLeader as
// the leader of a session whose controlling terminal is a pty.
const sessionLeaderEnv = "PGSH_JOBS_SESSION_LEADER"

func TestInteractiveSession(t *testing.T) {
	if os.Getenv(sessionLeaderEnv) == "1" {
		t.Skip("already the session leader")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh in PATH")
	}

	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	defer ptmx.Close()

	cmd := exec.Command(os.Args[0], "-test.run=^TestInteractiveSessionLeader$", "-test.v")
	cmd.Env = append(os.Environ(), sessionLeaderEnv+"=1")
	cmd.Stdin, cmd.Stdout, cmd.Stderr = tty, tty, tty
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true, Ctty: 0}
	require.NoError(t, cmd.Start())
	tty.Close()

	watchdog := time.AfterFunc(30*time.Second, func() { cmd.Process.Kill() })
	defer watchdog.Stop()

	var out bytes.Buffer
	copied := make(chan struct{})
	go func() {
		io.Copy(&out, ptmx)
		close(copied)
	}()

	waitErr := cmd.Wait()
	select {
	case <-copied:
	case <-time.After(5 * time.Second):
		ptmx.Close()
		<-copied
	}

	assert.NoError(t, waitErr, out.String())
	assert.Contains(t, out.String(), "--- PASS: TestInteractiveSessionLeader")
}

func TestInteractiveSessionLeader(t *testing.T) {
	if os.Getenv(sessionLeaderEnv) != "1" {
		t.Skip("started by TestInteractiveSession")
	}

	sigs := signals.NewManager(nil)
	defer sigs.Stop()

	tm := term.New(os.Stdin, sigs)
	require.True(t, tm.Interactive())
	sigs.Ignore(signals.ShellIgnored...)
	shellPgid := unix.Getpgrp()
	tm.SetShellPgid(shellPgid)
	require.NoError(t, tm.GrabControl(shellPgid))
	require.NoError(t, tm.SaveAttributes())

	ctl := NewControl(tm, Stdio{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr})
	notices := &bytes.Buffer{}
	ctl.Notices = notices

	foregroundPgid := func(t *testing.T) int {
		t.Helper()
		fg, err := tm.ForegroundPgid()
		require.NoError(t, err)
		return fg
	}

	t.Run("foreground stop and continue", func(t *testing.T) {
		notices.Reset()
		script := "sleep 0.3; kill -TSTP 0; exit 3"
		j := NewJob("sh -c '" + script + "' | cat")
		j.AddStage(NewProcess([]string{"sh", "-c", script}))
		j.AddStage(NewProcess([]string{"cat"}))
		ctl.Table.Register(j)

		require.NoError(t, j.Launch(ctl, true))
		require.True(t, j.Stopped())

		pgid := j.Pgid()
		procs := j.Processes()
		require.NotZero(t, pgid)
		assert.Equal(t, procs[0].Pid(), pgid, "first stage leads the group")
		for _, p := range procs {
			got, err := unix.Getpgid(p.Pid())
			require.NoError(t, err)
			assert.Equal(t, pgid, got, "pid %d", p.Pid())
		}
		assert.Equal(t, shellPgid, foregroundPgid(t), "terminal goes back to the shell")
		assert.NotNil(t, j.tmodes, "job modes saved after the wait")

		require.NoError(t, ctl.Notify())
		require.NoError(t, ctl.Notify())
		assert.Equal(t, 1, strings.Count(notices.String(), "Stopped"))

		require.NoError(t, j.Continue(ctl, true))
		assert.True(t, j.Completed())
		assert.Equal(t, exitedWith(3), procs[0].Status())
		assert.Equal(t, exitedWith(0), procs[1].Status())
		assert.Equal(t, pgid, j.Pgid(), "pgid is fixed once set")
		assert.Equal(t, shellPgid, foregroundPgid(t))

		require.NoError(t, ctl.Notify())
		assert.Equal(t, 1, strings.Count(notices.String(), "\n"), "completed foreground job is removed silently")
		assert.Zero(t, ctl.Table.Len())
	})

	t.Run("background read stops", func(t *testing.T) {
		notices.Reset()
		j := NewJob("cat")
		j.AddStage(NewProcess([]string{"cat"}))
		ctl.Table.Register(j)

		require.NoError(t, j.Launch(ctl, false))
		p := j.Processes()[0]
		assert.Equal(t, fmt.Sprintf("[%d] %d\n", j.ID, p.Pid()), notices.String())
		assert.Equal(t, p.Pid(), j.Pgid())

		require.NoError(t, j.Wait(ctl))
		assert.Equal(t, Status{State: Stopped, Signal: unix.SIGTTIN}, p.Status())
		assert.Equal(t, shellPgid, foregroundPgid(t))

		require.NoError(t, j.signal(unix.SIGKILL))
		for !j.Completed() {
			require.NoError(t, ctl.ReapBlocking())
		}
		assert.True(t, j.TerminatedBySignal())

		require.NoError(t, ctl.Notify())
		assert.Zero(t, ctl.Table.Len())
	})
}
