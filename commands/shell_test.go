package commands

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPrompt(t *testing.T) {
	info := promptInfo{
		User: "ada",
		Host: "engine",
		Cwd:  "/home/ada/notes",
		Home: "/home/ada",
	}

	cases := map[string]struct {
		tmpl string
		info promptInfo
		want string
	}{
		"default":  {DefaultPrompt, info, "ada@engine:~/notes$ "},
		"home":     {`\w\$ `, promptInfo{Cwd: "/home/ada", Home: "/home/ada"}, "~$ "},
		"prefix":   {`\w\$ `, promptInfo{Cwd: "/home/adam", Home: "/home/ada"}, "/home/adam$ "},
		"root":     {`\u\$ `, promptInfo{User: "root", Root: true}, "root# "},
		"newline":  {`\h\n> `, info, "engine\n> "},
		"verbatim": {`$ `, info, "$ "},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			assert.Equal(t, tc.want, renderPrompt(tc.tmpl, tc.info, false))
		})
	}
}

func TestRenderPrompt_color(t *testing.T) {
	got := renderPrompt(`\u:\w`, promptInfo{User: "ada", Cwd: "/tmp"}, true)
	assert.Contains(t, got, "\x1b[")
	assert.Contains(t, got, "ada")
	assert.Contains(t, got, "/tmp")
}

func TestTTYGate(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	gate := newTTYGate(r)
	_, err = w.Write([]byte("ls\n"))
	require.NoError(t, err)

	type result struct {
		data string
		err  error
	}
	reads := make(chan result, 1)
	go func() {
		buf := make([]byte, 16)
		n, err := gate.Read(buf)
		reads <- result{string(buf[:n]), err}
	}()

	select {
	case <-reads:
		t.Fatal("read while paused")
	case <-time.After(150 * time.Millisecond):
	}

	gate.Resume()
	select {
	case got := <-reads:
		assert.NoError(t, got.err)
		assert.Equal(t, "ls\n", got.data)
	case <-time.After(5 * time.Second):
		t.Fatal("read never completed")
	}

	gate.Pause()
	assert.NoError(t, gate.Close())
	n, err := gate.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.Equal(t, io.EOF, err)
}

func TestRunShell_command(t *testing.T) {
	dir := t.TempDir()
	out, err := os.Create(filepath.Join(dir, "stdout"))
	require.NoError(t, err)
	defer out.Close()

	code := RunShell(Options{Stdout: out, Stderr: out}, "echo hi; exit 3", "")
	assert.Equal(t, 3, code)

	got, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(got))
}

func TestRunShell_script(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "script.pgsh")
	require.NoError(t, os.WriteFile(script, []byte("echo one\nfalse\n"), 0600))
	out, err := os.Create(filepath.Join(dir, "stdout"))
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 1, RunShell(Options{Stdout: out, Stderr: out}, "", script))

	got, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.Equal(t, "one\n", string(got))

	assert.Equal(t, 127, RunShell(Options{Stdout: out, Stderr: out}, "", filepath.Join(dir, "missing")))
}
