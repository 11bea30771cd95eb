package commands

import (
	"errors"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// pollInterval bounds how long Pause waits for a read in progress.
const pollInterval = 50

// ttyGate is the line editor's view of the terminal. The editor reads from a
// background goroutine at all times, but the shell must not touch the
// terminal while a foreground job owns it, so reads only happen between
// Resume and Pause.
type ttyGate struct {
	fd int

	mu     sync.Mutex
	cond   *sync.Cond
	open   bool
	busy   bool
	closed bool
}

func newTTYGate(f *os.File) *ttyGate {
	g := &ttyGate{fd: int(f.Fd())}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Resume lets reads through.
func (g *ttyGate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = true
	g.cond.Broadcast()
}

// Pause blocks new reads and waits for the current one to finish.
func (g *ttyGate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = false
	for g.busy {
		g.cond.Wait()
	}
}

// Close makes every read return io.EOF. The terminal itself stays open.
func (g *ttyGate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.cond.Broadcast()
	return nil
}

func (g *ttyGate) Read(p []byte) (int, error) {
	for {
		g.mu.Lock()
		for !g.open && !g.closed {
			g.cond.Wait()
		}
		if g.closed {
			g.mu.Unlock()
			return 0, io.EOF
		}
		g.busy = true
		g.mu.Unlock()

		n, ready, err := g.tryRead(p)

		g.mu.Lock()
		g.busy = false
		g.cond.Broadcast()
		g.mu.Unlock()

		if ready {
			return n, err
		}
	}
}

// tryRead reads if input arrives within one poll interval.
func (g *ttyGate) tryRead(p []byte) (int, bool, error) {
	fds := []unix.PollFd{{Fd: int32(g.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, pollInterval)
	switch {
	case errors.Is(err, unix.EINTR), err == nil && n == 0:
		return 0, false, nil
	case err != nil:
		return 0, true, err
	}

	n, err = unix.Read(g.fd, p)
	switch {
	case errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN):
		return 0, false, nil
	case err != nil:
		return 0, true, err
	case n == 0:
		return 0, true, io.EOF
	}
	return n, true, nil
}
