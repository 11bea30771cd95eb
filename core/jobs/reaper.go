package jobs

import (
	"errors"

	"golang.org/x/sys/unix"
)

// waitAny collects one state change from any child. WUNTRACED is always
// added so stops are reported.
func waitAny(options int) (int, unix.WaitStatus, error) {
	var ws unix.WaitStatus
	for {
		pid, err := unix.Wait4(-1, &ws, options|unix.WUNTRACED, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			return 0, 0, ErrNoChildren
		case err != nil:
			return 0, 0, err
		}
		return pid, ws, nil
	}
}

// route hands a wait result to the stage that owns pid.
func (c *Control) route(pid int, ws unix.WaitStatus) {
	p, err := c.Table.FindProcess(pid)
	if err != nil {
		c.logf("reaped unknown child pid=%d status=%v", pid, DecodeWaitStatus(ws))
		return
	}
	p.MarkStatus(ws)
	c.logf("pid=%d %q is %v", pid, commandString(p.argv), p.status)
}

// ReapBlocking waits for the next state change of any child and records it.
func (c *Control) ReapBlocking() error {
	pid, ws, err := waitAny(0)
	if err != nil {
		return err
	}
	c.route(pid, ws)
	return nil
}

// ReapNonBlocking records every state change that is already available.
func (c *Control) ReapNonBlocking() error {
	for {
		pid, ws, err := waitAny(unix.WNOHANG)
		if errors.Is(err, ErrNoChildren) {
			return nil
		}
		if err != nil {
			return err
		}
		if pid == 0 {
			return nil
		}
		c.route(pid, ws)
	}
}

// NotifyTransitions reports jobs whose state changed since they were last
// announced. Completed jobs are removed; stopped ones stay for fg and bg.
func (c *Control) NotifyTransitions() {
	for _, j := range c.Table.All() {
		switch {
		case j.Completed():
			if !j.notified {
				j.printInfo(c.Notices, false, c.Label)
				j.notified = true
			}
			c.Table.Remove(j)
		case j.Stopped() && !j.notified:
			j.printInfo(c.Notices, false, c.Label)
			j.notified = true
		}
	}
}

// Notify is one prompt cycle: reap what is ready, then report it.
func (c *Control) Notify() error {
	err := c.ReapNonBlocking()
	c.NotifyTransitions()
	return err
}
