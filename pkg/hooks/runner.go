// Package hooks runs a profile's "exec" commands once a transaction
// succeeds (C6). Go has no safe raw fork(2) in a multi-threaded runtime,
// so the C implementation's double-fork-and-exec is reproduced with
// os/exec: Setsid detaches the child from the daemon's controlling
// terminal and process group the same way the inner setsid() call does,
// and a background goroutine stands in for the middle parent that waits
// on the child and logs its exit status without blocking the daemon.
package hooks

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/mgutz/str"
	"github.com/sirupsen/logrus"

	"github.com/emersion/go-kanshi/pkg/ipc"
)

// Runner executes hook commands in the teacher's OSCommand style: an
// injectable command constructor so tests can observe invocations without
// spawning real processes.
type Runner struct {
	Log     *logrus.Entry
	command func(name string, arg ...string) *exec.Cmd
	getenv  func(string) string
}

func NewRunner(log *logrus.Entry) *Runner {
	return &Runner{
		Log:     log,
		command: exec.Command,
		getenv:  os.Getenv,
	}
}

// SetCommand overrides the command constructor. For tests only.
func (r *Runner) SetCommand(f func(name string, arg ...string) *exec.Cmd) {
	r.command = f
}

// shell resolves $SHELL, falling back to /bin/sh per spec §4.5 step 2.
func (r *Runner) shell() string {
	if sh := r.getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// Run launches cmd detached from the daemon and returns immediately; the
// daemon never waits on a hook (spec §4.5 step 4).
func (r *Runner) Run(cmd string) {
	shell := r.shell()
	c := r.command(shell, "-c", cmd)
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	c.Stdout = nil
	c.Stderr = nil

	argv := str.ToArgv(shell + " -c " + cmd)
	if r.Log != nil {
		r.Log.WithField("argv", argv).Debug("running hook")
	}

	if err := c.Start(); err != nil {
		if r.Log != nil {
			kerr := ipc.NewKindError(ipc.KindHookSpawnFailure, err)
			r.Log.WithError(kerr).WithField("command", cmd).Error("failed to start hook")
		}
		return
	}

	go r.wait(cmd, c)
}

// wait stands in for the C implementation's middle parent: it blocks on
// the detached child and logs how it exited, without the daemon's event
// loop ever observing the wait.
func (r *Runner) wait(cmd string, c *exec.Cmd) {
	err := c.Wait()
	if r.Log == nil {
		return
	}
	if err == nil {
		r.Log.WithField("command", cmd).Debug("hook exited successfully")
		return
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		if exitErr.ExitCode() >= 0 {
			r.Log.WithField("command", cmd).WithField("exit_code", exitErr.ExitCode()).Warn("hook exited nonzero")
			return
		}
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			r.Log.WithField("command", cmd).WithField("signal", status.Signal()).Warn("hook terminated by signal")
			return
		}
	}
	r.Log.WithError(err).WithField("command", cmd).Warn("hook wait failed")
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
