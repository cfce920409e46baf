// Package eventloop implements the single-threaded cooperative loop (C8):
// it multiplexes the compositor's Wayland connection, POSIX signals and
// the RPC socket, and preserves the wire client's prepare-read / flush /
// poll / read-events / dispatch-pending discipline from
// original_source/event-loop.c.
package eventloop

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	wl "github.com/rajveermalviya/go-wayland/wayland"

	"github.com/emersion/go-kanshi/pkg/ipc"
)

const (
	slotCompositor = 0
	slotSignal     = 1
	slotRPC        = 2
	slotHeads      = 3
	slotCount      = 4
)

// Handlers are the callbacks invoked from Run. OnReload/OnExit implement
// spec §4.7 step 6's SIGHUP/SIGINT/SIGQUIT/SIGTERM handling; OnRPCCall and
// OnDispatch implement steps 5 and 7. OnHeadsReady drains the registry's
// coalesced Done notifications; it runs on this same goroutine so matcher
// runs never race with compositor dispatch.
type Handlers struct {
	OnRPCCall    func(*ipc.Call)
	OnReload     func()
	OnDispatch   func()
	OnHeadsReady func()
}

// Loop drives the daemon's single-threaded cooperative event loop.
type Loop struct {
	display *wl.Context
	rpc     *ipc.Server
	headsFD int
	log     *logrus.Entry

	sigCh    chan os.Signal
	sigPipeR *os.File
	sigPipeW *os.File

	handlers Handlers
	running  bool
}

// New wires up the self-pipe used to fold POSIX signal delivery into the
// poll set (spec §5): Go delivers signals over a channel rather than a
// classic handler, so a dedicated goroutine re-publishes each signal as a
// single byte on a pipe that Run polls alongside the compositor, RPC and
// head-registry fds.
// headsFD is the read end of the compositor registry's coalescing pipe
// (compositor.Registry.ReadyFD).
func New(display *wl.Context, rpc *ipc.Server, headsFD int, log *logrus.Entry, handlers Handlers) (*Loop, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	l := &Loop{
		display:  display,
		rpc:      rpc,
		headsFD:  headsFD,
		log:      log,
		sigCh:    make(chan os.Signal, 16),
		sigPipeR: r,
		sigPipeW: w,
		handlers: handlers,
		running:  true,
	}

	signal.Notify(l.sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	go l.pumpSignals()

	return l, nil
}

func (l *Loop) pumpSignals() {
	for sig := range l.sigCh {
		s, ok := sig.(syscall.Signal)
		if !ok {
			continue
		}
		if _, err := l.sigPipeW.Write([]byte{byte(s)}); err != nil {
			return
		}
	}
}

// Stop flips the running flag; the current iteration finishes normally and
// the next one exits (spec §5 cancellation semantics).
func (l *Loop) Stop() { l.running = false }

func (l *Loop) rpcFD() int {
	f, err := l.rpc.File()
	if err != nil {
		return -1
	}
	return int(f.Fd())
}

// Run executes the loop until Stop is called or a terminating signal is
// delivered, implementing spec §4.7's seven-step iteration. It returns the
// process exit status (128+signum on a terminating signal, 1 on a fatal
// dispatch, flush, poll or read error, 0 after Stop).
func (l *Loop) Run() int {
	defer signal.Stop(l.sigCh)
	defer close(l.sigCh)

	compositorFD := l.display.Fd()
	rpcFD := l.rpcFD()

	pollfds := make([]unix.PollFd, slotCount)
	pollfds[slotCompositor] = unix.PollFd{Fd: int32(compositorFD), Events: unix.POLLIN}
	pollfds[slotSignal] = unix.PollFd{Fd: int32(l.sigPipeR.Fd()), Events: unix.POLLIN}
	pollfds[slotRPC] = unix.PollFd{Fd: int32(rpcFD), Events: unix.POLLIN}
	pollfds[slotHeads] = unix.PollFd{Fd: int32(l.headsFD), Events: unix.POLLIN}

	for l.running {
		// Step 1: prepare-read, dispatching already-queued events on
		// each failed attempt until it succeeds.
		for !l.display.PrepareRead() {
			if err := l.display.DispatchPending(); err != nil {
				l.log.WithError(err).Error("dispatch pending failed during prepare-read")
				l.display.CancelRead()
				return 1
			}
		}

		// Step 2: flush outgoing bytes, retrying on backpressure.
		if err := l.flush(compositorFD); err != nil {
			l.display.CancelRead()
			l.log.WithError(ipc.NewKindError(ipc.KindWireTransport, err)).Error("flush failed")
			return 1
		}

		// Step 3: poll for readability.
		n, err := unix.Poll(pollfds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			l.display.CancelRead()
			l.log.WithError(err).Error("poll failed")
			return 1
		}
		if n == 0 {
			l.display.CancelRead()
			continue
		}

		// Step 4: read compositor events into the client queue.
		if pollfds[slotCompositor].Revents&unix.POLLIN != 0 {
			if err := l.display.ReadEvents(); err != nil {
				l.log.WithError(err).Error("read events failed")
				return 1
			}
		} else {
			l.display.CancelRead()
		}

		// Step 5: drain RPC calls queued by the server's accept loop.
		if pollfds[slotRPC].Revents&unix.POLLIN != 0 {
			l.drainRPC()
		}

		// Drain the registry's coalesced head-snapshot notification, if any.
		if pollfds[slotHeads].Revents&unix.POLLIN != 0 && l.handlers.OnHeadsReady != nil {
			l.handlers.OnHeadsReady()
		}

		// Step 6: drain the signal pipe non-blockingly.
		if pollfds[slotSignal].Revents&unix.POLLIN != 0 {
			if code, exit := l.drainSignals(); exit {
				return code
			}
		}

		// Step 7: dispatch pending compositor events (invokes C3/C4/C5).
		if err := l.display.DispatchPending(); err != nil {
			l.log.WithError(err).Error("dispatch pending failed")
			return 1
		}
		if l.handlers.OnDispatch != nil {
			l.handlers.OnDispatch()
		}
	}

	return 0
}

func (l *Loop) flush(fd int) error {
	for {
		err := l.display.Flush()
		if err == nil {
			return nil
		}
		if err != unix.EAGAIN {
			return err
		}
		pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		if _, perr := unix.Poll(pfd, -1); perr != nil && perr != unix.EINTR {
			return perr
		}
	}
}

func (l *Loop) drainRPC() {
	for {
		select {
		case call := <-l.rpc.Calls:
			if l.handlers.OnRPCCall != nil {
				l.handlers.OnRPCCall(call)
			}
		default:
			return
		}
	}
}

// drainSignals reads every pending byte off the self-pipe non-blockingly;
// SIGHUP triggers a reload, the other three terminate with 128+signum.
func (l *Loop) drainSignals() (code int, exit bool) {
	buf := make([]byte, 16)
	// Fd() leaves the descriptor in blocking mode; switch it back so an
	// empty pipe ends the drain instead of stalling the loop.
	fd := int(l.sigPipeR.Fd())
	_ = unix.SetNonblock(fd, true)
	for {
		n, err := unix.Read(fd, buf)
		if n <= 0 || err != nil {
			return 0, false
		}
		for _, b := range buf[:n] {
			sig := syscall.Signal(b)
			switch sig {
			case syscall.SIGHUP:
				if l.handlers.OnReload != nil {
					l.handlers.OnReload()
				}
			case syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM:
				return 128 + int(sig), true
			}
		}
	}
}
