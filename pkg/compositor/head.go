// Package compositor implements the head registry (C3): it mirrors the
// compositor's wlr-output-management state machine, buffering interleaved
// head/mode events until a Done event marks a consistent snapshot, and
// drives atomic configuration transactions (C5's compositor-facing half).
package compositor

import (
	"os"
	"sync"
	"time"

	throttle "github.com/boz/go-throttle"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/emersion/go-kanshi/pkg/compositor/outputmanagement"
	"github.com/emersion/go-kanshi/pkg/config"
	"github.com/emersion/go-kanshi/pkg/utils"
)

// doneCoalesceWindow bounds how quickly consecutive Done snapshots reach
// Notify: a hotplug or bulk profile apply can settle several heads in
// quick succession, each producing its own Done event, and only the last
// settled snapshot is worth re-matching against.
const doneCoalesceWindow = 50 * time.Millisecond

// ModeHandle is one advertised display mode of a Head, paired with its
// protocol object so a Transaction can reference it directly.
type ModeHandle struct {
	Width     int32
	Height    int32
	Refresh   int32 // mHz
	Preferred bool

	proto *outputmanagement.Mode
}

// Head is the registry's view of one output head: its static identity plus
// its current configuration, valid only as of the last Done snapshot.
type Head struct {
	Name         string
	Description  string
	Make         string
	Model        string
	SerialNumber string
	PhysWidth    int32
	PhysHeight   int32

	Enabled     bool
	Modes       []*ModeHandle
	CurrentMode *ModeHandle
	Position    config.Position
	Transform   config.Transform
	Scale       float64

	proto *outputmanagement.Head
}

// Snapshot is the consistent state delivered by a single Done(serial) event.
type Snapshot struct {
	Serial uint32
	Heads  []*Head
}

// Registry mirrors the compositor's head list. It is not read concurrently
// with mutation: a Snapshot must only be inspected from the Notify callback
// or after it returns, per spec (the matcher never sees a partially
// updated snapshot).
type Registry struct {
	mu sync.Mutex

	manager *outputmanagement.Manager
	heads   map[*outputmanagement.Head]*Head
	// order records heads in announce order. The matcher's "first
	// unassigned head wins, wildcards last" rule (spec §4.3) depends on a
	// stable iteration order that a map cannot provide.
	order []*outputmanagement.Head
	log   *logrus.Entry

	throttled throttle.ThrottleDriver
	readyR    *os.File
	readyW    *os.File
	dirty     bool
	settled   bool
	latest    Snapshot

	// Notify is invoked by Drain on the event loop's goroutine (never from
	// the throttle's own goroutine) with the most recently settled snapshot,
	// coalesced over doneCoalesceWindow so a burst of Done events only
	// triggers one matcher run. It must not block.
	Notify func(Snapshot)
}

// NewRegistry wires head/mode/done/finished handlers per spec §4.2 onto an
// already-bound zwlr_output_manager_v1 proxy.
func NewRegistry(manager *outputmanagement.Manager, log *logrus.Entry) (*Registry, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		manager: manager,
		heads:   make(map[*outputmanagement.Head]*Head),
		log:     log,
		readyR:  r,
		readyW:  w,
	}
	manager.SetHeadHandler(reg.onHead)
	manager.SetDoneHandler(reg.onDone)
	manager.SetFinishedHandler(reg.onManagerFinished)
	// ThrottleFunc runs signalReady on its own goroutine; signalReady only
	// ever writes a wakeup byte to the pipe, so engine/compositor state is
	// still touched exclusively by the event-loop goroutine that later
	// drains this pipe and calls Notify.
	reg.throttled = throttle.ThrottleFunc(doneCoalesceWindow, true, reg.signalReady)
	return reg, nil
}

// ReadyFD returns the read end of the coalescing pipe, to be added to the
// event loop's poll set alongside the compositor and RPC fds.
func (r *Registry) ReadyFD() int { return int(r.readyR.Fd()) }

func (r *Registry) signalReady() {
	_, _ = r.readyW.Write([]byte{1})
}

// Drain consumes every pending wakeup byte and, if a snapshot settled since
// the last call, delivers it to Notify. Must only be called from the event
// loop goroutine.
func (r *Registry) Drain() {
	buf := make([]byte, 64)
	// Fd() leaves the descriptor in blocking mode; switch it back so the
	// loop below stops at an empty pipe instead of waiting on it.
	fd := int(r.readyR.Fd())
	_ = unix.SetNonblock(fd, true)
	for {
		n, err := unix.Read(fd, buf)
		if n <= 0 || err != nil {
			break
		}
	}

	r.mu.Lock()
	snap := r.latest
	fresh := r.dirty
	r.dirty = false
	r.mu.Unlock()

	if fresh && r.Notify != nil {
		r.Notify(snap)
	}
}

// Latest returns the most recently settled snapshot, if any has arrived yet.
// Reload (spec §8 scenario S6) uses this to re-run the matcher against
// already-known heads when no new Done event will fire on the compositor
// side.
func (r *Registry) Latest() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.settled
}

// Close stops the coalescing throttle and releases the wakeup pipe. Safe to
// call once during shutdown.
func (r *Registry) Close() {
	if r.throttled != nil {
		r.throttled.Stop()
	}
	if r.readyW != nil {
		r.readyW.Close()
	}
	if r.readyR != nil {
		r.readyR.Close()
	}
}

func (r *Registry) onHead(protoHead *outputmanagement.Head) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := &Head{proto: protoHead, Scale: 1}
	r.heads[protoHead] = h
	r.order = append(r.order, protoHead)

	protoHead.SetNameHandler(func(name string) { h.Name = name })
	protoHead.SetDescriptionHandler(func(desc string) { h.Description = desc })
	protoHead.SetPhysicalSizeHandler(func(w, ht int32) { h.PhysWidth, h.PhysHeight = w, ht })
	protoHead.SetMakeHandler(func(mk string) { h.Make = mk })
	protoHead.SetModelHandler(func(model string) { h.Model = model })
	protoHead.SetSerialNumberHandler(func(sn string) { h.SerialNumber = sn })
	protoHead.SetEnabledHandler(func(enabled bool) { h.Enabled = enabled })
	protoHead.SetPositionHandler(func(x, y int32) { h.Position = config.Position{X: x, Y: y} })
	protoHead.SetTransformHandler(func(t int32) { h.Transform = config.Transform(t) })
	protoHead.SetScaleHandler(func(s float64) { h.Scale = s })

	protoHead.SetModeHandler(func(protoMode *outputmanagement.Mode) {
		mode := &ModeHandle{proto: protoMode}
		protoMode.SetSizeHandler(func(w, ht int32) { mode.Width, mode.Height = w, ht })
		protoMode.SetRefreshHandler(func(refresh int32) { mode.Refresh = refresh })
		protoMode.SetPreferredHandler(func() { mode.Preferred = true })
		protoMode.SetFinishedHandler(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			h.removeMode(mode)
		})
		h.Modes = append(h.Modes, mode)
	})

	protoHead.SetCurrentModeHandler(func(protoMode *outputmanagement.Mode) {
		for _, m := range h.Modes {
			if m.proto == protoMode {
				h.CurrentMode = m
				return
			}
		}
	})

	protoHead.SetFinishedHandler(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.heads, protoHead)
		r.removeFromOrder(protoHead)
	})
}

// removeFromOrder drops protoHead from the announce-order slice, mirroring
// Head.removeMode's order-preserving removal by identity.
func (r *Registry) removeFromOrder(protoHead *outputmanagement.Head) {
	for i, ph := range r.order {
		if ph == protoHead {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func (h *Head) removeMode(target *ModeHandle) {
	for i, m := range h.Modes {
		if m == target {
			h.Modes = append(h.Modes[:i], h.Modes[i+1:]...)
			return
		}
	}
}

func (r *Registry) onDone(serial uint32) {
	r.mu.Lock()
	heads := make([]*Head, 0, len(r.order))
	for _, ph := range r.order {
		if h, ok := r.heads[ph]; ok {
			heads = append(heads, h)
		}
	}
	r.mu.Unlock()

	if r.log != nil {
		r.log.WithField("serial", serial).WithField("heads", len(heads)).Debug("output manager snapshot settled")
	}

	r.mu.Lock()
	r.latest = Snapshot{Serial: serial, Heads: heads}
	r.dirty = true
	r.settled = true
	r.mu.Unlock()

	if r.throttled != nil {
		r.throttled.Trigger()
	} else {
		r.signalReady()
	}
}

func (r *Registry) onManagerFinished() {
	if r.log != nil {
		r.log.Warn("output manager global removed by compositor")
	}
}

// Proto returns the underlying protocol object for a Head, used by
// Transaction to issue enable/disable-head requests.
func (h *Head) Proto() *outputmanagement.Head { return h.proto }

// ModeMatching implements spec §4.4 rule 3's mode-selection algorithm:
// exact width/height, refresh within ±50 mHz if specified, else the
// highest-refresh mode at that size.
func (h *Head) ModeMatching(width, height, refresh int32) (*ModeHandle, bool) {
	var best *ModeHandle
	for _, m := range h.Modes {
		if m.Width != width || m.Height != height {
			continue
		}
		if refresh != 0 {
			if utils.AbsInt32(m.Refresh-refresh) <= 50 {
				return m, true
			}
			continue
		}
		if best == nil || m.Refresh > best.Refresh {
			best = m
		}
	}
	return best, best != nil
}
