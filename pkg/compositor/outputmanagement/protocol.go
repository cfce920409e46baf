// Package outputmanagement is a hand-written client binding for the
// wlr-output-management-unstable-v1 Wayland protocol extension. The core
// go-wayland/wayland module only ships the stable wl_* interfaces, so every
// consumer of a wlr-* protocol extension generates or hand-writes its own
// proxy types on top of wl.Context/wl.Proxy; this follows the same request
// opcode, event opcode and field layout as the C protocol (cf.
// original_source/include/kanshi.h's kanshi_head/kanshi_mode, and the
// zwlr_output_* listener structs in the output_management reference
// bindings included alongside the examples).
package outputmanagement

import (
	wl "github.com/rajveermalviya/go-wayland/wayland"
)

// AdaptiveSyncState mirrors zwlr_output_head_v1.adaptive_sync_state.
type AdaptiveSyncState uint32

const (
	AdaptiveSyncDisabled AdaptiveSyncState = 0
	AdaptiveSyncEnabled  AdaptiveSyncState = 1
)

// Manager is zwlr_output_manager_v1: announces heads, signals a consistent
// snapshot via Done, and creates configuration transactions.
type Manager struct {
	wl.BaseProxy

	doneHandler     func(serial uint32)
	finishedHandler func()
	headHandler     func(head *Head)
}

func NewManager(ctx *wl.Context) *Manager {
	m := &Manager{}
	ctx.Register(m)
	return m
}

func (m *Manager) SetHeadHandler(f func(head *Head))        { m.headHandler = f }
func (m *Manager) SetDoneHandler(f func(serial uint32))     { m.doneHandler = f }
func (m *Manager) SetFinishedHandler(f func())              { m.finishedHandler = f }

// CreateConfiguration is request opcode 0: start a new atomic configuration
// tied to the last-seen serial.
func (m *Manager) CreateConfiguration(serial uint32) (*Configuration, error) {
	c := &Configuration{}
	m.Context().Register(c)
	err := m.Context().SendRequest(m, 0, c, serial)
	return c, err
}

// Stop is request opcode 1.
func (m *Manager) Stop() error {
	return m.Context().SendRequest(m, 1)
}

func (m *Manager) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // head
		head := &Head{manager: m}
		m.Context().Register(head)
		head.id = event.Proxy().ID()
		if m.headHandler != nil {
			m.headHandler(head)
		}
	case 1: // done
		serial := event.Uint32()
		if m.doneHandler != nil {
			m.doneHandler(serial)
		}
	case 2: // finished
		if m.finishedHandler != nil {
			m.finishedHandler()
		}
	}
}

// Head is zwlr_output_head_v1: a physical output, its static identity and
// its live configuration state, delivered as a burst of events terminated
// by the manager's Done.
type Head struct {
	wl.BaseProxy
	manager *Manager
	id      uint32

	nameHandler         func(string)
	descriptionHandler  func(string)
	physicalSizeHandler func(width, height int32)
	modeHandler         func(mode *Mode)
	enabledHandler      func(enabled bool)
	currentModeHandler  func(mode *Mode)
	positionHandler     func(x, y int32)
	transformHandler    func(transform int32)
	scaleHandler        func(scale float64)
	finishedHandler     func()
	makeHandler         func(string)
	modelHandler        func(string)
	serialNumberHandler func(string)
	adaptiveSyncHandler func(state AdaptiveSyncState)
}

func (h *Head) SetNameHandler(f func(string))                   { h.nameHandler = f }
func (h *Head) SetDescriptionHandler(f func(string))            { h.descriptionHandler = f }
func (h *Head) SetPhysicalSizeHandler(f func(w, h2 int32))       { h.physicalSizeHandler = f }
func (h *Head) SetModeHandler(f func(mode *Mode))                { h.modeHandler = f }
func (h *Head) SetEnabledHandler(f func(enabled bool))           { h.enabledHandler = f }
func (h *Head) SetCurrentModeHandler(f func(mode *Mode))         { h.currentModeHandler = f }
func (h *Head) SetPositionHandler(f func(x, y int32))            { h.positionHandler = f }
func (h *Head) SetTransformHandler(f func(transform int32))      { h.transformHandler = f }
func (h *Head) SetScaleHandler(f func(scale float64))            { h.scaleHandler = f }
func (h *Head) SetFinishedHandler(f func())                      { h.finishedHandler = f }
func (h *Head) SetMakeHandler(f func(string))                    { h.makeHandler = f }
func (h *Head) SetModelHandler(f func(string))                   { h.modelHandler = f }
func (h *Head) SetSerialNumberHandler(f func(string))            { h.serialNumberHandler = f }
func (h *Head) SetAdaptiveSyncHandler(f func(AdaptiveSyncState))  { h.adaptiveSyncHandler = f }

func (h *Head) ID() uint32 { return h.id }

func (h *Head) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // name
		if h.nameHandler != nil {
			h.nameHandler(event.String())
		}
	case 1: // description
		if h.descriptionHandler != nil {
			h.descriptionHandler(event.String())
		}
	case 2: // physical_size
		w, ht := event.Int32(), event.Int32()
		if h.physicalSizeHandler != nil {
			h.physicalSizeHandler(w, ht)
		}
	case 3: // mode
		mode := &Mode{}
		h.Context().Register(mode)
		if h.modeHandler != nil {
			h.modeHandler(mode)
		}
	case 4: // enabled
		enabled := event.Int32() != 0
		if h.enabledHandler != nil {
			h.enabledHandler(enabled)
		}
	case 5: // current_mode
		mode := &Mode{}
		if h.currentModeHandler != nil {
			h.currentModeHandler(mode)
		}
	case 6: // position
		x, y := event.Int32(), event.Int32()
		if h.positionHandler != nil {
			h.positionHandler(x, y)
		}
	case 7: // transform
		t := event.Int32()
		if h.transformHandler != nil {
			h.transformHandler(t)
		}
	case 8: // scale
		s := event.Fixed()
		if h.scaleHandler != nil {
			h.scaleHandler(s.ToFloat64())
		}
	case 9: // finished
		if h.finishedHandler != nil {
			h.finishedHandler()
		}
		h.Context().Unregister(h)
	case 10: // make
		if h.makeHandler != nil {
			h.makeHandler(event.String())
		}
	case 11: // model
		if h.modelHandler != nil {
			h.modelHandler(event.String())
		}
	case 12: // serial_number
		if h.serialNumberHandler != nil {
			h.serialNumberHandler(event.String())
		}
	case 13: // adaptive_sync
		if h.adaptiveSyncHandler != nil {
			h.adaptiveSyncHandler(AdaptiveSyncState(event.Uint32()))
		}
	}
}

// Mode is zwlr_output_mode_v1.
type Mode struct {
	wl.BaseProxy

	sizeHandler      func(width, height int32)
	refreshHandler   func(refresh int32)
	preferredHandler func()
	finishedHandler  func()
}

func (m *Mode) SetSizeHandler(f func(width, height int32)) { m.sizeHandler = f }
func (m *Mode) SetRefreshHandler(f func(refresh int32))    { m.refreshHandler = f }
func (m *Mode) SetPreferredHandler(f func())               { m.preferredHandler = f }
func (m *Mode) SetFinishedHandler(f func())                { m.finishedHandler = f }

func (m *Mode) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // size
		w, h := event.Int32(), event.Int32()
		if m.sizeHandler != nil {
			m.sizeHandler(w, h)
		}
	case 1: // refresh
		r := event.Int32()
		if m.refreshHandler != nil {
			m.refreshHandler(r)
		}
	case 2: // preferred
		if m.preferredHandler != nil {
			m.preferredHandler()
		}
	case 3: // finished
		if m.finishedHandler != nil {
			m.finishedHandler()
		}
		m.Context().Unregister(m)
	}
}

// Configuration is zwlr_output_configuration_v1: one atomic transaction.
type Configuration struct {
	wl.BaseProxy

	succeededHandler func()
	failedHandler    func()
	cancelledHandler func()
}

func (c *Configuration) SetSucceededHandler(f func()) { c.succeededHandler = f }
func (c *Configuration) SetFailedHandler(f func())    { c.failedHandler = f }
func (c *Configuration) SetCancelledHandler(f func()) { c.cancelledHandler = f }

// EnableHead is request opcode 0.
func (c *Configuration) EnableHead(head *Head) (*ConfigurationHead, error) {
	ch := &ConfigurationHead{}
	c.Context().Register(ch)
	err := c.Context().SendRequest(c, 0, ch, head)
	return ch, err
}

// DisableHead is request opcode 1.
func (c *Configuration) DisableHead(head *Head) error {
	return c.Context().SendRequest(c, 1, head)
}

// Apply is request opcode 2.
func (c *Configuration) Apply() error { return c.Context().SendRequest(c, 2) }

// Test is request opcode 3.
func (c *Configuration) Test() error { return c.Context().SendRequest(c, 3) }

// Destroy is request opcode 4.
func (c *Configuration) Destroy() error { return c.Context().SendRequest(c, 4) }

func (c *Configuration) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // succeeded
		if c.succeededHandler != nil {
			c.succeededHandler()
		}
	case 1: // failed
		if c.failedHandler != nil {
			c.failedHandler()
		}
	case 2: // cancelled
		if c.cancelledHandler != nil {
			c.cancelledHandler()
		}
	}
	c.Context().Unregister(c)
}

// ConfigurationHead is zwlr_output_configuration_head_v1: the per-head
// request batch within a Configuration.
type ConfigurationHead struct {
	wl.BaseProxy
}

func (ch *ConfigurationHead) SetMode(mode *Mode) error {
	return ch.Context().SendRequest(ch, 0, mode)
}

func (ch *ConfigurationHead) SetCustomMode(width, height, refresh int32) error {
	return ch.Context().SendRequest(ch, 1, width, height, refresh)
}

func (ch *ConfigurationHead) SetPosition(x, y int32) error {
	return ch.Context().SendRequest(ch, 2, x, y)
}

func (ch *ConfigurationHead) SetTransform(transform int32) error {
	return ch.Context().SendRequest(ch, 3, transform)
}

func (ch *ConfigurationHead) SetScale(scale wl.Fixed) error {
	return ch.Context().SendRequest(ch, 4, scale)
}

func (ch *ConfigurationHead) SetAdaptiveSync(state AdaptiveSyncState) error {
	return ch.Context().SendRequest(ch, 5, uint32(state))
}
