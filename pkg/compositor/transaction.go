package compositor

import (
	"context"
	"fmt"

	wl "github.com/rajveermalviya/go-wayland/wayland"

	"github.com/emersion/go-kanshi/pkg/compositor/outputmanagement"
	"github.com/emersion/go-kanshi/pkg/config"
)

// Transaction wraps one zwlr_output_configuration_v1 object: the
// compositor-facing half of a transaction engine run (spec §4.4's create
// path). Exactly one of its outcome handlers fires before Destroy.
type Transaction struct {
	proto *outputmanagement.Configuration
}

// CreateConfiguration starts a new atomic transaction bound to serial, per
// spec §4.4's create path: "Construct a new configuration object from the
// compositor with the last-seen serial."
func (r *Registry) CreateConfiguration(ctx context.Context, serial uint32) (*Transaction, error) {
	cfg, err := r.manager.CreateConfiguration(serial)
	if err != nil {
		return nil, err
	}
	return &Transaction{proto: cfg}, nil
}

// EnableHead emits enable-head(head) and returns a handle for setting the
// head's mode/position/scale/transform.
func (t *Transaction) EnableHead(head *Head) (*TransactionHead, error) {
	ch, err := t.proto.EnableHead(head.Proto())
	if err != nil {
		return nil, err
	}
	return &TransactionHead{proto: ch, head: head}, nil
}

// DisableHead emits disable-head(head).
func (t *Transaction) DisableHead(head *Head) error {
	return t.proto.DisableHead(head.Proto())
}

func (t *Transaction) Apply() error   { return t.proto.Apply() }
func (t *Transaction) Destroy() error { return t.proto.Destroy() }

func (t *Transaction) SetSucceededHandler(f func()) { t.proto.SetSucceededHandler(f) }
func (t *Transaction) SetFailedHandler(f func())    { t.proto.SetFailedHandler(f) }
func (t *Transaction) SetCancelledHandler(f func()) { t.proto.SetCancelledHandler(f) }

// TransactionHead is the per-head request batch within a Transaction.
type TransactionHead struct {
	proto *outputmanagement.ConfigurationHead
	head  *Head
}

// SetMode implements spec §4.4 rule 3's mode selection: exact width/height,
// refresh within ±50 mHz if nonzero, else the highest refresh at that size.
func (ch *TransactionHead) SetMode(width, height, refresh int32) error {
	mode, ok := ch.head.ModeMatching(width, height, refresh)
	if !ok {
		return fmt.Errorf("head %q has no mode matching %dx%d@%d", ch.head.Name, width, height, refresh)
	}
	return ch.proto.SetMode(mode.proto)
}

func (ch *TransactionHead) SetPosition(x, y int32) error {
	return ch.proto.SetPosition(x, y)
}

func (ch *TransactionHead) SetTransform(transform config.Transform) error {
	return ch.proto.SetTransform(int32(transform))
}

// SetScale encodes a floating scale as wl.Fixed, matching the ×256
// fixed-point encoding used by the wlr-output-management wire format (see
// the output_management reference binding's wl.Fixed decoding on read).
func (ch *TransactionHead) SetScale(scale float64) error {
	return ch.proto.SetScale(wl.Fixed(scale * 256))
}
