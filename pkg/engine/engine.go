// Package engine implements the transaction engine (C5): it turns a
// matched profile into a sequence of requests against an atomic output
// configuration object, and drives the resulting succeeded/failed/cancelled
// outcome through the state machine described in spec §4.4.
package engine

import (
	"context"
	"fmt"
	"math"

	go_errors "github.com/go-errors/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/emersion/go-kanshi/pkg/compositor"
	"github.com/emersion/go-kanshi/pkg/config"
	"github.com/emersion/go-kanshi/pkg/hooks"
	"github.com/emersion/go-kanshi/pkg/ipc"
	"github.com/emersion/go-kanshi/pkg/matcher"
	"github.com/emersion/go-kanshi/pkg/utils"
)

// HookRunner executes a profile's exec hooks once it is fully applied.
type HookRunner interface {
	Run(cmd string)
}

// Engine holds current/pending profile state and runs exactly one
// transaction at a time (spec §5 "at most one transaction in flight").
type Engine struct {
	Compositor *compositor.Registry
	Hooks      HookRunner
	Log        *logrus.Entry

	// OneShot makes the daemon exit after the first settled outcome,
	// per spec §6's "-1" oneshot mode.
	OneShot bool
	Exit    func(code int)

	// ForcedProfile, when non-empty, restricts Process to the profile of
	// that name (RPC SetProfile, spec §4.6). It is cleared once that profile
	// is submitted or found already applied, or when no profile has that
	// name; it stays set while nothing matches or the profile is current.
	ForcedProfile string

	current *config.Profile
	pending *config.Profile
}

// heads adapts a compositor snapshot into the matcher's head view, keeping
// a side table to go from a matched head back to its *compositor.Head.
func heads(snapshot []*compositor.Head) ([]matcher.Head, map[int]*compositor.Head) {
	mh := make([]matcher.Head, len(snapshot))
	byIndex := make(map[int]*compositor.Head, len(snapshot))
	for i, h := range snapshot {
		mh[i] = matcher.Head{Name: h.Name, Description: h.Description}
		byIndex[i] = h
	}
	return mh, byIndex
}

// Process runs the matcher against a settled snapshot and, if a new
// profile applies, creates and submits a transaction. It is a no-op if a
// transaction is already pending (spec §4.4 create path: "P ≠ pending").
// It returns the transaction-submission error, if any, so an RPC-triggered
// reload (spec §4.6) can report the outcome back to its caller instead of
// acking before the attempt is known to have failed.
func (e *Engine) Process(ctx context.Context, profiles []*config.Profile, snapshot compositor.Snapshot) error {
	if e.pending != nil {
		return nil
	}

	candidates := profiles
	if e.ForcedProfile != "" {
		candidates = filterByName(profiles, e.ForcedProfile)
		if len(candidates) == 0 {
			err := fmt.Errorf("no profile named %q", e.ForcedProfile)
			if e.Log != nil {
				e.Log.WithError(err).Warn("forced profile not found")
			}
			e.ForcedProfile = ""
			return ipc.NewKindError(ipc.KindUnknownForcedProfile, err)
		}
	}

	mheads, byIndex := heads(snapshot.Heads)
	profile, assignment, ok := matcher.Match(candidates, mheads)
	if !ok {
		if e.Log != nil {
			e.Log.Warn("no profile matched")
		}
		if e.OneShot && e.Exit != nil {
			e.Exit(1)
		}
		return nil
	}
	if profile == e.current {
		return nil
	}

	headAssignment := make(map[*compositor.Head]*config.ProfileOutput, len(assignment))
	for idx, out := range assignment {
		headAssignment[byIndex[idx]] = out
	}

	if e.dryRunNoop(headAssignment) {
		e.current = profile
		e.ForcedProfile = ""
		if e.Log != nil {
			e.Log.WithField("profile", profile.Name).Debug("profile already applied, skipping transaction")
		}
		return nil
	}

	if err := e.submit(ctx, snapshot.Serial, profile, headAssignment); err != nil {
		if e.Log != nil {
			e.Log.WithError(err).WithField("profile", profile.Name).Error("failed to build transaction")
		}
		return ipc.NewKindError(ipc.KindTransactionFailed, err)
	}
	e.ForcedProfile = ""
	return nil
}

// dryRunNoop implements the optional optimization in spec §4.4: if nothing
// in the assignment would actually change a head's live attributes, the
// whole transaction can be skipped.
func (e *Engine) dryRunNoop(assignment map[*compositor.Head]*config.ProfileOutput) bool {
	for head, out := range assignment {
		enabled := head.Enabled
		if out.Fields.Has(config.FieldEnabled) {
			enabled = out.Enabled
		}
		if enabled != head.Enabled {
			return false
		}
		if !enabled {
			continue
		}
		if out.Fields.Has(config.FieldMode) {
			if head.CurrentMode == nil || head.CurrentMode.Width != out.Mode.Width || head.CurrentMode.Height != out.Mode.Height {
				return false
			}
			if out.Mode.Refresh != 0 && utils.AbsInt32(head.CurrentMode.Refresh-out.Mode.Refresh) > 50 {
				return false
			}
		}
		if out.Fields.Has(config.FieldPosition) && head.Position != out.Position {
			return false
		}
		if out.Fields.Has(config.FieldScale) && math.Abs(head.Scale-out.Scale) > 1e-6 {
			return false
		}
		if out.Fields.Has(config.FieldTransform) && head.Transform != out.Transform {
			return false
		}
	}
	return true
}

func (e *Engine) submit(ctx context.Context, serial uint32, profile *config.Profile, assignment map[*compositor.Head]*config.ProfileOutput) error {
	cfg, err := e.Compositor.CreateConfiguration(ctx, serial)
	if err != nil {
		return go_errors.WrapPrefix(err, "creating output configuration", 0)
	}

	for head, out := range assignment {
		enabled := head.Enabled
		if out.Fields.Has(config.FieldEnabled) {
			enabled = out.Enabled
		}
		if !enabled {
			if err := cfg.DisableHead(head); err != nil {
				cfg.Destroy()
				return go_errors.WrapPrefix(err, fmt.Sprintf("disabling head %q", head.Name), 0)
			}
			continue
		}

		ch, err := cfg.EnableHead(head)
		if err != nil {
			cfg.Destroy()
			return go_errors.WrapPrefix(err, fmt.Sprintf("enabling head %q", head.Name), 0)
		}

		if out.Fields.Has(config.FieldMode) {
			mode, ok := head.ModeMatching(out.Mode.Width, out.Mode.Height, out.Mode.Refresh)
			if !ok {
				cfg.Destroy()
				return fmt.Errorf("head %q has no mode matching %s", head.Name, out.Mode)
			}
			if err := ch.SetMode(mode.Width, mode.Height, mode.Refresh); err != nil {
				cfg.Destroy()
				return go_errors.WrapPrefix(err, fmt.Sprintf("setting mode on head %q", head.Name), 0)
			}
		}
		if out.Fields.Has(config.FieldPosition) {
			if err := ch.SetPosition(out.Position.X, out.Position.Y); err != nil {
				cfg.Destroy()
				return go_errors.WrapPrefix(err, fmt.Sprintf("setting position on head %q", head.Name), 0)
			}
		}
		if out.Fields.Has(config.FieldTransform) {
			if err := ch.SetTransform(out.Transform); err != nil {
				cfg.Destroy()
				return go_errors.WrapPrefix(err, fmt.Sprintf("setting transform on head %q", head.Name), 0)
			}
		}
		if out.Fields.Has(config.FieldScale) {
			if err := ch.SetScale(out.Scale); err != nil {
				cfg.Destroy()
				return go_errors.WrapPrefix(err, fmt.Sprintf("setting scale on head %q", head.Name), 0)
			}
		}
	}

	cfg.SetSucceededHandler(func() { e.onOutcome(profile, outcomeSucceeded, cfg) })
	cfg.SetFailedHandler(func() { e.onOutcome(profile, outcomeFailed, cfg) })
	cfg.SetCancelledHandler(func() { e.onOutcome(profile, outcomeCancelled, cfg) })

	if err := cfg.Apply(); err != nil {
		cfg.Destroy()
		return go_errors.WrapPrefix(err, "applying output configuration", 0)
	}

	e.pending = profile
	return nil
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeFailed
	outcomeCancelled
)

// onOutcome implements the state machine table in spec §4.4. The
// configuration object is destroyed on every path.
func (e *Engine) onOutcome(profile *config.Profile, o outcome, cfg *compositor.Transaction) {
	defer cfg.Destroy()
	e.pending = nil

	switch o {
	case outcomeSucceeded:
		e.current = profile
		if e.Log != nil {
			e.Log.WithField("profile", profile.Name).Info("profile applied")
		}
		if e.Hooks != nil {
			for _, cmd := range profile.Hooks {
				e.Hooks.Run(cmd)
			}
		}
		if e.OneShot && e.Exit != nil {
			e.Exit(0)
		}
	case outcomeFailed:
		if e.Log != nil {
			e.Log.WithField("profile", profile.Name).Error("output configuration failed")
		}
		if e.OneShot && e.Exit != nil {
			e.Exit(1)
		}
	case outcomeCancelled:
		if e.Log != nil {
			e.Log.WithField("profile", profile.Name).WithField("kind", string(ipc.KindTransactionCancelled)).Warn("output configuration cancelled, retrying on next snapshot")
		}
	}
}

// Reload clears current/pending so the next snapshot re-runs the matcher
// from scratch, per spec §4.6's Reload RPC and §8 scenario S6.
func (e *Engine) Reload() {
	e.current = nil
	e.pending = nil
}

// Current returns the profile currently believed applied, if any.
func (e *Engine) Current() *config.Profile { return e.current }

// Pending returns the profile with an in-flight transaction, if any.
func (e *Engine) Pending() *config.Profile { return e.pending }

func filterByName(profiles []*config.Profile, name string) []*config.Profile {
	return lo.Filter(profiles, func(p *config.Profile, _ int) bool {
		return p.Name == name
	})
}

var _ HookRunner = (*hooks.Runner)(nil)
