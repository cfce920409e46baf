package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emersion/go-kanshi/pkg/compositor"
	"github.com/emersion/go-kanshi/pkg/config"
)

func mustParse(t *testing.T, src string) *config.Config {
	t.Helper()
	cfg, err := config.Parse(src)
	require.NoError(t, err)
	return cfg
}

func TestProcessNoProfileMatched(t *testing.T) {
	cfg := mustParse(t, "profile p {\n\toutput DP-1 enable\n\toutput DP-2 enable\n}\n")
	e := &Engine{}
	snap := compositor.Snapshot{Serial: 1, Heads: []*compositor.Head{{Name: "eDP-1"}}}

	e.Process(context.Background(), cfg.Profiles, snap)
	assert.Nil(t, e.Current())
	assert.Nil(t, e.Pending())
}

func TestProcessSkipsWhenAlreadyCurrent(t *testing.T) {
	cfg := mustParse(t, "profile p {\n\toutput \"*\" enable\n}\n")
	e := &Engine{current: cfg.Profiles[0]}
	snap := compositor.Snapshot{Serial: 1, Heads: []*compositor.Head{{Name: "eDP-1", Enabled: true}}}

	e.Process(context.Background(), cfg.Profiles, snap)
	assert.Equal(t, cfg.Profiles[0], e.Current())
	assert.Nil(t, e.Pending())
}

func TestProcessSkipsTransactionWhenNothingWouldChange(t *testing.T) {
	cfg := mustParse(t, "profile p {\n\toutput eDP-1 enable\n}\n")
	e := &Engine{}
	head := &compositor.Head{Name: "eDP-1", Enabled: true}
	snap := compositor.Snapshot{Serial: 1, Heads: []*compositor.Head{head}}

	e.Process(context.Background(), cfg.Profiles, snap)
	assert.Equal(t, cfg.Profiles[0], e.Current(), "dry-run optimization should set current without a live compositor")
	assert.Nil(t, e.Pending())
}

func TestProcessSkipsWhenTransactionAlreadyPending(t *testing.T) {
	cfg := mustParse(t, "profile p {\n\toutput \"*\" enable\n}\n")
	pendingProfile := &config.Profile{Name: "other"}
	e := &Engine{pending: pendingProfile}
	snap := compositor.Snapshot{Serial: 1, Heads: []*compositor.Head{{Name: "eDP-1"}}}

	e.Process(context.Background(), cfg.Profiles, snap)
	assert.Equal(t, pendingProfile, e.Pending(), "must not start a second transaction while one is in flight")
}

func TestReloadClearsCurrentAndPending(t *testing.T) {
	e := &Engine{current: &config.Profile{Name: "a"}, pending: &config.Profile{Name: "b"}}
	e.Reload()
	assert.Nil(t, e.Current())
	assert.Nil(t, e.Pending())
}

func TestForcedProfileFiltersCandidates(t *testing.T) {
	cfg := mustParse(t, `
profile laptop {
	output "*" enable
}
profile docked {
	output "*" enable
}
`)
	e := &Engine{ForcedProfile: "docked"}
	snap := compositor.Snapshot{Serial: 1, Heads: []*compositor.Head{{Name: "eDP-1", Enabled: true}}}

	e.Process(context.Background(), cfg.Profiles, snap)
	require.NotNil(t, e.Current())
	assert.Equal(t, "docked", e.Current().Name)
}

func TestDryRunNoopDetectsMismatch(t *testing.T) {
	cfg := mustParse(t, "profile p {\n\toutput eDP-1 mode 1920x1080\n}\n")
	e := &Engine{}
	head := &compositor.Head{
		Name:        "eDP-1",
		Enabled:     true,
		CurrentMode: &compositor.ModeHandle{Width: 1280, Height: 720},
	}
	assignment := map[*compositor.Head]*config.ProfileOutput{head: cfg.Profiles[0].Outputs[0]}

	assert.False(t, e.dryRunNoop(assignment), "mode mismatch must require a transaction")
}
