package compositor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emersion/go-kanshi/pkg/compositor/outputmanagement"
)

func TestModeMatchingExactRefresh(t *testing.T) {
	h := &Head{Modes: []*ModeHandle{
		{Width: 1920, Height: 1080, Refresh: 60000},
		{Width: 1920, Height: 1080, Refresh: 144000},
	}}

	m, ok := h.ModeMatching(1920, 1080, 60000)
	require.True(t, ok)
	assert.Equal(t, int32(60000), m.Refresh)
}

func TestModeMatchingRefreshWithinTolerance(t *testing.T) {
	h := &Head{Modes: []*ModeHandle{
		{Width: 1920, Height: 1080, Refresh: 59940},
	}}

	m, ok := h.ModeMatching(1920, 1080, 60000)
	require.True(t, ok)
	assert.Equal(t, int32(59940), m.Refresh)
}

func TestModeMatchingRefreshOutsideTolerance(t *testing.T) {
	h := &Head{Modes: []*ModeHandle{
		{Width: 1920, Height: 1080, Refresh: 30000},
	}}

	_, ok := h.ModeMatching(1920, 1080, 60000)
	assert.False(t, ok)
}

func TestModeMatchingNoRefreshPicksHighest(t *testing.T) {
	h := &Head{Modes: []*ModeHandle{
		{Width: 1920, Height: 1080, Refresh: 60000},
		{Width: 1920, Height: 1080, Refresh: 144000},
		{Width: 1280, Height: 720, Refresh: 240000},
	}}

	m, ok := h.ModeMatching(1920, 1080, 0)
	require.True(t, ok)
	assert.Equal(t, int32(144000), m.Refresh)
}

func TestModeMatchingNoMatchingSize(t *testing.T) {
	h := &Head{Modes: []*ModeHandle{
		{Width: 1920, Height: 1080, Refresh: 60000},
	}}

	_, ok := h.ModeMatching(3840, 2160, 0)
	assert.False(t, ok)
}

func TestRegistryCoalescesDoneBursts(t *testing.T) {
	reg, err := NewRegistry(&outputmanagement.Manager{}, nil)
	require.NoError(t, err)
	defer reg.Close()

	reg.onHead(&outputmanagement.Head{})

	var notified []Snapshot
	reg.Notify = func(s Snapshot) { notified = append(notified, s) }

	reg.onDone(1)
	reg.onDone(2)
	reg.onDone(3)

	time.Sleep(doneCoalesceWindow * 3)
	reg.Drain()

	require.Len(t, notified, 1, "a burst of Done events must coalesce into a single Notify call")
	assert.Equal(t, uint32(3), notified[0].Serial, "the coalesced snapshot must be the most recently settled one")
	assert.Len(t, notified[0].Heads, 1)
}

func TestRegistrySnapshotPreservesAnnounceOrder(t *testing.T) {
	reg, err := NewRegistry(&outputmanagement.Manager{}, nil)
	require.NoError(t, err)
	defer reg.Close()

	first := &outputmanagement.Head{}
	reg.onHead(first)
	reg.heads[first].Name = "DP-1"

	second := &outputmanagement.Head{}
	reg.onHead(second)
	reg.heads[second].Name = "eDP-1"

	third := &outputmanagement.Head{}
	reg.onHead(third)
	reg.heads[third].Name = "HDMI-A-1"

	var notified Snapshot
	reg.Notify = func(s Snapshot) { notified = s }
	reg.onDone(1)
	time.Sleep(doneCoalesceWindow * 3)
	reg.Drain()

	require.Len(t, notified.Heads, 3)
	assert.Equal(t, []string{"DP-1", "eDP-1", "HDMI-A-1"}, []string{
		notified.Heads[0].Name, notified.Heads[1].Name, notified.Heads[2].Name,
	})
}

func TestRegistryDrainIsNoopWithoutFreshSnapshot(t *testing.T) {
	reg, err := NewRegistry(&outputmanagement.Manager{}, nil)
	require.NoError(t, err)
	defer reg.Close()

	called := false
	reg.Notify = func(Snapshot) { called = true }

	reg.Drain()
	assert.False(t, called, "Drain must not invoke Notify when nothing has settled")
}
