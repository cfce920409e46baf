package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressRequiresWaylandDisplay(t *testing.T) {
	t.Setenv("WAYLAND_DISPLAY", "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	_, err := Address()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WAYLAND_DISPLAY")
}

func TestAddressRequiresRuntimeDir(t *testing.T) {
	t.Setenv("WAYLAND_DISPLAY", "wayland-0")
	t.Setenv("XDG_RUNTIME_DIR", "")

	_, err := Address()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XDG_RUNTIME_DIR")
}

func TestAddressFormat(t *testing.T) {
	t.Setenv("WAYLAND_DISPLAY", "wayland-1")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	addr, err := Address()
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/fr.emersion.kanshi.wayland-1", addr)
}
