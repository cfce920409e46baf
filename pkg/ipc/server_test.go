package ipc

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WAYLAND_DISPLAY", "wayland-test")
	t.Setenv("XDG_RUNTIME_DIR", dir)

	srv, err := Listen(nil)
	require.NoError(t, err)
	defer srv.Close()

	go func() {
		call := <-srv.Calls
		require.Equal(t, MethodSetProfile, call.Method)
		require.Equal(t, "laptop", call.Profile)
		call.Done(nil)
	}()

	client, err := Dial()
	require.NoError(t, err)
	defer client.Close()

	done := make(chan error, 1)
	go func() { done <- client.SetProfile("laptop") }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SetProfile round trip")
	}
}

func TestServerErrorReplyCarriesKind(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WAYLAND_DISPLAY", "wayland-test")
	t.Setenv("XDG_RUNTIME_DIR", dir)

	srv, err := Listen(nil)
	require.NoError(t, err)
	defer srv.Close()

	go func() {
		call := <-srv.Calls
		call.Done(NewKindError(KindConfigSyntax, errors.New("profile: bad token")))
	}()

	client, err := Dial()
	require.NoError(t, err)
	defer client.Close()

	callErr := client.Reload()
	require.Error(t, callErr)

	kind, ok := KindOf(callErr)
	require.True(t, ok)
	assert.Equal(t, KindConfigSyntax, kind)
}

func TestServerClosedRejectsNewCalls(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WAYLAND_DISPLAY", "wayland-test")
	t.Setenv("XDG_RUNTIME_DIR", dir)

	srv, err := Listen(nil)
	require.NoError(t, err)

	srv.mu.Lock()
	srv.closed = true
	srv.mu.Unlock()

	client, err := Dial()
	require.NoError(t, err)
	defer client.Close()

	callErr := client.Reload()
	require.Error(t, callErr)
	kind, ok := KindOf(callErr)
	require.True(t, ok)
	assert.Equal(t, KindRPCTransport, kind)

	srv.Close()
}
