package hooks

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInvokesConfiguredShell(t *testing.T) {
	r := NewRunner(nil)
	r.getenv = func(string) string { return "/bin/sh" }

	var gotName string
	var gotArgs []string
	done := make(chan struct{})

	r.SetCommand(func(name string, arg ...string) *exec.Cmd {
		gotName = name
		gotArgs = arg
		close(done)
		return exec.Command("true")
	})

	r.Run("notify-send hi")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("command constructor was never called")
	}

	assert.Equal(t, "/bin/sh", gotName)
	require.Len(t, gotArgs, 2)
	assert.Equal(t, "-c", gotArgs[0])
	assert.Equal(t, "notify-send hi", gotArgs[1])
}

func TestShellFallsBackToBinSh(t *testing.T) {
	r := NewRunner(nil)
	r.getenv = func(string) string { return "" }
	assert.Equal(t, "/bin/sh", r.shell())
}

func TestShellPrefersEnv(t *testing.T) {
	r := NewRunner(nil)
	r.getenv = func(string) string { return "/usr/bin/zsh" }
	assert.Equal(t, "/usr/bin/zsh", r.shell())
}
