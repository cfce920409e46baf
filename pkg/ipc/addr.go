package ipc

import (
	"fmt"
	"os"
	"path/filepath"
)

// Address resolves the RPC socket path per spec §4.6: under
// $XDG_RUNTIME_DIR, named fr.emersion.kanshi.$WAYLAND_DISPLAY. Startup
// fails if either variable is empty, mirroring
// original_source/ipc-addr.c's get_ipc_address.
func Address() (string, error) {
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	if waylandDisplay == "" {
		return "", NewKindError(KindEnvironmentMissing, fmt.Errorf("WAYLAND_DISPLAY is not set"))
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return "", NewKindError(KindEnvironmentMissing, fmt.Errorf("XDG_RUNTIME_DIR is not set"))
	}
	return filepath.Join(runtimeDir, fmt.Sprintf("fr.emersion.kanshi.%s", waylandDisplay)), nil
}
