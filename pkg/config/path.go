package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/OpenPeeDeeP/xdg"
)

// DefaultPath resolves the config file location per spec §6:
// $XDG_CONFIG_HOME/kanshi/config, else $HOME/.config/kanshi/config.
// Unlike the teacher's findOrCreateConfigDir, this never creates anything:
// kanshi must not invent a config file out from under the user.
func DefaultPath() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, "kanshi", "config"), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", fmt.Errorf("HOME not set")
	}

	dirs := xdg.New("", "kanshi")
	dir := dirs.ConfigHome()
	if dir == "" {
		dir = filepath.Join(home, ".config", "kanshi")
	}
	return filepath.Join(dir, "config"), nil
}
