package config

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff renders a unified diff between two configs' rendered source form,
// used by the daemon to log what a reload actually changed (spec §9
// supplement: "logging ... a complete reimplementation would keep").
func Diff(old, new *Config) (string, error) {
	oldText, newText := "", ""
	if old != nil {
		oldText = old.String()
	}
	if new != nil {
		newText = new.String()
	}
	if oldText == newText {
		return "", nil
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldText),
		B:        difflib.SplitLines(newText),
		FromFile: "current",
		ToFile:   "reloaded",
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("computing config diff: %w", err)
	}
	return text, nil
}
