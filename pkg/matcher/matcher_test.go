package matcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emersion/go-kanshi/pkg/config"
)

func mustParse(t *testing.T, src string) *config.Config {
	t.Helper()
	cfg, err := config.Parse(src)
	require.NoError(t, err)
	return cfg
}

func TestMatchExact(t *testing.T) {
	cfg := mustParse(t, `
profile laptop {
	output eDP-1 mode 1920x1080
	output DP-1 mode 2560x1440
}
`)
	heads := []Head{
		{Name: "DP-1", Description: "Dell U2720 0x123"},
		{Name: "eDP-1", Description: "Built-in"},
	}

	p, a, ok := Match(cfg.Profiles, heads)
	require.True(t, ok)
	assert.Equal(t, "laptop", p.Name)
	assert.Equal(t, "DP-1", a[0].Name)
	assert.Equal(t, "eDP-1", a[1].Name)
}

func TestMatchSizeExactFails(t *testing.T) {
	cfg := mustParse(t, "profile laptop {\n\toutput eDP-1 mode 1920x1080\n}\n")
	heads := []Head{{Name: "eDP-1"}, {Name: "DP-1"}}

	_, _, ok := Match(cfg.Profiles, heads)
	assert.False(t, ok, "size mismatch between profile-outputs and heads must not match")
}

func TestMatchWildcardOnly(t *testing.T) {
	for n := 1; n <= 4; n++ {
		cfg := mustParse(t, "profile any {\n"+strings.Repeat("\toutput \"*\" enable\n", n)+"}\n")
		heads := make([]Head, n)
		for i := range heads {
			heads[i] = Head{Name: "head"}
		}
		p, a, ok := Match(cfg.Profiles, heads)
		require.True(t, ok, "a wildcard-only profile with one entry per head must match any head count")
		assert.Equal(t, "any", p.Name)
		assert.Len(t, a, n)
	}
}

func TestMatchDeclarationOrderWins(t *testing.T) {
	cfg := mustParse(t, `
profile first {
	output "*" enable
}
profile second {
	output "*" enable
}
`)
	heads := []Head{{Name: "eDP-1"}}
	p, _, ok := Match(cfg.Profiles, heads)
	require.True(t, ok)
	assert.Equal(t, "first", p.Name, "first matching profile in declaration order wins")
}

func TestMatchSpecificBeforeWildcard(t *testing.T) {
	cfg := mustParse(t, `
profile mix {
	output DP-1 mode 2560x1440
	output "*" enable
}
`)
	heads := []Head{
		{Name: "eDP-1"},
		{Name: "DP-1"},
	}
	_, a, ok := Match(cfg.Profiles, heads)
	require.True(t, ok)
	assert.Equal(t, "DP-1", a[1].Name, "the specific output must claim the DP-1 head, not the wildcard")
	assert.True(t, a[0].IsWildcard())
}

func TestMatchDescriptionSubstring(t *testing.T) {
	cfg := mustParse(t, "profile desk {\n\toutput \"Dell U2720\" enable\n}\n")
	heads := []Head{{Name: "DP-1", Description: "Dell U2720 0x123"}}
	p, a, ok := Match(cfg.Profiles, heads)
	require.True(t, ok)
	assert.Equal(t, "desk", p.Name)
	assert.Equal(t, "Dell U2720", a[0].Name)
}

func TestMatchNoProfileMatches(t *testing.T) {
	cfg := mustParse(t, "profile desk {\n\toutput DP-1 enable\n\toutput DP-2 enable\n}\n")
	heads := []Head{{Name: "eDP-1"}, {Name: "DP-3"}}
	_, _, ok := Match(cfg.Profiles, heads)
	assert.False(t, ok)
}

func TestMatchEmptyConfig(t *testing.T) {
	cfg := mustParse(t, "")
	_, _, ok := Match(cfg.Profiles, []Head{{Name: "eDP-1"}})
	assert.False(t, ok, "empty config has no profile to match")
}
