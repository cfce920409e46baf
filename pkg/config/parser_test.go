package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasicProfile(t *testing.T) {
	src := `
profile laptop {
	output eDP-1 mode 1920x1080 position 0,0
	output DP-1 mode 2560x1440@60Hz position 1920,0
}
`
	cfg, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, cfg.Profiles, 1)

	p := cfg.Profiles[0]
	assert.Equal(t, "laptop", p.Name)
	require.Len(t, p.Outputs, 2)

	edp := p.Outputs[0]
	assert.Equal(t, "eDP-1", edp.Name)
	assert.True(t, edp.Fields.Has(FieldMode))
	assert.Equal(t, Mode{Width: 1920, Height: 1080}, edp.Mode)
	assert.True(t, edp.Fields.Has(FieldPosition))
	assert.Equal(t, Position{X: 0, Y: 0}, edp.Position)

	dp := p.Outputs[1]
	assert.Equal(t, int32(2560), dp.Mode.Width)
	assert.Equal(t, int32(1440), dp.Mode.Height)
	assert.Equal(t, int32(60000), dp.Mode.Refresh)
}

func TestAnonymousProfileName(t *testing.T) {
	cfg, err := Parse("profile {\n output \"*\" enable \n}\n")
	require.NoError(t, err)
	require.Len(t, cfg.Profiles, 1)
	assert.Regexp(t, `^<anonymous at line \d+, col \d+>$`, cfg.Profiles[0].Name)
}

func TestWildcardOrdering(t *testing.T) {
	src := `
profile any {
	output "*" enable
	output DP-1 enable
	output "*" scale 2
}
`
	cfg, err := Parse(src)
	require.NoError(t, err)
	outputs := cfg.Profiles[0].Outputs
	require.Len(t, outputs, 3)
	assert.Equal(t, "DP-1", outputs[0].Name)
	for _, o := range outputs[1:] {
		assert.True(t, o.IsWildcard(), "wildcard entries must sort after every non-wildcard entry")
	}
}

func TestExecHook(t *testing.T) {
	cfg, err := Parse("profile p {\n\toutput \"*\" enable\n\texec notify-send hi there\n}\n")
	require.NoError(t, err)
	require.Len(t, cfg.Profiles[0].Hooks, 1)
	assert.Equal(t, "notify-send hi there", cfg.Profiles[0].Hooks[0])
}

func TestCommentsAndBlankLines(t *testing.T) {
	src := "# top level comment\n\nprofile p { # trailing comment\n\n\toutput \"*\" enable\n}\n"
	cfg, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, cfg.Profiles, 1)
	require.Len(t, cfg.Profiles[0].Outputs, 1)
}

func TestQuotedOutputName(t *testing.T) {
	cfg, err := Parse("profile d {\n\toutput \"Dell U2720\" mode 2560x1440\n}\n")
	require.NoError(t, err)
	assert.Equal(t, "Dell U2720", cfg.Profiles[0].Outputs[0].Name)
}

func TestUnterminatedQuoteIsParseError(t *testing.T) {
	_, err := Parse("profile p {\n\toutput \"DP-1\n}\n")
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestUnknownDirectiveIsParseError(t *testing.T) {
	_, err := Parse("profile p {\n\tbogus thing\n}\n")
	require.Error(t, err)
}

func TestInvalidModeIsParseError(t *testing.T) {
	_, err := Parse("profile p {\n\toutput DP-1 mode notamode\n}\n")
	require.Error(t, err)
}

func TestEmptyConfig(t *testing.T) {
	cfg, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Profiles)
}

func TestRoundTrip(t *testing.T) {
	src := `profile laptop {
	output eDP-1 mode 1920x1080 position 0,0 scale 1.5 transform 90
	output "*" enable
}
`
	cfg, err := Parse(src)
	require.NoError(t, err)

	rendered := cfg.String()
	cfg2, err := Parse(rendered)
	require.NoError(t, err)

	assert.True(t, cfg.Equal(cfg2), "reparsing the rendered config must yield an equal model")
}

func TestScaleMustBePositive(t *testing.T) {
	_, err := Parse("profile p {\n\toutput DP-1 scale -1\n}\n")
	require.Error(t, err)
}
