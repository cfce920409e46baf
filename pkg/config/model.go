// Package config holds the in-memory profile model (C1) and the parser
// (C2) that builds it from kanshi's block-structured configuration
// language.
package config

import "fmt"

// Transform is the output rotation/flip applied to a head.
type Transform int

const (
	TransformNormal Transform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

func (t Transform) String() string {
	switch t {
	case TransformNormal:
		return "normal"
	case Transform90:
		return "90"
	case Transform180:
		return "180"
	case Transform270:
		return "270"
	case TransformFlipped:
		return "flipped"
	case TransformFlipped90:
		return "flipped-90"
	case TransformFlipped180:
		return "flipped-180"
	case TransformFlipped270:
		return "flipped-270"
	default:
		return "unknown"
	}
}

// ParseTransform maps a TRANSFORM-STR token to a Transform, per spec §4.1.
func ParseTransform(s string) (Transform, bool) {
	switch s {
	case "normal":
		return TransformNormal, true
	case "90":
		return Transform90, true
	case "180":
		return Transform180, true
	case "270":
		return Transform270, true
	case "flipped":
		return TransformFlipped, true
	case "flipped-90":
		return TransformFlipped90, true
	case "flipped-180":
		return TransformFlipped180, true
	case "flipped-270":
		return TransformFlipped270, true
	default:
		return 0, false
	}
}

// Position is an (x, y) pair in the compositor's global coordinate space.
type Position struct {
	X int32
	Y int32
}

// Mode is a parsed MODE-STR: width, height and refresh in millihertz.
// Refresh of 0 means "unspecified" (spec §4.4 rule 10: pick highest refresh).
type Mode struct {
	Width   int32
	Height  int32
	Refresh int32 // mHz
}

func (m Mode) String() string {
	if m.Refresh == 0 {
		return fmt.Sprintf("%dx%d", m.Width, m.Height)
	}
	return fmt.Sprintf("%dx%d@%.3fHz", m.Width, m.Height, float64(m.Refresh)/1000.0)
}

// FieldSet is a bitmask recording which optional fields were set on a
// ProfileOutput by the source text (spec §3, invariant 4).
type FieldSet uint8

const (
	FieldEnabled FieldSet = 1 << iota
	FieldMode
	FieldPosition
	FieldScale
	FieldTransform
)

func (f FieldSet) Has(bit FieldSet) bool { return f&bit != 0 }

// ProfileOutput is one "output" directive inside a profile block.
type ProfileOutput struct {
	// Name is either an exact head name, a space-containing substring
	// matched against the head description, or "*".
	Name string

	Fields FieldSet

	Enabled   bool
	Mode      Mode
	Position  Position
	Scale     float64
	Transform Transform
}

// IsWildcard reports whether this output entry matches any head.
func (o *ProfileOutput) IsWildcard() bool { return o.Name == "*" }

// Profile is a named, ordered list of profile-outputs plus hook commands.
// Immutable after parsing.
type Profile struct {
	Name    string
	Outputs []*ProfileOutput
	Hooks   []string

	// Line/Col of the opening '{', used to synthesize Name when absent.
	Line int
	Col  int
}

// AddOutput appends a profile-output keeping the wildcards-last invariant:
// wildcards always sort after every non-wildcard entry.
func (p *Profile) AddOutput(o *ProfileOutput) {
	if o.IsWildcard() {
		p.Outputs = append(p.Outputs, o)
		return
	}
	// Insert before the first wildcard, if any.
	idx := len(p.Outputs)
	for i, existing := range p.Outputs {
		if existing.IsWildcard() {
			idx = i
			break
		}
	}
	p.Outputs = append(p.Outputs, nil)
	copy(p.Outputs[idx+1:], p.Outputs[idx:])
	p.Outputs[idx] = o
}

// Config is an ordered list of profiles; declaration order is matching
// order (spec §3).
type Config struct {
	Profiles []*Profile
}

// Equal reports structural equivalence, used by the round-trip test
// (spec §8 property 6): same profile names, outputs, fields and hooks.
func (c *Config) Equal(other *Config) bool {
	if other == nil || len(c.Profiles) != len(other.Profiles) {
		return false
	}
	for i, p := range c.Profiles {
		if !p.equal(other.Profiles[i]) {
			return false
		}
	}
	return true
}

func (p *Profile) equal(other *Profile) bool {
	if other == nil || p.Name != other.Name || len(p.Outputs) != len(other.Outputs) || len(p.Hooks) != len(other.Hooks) {
		return false
	}
	for i, o := range p.Outputs {
		if !o.equal(other.Outputs[i]) {
			return false
		}
	}
	for i, h := range p.Hooks {
		if h != other.Hooks[i] {
			return false
		}
	}
	return true
}

func (o *ProfileOutput) equal(other *ProfileOutput) bool {
	if other == nil || o.Name != other.Name || o.Fields != other.Fields {
		return false
	}
	if o.Fields.Has(FieldEnabled) && o.Enabled != other.Enabled {
		return false
	}
	if o.Fields.Has(FieldMode) && o.Mode != other.Mode {
		return false
	}
	if o.Fields.Has(FieldPosition) && o.Position != other.Position {
		return false
	}
	if o.Fields.Has(FieldScale) && o.Scale != other.Scale {
		return false
	}
	if o.Fields.Has(FieldTransform) && o.Transform != other.Transform {
		return false
	}
	return true
}

// String renders the config back into kanshi's source syntax. Used by the
// parser round-trip test and by the reload diff in reload.go.
func (c *Config) String() string {
	var out string
	for _, p := range c.Profiles {
		out += p.render()
	}
	return out
}

func (p *Profile) render() string {
	out := "profile "
	if !isAnonymous(p.Name) {
		out += quoteIfNeeded(p.Name) + " "
	}
	out += "{\n"
	for _, o := range p.Outputs {
		out += "\toutput " + quoteIfNeeded(o.Name)
		if o.Fields.Has(FieldEnabled) {
			if o.Enabled {
				out += " enable"
			} else {
				out += " disable"
			}
		}
		if o.Fields.Has(FieldMode) {
			out += " mode " + o.Mode.String()
		}
		if o.Fields.Has(FieldPosition) {
			out += fmt.Sprintf(" position %d,%d", o.Position.X, o.Position.Y)
		}
		if o.Fields.Has(FieldScale) {
			out += fmt.Sprintf(" scale %g", o.Scale)
		}
		if o.Fields.Has(FieldTransform) {
			out += " transform " + o.Transform.String()
		}
		out += "\n"
	}
	for _, h := range p.Hooks {
		out += "\texec " + h + "\n"
	}
	out += "}\n"
	return out
}

func isAnonymous(name string) bool {
	return len(name) > 10 && name[:10] == "<anonymous"
}

func quoteIfNeeded(s string) string {
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '"' || r == '{' || r == '}' || r == '#' {
			return fmt.Sprintf("%q", s)
		}
	}
	if s == "" {
		return `""`
	}
	return s
}

// AnonymousName synthesizes a profile name from the position of its
// opening brace, matching original_source/parser.c.
func AnonymousName(line, col int) string {
	return fmt.Sprintf("<anonymous at line %d, col %d>", line, col)
}
