package config

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/spkg/bom"
)

// tokenType enumerates the four lexical tokens of the grammar in spec §4.1.
type tokenType int

const (
	tokenLBracket tokenType = iota
	tokenRBracket
	tokenStr
	tokenNewline
)

func (t tokenType) String() string {
	switch t {
	case tokenLBracket:
		return "'{'"
	case tokenRBracket:
		return "'}'"
	case tokenStr:
		return "string"
	case tokenNewline:
		return "newline"
	default:
		return "unknown token"
	}
}

// ParseError carries the line/column of a syntax error (spec §4.1
// "Failure mode").
type ParseError struct {
	File    string
	Line    int
	Col     int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, e.Message)
	}
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Message)
}

// parser is a hand-rolled recursive-descent scanner over kanshi's DSL.
// There is no reusable third-party grammar for this bespoke language, so
// the tokenizer is implemented directly against the grammar in spec §4.1,
// mirroring original_source/parser.c's character-at-a-time approach.
type parser struct {
	file   string
	reader *bufio.Reader
	line   int
	col    int
	peeked rune
	hasPk  bool

	tokType tokenType
	tokStr  string

	includeDepth int
}

const maxIncludeDepth = 32

func newParser(file string, r io.Reader) *parser {
	return &parser{
		file:   file,
		reader: bufio.NewReader(r),
		line:   1,
		col:    0,
	}
}

// readChar returns the next rune, 0 at EOF, or -1 on read error.
func (p *parser) readChar() rune {
	if p.hasPk {
		ch := p.peeked
		p.hasPk = false
		return ch
	}
	ch, _, err := p.reader.ReadRune()
	if err != nil {
		if err == io.EOF {
			return 0
		}
		return -1
	}
	if ch == '\n' {
		p.line++
		p.col = 0
	} else {
		p.col++
	}
	return ch
}

func (p *parser) peekChar() rune {
	ch := p.readChar()
	p.peeked = ch
	p.hasPk = true
	return ch
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &ParseError{File: p.file, Line: p.line, Col: p.col, Message: fmt.Sprintf(format, args...)}
}

func isSpace(ch rune) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\v' || ch == '\f'
}

func (p *parser) readQuoted() error {
	var sb strings.Builder
	for {
		ch := p.readChar()
		if ch < 0 {
			return p.errorf("read error in quoted string")
		}
		if ch == 0 {
			return p.errorf("unterminated quoted string")
		}
		if ch == '"' {
			p.tokStr = sb.String()
			return nil
		}
		sb.WriteRune(ch)
	}
}

func (p *parser) ignoreLine() {
	for {
		ch := p.readChar()
		if ch <= 0 || ch == '\n' {
			return
		}
	}
}

// readLine consumes the rest of the line verbatim, used for "exec" and
// "include" whose argument is LINE-REST, not a whitespace-delimited token.
func (p *parser) readLine() (string, error) {
	var sb strings.Builder
	for {
		ch := p.peekChar()
		if ch < 0 {
			return "", p.errorf("read error")
		}
		if ch == '\n' || ch == 0 {
			return sb.String(), nil
		}
		sb.WriteRune(p.readChar())
	}
}

func (p *parser) readBareStr(first rune) error {
	var sb strings.Builder
	sb.WriteRune(first)
	for {
		ch := p.peekChar()
		if ch < 0 {
			return p.errorf("read error")
		}
		if isSpace(ch) || ch == '\n' || ch == '{' || ch == '}' || ch == 0 {
			p.tokStr = sb.String()
			return nil
		}
		sb.WriteRune(p.readChar())
	}
}

// nextToken advances to the next token, skipping whitespace and comments.
func (p *parser) nextToken() error {
	for {
		ch := p.readChar()
		if ch < 0 {
			return p.errorf("read error")
		}
		switch {
		case ch == '{':
			p.tokType = tokenLBracket
			return nil
		case ch == '}':
			p.tokType = tokenRBracket
			return nil
		case ch == '\n':
			p.tokType = tokenNewline
			return nil
		case ch == 0:
			return io.EOF
		case isSpace(ch):
			continue
		case ch == '"':
			p.tokType = tokenStr
			if err := p.readQuoted(); err != nil {
				return err
			}
			return nil
		case ch == '#':
			p.ignoreLine()
			p.tokType = tokenNewline
			return nil
		default:
			p.tokType = tokenStr
			if err := p.readBareStr(ch); err != nil {
				return err
			}
			return nil
		}
	}
}

func (p *parser) expectToken(want tokenType) error {
	if err := p.nextToken(); err != nil {
		return err
	}
	if p.tokType != want {
		return p.errorf("expected %s, got %s", want, p.tokType)
	}
	return nil
}

func parseInt32(s string) (int32, bool) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(v), true
}

func parseMode(s string) (Mode, error) {
	xIdx := strings.IndexByte(s, 'x')
	if xIdx < 0 {
		return Mode{}, fmt.Errorf("invalid output mode %q: missing 'x'", s)
	}
	widthStr, rest := s[:xIdx], s[xIdx+1:]
	heightStr := rest
	var refreshStr string
	hasRefresh := false
	if atIdx := strings.IndexByte(rest, '@'); atIdx >= 0 {
		heightStr = rest[:atIdx]
		refreshStr = rest[atIdx+1:]
		hasRefresh = true
	}

	width, ok := parseInt32(widthStr)
	if !ok {
		return Mode{}, fmt.Errorf("invalid output mode %q: invalid width", s)
	}
	height, ok := parseInt32(heightStr)
	if !ok {
		return Mode{}, fmt.Errorf("invalid output mode %q: invalid height", s)
	}

	mode := Mode{Width: width, Height: height}
	if hasRefresh {
		refreshStr = strings.TrimSuffix(refreshStr, "Hz")
		v, err := strconv.ParseFloat(refreshStr, 64)
		if err != nil {
			return Mode{}, fmt.Errorf("invalid output mode %q: invalid refresh rate", s)
		}
		mode.Refresh = int32(math.Round(v * 1000))
	}
	return mode, nil
}

func parsePosition(s string) (Position, error) {
	commaIdx := strings.IndexByte(s, ',')
	if commaIdx < 0 {
		return Position{}, fmt.Errorf("invalid output position %q: missing ','", s)
	}
	x, ok := parseInt32(s[:commaIdx])
	if !ok {
		return Position{}, fmt.Errorf("invalid output position %q: invalid x", s)
	}
	y, ok := parseInt32(s[commaIdx+1:])
	if !ok {
		return Position{}, fmt.Errorf("invalid output position %q: invalid y", s)
	}
	return Position{X: x, Y: y}, nil
}

func (p *parser) parseProfileOutput() (*ProfileOutput, error) {
	if err := p.expectToken(tokenStr); err != nil {
		return nil, err
	}
	output := &ProfileOutput{Name: p.tokStr, Scale: 0}

	var pendingKey string
	for {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		switch p.tokType {
		case tokenStr:
			if pendingKey == "" {
				switch p.tokStr {
				case "enable":
					output.Enabled = true
					output.Fields |= FieldEnabled
				case "disable":
					output.Enabled = false
					output.Fields |= FieldEnabled
				case "mode", "position", "pos", "scale", "transform":
					pendingKey = p.tokStr
				default:
					return nil, p.errorf("unknown directive %q in profile output %q", p.tokStr, output.Name)
				}
				continue
			}

			value := p.tokStr
			switch pendingKey {
			case "mode":
				mode, err := parseMode(value)
				if err != nil {
					return nil, p.errorf("%s", err)
				}
				output.Mode = mode
				output.Fields |= FieldMode
			case "position", "pos":
				pos, err := parsePosition(value)
				if err != nil {
					return nil, p.errorf("%s", err)
				}
				output.Position = pos
				output.Fields |= FieldPosition
			case "scale":
				scale, err := strconv.ParseFloat(value, 64)
				if err != nil || scale <= 0 {
					return nil, p.errorf("invalid output scale %q", value)
				}
				output.Scale = scale
				output.Fields |= FieldScale
			case "transform":
				transform, ok := ParseTransform(value)
				if !ok {
					return nil, p.errorf("invalid output transform %q", value)
				}
				output.Transform = transform
				output.Fields |= FieldTransform
			}
			pendingKey = ""
		case tokenNewline:
			return output, nil
		default:
			return nil, p.errorf("unexpected %s in output", p.tokType)
		}
	}
}

func (p *parser) parseExec() (string, error) {
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	return line, nil
}

func (p *parser) parseProfile() (*Profile, error) {
	profile := &Profile{}

	if err := p.nextToken(); err != nil {
		return nil, err
	}
	switch p.tokType {
	case tokenLBracket:
		// anonymous, '{' just consumed
	case tokenStr:
		profile.Name = p.tokStr
		if err := p.expectToken(tokenLBracket); err != nil {
			return nil, err
		}
	default:
		return nil, p.errorf("unexpected %s, expected '{' or a profile name", p.tokType)
	}

	profile.Line, profile.Col = p.line, p.col
	if profile.Name == "" {
		profile.Name = AnonymousName(profile.Line, profile.Col)
	}

	for {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		switch p.tokType {
		case tokenRBracket:
			return profile, nil
		case tokenNewline:
			continue
		case tokenStr:
			switch p.tokStr {
			case "output":
				output, err := p.parseProfileOutput()
				if err != nil {
					return nil, err
				}
				profile.AddOutput(output)
			case "exec":
				cmd, err := p.parseExec()
				if err != nil {
					return nil, err
				}
				if cmd != "" {
					profile.Hooks = append(profile.Hooks, cmd)
				}
			default:
				return nil, p.errorf("unknown directive %q in profile %q", p.tokStr, profile.Name)
			}
		default:
			return nil, p.errorf("unexpected %s in profile %q", p.tokType, profile.Name)
		}
	}
}

func (p *parser) parseInclude(cfg *Config) error {
	line, err := p.readLine()
	if err != nil {
		return err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	paths, err := expandIncludeWords(line)
	if err != nil {
		return p.errorf("could not expand include path %q: %s", line, err)
	}

	if p.includeDepth >= maxIncludeDepth {
		return p.errorf("include depth limit (%d) exceeded while including %q", maxIncludeDepth, line)
	}

	for _, path := range paths {
		matches, err := filepath.Glob(path)
		if err != nil {
			return p.errorf("invalid include glob %q: %s", path, err)
		}
		if len(matches) == 0 {
			matches = []string{path}
		}
		for _, m := range matches {
			if err := parseFileInto(m, cfg, p.includeDepth+1); err != nil {
				return fmt.Errorf("could not parse included config %q: %w", m, err)
			}
		}
	}
	return nil
}

// expandIncludeWords performs shell-like word splitting plus environment
// variable expansion on the include directive's argument, matching
// wordexp(3)'s WRDE_SHOWERR|WRDE_UNDEF semantics: unset variables are a
// hard error rather than expanding to the empty string.
func expandIncludeWords(line string) ([]string, error) {
	var undefined []string
	p := shellwords.NewParser()
	p.ParseEnv = true
	p.ParseBacktick = false
	p.Getenv = func(name string) string {
		v, ok := os.LookupEnv(name)
		if !ok {
			undefined = append(undefined, name)
		}
		return v
	}
	words, err := p.Parse(line)
	if err != nil {
		return nil, err
	}
	if len(undefined) > 0 {
		return nil, fmt.Errorf("undefined variable %q", undefined[0])
	}
	for _, w := range words {
		if strings.Contains(w, "${") || strings.Contains(w, "$") {
			if name, ok := unresolvedVar(w); ok {
				return nil, fmt.Errorf("undefined variable %q", name)
			}
		}
	}
	return words, nil
}

func unresolvedVar(word string) (string, bool) {
	// Reports the first "$NAME" reference still present in a word after
	// expansion (go-shellwords leaves it literal, e.g. inside single
	// quotes); such a word is rejected like an unset variable.
	for i := 0; i < len(word); i++ {
		if word[i] != '$' {
			continue
		}
		j := i + 1
		for j < len(word) && (isAlnum(rune(word[j])) || word[j] == '_') {
			j++
		}
		if j > i+1 {
			return word[i+1 : j], true
		}
	}
	return "", false
}

func isAlnum(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}

func (p *parser) parseConfig(cfg *Config) error {
	for {
		ch := p.peekChar()
		if ch < 0 {
			return p.errorf("read error")
		}
		if ch == 0 {
			return nil
		}
		if ch == '#' {
			p.readChar()
			p.ignoreLine()
			continue
		}
		if ch == '\n' || isSpace(ch) {
			p.readChar()
			continue
		}

		if ch == '{' {
			p.readChar()
			profile, err := p.parseProfile()
			if err != nil {
				return err
			}
			cfg.Profiles = append(cfg.Profiles, profile)
			continue
		}

		if err := p.expectToken(tokenStr); err != nil {
			return err
		}
		switch p.tokStr {
		case "profile":
			profile, err := p.parseProfile()
			if err != nil {
				return err
			}
			cfg.Profiles = append(cfg.Profiles, profile)
		case "include":
			if err := p.parseInclude(cfg); err != nil {
				return err
			}
		default:
			return p.errorf("unknown directive %q", p.tokStr)
		}
	}
}

// ParseFile parses the config at path, following any "include" directives
// relative to the process's current working directory (matching
// original_source/parser.c, which passes the expanded path straight to
// fopen).
func ParseFile(path string) (*Config, error) {
	cfg := &Config{}
	if err := parseFileInto(path, cfg, 0); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFileInto(path string, cfg *Config, depth int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file %q: %w", path, err)
	}
	defer f.Close()

	p := newParser(path, bom.NewReader(f))
	p.includeDepth = depth
	if err := p.parseConfig(cfg); err != nil {
		return err
	}
	return nil
}

// Parse parses config text directly, used by tests and by the round-trip
// property (spec §8 property 6). "include" is not resolvable without a
// file on disk, so it is an error here if encountered.
func Parse(text string) (*Config, error) {
	cfg := &Config{}
	p := newParser("<string>", strings.NewReader(text))
	p.includeDepth = maxIncludeDepth // disable include in in-memory parses
	if err := p.parseConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
