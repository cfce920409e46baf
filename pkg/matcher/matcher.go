// Package matcher implements the ordered-greedy profile/head matcher (C4):
// given the configured profile list and the compositor's current head
// snapshot, find the first profile that covers every head exactly once.
package matcher

import (
	"strings"

	"github.com/emersion/go-kanshi/pkg/config"
)

// Head is the matcher's view of a compositor output head: just enough to
// decide which profile-output it matches. The compositor package's richer
// Head type satisfies this by field, but the matcher stays decoupled from
// the protocol layer so it can be tested and reasoned about in isolation.
type Head struct {
	Name        string
	Description string
}

// Assignment maps a head (by index into the heads slice passed to Match) to
// the profile-output it was matched against.
type Assignment map[int]*config.ProfileOutput

// Match returns the first profile in declaration order for which a total,
// injective, size-exact assignment of heads to profile-outputs exists
// (spec §4.3). ok is false if no profile matches.
func Match(profiles []*config.Profile, heads []Head) (matched *config.Profile, assignment Assignment, ok bool) {
	for _, p := range profiles {
		if a, ok := tryMatch(p, heads); ok {
			return p, a, true
		}
	}
	return nil, nil, false
}

// tryMatch attempts the ordered-greedy assignment for a single profile:
// profile-outputs are considered in declaration order, and each claims the
// first unassigned head it matches. Because wildcards are sorted last by
// config.Profile.AddOutput, specific matches always bind before wildcards.
func tryMatch(p *config.Profile, heads []Head) (Assignment, bool) {
	if len(p.Outputs) != len(heads) {
		return nil, false
	}

	taken := make([]bool, len(heads))
	assignment := make(Assignment, len(heads))

	for _, output := range p.Outputs {
		claimed := -1
		for i, h := range heads {
			if taken[i] {
				continue
			}
			if matches(output, h) {
				claimed = i
				break
			}
		}
		if claimed < 0 {
			return nil, false
		}
		taken[claimed] = true
		assignment[claimed] = output
	}

	if len(assignment) != len(heads) {
		return nil, false
	}
	return assignment, true
}

// matches reports whether a profile-output applies to a head (spec §4.3):
// the wildcard "*", an exact name match, or a space-containing name tested
// as a substring of the head's description.
func matches(o *config.ProfileOutput, h Head) bool {
	if o.IsWildcard() {
		return true
	}
	if o.Name == h.Name {
		return true
	}
	if strings.Contains(o.Name, " ") && strings.Contains(h.Description, o.Name) {
		return true
	}
	return false
}
