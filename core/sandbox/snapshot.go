package sandbox

import (
	"maps"
	"regexp"
	"slices"
	"strings"
)

var tokenName = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// Snapshot is a read-only copy of the token map taken when a session is
// created. Later store writes are never observed.
type Snapshot struct {
	tokens map[string]string
}

func NewSnapshot(tokens map[string]string) Snapshot {
	return Snapshot{tokens: maps.Clone(tokens)}
}

func (s Snapshot) Get(name string) (string, bool) {
	v, ok := s.tokens[name]
	return v, ok
}

func (s Snapshot) Len() int {
	return len(s.tokens)
}

// Map returns a copy of the tokens.
func (s Snapshot) Map() map[string]string {
	return maps.Clone(s.tokens)
}

// StyleVariables renders the tokens as CSS custom properties in key order,
// for example "--background: 0 0% 100%; --radius: 0.5rem;". Names that are not
// plain identifiers are skipped and values lose characters that could close
// the declaration.
func (s Snapshot) StyleVariables() string {
	keys := slices.Sorted(maps.Keys(s.tokens))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if !tokenName.MatchString(k) {
			continue
		}
		parts = append(parts, "--"+k+": "+cssValue(s.tokens[k])+";")
	}
	return strings.Join(parts, " ")
}

func cssValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ';', '{', '}', '<', '>', '"', '\n', '\r':
			return -1
		}
		return r
	}, strings.TrimSpace(v))
}
