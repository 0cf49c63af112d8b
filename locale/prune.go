package locale

import (
	"strings"

	"github.com/sxxw-site/sitei18n/keypath"
)

// Pattern selects key paths for deletion.
type Pattern struct {
	Value  string
	Prefix bool
}

// ParsePatterns splits a comma-separated pattern list. A trailing ".*",
// "." or "*" makes a prefix pattern; anything else matches exactly.
// Empty items are ignored.
func ParsePatterns(list string) []Pattern {
	var out []Pattern
	for _, raw := range strings.Split(list, ",") {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		pat := Pattern{Value: p}
		switch {
		case strings.HasSuffix(p, ".*"):
			pat = Pattern{Value: p[:len(p)-2], Prefix: true}
		case strings.HasSuffix(p, "."), strings.HasSuffix(p, "*"):
			pat = Pattern{Value: p[:len(p)-1], Prefix: true}
		}
		if pat.Value == "" {
			continue
		}
		out = append(out, pat)
	}
	return out
}

// Match reports whether path is selected by the pattern.
func (p Pattern) Match(path string) bool {
	if p.Prefix {
		return keypath.HasPrefix(path, p.Value)
	}
	return path == p.Value
}

// MatchAny reports whether any pattern selects path.
func MatchAny(patterns []Pattern, path string) bool {
	for _, p := range patterns {
		if p.Match(path) {
			return true
		}
	}
	return false
}

// Prune removes every path selected by patterns and returns the count.
func (d *FlatDict) Prune(patterns []Pattern) int {
	if len(patterns) == 0 {
		return 0
	}
	return d.DeleteFunc(func(path string) bool {
		return MatchAny(patterns, path)
	})
}
