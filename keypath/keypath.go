// Package keypath parses and orders the flat key paths used in locale
// dictionaries.
//
// A key path is a sequence of field names and array indices rendered as
// "nav.items[2].label". Paths, not values, identify entries in the
// translation memory, so their comparison must be stable across runs.
package keypath

import (
	"sort"
	"strconv"
	"strings"
)

// Token is one step of a key path: either a field name or an array index.
type Token struct {
	Name    string
	Index   int
	IsIndex bool
}

// Path is an ordered sequence of tokens.
type Path []Token

// Field returns a name token.
func Field(name string) Token { return Token{Name: name} }

// Index returns an array index token.
func Index(i int) Token { return Token{Index: i, IsIndex: true} }

// Parse splits a rendered path into tokens. It never fails: bracket
// contents that are not a non-negative integer become name tokens, and an
// unterminated bracket consumes the rest of the input as a name.
func Parse(s string) Path {
	var p Path
	i := 0
	for i < len(s) {
		switch s[i] {
		case '.':
			i++
		case '[':
			end := strings.IndexByte(s[i+1:], ']')
			if end < 0 {
				p = append(p, Field(s[i+1:]))
				return p
			}
			inner := s[i+1 : i+1+end]
			if n, err := strconv.Atoi(inner); err == nil && n >= 0 {
				p = append(p, Index(n))
			} else {
				p = append(p, Field(inner))
			}
			i += end + 2
		default:
			j := i
			for j < len(s) && s[j] != '.' && s[j] != '[' {
				j++
			}
			p = append(p, Field(s[i:j]))
			i = j
		}
	}
	return p
}

// String renders the path back to its flat form.
func (p Path) String() string {
	var b strings.Builder
	for i, t := range p {
		if t.IsIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(t.Index))
			b.WriteByte(']')
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(t.Name)
	}
	return b.String()
}

// Join appends a field name to a rendered prefix.
func Join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// JoinIndex appends an array index to a rendered prefix.
func JoinIndex(prefix string, i int) string {
	return prefix + "[" + strconv.Itoa(i) + "]"
}

// compareToken orders index tokens before name tokens, indices numerically
// and names lexically.
func compareToken(a, b Token) int {
	switch {
	case a.IsIndex && !b.IsIndex:
		return -1
	case !a.IsIndex && b.IsIndex:
		return 1
	case a.IsIndex:
		switch {
		case a.Index < b.Index:
			return -1
		case a.Index > b.Index:
			return 1
		}
		return 0
	}
	return strings.Compare(a.Name, b.Name)
}

// Compare orders two paths token by token. A path that is a proper prefix
// of another sorts first.
func Compare(a, b Path) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := compareToken(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// CompareStrings parses and compares two rendered paths.
func CompareStrings(a, b string) int {
	return Compare(Parse(a), Parse(b))
}

// Sort orders rendered paths in place with a stable path-aware sort.
func Sort(paths []string) {
	parsed := make(map[string]Path, len(paths))
	for _, s := range paths {
		if _, ok := parsed[s]; !ok {
			parsed[s] = Parse(s)
		}
	}
	sort.SliceStable(paths, func(i, j int) bool {
		return Compare(parsed[paths[i]], parsed[paths[j]]) < 0
	})
}

// HasPrefix reports whether path equals prefix or continues it with a
// field or index step.
func HasPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+".") || strings.HasPrefix(path, prefix+"[")
}
