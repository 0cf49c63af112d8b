// Package mask shields placeholders and protected terms from a translation
// service and restores them afterwards.
//
// Placeholders ("%d", "%1$s", "{name}", "{{count}}", "<b>") are replaced by
// opaque tokens of the form __PH0__, protected terms by __TERM0__. A Map is
// scoped to one string; it is never persisted.
package mask

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// placeholderRe recognizes printf markers, brace interpolations and markup
// tags.
var placeholderRe = regexp.MustCompile(
	`%\d*\$?[sd]|%\d*\.?\d*[df]|%@|\{[^{}]+\}|\{[0-9]+\}|\{\{[^{}]+\}\}|</?[^>]+>`,
)

// tokenRe matches the mask tokens this package emits.
var tokenRe = regexp.MustCompile(`__(?:PH|TERM)\d+__`)

// Entry pairs a mask token with the text it stands for.
type Entry struct {
	Token    string
	Original string
}

// Map is the ordered list of substitutions applied to one string.
type Map []Entry

// Unmask restores every recorded token in s.
func (m Map) Unmask(s string) string {
	for _, e := range m {
		s = strings.ReplaceAll(s, e.Token, e.Original)
	}
	return s
}

// Extract returns the placeholders in s, left to right.
func Extract(s string) []string {
	return placeholderRe.FindAllString(s, -1)
}

// MaskPlaceholders replaces each placeholder occurrence with __PH<n>__.
func MaskPlaceholders(s string) (string, Map) {
	var m Map
	out := placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		tok := fmt.Sprintf("__PH%d__", len(m))
		m = append(m, Entry{Token: tok, Original: match})
		return tok
	})
	return out, m
}

// Repair forces the translated string's placeholders back to the source
// sequence when the two differ. Placeholders in translated are rewritten
// left to right; any beyond the source count are left alone. It reports
// whether a rewrite happened. Token parity is best-effort: placeholders the
// service dropped entirely are not reinserted.
func Repair(src, translated string) (string, bool) {
	want := Extract(src)
	if len(want) == 0 {
		return translated, false
	}
	if equal(want, Extract(translated)) {
		return translated, false
	}
	i := 0
	out := placeholderRe.ReplaceAllStringFunc(translated, func(match string) string {
		if i >= len(want) {
			return match
		}
		r := want[i]
		i++
		return r
	})
	return out, true
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Protected terms
// ---------------------------------------------------------------------------

// Terms is a set of protected terms ordered longest first.
type Terms []string

// NewTerms trims, deduplicates and orders terms by descending length so a
// longer term is masked before any term it contains.
func NewTerms(terms ...string) Terms {
	seen := make(map[string]bool, len(terms))
	var out Terms
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i]) > len(out[j])
	})
	return out
}

// IsProtected reports whether s, trimmed, is exactly one of the terms.
func (t Terms) IsProtected(s string) bool {
	s = strings.TrimSpace(s)
	for _, term := range t {
		if term == s {
			return true
		}
	}
	return false
}

// Mask replaces every occurrence of each present term with __TERM<n>__.
// Numbering counts only terms that actually occur. Text inside an existing
// mask token is never matched, so a term such as "PH" or "_" cannot break
// a placeholder token.
func (t Terms) Mask(s string) (string, Map) {
	var m Map
	for _, term := range t {
		tok := fmt.Sprintf("__TERM%d__", len(m))
		out, ok := replaceOutsideTokens(s, term, tok)
		if !ok {
			continue
		}
		s = out
		m = append(m, Entry{Token: tok, Original: term})
	}
	return s, m
}

// replaceOutsideTokens replaces old with repl in the stretches of s between
// mask tokens. It reports whether anything was replaced.
func replaceOutsideTokens(s, old, repl string) (string, bool) {
	if !strings.Contains(s, old) {
		return s, false
	}
	var b strings.Builder
	replaced := false
	emit := func(seg string) {
		if strings.Contains(seg, old) {
			seg = strings.ReplaceAll(seg, old, repl)
			replaced = true
		}
		b.WriteString(seg)
	}
	last := 0
	for _, span := range tokenRe.FindAllStringIndex(s, -1) {
		emit(s[last:span[0]])
		b.WriteString(s[span[0]:span[1]])
		last = span[1]
	}
	emit(s[last:])
	return b.String(), replaced
}

// ---------------------------------------------------------------------------
// Leaf masking
// ---------------------------------------------------------------------------

// Masked is a source string prepared for translation.
type Masked struct {
	Text         string
	Placeholders Map
	Terms        Map
}

// Apply masks placeholders first, then protected terms.
func Apply(s string, terms Terms) Masked {
	text, ph := MaskPlaceholders(s)
	text, tm := terms.Mask(text)
	return Masked{Text: text, Placeholders: ph, Terms: tm}
}

// Restore reverses Apply on a translated string: placeholders first, then
// terms.
func (m Masked) Restore(s string) string {
	return m.Terms.Unmask(m.Placeholders.Unmask(s))
}
