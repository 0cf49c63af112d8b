// Package langmeta provides language metadata (display names, emoji flags,
// writing direction and HTML lang tags) derived from BCP 47 codes.
package langmeta

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes language display metadata.
type Meta struct {
	// Code is the code as given.
	Code string
	// Tag is the canonical BCP 47 form, or the code when it does not parse.
	Tag string
	// Name is the English display name.
	Name string
	// Native is the name in the language itself.
	Native string
	// Flag is the emoji flag of the likely region.
	Flag string
	// RTL is true for right-to-left scripts.
	RTL bool
}

// rtlScripts lists ISO 15924 scripts written right to left.
var rtlScripts = map[string]bool{
	"Arab": true, "Hebr": true, "Thaa": true, "Syrc": true,
	"Nkoo": true, "Adlm": true, "Rohg": true, "Mand": true,
}

// canonicalize is the fallback for codes x/text cannot parse: lower-case
// language, upper-case second subtag.
func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

func parse(code string) (language.Tag, bool) {
	normalized := strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	if normalized == "" {
		return language.Und, false
	}
	tag, err := language.Parse(normalized)
	if err != nil {
		return language.Und, false
	}
	return tag, true
}

// Canonical returns the BCP 47 canonical form of code ("pt_br" -> "pt-BR",
// "zh-hans" -> "zh-Hans").
func Canonical(code string) string {
	if tag, ok := parse(code); ok {
		return tag.String()
	}
	return canonicalize(code)
}

// Resolve returns best-effort metadata for a language code.
func Resolve(code string) Meta {
	m := Meta{Code: code, Tag: canonicalize(code), Name: code}
	tag, ok := parse(code)
	if !ok {
		return m
	}
	m.Tag = tag.String()

	if name := display.English.Tags().Name(tag); name != "" {
		m.Name = name
	}
	m.Native = display.Self.Name(tag)
	if m.Native == "" {
		m.Native = m.Name
	}

	if script, _ := tag.Script(); rtlScripts[script.String()] {
		m.RTL = true
	}
	if region, conf := tag.Region(); conf != language.No {
		m.Flag = flag(region.String())
	}
	return m
}

// Name returns the English display name of code, or code itself.
func Name(code string) string {
	return Resolve(code).Name
}

// IsRTL reports whether code is written right to left.
func IsRTL(code string) bool {
	return Resolve(code).RTL
}

// HTMLLang returns the value for <html lang> of a site language code.
// Chinese variants use the forms browsers and search engines expect.
func HTMLLang(code string) string {
	c := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(code)), "_", "-")
	switch c {
	case "":
		return ""
	case "zh-hans", "zh-cn":
		return "zh-CN"
	case "zh-hant", "zh-tw":
		return "zh-Hant"
	case "zh-hk":
		return "zh-HK"
	}
	return Canonical(c)
}

// flag turns a two-letter region code into its regional indicator pair.
func flag(region string) string {
	if len(region) != 2 {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(region) {
		if r < 'A' || r > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + (r - 'A'))
	}
	return b.String()
}
