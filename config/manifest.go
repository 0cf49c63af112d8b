package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/sxxw-site/sitei18n/langmeta"
	"github.com/sxxw-site/sitei18n/locale"
)

// Sentinel configuration errors.
var (
	ErrManifestNotFound = errors.New("language manifest not found")
	ErrBaseFileNotFound = errors.New("base locale file not found")
	ErrNoLanguages      = errors.New("language manifest has no usable entries")
)

// LangSpec is one entry of the language manifest.
type LangSpec struct {
	// Code is the code exactly as written in the manifest.
	Code string
	// Name is the display name (defaults to Code).
	Name      string
	Fallbacks []string
	RTL       bool
	// HTMLLang is the <html lang> value.
	HTMLLang string
}

// Norm returns the normalized code used for file and directory names.
func (l LangSpec) Norm() string {
	return locale.NormalizeCode(l.Code)
}

// PromptName is the target description sent to the translation service.
func (l LangSpec) PromptName() string {
	return fmt.Sprintf("%s [%s]", l.Name, l.Code)
}

type manifestEntry struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Fallbacks []string `json:"fallbacks"`
	RTL       bool     `json:"rtl"`
	HTMLLang  string   `json:"htmlLang"`
	HTMLLang2 string   `json:"html_lang"`
}

// ParseManifest decodes a manifest: a JSON array of
// {code, name?, fallbacks?, rtl?, htmlLang?|html_lang?}. Entries without a
// code are skipped.
func ParseManifest(data []byte) ([]LangSpec, error) {
	var raw []manifestEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	var out []LangSpec
	for _, e := range raw {
		code := strings.TrimSpace(e.Code)
		if code == "" {
			continue
		}
		spec := LangSpec{
			Code:     code,
			Name:     strings.TrimSpace(e.Name),
			RTL:      e.RTL,
			HTMLLang: strings.TrimSpace(e.HTMLLang),
		}
		if spec.Name == "" {
			spec.Name = code
		}
		if spec.HTMLLang == "" {
			spec.HTMLLang = strings.TrimSpace(e.HTMLLang2)
		}
		if spec.HTMLLang == "" {
			spec.HTMLLang = langmeta.HTMLLang(code)
		}
		for _, fb := range e.Fallbacks {
			if fb = strings.TrimSpace(fb); fb != "" {
				spec.Fallbacks = append(spec.Fallbacks, fb)
			}
		}
		out = append(out, spec)
	}
	return out, nil
}

// LoadManifest reads the manifest at path.
func LoadManifest(path string) ([]LangSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	specs, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return specs, nil
}

// Languages loads the configured manifest and requires at least one entry.
func (c *Config) Languages() ([]LangSpec, error) {
	specs, err := LoadManifest(c.LanguagesFile)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoLanguages, c.LanguagesFile)
	}
	return specs, nil
}

// FindLang returns the manifest entry for code, compared normalized.
func FindLang(specs []LangSpec, code string) (LangSpec, bool) {
	norm := locale.NormalizeCode(code)
	for _, s := range specs {
		if s.Norm() == norm {
			return s, true
		}
	}
	return LangSpec{}, false
}

// RequireBaseFile returns ErrBaseFileNotFound when the base dictionary is
// missing.
func (c *Config) RequireBaseFile() error {
	if !locale.Exists(c.BaseFile()) {
		return fmt.Errorf("%w: %s", ErrBaseFileNotFound, c.BaseFile())
	}
	return nil
}
