package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// LoadTerms returns the protected terms from the config file, the
// I18N_PROTECTED_TERMS variable and the terms file (a JSON array of
// strings), deduplicated in that order. A missing terms file is not an
// error.
func (c *Config) LoadTerms() ([]string, error) {
	terms := append([]string(nil), c.ProtectedTerms...)

	var fileErr error
	if c.ProtectedTermsFile != "" {
		fromFile, err := readTermsFile(c.ProtectedTermsFile)
		if err != nil {
			fileErr = err
		}
		terms = append(terms, fromFile...)
	}

	seen := make(map[string]bool, len(terms))
	var out []string
	for _, t := range terms {
		if strings.TrimSpace(t) == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, fileErr
}

func readTermsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: expected a JSON array of strings: %w", path, err)
	}
	var out []string
	for _, item := range raw {
		var s string
		switch v := item.(type) {
		case string:
			s = v
		case nil:
			continue
		default:
			s = fmt.Sprint(v)
		}
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
