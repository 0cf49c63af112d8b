package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sxxw-site/sitei18n/locale"
)

// ErrNoPatterns is returned by Clean when the pattern list is empty.
var ErrNoPatterns = errors.New("no key patterns given")

// FileCount is a per-file result of a maintenance operation.
type FileCount struct {
	Name  string
	Count int
}

// CleanReport is the outcome of Clean.
type CleanReport struct {
	Files []FileCount
	Total int
}

// SortReport is the outcome of Sort.
type SortReport struct {
	Files   []string
	Changed []string
}

// localeFiles lists *.json in the locales dir by name, optionally without
// the base file.
func (p *Pipeline) localeFiles(includeBase bool) ([]string, error) {
	entries, err := os.ReadDir(p.cfg.LocalesDir)
	if err != nil {
		return nil, fmt.Errorf("reading locales dir: %w", err)
	}
	baseName := locale.FileName(p.cfg.BaseLang)

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if !includeBase && name == baseName {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Clean deletes the keys matching list (see locale.ParsePatterns) from
// every translation file. The base file is never touched, and files
// without a match are not rewritten.
func (p *Pipeline) Clean(list string) (CleanReport, error) {
	var rep CleanReport
	patterns := locale.ParsePatterns(list)
	if len(patterns) == 0 {
		return rep, ErrNoPatterns
	}

	names, err := p.localeFiles(false)
	if err != nil {
		return rep, err
	}
	for _, name := range names {
		path := filepath.Join(p.cfg.LocalesDir, name)
		d, err := locale.ReadFile(path)
		if err != nil {
			return rep, err
		}
		n := d.Prune(patterns)
		if n > 0 {
			if err := locale.WriteFile(path, d); err != nil {
				return rep, err
			}
			p.logf("%s: removed %d keys", name, n)
		} else {
			p.logf("%s: no match", name)
		}
		rep.Files = append(rep.Files, FileCount{Name: name, Count: n})
		rep.Total += n
	}
	return rep, nil
}

// Sort reorders the keys of every translation file (and the base file when
// includeBase is set) by key path and rewrites them flat.
func (p *Pipeline) Sort(includeBase bool) (SortReport, error) {
	var rep SortReport
	names, err := p.localeFiles(includeBase)
	if err != nil {
		return rep, err
	}
	for _, name := range names {
		path := filepath.Join(p.cfg.LocalesDir, name)
		d, err := locale.ReadFile(path)
		if err != nil {
			return rep, err
		}
		changed := d.SortKeys()
		if err := locale.WriteFile(path, d); err != nil {
			return rep, err
		}
		rep.Files = append(rep.Files, name)
		if changed {
			rep.Changed = append(rep.Changed, name)
		}
		p.logf("sorted %s", name)
	}
	return rep, nil
}

// LangStatus is the translation progress of one language against the base.
type LangStatus struct {
	Code   string
	Name   string
	Path   string
	Exists bool
	Base   bool
	// Total is the number of string leaves in the base file.
	Total  int
	Filled int
}

// Missing returns the number of base strings without a translation.
func (s LangStatus) Missing() int {
	return s.Total - s.Filled
}

// Percent returns the filled ratio in percent.
func (s LangStatus) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Filled) * 100 / float64(s.Total)
}

// Status reports, for every manifest language, how many base strings have a
// non-blank translation.
func (p *Pipeline) Status() ([]LangStatus, error) {
	if err := p.cfg.RequireBaseFile(); err != nil {
		return nil, err
	}
	base, err := locale.ReadFile(p.cfg.BaseFile())
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, pair := range base.Pairs() {
		if pair.Value.Kind == locale.KindString {
			paths = append(paths, pair.Path)
		}
	}

	baseNorm := locale.NormalizeCode(p.cfg.BaseLang)
	var out []LangStatus
	for _, l := range p.langs {
		st := LangStatus{
			Code:  l.Code,
			Name:  l.Name,
			Path:  p.cfg.LocaleFile(l.Code),
			Base:  l.Norm() == baseNorm,
			Total: len(paths),
		}
		if locale.Exists(st.Path) {
			st.Exists = true
			d, err := locale.ReadFile(st.Path)
			if err != nil {
				return nil, err
			}
			for _, path := range paths {
				if v, ok := d.Get(path); ok && v.Kind == locale.KindString && !v.IsBlank() {
					st.Filled++
				}
			}
		}
		out = append(out, st)
	}
	return out, nil
}
