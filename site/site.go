// Package site builds the localized static site: every HTML template under
// the source directory is rendered once per manifest language into
// docs/<code>/, and the base language is also written at the docs root.
package site

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sxxw-site/sitei18n/config"
	"github.com/sxxw-site/sitei18n/locale"
	"github.com/sxxw-site/sitei18n/render"
)

// Sentinel build errors.
var (
	ErrLocalesDirNotFound = errors.New("locales directory not found")
	ErrSrcDirNotFound     = errors.New("source directory not found")
	ErrNoTemplates        = errors.New("no html templates found")
)

// skipDirs are top-level source directories that hold no templates.
var skipDirs = map[string]bool{"locales": true, "assets": true}

// Builder renders the site described by a config.
type Builder struct {
	cfg      *config.Config
	renderer *render.Renderer

	// Log receives progress messages. May be nil.
	Log func(format string, args ...any)
}

// NewBuilder returns a builder for cfg.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg, renderer: render.New()}
}

func (b *Builder) logf(format string, args ...any) {
	if b.Log != nil {
		b.Log(format, args...)
	}
}

// Result summarizes a build.
type Result struct {
	Templates []string
	Languages int
	Pages     int
	Assets    int
}

// output is one directory a language is written to.
type output struct {
	dir   string
	depth int // directories between dir and the docs root
}

// Build renders every template for every manifest language. All
// configuration problems are reported before anything is written.
func (b *Builder) Build() (Result, error) {
	var res Result

	langs, err := b.cfg.Languages()
	if err != nil {
		return res, err
	}
	if !isDir(b.cfg.LocalesDir) {
		return res, fmt.Errorf("%w: %s", ErrLocalesDirNotFound, b.cfg.LocalesDir)
	}
	if !isDir(b.cfg.SrcDir) {
		return res, fmt.Errorf("%w: %s", ErrSrcDirNotFound, b.cfg.SrcDir)
	}
	all, err := Templates(b.cfg.SrcDir)
	if err != nil {
		return res, err
	}
	var templates []string
	for _, rel := range all {
		if !within(filepath.Join(b.cfg.SrcDir, rel), b.cfg.DocsDir) {
			templates = append(templates, rel)
		}
	}
	if len(templates) == 0 {
		return res, fmt.Errorf("%w under %s", ErrNoTemplates, b.cfg.SrcDir)
	}
	res.Templates = templates

	sources := make(map[string][]byte, len(templates))
	for _, rel := range templates {
		data, err := os.ReadFile(filepath.Join(b.cfg.SrcDir, rel))
		if err != nil {
			return res, err
		}
		sources[rel] = data
	}

	n, err := CopyDir(filepath.Join(b.cfg.SrcDir, "assets"), filepath.Join(b.cfg.DocsDir, "assets"))
	if err != nil {
		return res, fmt.Errorf("copying assets: %w", err)
	}
	res.Assets = n

	baseNorm := locale.NormalizeCode(b.cfg.BaseLang)
	ch := b.cfg.Build.CriticalHead
	for _, lang := range langs {
		lk, err := render.LoadLookup(b.cfg.LocalesDir, lang.Code, lang.Fallbacks, b.cfg.BaseLang)
		if err != nil {
			return res, err
		}

		opts := render.Options{
			HTMLLang:       lang.HTMLLang,
			RTL:            lang.RTL,
			Vars:           b.cfg.VarsFor(lang.Code),
			ExemptLiterals: b.cfg.Build.ExemptLiterals,
			Sanitize:       b.cfg.Build.SanitizeHTML,
		}
		if ch.Enabled {
			opts.CriticalHead = &render.CriticalHead{DarkBG: ch.DarkBG, LightBG: ch.LightBG}
		}

		outputs := []output{{dir: filepath.Join(b.cfg.DocsDir, lang.Norm()), depth: 1}}
		if b.cfg.Build.BaseAlsoAtRoot && lang.Norm() == baseNorm {
			outputs = append(outputs, output{dir: b.cfg.DocsDir})
		}

		b.logf("build %s -> %s (lang=%s, rtl=%t, layers=%d)", lang.Code, lang.Norm(), lang.HTMLLang, lang.RTL, lk.Layers())
		for _, out := range outputs {
			for _, rel := range templates {
				opts.Depth = out.depth + PageDepth(rel)
				var buf bytes.Buffer
				if err := b.renderer.Render(&buf, bytes.NewReader(sources[rel]), lk, opts); err != nil {
					return res, fmt.Errorf("%s [%s]: %w", rel, lang.Code, err)
				}
				if err := locale.WriteFileAtomic(filepath.Join(out.dir, rel), buf.Bytes()); err != nil {
					return res, err
				}
				res.Pages++
			}
		}
		res.Languages++
	}
	return res, nil
}

// Templates lists the *.html files under src, relative and sorted, except
// those in the top-level locales/ and assets/ directories.
func Templates(src string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if filepath.Dir(rel) == "." && skipDirs[rel] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".html") {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// PageDepth returns how many directories a template sits below the source
// root ("index.html" is 0, "pages/a/b.html" is 2).
func PageDepth(rel string) int {
	dir := filepath.ToSlash(filepath.Dir(rel))
	if dir == "." || dir == "" {
		return 0
	}
	return strings.Count(dir, "/") + 1
}

// CopyDir copies the tree at src into dst, overwriting files. A missing src
// copies nothing.
func CopyDir(src, dst string) (int, error) {
	if !isDir(src) {
		return 0, nil
	}
	n := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := copyFile(path, target); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
