// Package pipeline orchestrates translation of a site's locale files.
//
// Translation runs in two hops. The first hop translates the base language
// into a short list of languages (by default English and the other CJK
// languages). The second hop translates the pivot language (English) into
// every other language of the manifest, reusing existing files where a
// verbatim copy is good enough:
//
//   - regional variants of the pivot (en-GB, en-AU, ...) get the pivot file;
//   - a language whose first existing fallback has a file gets that file.
//
// Chinese variants of the source are converted between scripts locally and
// never reach the translation service.
//
// One translation cache is shared by every language of a hop and saved
// after each language.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sxxw-site/sitei18n/config"
	"github.com/sxxw-site/sitei18n/langmeta"
	"github.com/sxxw-site/sitei18n/locale"
	"github.com/sxxw-site/sitei18n/mask"
	"github.com/sxxw-site/sitei18n/merge"
	"github.com/sxxw-site/sitei18n/transcache"
	"github.com/sxxw-site/sitei18n/translate"
)

// ErrPivotMissing is returned by the second hop when the pivot language
// file does not exist yet.
var ErrPivotMissing = errors.New("pivot locale file not found")

// Hop selects the pipeline stage.
type Hop int

const (
	FirstHop Hop = iota + 1
	SecondHop
)

func (h Hop) String() string {
	switch h {
	case FirstHop:
		return "first hop"
	case SecondHop:
		return "second hop"
	}
	return fmt.Sprintf("hop(%d)", int(h))
}

// Action tells what happened to one target language.
type Action string

const (
	ActionTranslated     Action = "translated"
	ActionCopiedPivot    Action = "copied pivot"
	ActionCopiedFallback Action = "copied fallback"
	ActionPlanned        Action = "planned"
)

// Options controls one hop.
type Options struct {
	Mode merge.Mode
	// Langs restricts the hop to these codes. Empty means every target.
	Langs []string
	// DryRun computes the work queue without calling the service or
	// writing files.
	DryRun bool
}

// Report describes the outcome for one target language.
type Report struct {
	Code   string
	Path   string
	Action Action
	// From is the source language code, or the copied file's code.
	From string

	Queued    int
	Protected int
	Cached    int
	Skipped   int
	Summary   translate.Summary
}

// Pipeline binds the project configuration to a translator factory.
type Pipeline struct {
	cfg     *config.Config
	langs   []config.LangSpec
	terms   mask.Terms
	factory translate.Factory
	driver  translate.Options

	// Log receives progress messages. May be nil.
	Log func(format string, args ...any)
}

// New creates a pipeline. factory may be nil for dry runs and maintenance
// operations.
func New(cfg *config.Config, langs []config.LangSpec, terms mask.Terms, factory translate.Factory, driver translate.Options) *Pipeline {
	return &Pipeline{cfg: cfg, langs: langs, terms: terms, factory: factory, driver: driver}
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.Log != nil {
		p.Log(format, args...)
	}
}

// Targets returns the languages a hop writes, in order.
func (p *Pipeline) Targets(h Hop) []config.LangSpec {
	base := locale.NormalizeCode(p.cfg.BaseLang)
	switch h {
	case FirstHop:
		var out []config.LangSpec
		seen := map[string]bool{base: true}
		for _, code := range p.cfg.FirstHop {
			norm := locale.NormalizeCode(code)
			if seen[norm] {
				continue
			}
			seen[norm] = true
			out = append(out, p.spec(code))
		}
		return out

	case SecondHop:
		excluded := map[string]bool{
			base:                                 true,
			locale.NormalizeCode(p.cfg.PivotLang): true,
		}
		for _, code := range p.cfg.FirstHop {
			excluded[locale.NormalizeCode(code)] = true
		}
		var out []config.LangSpec
		for _, l := range p.langs {
			if excluded[l.Norm()] {
				continue
			}
			excluded[l.Norm()] = true
			out = append(out, l)
		}
		return out
	}
	return nil
}

// spec returns the manifest entry for code, or a synthesized one.
func (p *Pipeline) spec(code string) config.LangSpec {
	if l, ok := config.FindLang(p.langs, code); ok {
		return l
	}
	return config.LangSpec{Code: code, Name: langmeta.Name(code), HTMLLang: langmeta.HTMLLang(code)}
}

// sourceName is the prompt name of a source language.
func (p *Pipeline) sourceName(code string) string {
	if locale.NormalizeCode(code) == locale.NormalizeCode(p.cfg.BaseLang) {
		return p.cfg.BaseLangName
	}
	if l, ok := config.FindLang(p.langs, code); ok && l.Name != l.Code {
		return l.Name
	}
	return langmeta.Name(code)
}

// selected filters targets by opts.Langs and warns about unknown codes.
func (p *Pipeline) selected(h Hop, opts Options) []config.LangSpec {
	targets := p.Targets(h)
	if len(opts.Langs) == 0 {
		return targets
	}
	want := make(map[string]bool, len(opts.Langs))
	for _, c := range opts.Langs {
		want[locale.NormalizeCode(c)] = true
	}
	var out []config.LangSpec
	for _, t := range targets {
		if want[t.Norm()] {
			out = append(out, t)
			delete(want, t.Norm())
		}
	}
	for _, c := range opts.Langs {
		if want[locale.NormalizeCode(c)] {
			p.logf("%s: %s is not a target, skipped", h, c)
		}
	}
	return out
}

// Run executes one hop.
func (p *Pipeline) Run(ctx context.Context, h Hop, opts Options) ([]Report, error) {
	switch h {
	case FirstHop:
		return p.runFirstHop(ctx, opts)
	case SecondHop:
		return p.runSecondHop(ctx, opts)
	}
	return nil, fmt.Errorf("unknown hop %d", int(h))
}

func (p *Pipeline) runFirstHop(ctx context.Context, opts Options) ([]Report, error) {
	if err := p.cfg.RequireBaseFile(); err != nil {
		return nil, err
	}
	base, err := locale.ReadFile(p.cfg.BaseFile())
	if err != nil {
		return nil, err
	}
	cache := p.loadCache()

	var reports []Report
	for _, target := range p.selected(FirstHop, opts) {
		rep, err := p.translate(ctx, cache, base, p.cfg.BaseLang, target, opts)
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}
	return reports, p.checkpoint(cache, opts)
}

func (p *Pipeline) runSecondHop(ctx context.Context, opts Options) ([]Report, error) {
	pivotCode := p.cfg.PivotLang
	pivotPath := p.cfg.LocaleFile(pivotCode)
	if !locale.Exists(pivotPath) {
		return nil, fmt.Errorf("%w: %s (run the first hop to create it)", ErrPivotMissing, pivotPath)
	}
	pivot, err := locale.ReadFile(pivotPath)
	if err != nil {
		return nil, err
	}
	cache := p.loadCache()

	pivotNorm := locale.NormalizeCode(pivotCode)
	var reports []Report
	for _, target := range p.selected(SecondHop, opts) {
		outPath := p.cfg.LocaleFile(target.Code)

		if strings.HasPrefix(target.Norm(), pivotNorm+"-") {
			rep := Report{Code: target.Code, Path: outPath, Action: ActionCopiedPivot, From: pivotCode}
			if err := p.copyDict(pivot, outPath, opts); err != nil {
				return reports, err
			}
			p.logf("[%s] reused %s: %s", target.Code, pivotCode, outPath)
			reports = append(reports, rep)
			continue
		}

		if fb, dict, ok := p.firstFallback(target); ok {
			rep := Report{Code: target.Code, Path: outPath, Action: ActionCopiedFallback, From: fb}
			if err := p.copyDict(dict, outPath, opts); err != nil {
				return reports, err
			}
			p.logf("[%s] reused fallback %s: %s", target.Code, fb, outPath)
			reports = append(reports, rep)
			continue
		}

		rep, err := p.translate(ctx, cache, pivot, pivotCode, target, opts)
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}
	return reports, p.checkpoint(cache, opts)
}

// firstFallback returns the first fallback of target whose file exists.
func (p *Pipeline) firstFallback(target config.LangSpec) (string, *locale.FlatDict, bool) {
	for _, fb := range target.Fallbacks {
		if locale.NormalizeCode(fb) == target.Norm() {
			continue
		}
		path := p.cfg.LocaleFile(fb)
		if !locale.Exists(path) {
			continue
		}
		d, err := locale.ReadFile(path)
		if err != nil {
			p.logf("[%s] fallback %s unreadable: %v", target.Code, fb, err)
			continue
		}
		return fb, d, true
	}
	return "", nil, false
}

func (p *Pipeline) copyDict(d *locale.FlatDict, path string, opts Options) error {
	if opts.DryRun {
		return nil
	}
	return locale.WriteFile(path, d)
}

// translate runs the merge and the driver for one target language. A pair
// of Chinese variants is converted locally instead.
func (p *Pipeline) translate(ctx context.Context, cache *transcache.Cache, src *locale.FlatDict, srcCode string, target config.LangSpec, opts Options) (Report, error) {
	if conversion, ok := chineseConversion(srcCode, target.Code); ok {
		return p.convertChinese(src, srcCode, conversion, target, opts)
	}
	outPath := p.cfg.LocaleFile(target.Code)
	rep := Report{Code: target.Code, Path: outPath, Action: ActionTranslated, From: srcCode}

	var existing *locale.FlatDict
	if opts.Mode == merge.Incremental && locale.Exists(outPath) {
		d, err := locale.ReadFile(outPath)
		if err != nil {
			return rep, err
		}
		existing = d
	}

	srcNorm, tgtNorm := locale.NormalizeCode(srcCode), target.Norm()
	plan := merge.Build(merge.Input{
		Base:     src,
		Existing: existing,
		Mode:     opts.Mode,
		Source:   srcNorm,
		Target:   tgtNorm,
		Terms:    p.terms,
		Cache:    cache,
	})
	rep.Queued = len(plan.Units)
	rep.Protected = plan.ProtectedHits
	rep.Cached = plan.CacheHits
	rep.Skipped = plan.Skipped

	if opts.DryRun {
		rep.Action = ActionPlanned
		rep.Summary = translate.Summary{Language: target.Code, Total: len(plan.Units)}
		return rep, nil
	}
	if p.factory == nil && len(plan.Units) > 0 {
		return rep, errors.New("no translator configured")
	}

	s := translate.NewSession(plan.Output, cache)
	s.Source, s.Target = srcNorm, tgtNorm
	s.SourceName = p.sourceName(srcCode)
	s.TargetName = target.PromptName()
	s.OutPath = outPath

	sum, err := translate.NewDriver(p.factory, p.driver).Run(ctx, s, plan.Units)
	sum.Language = target.Code
	rep.Summary = sum
	if err != nil {
		return rep, fmt.Errorf("[%s] writing %s: %w", target.Code, outPath, err)
	}
	p.logf("[%s] %s mode: %s", target.Code, opts.Mode, outPath)

	if err := cache.Save(); err != nil {
		return rep, fmt.Errorf("saving cache: %w", err)
	}
	return rep, nil
}

// loadCache reads the translation cache. An unreadable cache only costs
// extra service calls, so the hop continues with an empty one.
func (p *Pipeline) loadCache() *transcache.Cache {
	cache, err := transcache.Load(p.cfg.CacheFile)
	if err != nil {
		p.logf("Cache unreadable, starting empty: %v", err)
		return transcache.New(p.cfg.CacheFile)
	}
	return cache
}

func (p *Pipeline) checkpoint(cache *transcache.Cache, opts Options) error {
	if opts.DryRun {
		return nil
	}
	if err := cache.Save(); err != nil {
		return fmt.Errorf("saving cache: %w", err)
	}
	p.logf("cache saved: %s (%d entries)", cache.Path(), cache.Len())
	return nil
}
