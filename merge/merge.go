// Package merge reconciles a base dictionary against an existing,
// possibly stale translation of it and decides which strings still need a
// translation.
//
// The result is a Plan: the output skeleton (in its final key order) plus
// the queued work units. Strings that are protected terms or already in
// the translation cache are resolved here and never reach a service.
package merge

import (
	"strings"

	"github.com/sxxw-site/sitei18n/locale"
	"github.com/sxxw-site/sitei18n/mask"
)

// Mode selects how much of the base is retranslated.
type Mode int

const (
	// Incremental keeps existing entries and fills in missing or blank
	// strings. New paths are appended after the existing ones.
	Incremental Mode = iota
	// Full rebuilds the output in base order and retranslates every string.
	Full
)

func (m Mode) String() string {
	if m == Full {
		return "full"
	}
	return "incremental"
}

// ParseMode accepts "incremental" and "full" (case-insensitive).
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "incremental", "inc":
		return Incremental, true
	case "full":
		return Full, true
	}
	return Incremental, false
}

// Cache is the part of the translation cache the merge consults.
type Cache interface {
	Get(src, tgt, text string) (string, bool)
	Put(src, tgt, text, translation string)
}

// Input describes one language pass.
type Input struct {
	Base     *locale.FlatDict
	Existing *locale.FlatDict // nil when the target file does not exist
	Mode     Mode

	// Source and Target are the language codes used for cache keys.
	Source string
	Target string

	Terms mask.Terms
	Cache Cache // may be nil
}

// Unit is one string queued for translation.
type Unit struct {
	Seq    int // 1-based, for progress display only
	Path   string
	Source string
	Masked mask.Masked
}

// Plan is the outcome of a merge.
type Plan struct {
	Output        *locale.FlatDict
	Units         []Unit
	ProtectedHits int
	CacheHits     int
	Skipped       int
}

// Build computes the output skeleton and the work queue.
func Build(in Input) *Plan {
	base := in.Base.Pairs()
	existing := in.Existing
	if existing == nil || in.Mode == Full {
		existing = locale.NewFlatDict()
	}

	plan := &Plan{Output: skeleton(base, existing, in.Mode)}

	for _, p := range base {
		text, ok := p.Value.Text()
		if !ok {
			continue
		}

		if in.Mode == Incremental {
			if cur, ok := existing.Get(p.Path); ok && cur.Kind == locale.KindString && !cur.IsBlank() {
				plan.Skipped++
				continue
			}
		}

		if in.Terms.IsProtected(text) {
			plan.Output.Set(p.Path, locale.String(text))
			if in.Cache != nil {
				in.Cache.Put(in.Source, in.Target, text, text)
			}
			plan.ProtectedHits++
			continue
		}

		if in.Cache != nil {
			if hit, ok := in.Cache.Get(in.Source, in.Target, text); ok {
				plan.Output.Set(p.Path, locale.String(hit))
				plan.CacheHits++
				continue
			}
		}

		plan.Units = append(plan.Units, Unit{
			Seq:    len(plan.Units) + 1,
			Path:   p.Path,
			Source: text,
			Masked: mask.Apply(text, in.Terms),
		})
	}

	return plan
}

// skeleton lays out the output key order before any translation happens,
// so later writes replace values in place and never reorder the file.
func skeleton(base []locale.Pair, existing *locale.FlatDict, mode Mode) *locale.FlatDict {
	if mode == Full {
		out := locale.NewFlatDict()
		for _, p := range base {
			if p.Value.Kind == locale.KindString {
				out.Set(p.Path, locale.String(""))
			} else {
				out.Set(p.Path, p.Value)
			}
		}
		return out
	}

	out := existing.Clone()
	// Missing non-string leaves first, then placeholders for missing strings.
	for _, p := range base {
		if p.Value.Kind != locale.KindString && !out.Has(p.Path) {
			out.Set(p.Path, p.Value)
		}
	}
	for _, p := range base {
		if p.Value.Kind == locale.KindString && !out.Has(p.Path) {
			out.Set(p.Path, locale.String(""))
		}
	}
	return out
}
