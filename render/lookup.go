package render

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sxxw-site/sitei18n/locale"
)

// Lookup resolves translation keys over ordered layers: the page language
// first, then its fallbacks, then the base language.
type Lookup struct {
	layers []locale.Value
}

// NewLookup returns a lookup over the given layers, highest priority first.
func NewLookup(layers ...locale.Value) *Lookup {
	return &Lookup{layers: layers}
}

// LoadLookup reads the layers of one language from dir. Missing files are
// skipped; the base file is added last unless code is the base.
func LoadLookup(dir, code string, fallbacks []string, base string) (*Lookup, error) {
	codes := append([]string{code}, fallbacks...)
	if locale.NormalizeCode(code) != locale.NormalizeCode(base) {
		codes = append(codes, base)
	}

	lk := &Lookup{}
	for _, c := range codes {
		path := filepath.Join(dir, locale.FileName(c))
		if !locale.Exists(path) {
			continue
		}
		v, err := locale.ReadValue(path)
		if err != nil {
			return nil, err
		}
		lk.layers = append(lk.layers, v)
	}
	return lk, nil
}

// Layers returns the number of loaded layers.
func (l *Lookup) Layers() int {
	return len(l.layers)
}

// Get returns the first non-null value found for key.
func (l *Lookup) Get(key string) (locale.Value, bool) {
	for _, layer := range l.layers {
		if v, ok := resolve(layer, key); ok && v.Kind != locale.KindNull {
			return v, true
		}
	}
	return locale.Value{}, false
}

// Text returns the value for key as text. Only scalars qualify.
func (l *Lookup) Text(key string) (string, bool) {
	v, ok := l.Get(key)
	if !ok || v.IsContainer() {
		return "", false
	}
	return v.Scalar(), true
}

// resolve finds key in one layer: an exact member first (flat files), then
// a dotted walk through objects and arrays (nested files).
func resolve(root locale.Value, key string) (locale.Value, bool) {
	if root.Kind == locale.KindObject {
		if v, ok := root.Member(key); ok {
			return v, true
		}
	}

	cur := root
	for _, part := range strings.Split(key, ".") {
		switch cur.Kind {
		case locale.KindObject:
			v, ok := cur.Member(part)
			if !ok {
				return locale.Value{}, false
			}
			cur = v
		case locale.KindArray:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(cur.Items) || part != strconv.Itoa(i) {
				return locale.Value{}, false
			}
			cur = cur.Items[i]
		default:
			return locale.Value{}, false
		}
	}
	return cur, true
}
