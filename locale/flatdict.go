package locale

import (
	"github.com/sxxw-site/sitei18n/keypath"
)

// Pair is one flattened (path, leaf) entry.
type Pair struct {
	Path  string
	Value Value
}

// Flatten walks v in natural order (object members as stored, array
// elements by index) and emits one pair per leaf. Keys are joined with "."
// and indices rendered as "[i]"; keys that already contain separators are
// kept verbatim, so flattening an already-flat dictionary is the identity.
// Empty containers produce no pairs.
func Flatten(v Value) []Pair {
	var out []Pair
	flatten(&out, "", v)
	return out
}

func flatten(out *[]Pair, prefix string, v Value) {
	switch v.Kind {
	case KindObject:
		for _, f := range v.Fields {
			flatten(out, keypath.Join(prefix, f.Key), f.Value)
		}
	case KindArray:
		for i, it := range v.Items {
			flatten(out, keypath.JoinIndex(prefix, i), it)
		}
	default:
		*out = append(*out, Pair{Path: prefix, Value: v})
	}
}

// FlatDict is an ordered single-level mapping from key path to leaf value.
// The zero value is not usable; create one with NewFlatDict.
type FlatDict struct {
	keys   []string
	values map[string]Value
}

// NewFlatDict returns an empty dictionary.
func NewFlatDict() *FlatDict {
	return &FlatDict{values: make(map[string]Value)}
}

// FromPairs builds a dictionary in pair order. A repeated path keeps its
// first position and its last value.
func FromPairs(pairs []Pair) *FlatDict {
	d := NewFlatDict()
	for _, p := range pairs {
		d.Set(p.Path, p.Value)
	}
	return d
}

// Parse decodes JSON data (nested or flat) into a dictionary.
func Parse(data []byte) (*FlatDict, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return FromPairs(Flatten(v)), nil
}

// Len returns the number of entries.
func (d *FlatDict) Len() int { return len(d.keys) }

// Keys returns a copy of the paths in order.
func (d *FlatDict) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Get returns the value at path.
func (d *FlatDict) Get(path string) (Value, bool) {
	v, ok := d.values[path]
	return v, ok
}

// Has reports whether path is present.
func (d *FlatDict) Has(path string) bool {
	_, ok := d.values[path]
	return ok
}

// Set replaces the value at path in place, or appends path if it is new.
func (d *FlatDict) Set(path string, v Value) {
	if _, ok := d.values[path]; !ok {
		d.keys = append(d.keys, path)
	}
	d.values[path] = v
}

// Delete removes path, keeping the order of the remaining entries.
func (d *FlatDict) Delete(path string) bool {
	return d.DeleteFunc(func(p string) bool { return p == path }) > 0
}

// DeleteFunc removes every path for which match returns true and returns
// how many were removed.
func (d *FlatDict) DeleteFunc(match func(path string) bool) int {
	kept := d.keys[:0]
	removed := 0
	for _, k := range d.keys {
		if match(k) {
			delete(d.values, k)
			removed++
			continue
		}
		kept = append(kept, k)
	}
	d.keys = kept
	return removed
}

// Clone returns an independent copy.
func (d *FlatDict) Clone() *FlatDict {
	c := &FlatDict{
		keys:   d.Keys(),
		values: make(map[string]Value, len(d.values)),
	}
	for k, v := range d.values {
		c.values[k] = v
	}
	return c
}

// Pairs returns the entries in order.
func (d *FlatDict) Pairs() []Pair {
	out := make([]Pair, 0, len(d.keys))
	for _, k := range d.keys {
		out = append(out, Pair{Path: k, Value: d.values[k]})
	}
	return out
}

// SortKeys reorders entries with the path-aware comparator. It reports
// whether the order changed.
func (d *FlatDict) SortKeys() bool {
	sorted := d.Keys()
	keypath.Sort(sorted)
	changed := false
	for i := range sorted {
		if sorted[i] != d.keys[i] {
			changed = true
			break
		}
	}
	d.keys = sorted
	return changed
}

// Stats counts string leaves and how many of them hold non-blank text.
func (d *FlatDict) Stats() (total, filled int) {
	for _, k := range d.keys {
		v := d.values[k]
		if v.Kind != KindString {
			continue
		}
		total++
		if !v.IsBlank() {
			filled++
		}
	}
	return
}

// Value returns the dictionary as a flat JSON object value.
func (d *FlatDict) Value() Value {
	obj := Value{Kind: KindObject, Fields: make([]Field, 0, len(d.keys))}
	for _, k := range d.keys {
		obj.Fields = append(obj.Fields, Field{Key: k, Value: d.values[k]})
	}
	return obj
}

// Marshal renders the dictionary as a flat, indented JSON object.
func (d *FlatDict) Marshal() []byte {
	return Encode(d.Value())
}
