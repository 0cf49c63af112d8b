// Package transcache implements the translation cache: a durable map from
// (source language, target language, exact source text) to a translation.
//
// The cache only grows. It is shared by every target language of a run and
// is written to disk at checkpoints (after each language pass), never after
// individual strings. JSON files hold a flat object of composite keys;
// files ending in .yaml or .yml use a versioned YAML document.
package transcache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sxxw-site/sitei18n/locale"
)

// DefaultPath is the cache location relative to the project root.
const DefaultPath = ".cache/i18n_translate_cache.json"

// Version is the YAML document format version.
const Version = 1

// sep joins the parts of a composite key.
const sep = "|||"

// ErrUnreadable wraps a cache file that exists but cannot be read or
// parsed. Callers may start over with an empty cache.
var ErrUnreadable = errors.New("cache file unreadable")

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
	dirty   bool
}

type yamlDoc struct {
	Version int               `yaml:"version"`
	Entries map[string]string `yaml:"entries"`
}

// Key builds the composite cache key.
func Key(src, tgt, text string) string {
	return src + sep + tgt + sep + text
}

// SplitKey reverses Key. The text part may itself contain the separator.
func SplitKey(key string) (src, tgt, text string, ok bool) {
	parts := strings.SplitN(key, sep, 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// New returns an empty cache bound to path.
func New(path string) *Cache {
	return &Cache{path: path, entries: make(map[string]string)}
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads the cache file at path. A missing file yields an empty cache;
// any other failure wraps ErrUnreadable.
func Load(path string) (*Cache, error) {
	c := New(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return c, nil
	}

	if isYAML(path) {
		var doc yamlDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %w", ErrUnreadable, path, err)
		}
		if doc.Entries != nil {
			c.entries = doc.Entries
		}
		return c, nil
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrUnreadable, path, err)
	}
	if c.entries == nil {
		c.entries = make(map[string]string)
	}
	return c, nil
}

// Save writes the cache atomically when it changed since the last load or
// save, or when the file does not exist yet. Keys are written in sorted
// order.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" {
		return fmt.Errorf("cache file path not set")
	}
	if !c.dirty && locale.Exists(c.path) {
		return nil
	}

	var data []byte
	if isYAML(c.path) {
		out, err := yaml.Marshal(yamlDoc{Version: Version, Entries: c.entries})
		if err != nil {
			return fmt.Errorf("marshaling cache: %w", err)
		}
		data = out
	} else {
		data = marshalJSON(c.entries)
	}

	if err := locale.WriteFileAtomic(c.path, data); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func marshalJSON(entries map[string]string) []byte {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	obj := locale.Value{Kind: locale.KindObject}
	for _, k := range keys {
		obj.Fields = append(obj.Fields, locale.Field{Key: k, Value: locale.String(entries[k])})
	}
	return locale.Encode(obj)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Path returns the cache file path.
func (c *Cache) Path() string {
	return c.path
}

// ---------------------------------------------------------------------------
// Entry operations
// ---------------------------------------------------------------------------

// Get returns the cached translation of text.
func (c *Cache) Get(src, tgt, text string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[Key(src, tgt, text)]
	return v, ok
}

// Put records a translation. Existing entries are overwritten.
func (c *Cache) Put(src, tgt, text, translation string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := Key(src, tgt, text)
	if old, ok := c.entries[key]; ok && old == translation {
		return
	}
	c.entries[key] = translation
	c.dirty = true
}

// Dirty reports whether entries changed since the last Load or Save.
func (c *Cache) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Pairs returns entry counts per "src->tgt" language pair.
func (c *Cache) Pairs() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int)
	for k := range c.entries {
		src, tgt, _, ok := SplitKey(k)
		if !ok {
			continue
		}
		out[src+"->"+tgt]++
	}
	return out
}

// Summary returns a human-readable summary string.
func (c *Cache) Summary() string {
	pairs := c.Pairs()
	if len(pairs) == 0 {
		return "empty"
	}
	names := make([]string, 0, len(pairs))
	for p := range pairs {
		names = append(names, p)
	}
	sort.Strings(names)

	var parts []string
	for _, p := range names {
		parts = append(parts, fmt.Sprintf("%s: %d", p, pairs[p]))
	}
	return fmt.Sprintf("%d entries (%s)", c.Len(), strings.Join(parts, ", "))
}
