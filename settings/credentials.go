// Package settings keeps per-user sitei18n credentials outside any project.
//
// Keys live in the XDG data directory:
//
//	$XDG_DATA_HOME/sitei18n/auth.json  (default: ~/.local/share/sitei18n/)
//
// The file is a JSON object keyed by provider ID and is written with 0600
// permissions.
//
// API key lookup order:
//  1. --api-key flag
//  2. SITEI18N_API_KEY, then the provider's own variables (OPENAI_API_KEY, ...)
//  3. the project's api_key_file
//  4. this store
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	dataDirName = "sitei18n"
	fileName    = "auth.json"
)

// EnvAPIKey overrides every provider-specific variable.
const EnvAPIKey = "SITEI18N_API_KEY"

// Entry is the credential saved for one provider.
type Entry struct {
	Key     string    `json:"key"`
	BaseURL string    `json:"baseUrl,omitempty"`
	Model   string    `json:"model,omitempty"`
	Saved   time.Time `json:"saved,omitempty"`
}

// Store is the on-disk credential file.
type Store struct {
	path    string
	entries map[string]Entry
}

// DataDir returns the sitei18n data directory, honoring $XDG_DATA_HOME.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

// DefaultPath returns the path of the user's auth.json.
func DefaultPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Open loads the user's store. A missing file yields an empty store.
func Open() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return OpenFile(path)
}

// OpenFile loads the store at path. A missing file yields an empty store.
func OpenFile(path string) (*Store, error) {
	s := &Store{path: path, entries: make(map[string]Entry)}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if s.entries == nil {
		s.entries = make(map[string]Entry)
	}
	return s, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Get returns the entry for a provider.
func (s *Store) Get(provider string) (Entry, bool) {
	e, ok := s.entries[provider]
	return e, ok
}

// APIKey returns the stored key for a provider, or "".
func (s *Store) APIKey(provider string) string {
	if s == nil {
		return ""
	}
	return s.entries[provider].Key
}

// Set saves an entry for a provider and writes the file.
func (s *Store) Set(provider string, e Entry) error {
	if provider == "" {
		return fmt.Errorf("provider not set")
	}
	if strings.TrimSpace(e.Key) == "" {
		return fmt.Errorf("empty API key for %s", provider)
	}
	e.Key = strings.TrimSpace(e.Key)
	if e.Saved.IsZero() {
		e.Saved = time.Now().UTC().Truncate(time.Second)
	}
	s.entries[provider] = e
	return s.save()
}

// Remove deletes a provider's entry. Removing an unknown provider is a
// no-op.
func (s *Store) Remove(provider string) error {
	if _, ok := s.entries[provider]; !ok {
		return nil
	}
	delete(s.entries, provider)
	return s.save()
}

// Providers returns the providers with saved entries, sorted.
func (s *Store) Providers() []string {
	out := make([]string, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Key resolution
// ---------------------------------------------------------------------------

// Source tells where a resolved key came from.
type Source string

const (
	SourceNone  Source = ""
	SourceFlag  Source = "flag"
	SourceEnv   Source = "env"
	SourceFile  Source = "file"
	SourceStore Source = "store"
)

// KeyQuery describes one API key lookup.
type KeyQuery struct {
	Provider string
	Flag     string
	EnvKeys  []string
	FileKey  string
}

// ResolveAPIKey returns the first non-empty key in lookup order. The store
// may be nil.
func ResolveAPIKey(q KeyQuery, s *Store) (string, Source) {
	if k := strings.TrimSpace(q.Flag); k != "" {
		return k, SourceFlag
	}
	for _, env := range append([]string{EnvAPIKey}, q.EnvKeys...) {
		if k := strings.TrimSpace(os.Getenv(env)); k != "" {
			return k, SourceEnv
		}
	}
	if k := strings.TrimSpace(q.FileKey); k != "" {
		return k, SourceFile
	}
	if k := s.APIKey(q.Provider); k != "" {
		return k, SourceStore
	}
	return "", SourceNone
}

// MaskKey returns a key shortened for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
