package translate

import (
	"sync"

	"github.com/sxxw-site/sitei18n/locale"
	"github.com/sxxw-site/sitei18n/merge"
)

// Session is the shared state of one language pass: the output
// dictionary, the translation cache and the progress counters. One mutex
// guards all of them; it is held only while a result is applied, never
// across a service call.
type Session struct {
	// Source and Target are language codes used for cache keys.
	Source string
	Target string
	// SourceName and TargetName appear in the prompt.
	SourceName string
	TargetName string

	// OutPath is rewritten atomically after every success. Empty disables
	// writes.
	OutPath string

	mu        sync.Mutex
	output    *locale.FlatDict
	cache     merge.Cache
	total     int
	completed int
	succeeded int
	writeErr  error
}

// NewSession binds a session to the merge plan's output skeleton.
func NewSession(output *locale.FlatDict, cache merge.Cache) *Session {
	return &Session{output: output, cache: cache}
}

// Output returns the session's dictionary. Callers must not modify it while
// a driver is running.
func (s *Session) Output() *locale.FlatDict {
	return s.output
}

// Counts returns (completed, succeeded, total).
func (s *Session) Counts() (completed, succeeded, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed, s.succeeded, s.total
}

func (s *Session) setTotal(n int) {
	s.mu.Lock()
	s.total = n
	s.mu.Unlock()
}

// cached looks up a translation of the exact source text.
func (s *Session) cached(text string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	return s.cache.Get(s.Source, s.Target, text)
}

// apply records a successful translation: it sets the value, updates the
// cache with the unmasked source text, rewrites the output file and bumps
// the counters, all under the lock. It returns the completed count.
func (s *Session) apply(u merge.Unit, text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.output.Set(u.Path, locale.String(text))
	if s.cache != nil {
		s.cache.Put(s.Source, s.Target, u.Source, text)
	}
	s.succeeded++
	s.writeLocked()
	s.completed++
	return s.completed
}

// fail counts a unit that could not be translated.
func (s *Session) fail() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed++
	return s.completed
}

// flush writes the output file under the lock.
func (s *Session) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeLocked()
	return s.writeErr
}

func (s *Session) writeLocked() {
	if s.OutPath == "" {
		return
	}
	if err := locale.WriteFile(s.OutPath, s.output); err != nil && s.writeErr == nil {
		s.writeErr = err
	}
}
