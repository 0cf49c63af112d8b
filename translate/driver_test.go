package translate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sxxw-site/sitei18n/locale"
	"github.com/sxxw-site/sitei18n/mask"
	"github.com/sxxw-site/sitei18n/merge"
	"github.com/sxxw-site/sitei18n/transcache"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func noSleep(context.Context, time.Duration) error { return nil }

func testOptions(workers int) Options {
	return Options{
		Workers: workers,
		Backoff: func(int) time.Duration { return 0 },
		Sleep:   noSleep,
	}
}

func parseDict(t *testing.T, js string) *locale.FlatDict {
	t.Helper()
	d, err := locale.Parse([]byte(js))
	require.NoError(t, err)
	return d
}

// plan builds a merge plan and a session writing to a temp file.
func plan(t *testing.T, base string, terms mask.Terms, cache *transcache.Cache) (*merge.Plan, *Session) {
	t.Helper()
	var mc merge.Cache
	if cache != nil {
		mc = cache
	}
	p := merge.Build(merge.Input{
		Base: parseDict(t, base), Mode: merge.Full,
		Source: "en", Target: "fr", Terms: terms, Cache: mc,
	})
	s := NewSession(p.Output, mc)
	s.Source, s.Target = "en", "fr"
	s.SourceName, s.TargetName = "English", "French [fr]"
	s.OutPath = filepath.Join(t.TempDir(), "fr.json")
	return p, s
}

// echo answers every item by applying fn to its text.
func echo(fn func(string) string) TranslatorFunc {
	return func(_ context.Context, req Request) (map[string]string, error) {
		out := make(map[string]string)
		for _, it := range req.Items {
			out[it.Path] = fn(it.Text)
		}
		return out, nil
	}
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestRun_PlaceholderRoundTrip(t *testing.T) {
	cache := transcache.New("")
	p, s := plan(t, `{"greet": "Hello {name}"}`, nil, cache)
	require.Len(t, p.Units, 1)
	assert.Equal(t, "Hello __PH0__", p.Units[0].Masked.Text)

	tr := echo(func(string) string { return "Bonjour __PH0__" })
	sum, err := NewDriver(Static(tr), testOptions(2)).Run(context.Background(), s, p.Units)
	require.NoError(t, err)
	assert.Equal(t, Summary{Language: "fr", Total: 1, Succeeded: 1}, sum)

	v, _ := s.Output().Get("greet")
	assert.Equal(t, "Bonjour {name}", v.Str)

	got, ok := cache.Get("en", "fr", "Hello {name}")
	require.True(t, ok)
	assert.Equal(t, "Bonjour {name}", got)

	onDisk, err := locale.ReadFile(s.OutPath)
	require.NoError(t, err)
	v, _ = onDisk.Get("greet")
	assert.Equal(t, "Bonjour {name}", v.Str)
}

func TestRun_ProtectedTermNeverSent(t *testing.T) {
	var calls atomic.Int32
	tr := TranslatorFunc(func(context.Context, Request) (map[string]string, error) {
		calls.Add(1)
		return nil, errors.New("must not be called")
	})

	p, s := plan(t, `{"brand": "Acme"}`, mask.NewTerms("Acme"), transcache.New(""))
	assert.Empty(t, p.Units)

	sum, err := NewDriver(Static(tr), testOptions(4)).Run(context.Background(), s, p.Units)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Total)
	assert.Zero(t, calls.Load())

	onDisk, err := locale.ReadFile(s.OutPath)
	require.NoError(t, err)
	v, _ := onDisk.Get("brand")
	assert.Equal(t, "Acme", v.Str)
}

func TestRun_DuplicateTextsCallServiceOnce(t *testing.T) {
	var b strings.Builder
	b.WriteString("{")
	for i := 0; i < 20; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `"k%d": "Same text"`, i)
	}
	b.WriteString("}")

	cache := transcache.New("")
	p, s := plan(t, b.String(), nil, cache)
	require.Len(t, p.Units, 20)

	var calls atomic.Int32
	tr := TranslatorFunc(func(_ context.Context, req Request) (map[string]string, error) {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return map[string]string{req.Items[0].Path: "Même texte"}, nil
	})

	sum, err := NewDriver(Static(tr), testOptions(8)).Run(context.Background(), s, p.Units)
	require.NoError(t, err)
	assert.Equal(t, 20, sum.Succeeded)
	assert.Equal(t, int32(1), calls.Load())
	for _, k := range s.Output().Keys() {
		v, _ := s.Output().Get(k)
		assert.Equal(t, "Même texte", v.Str, k)
	}
}

func TestRun_DuplicateTextGetsOwnAttemptsAfterSharedFailure(t *testing.T) {
	p, s := plan(t, `{"a": "Same", "b": "Same"}`, nil, transcache.New(""))
	require.Len(t, p.Units, 2)

	var calls atomic.Int32
	release := make(chan struct{})
	tr := TranslatorFunc(func(_ context.Context, req Request) (map[string]string, error) {
		n := calls.Add(1)
		if n == 1 {
			// Hold the first call so the second unit joins it.
			<-release
		}
		if n <= 4 {
			return nil, errors.New("unavailable")
		}
		return map[string]string{req.Items[0].Path: "Pareil"}, nil
	})
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	sum, err := NewDriver(Static(tr), testOptions(2)).Run(context.Background(), s, p.Units)
	require.NoError(t, err)
	assert.Equal(t, int32(5), calls.Load(), "the second unit must make its own attempt")
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)

	filled := 0
	for _, k := range []string{"a", "b"} {
		if v, _ := s.Output().Get(k); v.Str == "Pareil" {
			filled++
		}
	}
	assert.Equal(t, 1, filled)
}

func TestRun_RetriesThenSucceeds(t *testing.T) {
	p, s := plan(t, `{"a": "Hi"}`, nil, nil)

	var attempts []int
	var waits []time.Duration
	tr := TranslatorFunc(func(_ context.Context, req Request) (map[string]string, error) {
		attempts = append(attempts, req.Attempt)
		if req.Attempt < 2 {
			return nil, errors.New("boom")
		}
		return map[string]string{"a": "Salut"}, nil
	})

	opts := testOptions(1)
	opts.Backoff = func(a int) time.Duration { return time.Duration(a+1) * time.Second }
	opts.Sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	sum, err := NewDriver(Static(tr), opts).Run(context.Background(), s, p.Units)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, []int{0, 1, 2}, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

func TestRun_ExhaustedAttemptsRecordFailure(t *testing.T) {
	p, s := plan(t, `{"a": "Hi", "b": "Bye"}`, nil, transcache.New(""))

	var calls atomic.Int32
	tr := TranslatorFunc(func(_ context.Context, req Request) (map[string]string, error) {
		calls.Add(1)
		if req.Items[0].Path == "a" {
			return nil, errors.New("service down")
		}
		return map[string]string{"b": "Au revoir"}, nil
	})

	var failed []string
	var mu sync.Mutex
	opts := testOptions(2)
	opts.OnProgress = func(_ string, ok bool, _, _, _ int, path string) {
		if !ok {
			mu.Lock()
			failed = append(failed, path)
			mu.Unlock()
		}
	}

	sum, err := NewDriver(Static(tr), opts).Run(context.Background(), s, p.Units)
	require.NoError(t, err)
	assert.Equal(t, Summary{Language: "fr", Total: 2, Succeeded: 1, Failed: 1}, sum)
	assert.Equal(t, []string{"a"}, failed)
	assert.Equal(t, int32(5), calls.Load(), "4 attempts for a, 1 for b")

	v, _ := s.Output().Get("a")
	assert.Equal(t, "", v.Str)
	completed, succeeded, total := s.Counts()
	assert.Equal(t, 2, completed)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 2, total)
}

func TestRun_WrongPathIsRetried(t *testing.T) {
	p, s := plan(t, `{"a": "Hi"}`, nil, nil)
	n := 0
	tr := TranslatorFunc(func(_ context.Context, req Request) (map[string]string, error) {
		n++
		if n == 1 {
			return map[string]string{"other": "x"}, nil
		}
		return map[string]string{"a": "Salut"}, nil
	})
	sum, err := NewDriver(Static(tr), testOptions(1)).Run(context.Background(), s, p.Units)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 2, n)
}

func TestRun_PostProcessing(t *testing.T) {
	p, s := plan(t, `{"a": "Hello {name}", "b": "Welcome to Acme"}`, mask.NewTerms("Acme"), nil)
	tr := TranslatorFunc(func(_ context.Context, req Request) (map[string]string, error) {
		switch req.Items[0].Path {
		case "a":
			// The model renamed the placeholder and leaked Han characters.
			return map[string]string{"a": "Bonjour {nom} 你好"}, nil
		default:
			return map[string]string{"b": "Bienvenue chez __TERM0__"}, nil
		}
	})
	_, err := NewDriver(Static(tr), testOptions(1)).Run(context.Background(), s, p.Units)
	require.NoError(t, err)

	v, _ := s.Output().Get("a")
	assert.Equal(t, "Bonjour {name}", v.Str)
	v, _ = s.Output().Get("b")
	assert.Equal(t, "Bienvenue chez Acme", v.Str)
}

func TestRun_SequentialWritesAfterEachUnit(t *testing.T) {
	p, s := plan(t, `{"a": "One", "b": "Two", "c": "Three"}`, nil, nil)

	var seen []string
	tr := TranslatorFunc(func(_ context.Context, req Request) (map[string]string, error) {
		onDisk, err := locale.ReadFile(s.OutPath)
		if err != nil {
			return nil, err
		}
		filled := 0
		for _, k := range onDisk.Keys() {
			if v, _ := onDisk.Get(k); v.Str != "" {
				filled++
			}
		}
		seen = append(seen, fmt.Sprintf("%s:%d", req.Items[0].Path, filled))
		return map[string]string{req.Items[0].Path: "t-" + req.Items[0].Text}, nil
	})

	var done []int
	opts := testOptions(1)
	opts.OnProgress = func(_ string, _ bool, d, _, _ int, _ string) { done = append(done, d) }

	_, err := NewDriver(Static(tr), opts).Run(context.Background(), s, p.Units)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:0", "b:1", "c:2"}, seen)
	assert.Equal(t, []int{1, 2, 3}, done)
	assert.Equal(t, []string{"a", "b", "c"}, s.Output().Keys())
}

func TestRun_ParallelProgressIsMonotonic(t *testing.T) {
	var b strings.Builder
	b.WriteString("{")
	for i := 0; i < 30; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `"k%02d": "text %d"`, i, i)
	}
	b.WriteString("}")
	p, s := plan(t, b.String(), nil, nil)

	var mu sync.Mutex
	var done []int
	opts := testOptions(6)
	opts.OnProgress = func(_ string, _ bool, d, _, _ int, _ string) {
		mu.Lock()
		done = append(done, d)
		mu.Unlock()
	}
	tr := echo(strings.ToUpper)

	sum, err := NewDriver(Static(tr), opts).Run(context.Background(), s, p.Units)
	require.NoError(t, err)
	assert.Equal(t, 30, sum.Succeeded)
	assert.ElementsMatch(t, func() []int {
		var want []int
		for i := 1; i <= 30; i++ {
			want = append(want, i)
		}
		return want
	}(), done)

	// File order follows the skeleton, not completion order.
	onDisk, err := locale.ReadFile(s.OutPath)
	require.NoError(t, err)
	assert.Equal(t, s.Output().Keys(), onDisk.Keys())
	assert.Equal(t, "k00", onDisk.Keys()[0])
}

func TestRun_EachWorkerOwnsTranslator(t *testing.T) {
	p, s := plan(t, `{"a": "1", "b": "2", "c": "3", "d": "4"}`, nil, nil)
	var created atomic.Int32
	factory := func() Translator {
		created.Add(1)
		return echo(func(s string) string { return s + "!" })
	}
	_, err := NewDriver(factory, testOptions(3)).Run(context.Background(), s, p.Units)
	require.NoError(t, err)
	assert.Equal(t, int32(3), created.Load())
}
