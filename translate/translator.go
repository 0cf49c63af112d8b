package translate

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Request is one batch sent to a translation service.
type Request struct {
	SourceName string
	TargetName string
	TargetCode string
	Items      []Item
	// Attempt is zero-based; services lower their temperature on retries.
	Attempt int
}

// Translator performs a single translation attempt and returns the
// answered items keyed by path.
type Translator interface {
	TranslateBatch(ctx context.Context, req Request) (map[string]string, error)
}

// TranslatorFunc adapts a function to the Translator interface.
type TranslatorFunc func(ctx context.Context, req Request) (map[string]string, error)

// TranslateBatch calls f.
func (f TranslatorFunc) TranslateBatch(ctx context.Context, req Request) (map[string]string, error) {
	return f(ctx, req)
}

// Factory creates the translator owned by one worker.
type Factory func() Translator

// Static returns a Factory that hands out the same translator to every
// worker. The translator must be safe for concurrent use.
func Static(t Translator) Factory {
	return func() Translator { return t }
}

// Result is the outcome of translating one unit. No error crosses the
// worker boundary as a panic; failures are carried here.
type Result struct {
	Text     string
	Err      error
	Attempts int
}

// OK reports whether the unit was translated.
func (r Result) OK() bool { return r.Err == nil }

// ---------------------------------------------------------------------------
// Retry policy
// ---------------------------------------------------------------------------

// DefaultBackoff waits 2^attempt seconds plus up to 250ms of jitter.
func DefaultBackoff(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	return base + time.Duration(rand.Int64N(int64(250*time.Millisecond)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
