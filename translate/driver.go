package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sxxw-site/sitei18n/mask"
	"github.com/sxxw-site/sitei18n/merge"
	"github.com/sxxw-site/sitei18n/transcache"
)

// ---------------------------------------------------------------------------
// Driver options
// ---------------------------------------------------------------------------

// Options controls the driver.
type Options struct {
	// Workers is the pool size. 1 translates sequentially. Default: 6.
	Workers int
	// MaxAttempts bounds the attempts per unit. Default: 4.
	MaxAttempts int
	// Threshold is the fraction of requested items a batch answer must
	// contain. Default: 0.85.
	Threshold float64
	// Backoff returns the wait after a failed attempt. Default: DefaultBackoff.
	Backoff func(attempt int) time.Duration
	// Sleep waits between attempts. Default: a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnStart is called when a worker picks up a unit.
	OnStart func(lang string, seq, total int, path string)
	// OnProgress is called once per finished unit with the completed count.
	OnProgress func(lang string, ok bool, done, total, seq int, path string)
	// OnTranslation is called after each success.
	OnTranslation func(lang, path, src, tgt string)
	// OnLog emits log messages.
	OnLog func(format string, args ...any)
	// OnError emits error messages.
	OnError func(format string, args ...any)
	// Verbose enables detailed logging.
	Verbose bool
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) effectiveWorkers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return 6
}

func (o *Options) effectiveMaxAttempts() int {
	if o.MaxAttempts > 0 {
		return o.MaxAttempts
	}
	return 4
}

func (o *Options) effectiveThreshold() float64 {
	if o.Threshold > 0 && o.Threshold <= 1 {
		return o.Threshold
	}
	return 0.85
}

func (o *Options) backoff(attempt int) time.Duration {
	if o.Backoff != nil {
		return o.Backoff(attempt)
	}
	return DefaultBackoff(attempt)
}

func (o *Options) sleep(ctx context.Context, d time.Duration) error {
	if o.Sleep != nil {
		return o.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

// ---------------------------------------------------------------------------
// Driver
// ---------------------------------------------------------------------------

// Driver translates the queued units of one language pass.
type Driver struct {
	newTranslator Factory
	opts          Options
}

// NewDriver returns a driver whose workers obtain their translator from f.
func NewDriver(f Factory, opts Options) *Driver {
	return &Driver{newTranslator: f, opts: opts}
}

// Summary reports the outcome of one pass.
type Summary struct {
	Language  string
	Total     int
	Succeeded int
	Failed    int
}

func (s Summary) String() string {
	return fmt.Sprintf("[%s] %d/%d succeeded", s.Language, s.Succeeded, s.Total)
}

// Run writes the skeleton, translates every unit with a fixed pool of
// workers and writes the final file. Unit failures are counted, not
// returned; the error reports only file write problems.
func (d *Driver) Run(ctx context.Context, s *Session, units []merge.Unit) (Summary, error) {
	sum := Summary{Language: s.Target, Total: len(units)}
	s.setTotal(len(units))

	if err := s.flush(); err != nil {
		return sum, err
	}
	if len(units) == 0 {
		return sum, nil
	}

	workers := min(d.opts.effectiveWorkers(), len(units))
	mode := "parallel"
	if workers == 1 {
		mode = "sequential"
	}
	d.opts.log("[%s] %d strings to translate (%s, %d workers)", s.Target, len(units), mode, workers)

	queue := make(chan merge.Unit)
	var flight singleflight.Group
	var g errgroup.Group

	for w := 0; w < workers; w++ {
		tr := d.newTranslator()
		g.Go(func() error {
			for u := range queue {
				d.process(ctx, tr, s, &flight, u)
			}
			return nil
		})
	}

	for _, u := range units {
		queue <- u
	}
	close(queue)
	_ = g.Wait()

	err := s.flush()
	_, succeeded, _ := s.Counts()
	sum.Succeeded = succeeded
	sum.Failed = sum.Total - succeeded
	return sum, err
}

// process handles one unit end to end. Identical source texts in flight at
// the same time share one service call.
func (d *Driver) process(ctx context.Context, tr Translator, s *Session, flight *singleflight.Group, u merge.Unit) {
	_, _, total := s.Counts()
	if d.opts.OnStart != nil {
		d.opts.OnStart(s.Target, u.Seq, total, u.Path)
	}

	var (
		applied, ran bool
		done         int
		v            any
		err          error
	)
	key := transcache.Key(s.Source, s.Target, u.Source)
	// A failure is only final for the unit that made the attempts. A unit
	// that waited on someone else's failed call queues up for its own.
	for !ran {
		v, err, _ = flight.Do(key, func() (any, error) {
			ran = true
			if text, ok := s.cached(u.Source); ok {
				return text, nil
			}
			res := d.translateUnit(ctx, tr, s, u)
			if !res.OK() {
				return nil, res.Err
			}
			// Apply before the flight key is released so a later unit with
			// the same text finds it in the cache.
			done = s.apply(u, res.Text)
			applied = true
			return res.Text, nil
		})
		if err == nil {
			break
		}
	}

	if err != nil {
		done = s.fail()
		d.opts.logError("[%s] %s: %v", s.Target, u.Path, err)
		if d.opts.OnProgress != nil {
			d.opts.OnProgress(s.Target, false, done, total, u.Seq, u.Path)
		}
		return
	}

	text := v.(string)
	if !applied {
		done = s.apply(u, text)
	}
	if d.opts.OnTranslation != nil {
		d.opts.OnTranslation(s.Target, u.Path, u.Source, text)
	}
	if d.opts.OnProgress != nil {
		d.opts.OnProgress(s.Target, true, done, total, u.Seq, u.Path)
	}
}

// translateUnit sends one unit with bounded retries and post-processes the
// answer.
func (d *Driver) translateUnit(ctx context.Context, tr Translator, s *Session, u merge.Unit) Result {
	req := Request{
		SourceName: s.SourceName,
		TargetName: s.TargetName,
		TargetCode: s.Target,
		Items:      []Item{{Path: u.Path, Text: u.Masked.Text}},
	}

	maxAttempts := d.opts.effectiveMaxAttempts()
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		req.Attempt = attempt
		got, err := tr.TranslateBatch(ctx, req)
		if err == nil {
			err = accept(got, req.Items, d.opts.effectiveThreshold())
		}
		if err == nil {
			return Result{Text: d.postprocess(s, u, got[u.Path]), Attempts: attempt + 1}
		}
		lastErr = err
		if d.opts.Verbose {
			d.opts.log("[%s] %s: attempt %d/%d failed: %v", s.Target, u.Path, attempt+1, maxAttempts, err)
		}
		if attempt == maxAttempts-1 {
			break
		}

		wait := d.opts.backoff(attempt)
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > wait {
			wait = rl.RetryAfter
		}
		if err := d.opts.sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}
	return Result{
		Err:      fmt.Errorf("translation failed after %d attempts: %w", maxAttempts, lastErr),
		Attempts: maxAttempts,
	}
}

// postprocess restores placeholders then terms, strips a forbidden script
// and repairs placeholder parity with the source.
func (d *Driver) postprocess(s *Session, u merge.Unit, raw string) string {
	text := u.Masked.Restore(raw)
	text = mask.ForScript(text, s.Target)
	text, repaired := mask.Repair(u.Source, text)
	if repaired && d.opts.Verbose {
		d.opts.log("[%s] %s: placeholders repaired", s.Target, u.Path)
	}
	return text
}
