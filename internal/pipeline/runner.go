// Package pipeline drives a bar engine over a date range, one UTC day at a
// time. Each day reads the previous day's cache document, runs the engine
// on that day's ticks, writes the bars and then the day's cache document.
// The cache document doubles as the "already processed" marker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"tickbars/internal/calendar"
	"tickbars/internal/model"
)

var (
	// ErrMissingCache: a day after the range start has no predecessor cache.
	ErrMissingCache = errors.New("missing predecessor cache")

	// ErrAlreadyProcessed: the destination already holds the date. The run
	// loop skips such dates.
	ErrAlreadyProcessed = errors.New("already processed")
)

// Engine is a per-day bar engine carrying state of type C between days.
type Engine[C any] interface {
	Name() string
	InitialCache() C
	Process(ticks []model.Tick, cache C) ([]model.Bar, C, error)
}

// Config holds the run parameters.
type Config struct {
	// Destination names the output table. The cache collection and the log
	// prefix are derived from it.
	Destination string

	// From and To bound the run, inclusive. A zero From starts at the tick
	// source's first date; a zero To ends at yesterday (UTC).
	From, To time.Time

	Filter  model.Filter
	Verbose bool

	// Now returns the wall clock; defaults to time.Now.
	Now func() time.Time
}

// DayResult describes one processed day.
type DayResult struct {
	Date     time.Time
	Ticks    int
	Bars     int
	Duration time.Duration

	// Target is the threshold in force at the end of the day; HasTarget is
	// false for engines without one.
	Target    float64
	HasTarget bool

	// WindowLen is the number of daily totals held by adaptive engines.
	WindowLen int
	HasWindow bool
}

// Hooks observe the run. Any of them may be nil.
type Hooks struct {
	OnDay  func(DayResult)
	OnSkip func(date time.Time)
	OnFail func(date time.Time, err error)
}

// Summary reports what a run did. LastGood is the last date that is
// committed in the destination, zero if none.
type Summary struct {
	From, To  time.Time
	LastGood  time.Time
	Processed int
	Skipped   int
	Bars      int
}

// Runner walks dates for one engine and destination.
type Runner[C any] struct {
	engine Engine[C]
	ticks  model.TickSource
	cache  model.CacheStore
	sink   model.BarSink
	cfg    Config
	hooks  Hooks
	prefix string
}

// NewRunner validates cfg and returns a runner.
func NewRunner[C any](engine Engine[C], ticks model.TickSource, cache model.CacheStore,
	sink model.BarSink, cfg Config, hooks Hooks) (*Runner[C], error) {
	if engine == nil || ticks == nil || cache == nil || sink == nil {
		return nil, errors.New("pipeline: engine, tick source, cache store and bar sink are required")
	}
	if strings.TrimSpace(cfg.Destination) == "" {
		return nil, errors.New("pipeline: destination is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner[C]{
		engine: engine,
		ticks:  ticks,
		cache:  cache,
		sink:   sink,
		cfg:    cfg,
		hooks:  hooks,
		prefix: LogPrefix(cfg.Destination),
	}, nil
}

// Run processes every date in the configured range in ascending order.
// Already processed dates are skipped. Any other error stops the loop; the
// returned Summary still reports the last good date.
func (r *Runner[C]) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	from, to := r.cfg.From, r.cfg.To
	if from.IsZero() {
		first, ok, err := r.ticks.MinDate(ctx, r.cfg.Filter)
		if err != nil {
			return sum, fmt.Errorf("resolve start date: %w", err)
		}
		if !ok {
			log.Printf("[pipeline] %s: tick source is empty, nothing to do", r.prefix)
			return sum, nil
		}
		from = first
	}
	if to.IsZero() {
		to = calendar.Yesterday(r.cfg.Now())
	}
	from, to = calendar.Day(from), calendar.Day(to)
	sum.From, sum.To = from, to

	for _, date := range calendar.Days(from, to) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		res, err := r.processDate(ctx, from, date)
		switch {
		case errors.Is(err, ErrAlreadyProcessed):
			sum.Skipped++
			sum.LastGood = date
			if r.cfg.Verbose {
				log.Printf("[pipeline] %s: %s OK", r.prefix, calendar.DocumentID(date))
			}
			if r.hooks.OnSkip != nil {
				r.hooks.OnSkip(date)
			}
			continue
		case err != nil:
			if r.hooks.OnFail != nil {
				r.hooks.OnFail(date, err)
			}
			if !sum.LastGood.IsZero() {
				log.Printf("[pipeline] %s: stopped at %s, last good date %s",
					r.prefix, calendar.DocumentID(date), calendar.DocumentID(sum.LastGood))
			}
			return sum, fmt.Errorf("%s %s: %w", r.prefix, calendar.DocumentID(date), err)
		}

		sum.Processed++
		sum.Bars += res.Bars
		sum.LastGood = date
		if r.cfg.Verbose {
			log.Printf("[pipeline] %s: %s %d ticks -> %d bars in %s",
				r.prefix, calendar.DocumentID(date), res.Ticks, res.Bars, res.Duration)
		}
		if r.hooks.OnDay != nil {
			r.hooks.OnDay(res)
		}
	}

	log.Printf("[pipeline] %s: %s to %s OK", r.prefix, calendar.DocumentID(from), calendar.DocumentID(to))
	return sum, nil
}

// processDate runs one day. from is the effective start of the range: the
// only date allowed to begin from the engine's initial cache.
func (r *Runner[C]) processDate(ctx context.Context, from, date time.Time) (DayResult, error) {
	start := time.Now()
	res := DayResult{Date: date}
	id := calendar.DocumentID(date)

	done, err := r.cache.Exists(ctx, id)
	if err != nil {
		return res, fmt.Errorf("check cache: %w", err)
	}
	if done {
		return res, ErrAlreadyProcessed
	}

	prev, err := r.previousCache(ctx, from, date)
	if err != nil {
		return res, err
	}

	ticks, err := r.ticks.Ticks(ctx, date, r.cfg.Filter)
	if err != nil {
		return res, fmt.Errorf("fetch ticks: %w", err)
	}

	bars, next, err := r.engine.Process(ticks, prev)
	if err != nil {
		return res, fmt.Errorf("%s engine: %w", r.engine.Name(), err)
	}

	if err := r.commit(ctx, date, bars, next); err != nil {
		return res, err
	}

	res.Ticks = len(ticks)
	res.Bars = len(bars)
	res.Duration = time.Since(start)
	if t, ok := any(&next).(interface{ Threshold() float64 }); ok {
		res.Target, res.HasTarget = t.Threshold(), true
	}
	if w, ok := any(&next).(interface{ WindowLen() int }); ok {
		res.WindowLen, res.HasWindow = w.WindowLen(), true
	}
	return res, nil
}

func (r *Runner[C]) previousCache(ctx context.Context, from, date time.Time) (C, error) {
	var prev C
	found, err := r.cache.Get(ctx, calendar.DocumentID(calendar.Previous(date)), &prev)
	if err != nil {
		return prev, fmt.Errorf("read previous cache: %w", err)
	}
	if found {
		return prev, nil
	}
	if date.After(from) {
		return prev, fmt.Errorf("%w for %s", ErrMissingCache, calendar.DocumentID(calendar.Previous(date)))
	}
	return r.engine.InitialCache(), nil
}

// commit writes bars then the cache document. A failed cache write removes
// the bars again so the day is either fully committed or absent.
func (r *Runner[C]) commit(ctx context.Context, date time.Time, bars []model.Bar, next C) error {
	if len(bars) > 0 {
		if err := r.sink.WriteBars(ctx, date, bars); err != nil {
			return fmt.Errorf("write bars: %w", err)
		}
	}
	if err := r.cache.Put(ctx, calendar.DocumentID(date), next); err != nil {
		if len(bars) > 0 {
			if derr := r.sink.DeleteBars(ctx, date); derr != nil {
				log.Printf("[pipeline] %s: rollback of %s failed: %v", r.prefix, calendar.DocumentID(date), derr)
			}
		}
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// CollectionName is the cache collection for a destination table.
func CollectionName(destination string) string {
	return strings.ReplaceAll(destination, "_", "-")
}

// LogPrefix turns "volume_bars" into "Volume bars".
func LogPrefix(destination string) string {
	s := strings.ReplaceAll(destination, "_", " ")
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
