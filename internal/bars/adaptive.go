package bars

import (
	"fmt"
	"math"
	"strings"
	"time"

	"tickbars/internal/indicator"
	"tickbars/internal/model"
)

// MovingAverage selects how the window of daily totals is averaged.
type MovingAverage string

const (
	SMA MovingAverage = "sma"
	EMA MovingAverage = "ema"
)

// ParseMovingAverage accepts "sma" or "ema" in any case.
func ParseMovingAverage(s string) (MovingAverage, error) {
	switch m := MovingAverage(strings.ToLower(strings.TrimSpace(s))); m {
	case SMA, EMA:
		return m, nil
	}
	return "", fmt.Errorf("%w: unsupported moving average %q", ErrConfig, s)
}

// AdaptiveConfig holds the raw settings of an AdaptiveEngine.
type AdaptiveConfig struct {
	Attr            string // threshold attribute
	WindowSize      string // e.g. "7d"
	TargetFrequency string // e.g. "1h"; defaults to "1h"
	MovingAverage   string // "sma" or "ema"; defaults to "sma"
	TopN            int
}

// AdaptiveEngine wraps the threshold walk with a target derived from the
// moving average of the last WindowSize daily totals. No bar is emitted
// until the window is full.
type AdaptiveEngine struct {
	attr       Attr
	windowSize int
	frequency  time.Duration
	average    MovingAverage
	topN       int
}

// NewAdaptiveEngine validates cfg. All configuration errors wrap ErrConfig.
func NewAdaptiveEngine(cfg AdaptiveConfig) (*AdaptiveEngine, error) {
	attr, err := ParseAttr(cfg.Attr)
	if err != nil {
		return nil, err
	}
	windowSize, err := ParseWindowSize(cfg.WindowSize)
	if err != nil {
		return nil, err
	}
	if cfg.TargetFrequency == "" {
		cfg.TargetFrequency = "1h"
	}
	frequency, err := ParseFrequency(cfg.TargetFrequency)
	if err != nil {
		return nil, err
	}
	if cfg.MovingAverage == "" {
		cfg.MovingAverage = string(SMA)
	}
	average, err := ParseMovingAverage(cfg.MovingAverage)
	if err != nil {
		return nil, err
	}
	if cfg.TopN < 0 {
		return nil, fmt.Errorf("%w: top-N must be >= 0, got %d", ErrConfig, cfg.TopN)
	}
	return &AdaptiveEngine{
		attr:       attr,
		windowSize: windowSize,
		frequency:  frequency,
		average:    average,
		topN:       cfg.TopN,
	}, nil
}

func (e *AdaptiveEngine) Name() string { return "adaptive_threshold" }

// WindowSize returns the window length in days.
func (e *AdaptiveEngine) WindowSize() int { return e.windowSize }

// InitialCache returns an empty window with an unreachable target.
func (e *AdaptiveEngine) InitialCache() AdaptiveCache {
	return AdaptiveCache{
		ThresholdCache: ThresholdCache{
			Version: CacheVersion,
			Attr:    e.attr,
			Target:  Target(math.Inf(1)),
		},
		Window: []float64{},
	}
}

// Process aggregates one day of ticks, then folds the day's total into the
// window and recomputes the target for the next day once the window is full.
// During warm-up every tick goes to the pending tail. The input cache is not
// modified.
func (e *AdaptiveEngine) Process(ticks []model.Tick, cache AdaptiveCache) ([]model.Bar, AdaptiveCache, error) {
	if err := cache.check(e.attr); err != nil {
		return nil, cache, err
	}
	next := cache.Clone()
	next.Version = CacheVersion
	next.Attr = e.attr
	if len(next.Window) < e.windowSize {
		next.Target = Target(math.Inf(1))
	}

	out, tc, err := aggregate(ticks, next.ThresholdCache, e.attr, e.topN)
	if err != nil {
		return nil, cache, err
	}
	next.ThresholdCache = tc

	e.update(&next, e.attr.Total(ticks))
	return out, next, nil
}

// update appends a daily total, evicts the oldest entry beyond the window
// size and, with a full window, derives the target for the next day.
func (e *AdaptiveEngine) update(cache *AdaptiveCache, total float64) {
	cache.Window = append(cache.Window, total)
	if n := len(cache.Window) - e.windowSize; n > 0 {
		cache.Window = append(cache.Window[:0], cache.Window[n:]...)
	}
	if len(cache.Window) == e.windowSize {
		cache.Target = Target(e.Target(cache.Window))
	}
}

// Target rescales the window's average daily activity to one bar per
// target frequency.
func (e *AdaptiveEngine) Target(window []float64) float64 {
	var perDay float64
	switch e.average {
	case EMA:
		perDay = indicator.EWMA(window, e.windowSize)
	default:
		perDay = indicator.Mean(window)
	}
	return perDay / day.Seconds() * e.frequency.Seconds()
}
