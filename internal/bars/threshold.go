package bars

import (
	"fmt"
	"math"

	"tickbars/internal/model"
)

// ThresholdEngine emits a bar each time the configured attribute, summed
// since the previous bar, reaches a fixed target.
type ThresholdEngine struct {
	attr   Attr
	target float64
	topN   int
}

// NewThresholdEngine validates the configuration. target must be positive
// and finite, topN non-negative.
func NewThresholdEngine(attr string, target float64, topN int) (*ThresholdEngine, error) {
	a, err := ParseAttr(attr)
	if err != nil {
		return nil, err
	}
	if !(target > 0) || math.IsInf(target, 0) {
		return nil, fmt.Errorf("%w: threshold target must be positive, got %v", ErrConfig, target)
	}
	if topN < 0 {
		return nil, fmt.Errorf("%w: top-N must be >= 0, got %d", ErrConfig, topN)
	}
	return &ThresholdEngine{attr: a, target: target, topN: topN}, nil
}

func (e *ThresholdEngine) Name() string { return "threshold" }

// InitialCache returns the state used for the first processed day.
func (e *ThresholdEngine) InitialCache() ThresholdCache {
	return ThresholdCache{Version: CacheVersion, Attr: e.attr, Target: Target(e.target)}
}

// Process aggregates one day of ticks on top of the previous day's cache.
// The input cache is not modified.
func (e *ThresholdEngine) Process(ticks []model.Tick, cache ThresholdCache) ([]model.Bar, ThresholdCache, error) {
	if err := cache.check(e.attr); err != nil {
		return nil, cache, err
	}
	next := cache.Clone()
	next.Version = CacheVersion
	next.Attr = e.attr
	next.Target = Target(e.target)
	return aggregate(ticks, next, e.attr, e.topN)
}

// aggregate walks ticks in order, closing a bar whenever the accumulator
// reaches the cache's target. The carried pending tail seeds the first bar
// of the day; ticks left after the last crossing become the new tail.
// cache is owned by the caller and mutated.
func aggregate(ticks []model.Tick, cache ThresholdCache, attr Attr, topN int) ([]model.Bar, ThresholdCache, error) {
	var out []model.Bar
	target := float64(cache.Target)

	var cur *barBuilder
	if cache.Pending != nil {
		cur = newBarBuilder(cache.Pending, topN)
		cache.Pending = nil
	}

	for i := range ticks {
		if cur == nil {
			cur = newBarBuilder(nil, topN)
		}
		cur.add(&ticks[i])
		cache.Accumulator += attr.Value(&ticks[i])
		if cache.Accumulator < target {
			continue
		}
		out = append(out, cur.build())
		cache.Accumulator = 0
		cur = nil
	}

	if cur != nil {
		tail := cur.build()
		cache.Pending = &tail
	}
	return out, cache, nil
}
