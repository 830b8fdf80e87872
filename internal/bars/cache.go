package bars

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"tickbars/internal/model"
)

// CacheVersion is the schema version written into every cache record.
const CacheVersion = 1

// ErrCacheMismatch is returned when a persisted cache was written by an
// engine with a different attribute or a newer schema.
var ErrCacheMismatch = errors.New("bars: cache does not match engine")

// Target is a threshold value. +Inf (warm-up) is stored as JSON null so the
// record stays encodable.
type Target float64

// Inf reports whether the target can never be reached.
func (t Target) Inf() bool { return math.IsInf(float64(t), 1) }

func (t Target) MarshalJSON() ([]byte, error) {
	if t.Inf() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(t))
}

func (t *Target) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Target(math.Inf(1))
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	*t = Target(v)
	return nil
}

// ThresholdCache is the state carried between days by ThresholdEngine.
// Pending holds the aggregate of ticks seen since the last bar closed; it is
// nil when the previous day ended exactly on a bar boundary.
type ThresholdCache struct {
	Version     int        `json:"version"`
	Attr        Attr       `json:"attr"`
	Accumulator float64    `json:"accumulator"`
	Target      Target     `json:"target"`
	Pending     *model.Bar `json:"pending,omitempty"`
}

// Threshold returns the current target.
func (c *ThresholdCache) Threshold() float64 { return float64(c.Target) }

// Clone returns a deep copy.
func (c *ThresholdCache) Clone() ThresholdCache {
	out := *c
	if c.Pending != nil {
		p := c.Pending.Clone()
		out.Pending = &p
	}
	return out
}

func (c *ThresholdCache) check(attr Attr) error {
	if c.Version > CacheVersion {
		return fmt.Errorf("%w: version %d > %d", ErrCacheMismatch, c.Version, CacheVersion)
	}
	if c.Attr != "" && c.Attr != attr {
		return fmt.Errorf("%w: attribute %q, engine uses %q", ErrCacheMismatch, c.Attr, attr)
	}
	return nil
}

// AdaptiveCache extends ThresholdCache with the rolling window of daily
// totals, oldest first.
type AdaptiveCache struct {
	ThresholdCache
	Window []float64 `json:"window"`
}

// WindowLen returns the number of daily totals held.
func (c *AdaptiveCache) WindowLen() int { return len(c.Window) }

// Clone returns a deep copy.
func (c *AdaptiveCache) Clone() AdaptiveCache {
	out := AdaptiveCache{ThresholdCache: c.ThresholdCache.Clone()}
	out.Window = make([]float64, len(c.Window))
	copy(out.Window, c.Window)
	return out
}
