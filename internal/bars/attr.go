package bars

import (
	"fmt"

	"tickbars/internal/model"
)

// Attr is the per-tick measure accumulated towards the threshold.
type Attr string

const (
	Volume      Attr = "volume"
	BuyVolume   Attr = "buyVolume"
	Notional    Attr = "notional"
	BuyNotional Attr = "buyNotional"
	Ticks       Attr = "ticks"
	BuyTicks    Attr = "buyTicks"
)

// ParseAttr validates a threshold attribute name.
func ParseAttr(s string) (Attr, error) {
	switch a := Attr(s); a {
	case Volume, BuyVolume, Notional, BuyNotional, Ticks, BuyTicks:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown threshold attribute %q", ErrConfig, s)
}

// Value returns the attribute's contribution of a single tick.
func (a Attr) Value(t *model.Tick) float64 {
	switch a {
	case Volume:
		return t.Volume
	case BuyVolume:
		if t.IsBuy() {
			return t.Volume
		}
	case Notional:
		return t.Notional
	case BuyNotional:
		if t.IsBuy() {
			return t.Notional
		}
	case Ticks:
		return 1
	case BuyTicks:
		if t.IsBuy() {
			return 1
		}
	}
	return 0
}

// Total sums the attribute over ticks.
func (a Attr) Total(ticks []model.Tick) float64 {
	var total float64
	for i := range ticks {
		total += a.Value(&ticks[i])
	}
	return total
}
