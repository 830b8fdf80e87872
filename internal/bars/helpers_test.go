package bars_test

import (
	"time"

	"tickbars/internal/model"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// trade is a compact tick literal: volume, tick rule and price.
type trade struct {
	v    float64
	rule int
	px   float64
}

// makeTicks lays trades out one second apart starting at start.
func makeTicks(start time.Time, trades ...trade) []model.Tick {
	ticks := make([]model.Tick, len(trades))
	for i, tr := range trades {
		px := tr.px
		if px == 0 {
			px = 100
		}
		rule := tr.rule
		if rule == 0 {
			rule = 1
		}
		ticks[i] = model.Tick{
			Timestamp:   start.Add(time.Duration(i) * time.Second),
			Nanoseconds: int64(i),
			Price:       px,
			Volume:      tr.v,
			Notional:    tr.v / px,
			Slippage:    tr.v * 0.01,
			TickRule:    rule,
		}
	}
	return ticks
}

func volumes(vs ...float64) []trade {
	out := make([]trade, len(vs))
	for i, v := range vs {
		out[i] = trade{v: v, rule: 1}
	}
	return out
}

func sumVolume(bars []model.Bar) float64 {
	var s float64
	for _, b := range bars {
		s += b.Volume
	}
	return s
}
