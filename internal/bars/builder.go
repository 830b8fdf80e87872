package bars

import (
	"sort"

	"tickbars/internal/model"
)

// BuildBar aggregates a non-empty contiguous run of ticks into one bar in a
// single pass. topN bounds the number of largest-by-volume trades kept.
func BuildBar(ticks []model.Tick, topN int) (model.Bar, error) {
	if len(ticks) == 0 {
		return model.Bar{}, ErrEmptyRange
	}
	b := newBarBuilder(nil, topN)
	for i := range ticks {
		b.add(&ticks[i])
	}
	return b.build(), nil
}

// barBuilder folds ticks into a bar one at a time. Sums are always extended
// in tick order, so a bar resumed from a carried tail holds exactly the
// same floats as one built over the whole range.
type barBuilder struct {
	bar     model.Bar
	started bool
	top     []model.TopTrade
	topN    int
}

// newBarBuilder starts empty, or from a copy of a pending tail.
func newBarBuilder(from *model.Bar, topN int) *barBuilder {
	b := &barBuilder{topN: topN}
	if from != nil {
		b.bar = from.Clone()
		b.started = true
		b.top = b.bar.TopN
	}
	return b
}

func (b *barBuilder) add(t *model.Tick) {
	bar := &b.bar
	if !b.started {
		bar.Open, bar.High, bar.Low = t.Price, t.Price, t.Price
		b.started = true
	}
	if t.Price > bar.High {
		bar.High = t.Price
	}
	if t.Price < bar.Low {
		bar.Low = t.Price
	}
	bar.Close = t.Price
	bar.Timestamp = t.Timestamp
	bar.Nanoseconds = t.Nanoseconds

	bar.Slippage += t.Slippage
	bar.Volume += t.Volume
	bar.Notional += t.Notional
	bar.Ticks++
	if t.IsBuy() {
		bar.BuySlippage += t.Slippage
		bar.BuyVolume += t.Volume
		bar.BuyNotional += t.Notional
		bar.BuyTicks++
	}

	if b.topN > 0 {
		b.top = append(b.top, model.NewTopTrade(t))
		if len(b.top) >= 4*b.topN {
			b.top = selectTopN(b.top, b.topN)
		}
	}
}

func (b *barBuilder) build() model.Bar {
	bar := b.bar
	bar.TopN = selectTopN(b.top, b.topN)
	return bar
}

// selectTopN keeps the n largest trades by volume and returns them ordered
// by (timestamp, nanoseconds). Volume ties go to the earlier trade, so the
// result does not depend on the order of candidates, which is reordered in
// place.
func selectTopN(candidates []model.TopTrade, n int) []model.TopTrade {
	if n <= 0 {
		return []model.TopTrade{}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := &candidates[i], &candidates[j]
		if a.Volume != b.Volume {
			return a.Volume > b.Volume
		}
		return a.Less(b)
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	top := make([]model.TopTrade, len(candidates))
	copy(top, candidates)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Less(&top[j])
	})
	return top
}
