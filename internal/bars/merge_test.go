package bars_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbars/internal/bars"
)

func TestMergeTail_KeepsChronology(t *testing.T) {
	prevTicks := makeTicks(base, trade{v: 2, rule: 1, px: 100}, trade{v: 9, rule: -1, px: 90})
	nextTicks := makeTicks(base.Add(24*time.Hour), trade{v: 4, rule: 1, px: 110}, trade{v: 1, rule: -1, px: 105})

	prev, err := bars.BuildBar(prevTicks, 2)
	require.NoError(t, err)
	next, err := bars.BuildBar(nextTicks, 2)
	require.NoError(t, err)

	merged := bars.MergeTail(prev, next, 2)

	assert.Equal(t, 100.0, merged.Open)
	assert.Equal(t, 105.0, merged.Close)
	assert.Equal(t, 110.0, merged.High)
	assert.Equal(t, 90.0, merged.Low)
	assert.Equal(t, 16.0, merged.Volume)
	assert.Equal(t, 6.0, merged.BuyVolume)
	assert.Equal(t, int64(4), merged.Ticks)
	assert.Equal(t, int64(2), merged.BuyTicks)
	assert.Equal(t, next.Timestamp, merged.Timestamp)
	assert.Equal(t, "2024-03-02", merged.Date())

	// Largest two are 9 (day 1) and 4 (day 2), in time order.
	require.Len(t, merged.TopN, 2)
	assert.Equal(t, 9.0, merged.TopN[0].Volume)
	assert.Equal(t, 4.0, merged.TopN[1].Volume)
}

func TestMergeTail_SelfMergeDoubles(t *testing.T) {
	tail, err := bars.BuildBar(makeTicks(base,
		trade{v: 3, rule: 1, px: 101},
		trade{v: 7, rule: -1, px: 99},
		trade{v: 1, rule: 1, px: 103},
	), 10)
	require.NoError(t, err)

	merged := bars.MergeTail(tail, tail, 10)

	assert.Equal(t, 2*tail.Volume, merged.Volume)
	assert.Equal(t, 2*tail.BuyVolume, merged.BuyVolume)
	assert.Equal(t, 2*tail.Notional, merged.Notional)
	assert.Equal(t, 2*tail.BuyNotional, merged.BuyNotional)
	assert.Equal(t, 2*tail.Slippage, merged.Slippage)
	assert.Equal(t, 2*tail.BuySlippage, merged.BuySlippage)
	assert.Equal(t, 2*tail.Ticks, merged.Ticks)
	assert.Equal(t, 2*tail.BuyTicks, merged.BuyTicks)
	assert.Equal(t, tail.High, merged.High)
	assert.Equal(t, tail.Low, merged.Low)
	assert.Len(t, merged.TopN, 6)
}

func TestMergeTail_RespectsCapAndInputs(t *testing.T) {
	prev, err := bars.BuildBar(makeTicks(base, volumes(1, 2, 3)...), 3)
	require.NoError(t, err)
	next, err := bars.BuildBar(makeTicks(base.Add(time.Hour), volumes(4, 5, 6)...), 3)
	require.NoError(t, err)
	prevTop := append([]float64(nil), prev.TopN[0].Volume, prev.TopN[1].Volume, prev.TopN[2].Volume)

	for n := 0; n <= 7; n++ {
		merged := bars.MergeTail(prev, next, n)
		want := n
		if want > 6 {
			want = 6
		}
		assert.Len(t, merged.TopN, want, "cap=%d", n)
	}

	merged := bars.MergeTail(prev, next, 3)
	got := []float64{merged.TopN[0].Volume, merged.TopN[1].Volume, merged.TopN[2].Volume}
	assert.Equal(t, []float64{4, 5, 6}, got)

	// Inputs are left untouched.
	assert.Equal(t, prevTop, []float64{prev.TopN[0].Volume, prev.TopN[1].Volume, prev.TopN[2].Volume})
	assert.Equal(t, 15.0, next.Volume)
}
