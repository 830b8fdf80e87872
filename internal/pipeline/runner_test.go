package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbars/internal/bars"
	"tickbars/internal/calendar"
	"tickbars/internal/model"
)

var day1 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func dayTicks(date time.Time, vols ...float64) []model.Tick {
	out := make([]model.Tick, len(vols))
	for i, v := range vols {
		rule := 1
		if i%2 == 1 {
			rule = -1
		}
		out[i] = model.Tick{
			Symbol:    "XBTUSD",
			Timestamp: date.Add(time.Duration(i+1) * time.Minute),
			Price:     100,
			Volume:    v,
			Notional:  v / 100,
			TickRule:  rule,
		}
	}
	return out
}

func threeDays() *memTicks {
	return &memTicks{days: map[string][]model.Tick{
		"2024-03-01": dayTicks(day1, 5, 3, 4),
		"2024-03-02": dayTicks(day1.AddDate(0, 0, 1), 2, 6),
		"2024-03-03": dayTicks(day1.AddDate(0, 0, 2), 1),
	}}
}

func newThresholdRunner(t *testing.T, ticks *memTicks, cache *memCache, sink *memSink, cfg Config) *Runner[bars.ThresholdCache] {
	t.Helper()
	eng, err := bars.NewThresholdEngine("volume", 8, 2)
	require.NoError(t, err)
	if cfg.Destination == "" {
		cfg.Destination = "volume_bars"
	}
	r, err := NewRunner[bars.ThresholdCache](eng, ticks, cache, sink, cfg, Hooks{})
	require.NoError(t, err)
	return r
}

func TestRun_ThresholdCarriesTailAcrossDays(t *testing.T) {
	cache, sink := newMemCache(), newMemSink()
	r := newThresholdRunner(t, threeDays(), cache, sink, Config{From: day1, To: day1.AddDate(0, 0, 2)})

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 2, sum.Bars)
	assert.Equal(t, "2024-03-03", calendar.DocumentID(sum.LastGood))

	require.Len(t, sink.days["2024-03-01"], 1)
	assert.Equal(t, 8.0, sink.days["2024-03-01"][0].Volume)
	assert.Equal(t, 5.0, sink.days["2024-03-01"][0].BuyVolume)

	// The day-one tail (4) is merged into the first bar of day two.
	second := sink.days["2024-03-02"]
	require.Len(t, second, 1)
	assert.Equal(t, 12.0, second[0].Volume)
	assert.Equal(t, int64(3), second[0].Ticks)
	assert.True(t, second[0].Timestamp.Equal(day1.AddDate(0, 0, 1).Add(2*time.Minute)))

	_, ok := sink.days["2024-03-03"]
	assert.False(t, ok, "no bar closes on day three")

	var last bars.ThresholdCache
	found, err := cache.Get(context.Background(), "2024-03-03", &last)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1.0, last.Accumulator)
	require.NotNil(t, last.Pending)
	assert.Equal(t, 1.0, last.Pending.Volume)
}

func TestRun_RerunSkipsProcessedDates(t *testing.T) {
	cache, sink := newMemCache(), newMemSink()
	cfg := Config{From: day1, To: day1.AddDate(0, 0, 2), Verbose: true}

	_, err := newThresholdRunner(t, threeDays(), cache, sink, cfg).Run(context.Background())
	require.NoError(t, err)
	writes := sink.writes

	var skipped []time.Time
	eng, _ := bars.NewThresholdEngine("volume", 8, 2)
	cfg.Destination = "volume_bars"
	r, err := NewRunner[bars.ThresholdCache](eng, threeDays(), cache, sink, cfg, Hooks{
		OnSkip: func(d time.Time) { skipped = append(skipped, d) },
	})
	require.NoError(t, err)

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Processed)
	assert.Equal(t, 3, sum.Skipped)
	assert.Len(t, skipped, 3)
	assert.Equal(t, writes, sink.writes)
	assert.Equal(t, "2024-03-03", calendar.DocumentID(sum.LastGood))
}

func TestProcessDate_MissingPredecessorCache(t *testing.T) {
	cache, sink := newMemCache(), newMemSink()
	r := newThresholdRunner(t, threeDays(), cache, sink, Config{})

	_, err := r.processDate(context.Background(), day1, day1.AddDate(0, 0, 2))
	require.ErrorIs(t, err, ErrMissingCache)
	assert.Zero(t, sink.writes)
	assert.Empty(t, cache.docs)

	// The range start itself begins from the initial cache.
	_, err = r.processDate(context.Background(), day1, day1)
	require.NoError(t, err)
}

func TestRun_CacheFailureRollsBackBars(t *testing.T) {
	cache, sink := newMemCache(), newMemSink()
	cache.failPut["2024-03-02"] = true

	var failed time.Time
	eng, _ := bars.NewThresholdEngine("volume", 8, 2)
	r, err := NewRunner[bars.ThresholdCache](eng, threeDays(), cache, sink,
		Config{Destination: "volume_bars", From: day1, To: day1.AddDate(0, 0, 2)},
		Hooks{OnFail: func(d time.Time, _ error) { failed = d }})
	require.NoError(t, err)

	sum, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Volume bars 2024-03-02")
	assert.Equal(t, "2024-03-01", calendar.DocumentID(sum.LastGood))
	assert.Equal(t, "2024-03-02", calendar.DocumentID(failed))
	assert.Equal(t, 1, sink.deletes)
	_, ok := sink.days["2024-03-02"]
	assert.False(t, ok)
	_, ok = cache.docs["2024-03-03"]
	assert.False(t, ok, "loop must stop at the failed date")
}

func TestRun_DefaultRange(t *testing.T) {
	cache, sink := newMemCache(), newMemSink()
	now := func() time.Time { return day1.AddDate(0, 0, 2).Add(9 * time.Hour) }
	r := newThresholdRunner(t, threeDays(), cache, sink, Config{Now: now})

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", calendar.DocumentID(sum.From))
	assert.Equal(t, "2024-03-02", calendar.DocumentID(sum.To))
	assert.Equal(t, 2, sum.Processed)
}

func TestRun_EmptySourceIsNoop(t *testing.T) {
	r := newThresholdRunner(t, &memTicks{}, newMemCache(), newMemSink(), Config{})
	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Processed)
}

func TestRun_AdaptiveReportsWindow(t *testing.T) {
	ticks := &memTicks{days: map[string][]model.Tick{
		"2024-03-01": dayTicks(day1, 4, 6),
		"2024-03-02": dayTicks(day1.AddDate(0, 0, 1), 20),
		"2024-03-03": dayTicks(day1.AddDate(0, 0, 2), 1, 1),
	}}
	eng, err := bars.NewAdaptiveEngine(bars.AdaptiveConfig{Attr: "volume", WindowSize: "2d", TopN: 1})
	require.NoError(t, err)

	var days []DayResult
	cache, sink := newMemCache(), newMemSink()
	r, err := NewRunner[bars.AdaptiveCache](eng, ticks, cache, sink,
		Config{Destination: "adaptive_volume", From: day1, To: day1.AddDate(0, 0, 2)},
		Hooks{OnDay: func(d DayResult) { days = append(days, d) }})
	require.NoError(t, err)

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.Equal(t, 1, days[0].WindowLen)
	assert.True(t, days[0].HasWindow)
	assert.Equal(t, 0, days[0].Bars)
	assert.Equal(t, 0, days[1].Bars)
	// Window [10, 20] with a 1h frequency.
	assert.InDelta(t, 0.625, days[1].Target, 1e-12)
	assert.Equal(t, 2, days[2].WindowLen)

	// Day three closes on its first tick, absorbing the whole warm-up.
	assert.Equal(t, 2, days[2].Bars)
	assert.Equal(t, 2, sum.Bars)
	first := sink.days["2024-03-03"][0]
	assert.Equal(t, 31.0, first.Volume)
	assert.Len(t, first.TopN, 1)
	assert.Equal(t, 20.0, first.TopN[0].Volume)
}

func TestNewRunner_Validation(t *testing.T) {
	eng, _ := bars.NewThresholdEngine("volume", 8, 0)
	_, err := NewRunner[bars.ThresholdCache](eng, &memTicks{}, newMemCache(), newMemSink(), Config{}, Hooks{})
	assert.Error(t, err)
	_, err = NewRunner[bars.ThresholdCache](eng, nil, newMemCache(), newMemSink(), Config{Destination: "x"}, Hooks{})
	assert.Error(t, err)
}

func TestNaming(t *testing.T) {
	assert.Equal(t, "volume-bars", CollectionName("volume_bars"))
	assert.Equal(t, "Volume bars", LogPrefix("volume_bars"))
	assert.Equal(t, "", LogPrefix(""))
}
