package model

import "time"

// Tick is a single executed trade as delivered by the tick source.
// Rows arrive ordered by (symbol?, timestamp, nanoseconds, index).
type Tick struct {
	Symbol      string    `json:"symbol,omitempty"`
	Timestamp   time.Time `json:"timestamp"`   // UTC, microsecond resolution
	Nanoseconds int64     `json:"nanoseconds"` // sub-microsecond remainder
	Price       float64   `json:"price"`
	Volume      float64   `json:"volume"`
	Notional    float64   `json:"notional"`
	Slippage    float64   `json:"slippage"`
	TickRule    int       `json:"tickRule"` // +1 buyer initiated, -1 seller initiated
	Exponent    int       `json:"exponent"`
}

// IsBuy reports whether the trade was buyer initiated.
func (t *Tick) IsBuy() bool { return t.TickRule == 1 }

// Before orders ticks by (timestamp, nanoseconds).
func (t *Tick) Before(o *Tick) bool {
	return timeBefore(t.Timestamp, t.Nanoseconds, o.Timestamp, o.Nanoseconds)
}

func timeBefore(ts time.Time, ns int64, ots time.Time, ons int64) bool {
	if !ts.Equal(ots) {
		return ts.Before(ots)
	}
	return ns < ons
}
