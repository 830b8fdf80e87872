package model

import (
	"encoding/json"
	"time"
)

// DateLayout is the document id / partition layout for a UTC trading day.
const DateLayout = "2006-01-02"

// TopTrade is a tick reduced to the fields kept in a bar's top-N list.
type TopTrade struct {
	Symbol      string    `json:"symbol,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Nanoseconds int64     `json:"nanoseconds"`
	Price       float64   `json:"price"`
	Slippage    float64   `json:"slippage"`
	Volume      float64   `json:"volume"`
	Notional    float64   `json:"notional"`
	Exponent    int       `json:"exponent"`
	TickRule    int       `json:"tickRule"`
}

// Before orders top trades by (timestamp, nanoseconds).
func (t *TopTrade) Before(o *TopTrade) bool {
	return timeBefore(t.Timestamp, t.Nanoseconds, o.Timestamp, o.Nanoseconds)
}

// Less is a total order on top trades: time first, then the remaining
// fields. Trades equal under Less are indistinguishable.
func (t *TopTrade) Less(o *TopTrade) bool {
	if !t.Timestamp.Equal(o.Timestamp) || t.Nanoseconds != o.Nanoseconds {
		return t.Before(o)
	}
	if t.Symbol != o.Symbol {
		return t.Symbol < o.Symbol
	}
	for _, p := range [][2]float64{
		{t.Price, o.Price},
		{t.Volume, o.Volume},
		{t.Notional, o.Notional},
		{t.Slippage, o.Slippage},
		{float64(t.Exponent), float64(o.Exponent)},
		{float64(t.TickRule), float64(o.TickRule)},
	} {
		if p[0] != p[1] {
			return p[0] < p[1]
		}
	}
	return false
}

// NewTopTrade reduces a tick to its top-N representation.
func NewTopTrade(t *Tick) TopTrade {
	return TopTrade{
		Symbol:      t.Symbol,
		Timestamp:   t.Timestamp,
		Nanoseconds: t.Nanoseconds,
		Price:       t.Price,
		Slippage:    t.Slippage,
		Volume:      t.Volume,
		Notional:    t.Notional,
		Exponent:    t.Exponent,
		TickRule:    t.TickRule,
	}
}

// Bar aggregates a contiguous run of ticks. Its identity is the
// (timestamp, nanoseconds) of the last constituent tick.
// The same shape is used for the pending tail carried between days.
type Bar struct {
	Timestamp   time.Time `json:"timestamp"`
	Nanoseconds int64     `json:"nanoseconds"`

	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`

	Slippage    float64 `json:"slippage"`
	BuySlippage float64 `json:"buySlippage"`
	Volume      float64 `json:"volume"`
	BuyVolume   float64 `json:"buyVolume"`
	Notional    float64 `json:"notional"`
	BuyNotional float64 `json:"buyNotional"`
	Ticks       int64   `json:"ticks"`
	BuyTicks    int64   `json:"buyTicks"`

	TopN []TopTrade `json:"topN"`
}

// Date returns the UTC trading day of the bar's last tick.
func (b *Bar) Date() string {
	return b.Timestamp.UTC().Format(DateLayout)
}

// Clone returns a deep copy of the bar.
func (b *Bar) Clone() Bar {
	c := *b
	if b.TopN != nil {
		c.TopN = make([]TopTrade, len(b.TopN))
		copy(c.TopN, b.TopN)
	}
	return c
}

// TopNJSON returns the JSON-encoded top-N list (ignoring errors, the
// list only holds plain values).
func (b *Bar) TopNJSON() []byte {
	top := b.TopN
	if top == nil {
		top = []TopTrade{}
	}
	data, _ := json.Marshal(top)
	return data
}
