// Package parquet keeps one Parquet file per table and date under a base
// directory: <dir>/<table>/<YYYY-MM-DD>.parquet.
package parquet

import (
	"encoding/json"
	"time"

	"tickbars/internal/model"
)

// TickRow is the on-disk layout of a tick.
type TickRow struct {
	Symbol      string  `parquet:"symbol"`
	Timestamp   int64   `parquet:"timestamp"` // Unix microseconds
	Nanoseconds int64   `parquet:"nanoseconds"`
	Index       int64   `parquet:"index"`
	Price       float64 `parquet:"price"`
	Slippage    float64 `parquet:"slippage"`
	Volume      float64 `parquet:"volume"`
	Notional    float64 `parquet:"notional"`
	TickRule    int32   `parquet:"tickRule"`
	Exponent    int32   `parquet:"exponent"`
}

func (r *TickRow) tick() model.Tick {
	return model.Tick{
		Symbol:      r.Symbol,
		Timestamp:   time.UnixMicro(r.Timestamp).UTC(),
		Nanoseconds: r.Nanoseconds,
		Price:       r.Price,
		Volume:      r.Volume,
		Notional:    r.Notional,
		Slippage:    r.Slippage,
		TickRule:    int(r.TickRule),
		Exponent:    int(r.Exponent),
	}
}

func tickRow(t *model.Tick, index int) TickRow {
	return TickRow{
		Symbol:      t.Symbol,
		Timestamp:   t.Timestamp.UnixMicro(),
		Nanoseconds: t.Nanoseconds,
		Index:       int64(index),
		Price:       t.Price,
		Slippage:    t.Slippage,
		Volume:      t.Volume,
		Notional:    t.Notional,
		TickRule:    int32(t.TickRule),
		Exponent:    int32(t.Exponent),
	}
}

// BarRow is the on-disk layout of a bar. TopN is JSON encoded.
type BarRow struct {
	Date        string  `parquet:"date"`
	Index       int64   `parquet:"index"`
	Timestamp   int64   `parquet:"timestamp"` // Unix microseconds
	Nanoseconds int64   `parquet:"nanoseconds"`
	Open        float64 `parquet:"open"`
	High        float64 `parquet:"high"`
	Low         float64 `parquet:"low"`
	Close       float64 `parquet:"close"`
	Slippage    float64 `parquet:"slippage"`
	BuySlippage float64 `parquet:"buySlippage"`
	Volume      float64 `parquet:"volume"`
	BuyVolume   float64 `parquet:"buyVolume"`
	Notional    float64 `parquet:"notional"`
	BuyNotional float64 `parquet:"buyNotional"`
	Ticks       int64   `parquet:"ticks"`
	BuyTicks    int64   `parquet:"buyTicks"`
	TopN        string  `parquet:"topN"`
}

func barRow(date string, index int, b *model.Bar) BarRow {
	return BarRow{
		Date:        date,
		Index:       int64(index),
		Timestamp:   b.Timestamp.UnixMicro(),
		Nanoseconds: b.Nanoseconds,
		Open:        b.Open,
		High:        b.High,
		Low:         b.Low,
		Close:       b.Close,
		Slippage:    b.Slippage,
		BuySlippage: b.BuySlippage,
		Volume:      b.Volume,
		BuyVolume:   b.BuyVolume,
		Notional:    b.Notional,
		BuyNotional: b.BuyNotional,
		Ticks:       b.Ticks,
		BuyTicks:    b.BuyTicks,
		TopN:        string(b.TopNJSON()),
	}
}

func (r *BarRow) bar() (model.Bar, error) {
	b := model.Bar{
		Timestamp:   time.UnixMicro(r.Timestamp).UTC(),
		Nanoseconds: r.Nanoseconds,
		Open:        r.Open,
		High:        r.High,
		Low:         r.Low,
		Close:       r.Close,
		Slippage:    r.Slippage,
		BuySlippage: r.BuySlippage,
		Volume:      r.Volume,
		BuyVolume:   r.BuyVolume,
		Notional:    r.Notional,
		BuyNotional: r.BuyNotional,
		Ticks:       r.Ticks,
		BuyTicks:    r.BuyTicks,
	}
	err := json.Unmarshal([]byte(r.TopN), &b.TopN)
	return b, err
}
