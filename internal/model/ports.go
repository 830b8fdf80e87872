package model

import (
	"context"
	"time"
)

// ---- Storage ports ----
// These interfaces decouple the bar engine runner from concrete storage
// (Parquet, SQLite, Redis). Each implementation satisfies one of them.

// TickSource returns one trading day of ticks.
type TickSource interface {
	// Ticks returns the filtered ticks of date, in source order. May be empty.
	Ticks(ctx context.Context, date time.Time, f Filter) ([]Tick, error)

	// MinDate returns the earliest date with data. ok is false when the
	// source holds nothing.
	MinDate(ctx context.Context, f Filter) (date time.Time, ok bool, err error)
}

// CacheStore persists one cache document per date within a collection.
// Documents are JSON encoded; numeric fields must be plain float64.
type CacheStore interface {
	// Get decodes the document id into dst. Returns false if it does not exist.
	Get(ctx context.Context, id string, dst any) (bool, error)

	// Put writes the document id, replacing any previous value.
	Put(ctx context.Context, id string, v any) error

	// Exists reports whether the document id exists.
	Exists(ctx context.Context, id string) (bool, error)
}

// BarSink is the append-only output table, partitioned by date.
type BarSink interface {
	// WriteBars writes one date's bars in a single batch. Each bar is stored
	// with its position in bars as index.
	WriteBars(ctx context.Context, date time.Time, bars []Bar) error

	// DeleteBars removes a date's partition. Used to undo a half-committed day.
	DeleteBars(ctx context.Context, date time.Time) error

	// Close releases underlying resources.
	Close() error
}
