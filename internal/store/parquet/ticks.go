package parquet

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"tickbars/internal/model"
)

// TickSource reads a day of ticks from <dir>/<table>/<date>.parquet.
type TickSource struct {
	dir string
}

var _ model.TickSource = (*TickSource)(nil)

// NewTickSource returns a source rooted at dir/table.
func NewTickSource(dir, table string) *TickSource {
	return &TickSource{dir: filepath.Join(dir, table)}
}

func (s *TickSource) path(date time.Time) string {
	return filepath.Join(s.dir, date.Format(model.DateLayout)+".parquet")
}

// WriteTicks stores ticks as date's partition, replacing any existing file.
// Row indexes follow slice order.
func (s *TickSource) WriteTicks(date time.Time, ticks []model.Tick) error {
	rows := make([]TickRow, len(ticks))
	for i := range ticks {
		rows[i] = tickRow(&ticks[i], i)
	}
	return writeAtomic(s.path(date), rows)
}

// Ticks reads date's partition, applies f and orders rows by
// (symbol?, timestamp, nanoseconds, index). A missing partition is an
// empty day.
func (s *TickSource) Ticks(ctx context.Context, date time.Time, f model.Filter) ([]model.Tick, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.path(date)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	rows, err := parquet.ReadFile[TickRow](path)
	if err != nil {
		return nil, fmt.Errorf("parquet read %s: %w", path, err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if f.MultipleSymbols && a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		if a.Nanoseconds != b.Nanoseconds {
			return a.Nanoseconds < b.Nanoseconds
		}
		return a.Index < b.Index
	})

	ticks := make([]model.Tick, 0, len(rows))
	for i := range rows {
		t := rows[i].tick()
		if f.Match(&t) {
			ticks = append(ticks, t)
		}
	}
	return ticks, nil
}

// MinDate returns the first partition date. With a symbol filter, the
// first partition holding that symbol.
func (s *TickSource) MinDate(ctx context.Context, f model.Filter) (time.Time, bool, error) {
	dates, err := s.dates()
	if err != nil {
		return time.Time{}, false, err
	}
	for _, d := range dates {
		if f.Symbol == "" {
			return d, true, nil
		}
		ticks, err := s.Ticks(ctx, d, model.Filter{Symbol: f.Symbol})
		if err != nil {
			return time.Time{}, false, err
		}
		if len(ticks) > 0 {
			return d, true, nil
		}
	}
	return time.Time{}, false, nil
}

// dates lists partition dates in ascending order.
func (s *TickSource) dates() ([]time.Time, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parquet list %s: %w", s.dir, err)
	}
	var dates []time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".parquet") {
			continue
		}
		d, err := time.Parse(model.DateLayout, strings.TrimSuffix(name, ".parquet"))
		if err != nil {
			log.Printf("[parquet] skipping %s: not a date partition", name)
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// writeAtomic writes rows to a temporary file and renames it into place.
func writeAtomic[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("parquet write %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}
