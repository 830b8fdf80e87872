package parquet

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"tickbars/internal/model"
)

// BarWriter is a bar sink writing one Parquet file per date.
type BarWriter struct {
	dir string
}

var _ model.BarSink = (*BarWriter)(nil)

// NewBarWriter returns a sink rooted at dir/table.
func NewBarWriter(dir, table string) (*BarWriter, error) {
	root := filepath.Join(dir, table)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("parquet mkdir %s: %w", root, err)
	}
	log.Printf("[parquet] writing bars to %s", root)
	return &BarWriter{dir: root}, nil
}

func (w *BarWriter) path(date time.Time) string {
	return filepath.Join(w.dir, date.Format(model.DateLayout)+".parquet")
}

// WriteBars replaces date's file with bars.
func (w *BarWriter) WriteBars(ctx context.Context, date time.Time, bars []model.Bar) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	day := date.Format(model.DateLayout)
	rows := make([]BarRow, len(bars))
	for i := range bars {
		rows[i] = barRow(day, i, &bars[i])
	}
	return writeAtomic(w.path(date), rows)
}

// DeleteBars removes date's file if present.
func (w *BarWriter) DeleteBars(ctx context.Context, date time.Time) error {
	err := os.Remove(w.path(date))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("parquet delete %s: %w", w.path(date), err)
	}
	return nil
}

// ReadBars returns date's bars in index order; nil if the file is absent.
func (w *BarWriter) ReadBars(ctx context.Context, date time.Time) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := w.path(date)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	rows, err := parquet.ReadFile[BarRow](path)
	if err != nil {
		return nil, fmt.Errorf("parquet read %s: %w", path, err)
	}
	out := make([]model.Bar, len(rows))
	seen := make([]bool, len(rows))
	for i := range rows {
		idx := rows[i].Index
		if idx < 0 || idx >= int64(len(rows)) || seen[idx] {
			return nil, fmt.Errorf("parquet %s: row %d has invalid index %d", path, i, idx)
		}
		seen[idx] = true
		b, err := rows[i].bar()
		if err != nil {
			return nil, fmt.Errorf("decode topN row %d: %w", i, err)
		}
		out[idx] = b
	}
	return out, nil
}

func (w *BarWriter) Close() error { return nil }
