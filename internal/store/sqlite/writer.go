package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"tickbars/internal/model"
)

// WriterConfig configures the SQLite bar writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/bars.db"
	Table  string // destination table, e.g. "btcusd_volume_1000"
}

// Writer is the bar sink. Each date is a partition of Table; a date's bars
// are written in one transaction together with their batch index.
type Writer struct {
	db    *sql.DB
	table string
}

var _ model.BarSink = (*Writer)(nil)

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database and creates the destination table if needed.
func New(cfg WriterConfig) (*Writer, error) {
	if err := checkTable(cfg.Table); err != nil {
		return nil, err
	}
	db, err := open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := createBarSchema(db, cfg.Table); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened %s (table=%s)", cfg.DBPath, cfg.Table)
	return &Writer{db: db, table: cfg.Table}, nil
}

func createBarSchema(db *sql.DB, table string) error {
	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			date          TEXT    NOT NULL,
			idx           INTEGER NOT NULL,
			ts            INTEGER NOT NULL,
			nanoseconds   INTEGER NOT NULL,
			open          REAL    NOT NULL,
			high          REAL    NOT NULL,
			low           REAL    NOT NULL,
			close         REAL    NOT NULL,
			slippage      REAL,
			buy_slippage  REAL,
			volume        REAL,
			buy_volume    REAL,
			notional      REAL,
			buy_notional  REAL,
			ticks         INTEGER,
			buy_ticks     INTEGER,
			top_n         TEXT,
			PRIMARY KEY (date, idx)
		);
	`, table))
	return err
}

// WriteBars replaces date's partition with bars in a single transaction.
func (w *Writer) WriteBars(ctx context.Context, date time.Time, bars []model.Bar) error {
	day := date.Format(model.DateLayout)
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+w.table+` WHERE date = ?`, day); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite clear %s: %w", day, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+w.table+` (date, idx, ts, nanoseconds, open, high, low, close,
			slippage, buy_slippage, volume, buy_volume, notional, buy_notional, ticks, buy_ticks, top_n)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range bars {
		b := &bars[i]
		_, err := stmt.ExecContext(ctx, day, i, b.Timestamp.UnixMicro(), b.Nanoseconds,
			b.Open, b.High, b.Low, b.Close,
			b.Slippage, b.BuySlippage, b.Volume, b.BuyVolume, b.Notional, b.BuyNotional,
			b.Ticks, b.BuyTicks, string(b.TopNJSON()))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert bar %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[sqlite] committed %d bars for %s in %v", len(bars), day, time.Since(start))
	return nil
}

// DeleteBars drops date's partition.
func (w *Writer) DeleteBars(ctx context.Context, date time.Time) error {
	_, err := w.db.ExecContext(ctx, `DELETE FROM `+w.table+` WHERE date = ?`, date.Format(model.DateLayout))
	if err != nil {
		return fmt.Errorf("sqlite delete %s: %w", date.Format(model.DateLayout), err)
	}
	return nil
}

// ReadBars returns date's bars ordered by batch index.
func (w *Writer) ReadBars(ctx context.Context, date time.Time) ([]model.Bar, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT ts, nanoseconds, open, high, low, close, slippage, buy_slippage,
			volume, buy_volume, notional, buy_notional, ticks, buy_ticks, top_n
		FROM `+w.table+`
		WHERE date = ?
		ORDER BY idx ASC
	`, date.Format(model.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("sqlite query %s: %w", w.table, err)
	}
	defer rows.Close()

	var out []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsMicro int64
		var topN string
		if err := rows.Scan(&tsMicro, &b.Nanoseconds, &b.Open, &b.High, &b.Low, &b.Close,
			&b.Slippage, &b.BuySlippage, &b.Volume, &b.BuyVolume, &b.Notional, &b.BuyNotional,
			&b.Ticks, &b.BuyTicks, &topN); err != nil {
			return nil, fmt.Errorf("sqlite scan %s: %w", w.table, err)
		}
		b.Timestamp = time.UnixMicro(tsMicro).UTC()
		if err := json.Unmarshal([]byte(topN), &b.TopN); err != nil {
			return nil, fmt.Errorf("decode top_n: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CountBars returns the number of bars stored for date.
func (w *Writer) CountBars(ctx context.Context, date time.Time) (int, error) {
	var n int
	err := w.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+w.table+` WHERE date = ?`,
		date.Format(model.DateLayout)).Scan(&n)
	return n, err
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
