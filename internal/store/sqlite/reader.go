package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"tickbars/internal/model"
)

// TickStore is a tick source backed by a SQLite table with one row per
// trade and a date partition column.
type TickStore struct {
	db    *sql.DB
	table string
}

var _ model.TickSource = (*TickStore)(nil)

// NewTickStore opens dbPath and creates table if it does not exist.
func NewTickStore(dbPath, table string) (*TickStore, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			date        TEXT    NOT NULL,
			idx         INTEGER NOT NULL,
			symbol      TEXT    NOT NULL DEFAULT '',
			ts          INTEGER NOT NULL,
			nanoseconds INTEGER NOT NULL,
			price       REAL    NOT NULL,
			slippage    REAL    NOT NULL,
			volume      REAL    NOT NULL,
			notional    REAL    NOT NULL,
			tick_rule   INTEGER NOT NULL,
			exponent    INTEGER NOT NULL,
			PRIMARY KEY (date, idx)
		);
	`, table))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite tick schema: %w", err)
	}

	log.Printf("[sqlite-ticks] opened %s (table=%s)", dbPath, table)
	return &TickStore{db: db, table: table}, nil
}

// InsertTicks appends ticks to date's partition, numbering them after any
// rows already present.
func (s *TickStore) InsertTicks(ctx context.Context, date time.Time, ticks []model.Tick) error {
	day := date.Format(model.DateLayout)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(idx) + 1, 0) FROM `+s.table+` WHERE date = ?`, day).Scan(&next); err != nil {
		tx.Rollback()
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+s.table+` (date, idx, symbol, ts, nanoseconds, price, slippage, volume, notional, tick_rule, exponent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range ticks {
		t := &ticks[i]
		if _, err := stmt.ExecContext(ctx, day, next+i, t.Symbol, t.Timestamp.UnixMicro(), t.Nanoseconds,
			t.Price, t.Slippage, t.Volume, t.Notional, t.TickRule, t.Exponent); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert tick: %w", err)
		}
	}
	return tx.Commit()
}

// Ticks returns date's ticks matching f, ordered by
// (symbol?, timestamp, nanoseconds, index).
func (s *TickStore) Ticks(ctx context.Context, date time.Time, f model.Filter) ([]model.Tick, error) {
	where, args := whereClauses(date, f)
	orderBy := "ts, nanoseconds, idx"
	if f.MultipleSymbols {
		orderBy = "symbol, " + orderBy
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, ts, nanoseconds, price, slippage, volume, notional, tick_rule, exponent
		FROM `+s.table+`
		WHERE `+where+`
		ORDER BY `+orderBy, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query %s: %w", s.table, err)
	}
	defer rows.Close()

	var ticks []model.Tick
	for rows.Next() {
		var t model.Tick
		var tsMicro int64
		if err := rows.Scan(&t.Symbol, &tsMicro, &t.Nanoseconds, &t.Price, &t.Slippage,
			&t.Volume, &t.Notional, &t.TickRule, &t.Exponent); err != nil {
			return nil, fmt.Errorf("sqlite scan %s: %w", s.table, err)
		}
		t.Timestamp = time.UnixMicro(tsMicro).UTC()
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// MinDate returns the earliest date holding a matching tick.
func (s *TickStore) MinDate(ctx context.Context, f model.Filter) (time.Time, bool, error) {
	var day sql.NullString
	query := `SELECT MIN(date) FROM ` + s.table
	var args []any
	if f.Symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, f.Symbol)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&day); err != nil {
		return time.Time{}, false, fmt.Errorf("sqlite min date: %w", err)
	}
	if !day.Valid {
		return time.Time{}, false, nil
	}
	d, err := time.Parse(model.DateLayout, day.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return d, true, nil
}

// DB exposes the underlying handle for health checks.
func (s *TickStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *TickStore) Close() error {
	return s.db.Close()
}

func whereClauses(date time.Time, f model.Filter) (string, []any) {
	clauses := []string{"date = ?"}
	args := []any{date.Format(model.DateLayout)}
	add := func(clause string, v any) {
		clauses = append(clauses, clause)
		args = append(args, v)
	}

	if f.Symbol != "" {
		add("symbol = ?", f.Symbol)
	}
	if f.MinSlippage != nil {
		add("slippage >= ?", *f.MinSlippage)
	}
	if f.MaxSlippage != nil {
		add("slippage <= ?", *f.MaxSlippage)
	}
	if f.MinVolume != nil {
		add("volume >= ?", *f.MinVolume)
	}
	if f.MaxVolume != nil {
		add("volume <= ?", *f.MaxVolume)
	}
	if f.MinNotional != nil {
		add("notional >= ?", *f.MinNotional)
	}
	if f.MaxNotional != nil {
		add("notional <= ?", *f.MaxNotional)
	}
	if f.MinExponent != nil {
		add("exponent >= ?", *f.MinExponent)
	}
	if f.MaxExponent != nil {
		op := "<="
		if *f.MaxExponent == 0 {
			op = "="
		}
		add("exponent "+op+" ?", *f.MaxExponent)
	}
	if f.TickRule != nil {
		add("tick_rule = ?", *f.TickRule)
	}
	return strings.Join(clauses, " AND "), args
}
