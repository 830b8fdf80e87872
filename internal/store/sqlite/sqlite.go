// Package sqlite implements the bar sink and a tick source on SQLite.
package sqlite

import (
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/mattn/go-sqlite3"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// open opens dbPath in WAL mode with a single connection, which serialises
// writers to the file.
func open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

func checkTable(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("sqlite: invalid table name %q", name)
	}
	return nil
}
