// Package sqlite provides a single-file market data store for local runs
// where ClickHouse is not available.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a SQLite handle.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; batches run in a single transaction.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	d := &DB{DB: db}
	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS spot_data (
			symbol       TEXT NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			close        REAL NOT NULL,
			volume       REAL NOT NULL,
			PRIMARY KEY (symbol, timestamp_ms)
		)`,
		`CREATE TABLE IF NOT EXISTS iv_agg (
			symbol       TEXT NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			iv_30d       REAL NOT NULL,
			skew_30d     REAL NOT NULL,
			PRIMARY KEY (symbol, timestamp_ms)
		)`,
		`CREATE TABLE IF NOT EXISTS basis_agg (
			symbol        TEXT NOT NULL,
			timestamp_ms  INTEGER NOT NULL,
			basis_rel     REAL NOT NULL,
			funding_rate  REAL NOT NULL,
			open_interest REAL NOT NULL,
			PRIMARY KEY (symbol, timestamp_ms)
		)`,
	}

	for _, s := range stmts {
		if _, err := d.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// isDuplicateKeyError checks if error is a primary key or unique violation.
func isDuplicateKeyError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
