// Package postgres persists search result tables (coarse results,
// fine-tune results, fine-tune top, leaderboard) in PostgreSQL.
// Each table is stored as positioned rows keyed by (table_name, position)
// and is replaced whole on every save.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the connection pool shared by the result store and migrations.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects to dsn and pings the server. The caller closes the pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse results dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect results db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping results db: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close releases all connections.
func (p *Pool) Close() {
	p.Pool.Close()
}

// isNotFoundError reports whether a single-row query matched nothing,
// i.e. the result table was never saved.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
