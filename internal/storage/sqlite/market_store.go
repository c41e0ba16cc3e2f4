package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"formula-lab/internal/domain"
	"formula-lab/internal/storage"
)

// MarketStore implements storage.MarketStore over a SQLite file.
type MarketStore struct {
	db *DB
}

// NewMarketStore creates a new MarketStore.
func NewMarketStore(db *DB) *MarketStore {
	return &MarketStore{db: db}
}

// Compile-time interface check.
var _ storage.MarketStore = (*MarketStore)(nil)

// insertAll runs one statement per row inside a transaction.
// Fails entire batch on any duplicate.
func (s *MarketStore) insertAll(ctx context.Context, query string, n int, args func(i int) ([]any, bool)) error {
	if n == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		a, ok := args(i)
		if !ok {
			return storage.ErrInvalidInput
		}
		if _, err := stmt.ExecContext(ctx, a...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// InsertSpotBars adds bars atomically. Fails entire batch on duplicate (symbol, timestamp_ms).
func (s *MarketStore) InsertSpotBars(ctx context.Context, bars []*domain.SpotBar) error {
	return s.insertAll(ctx,
		`INSERT INTO spot_data (symbol, timestamp_ms, close, volume) VALUES (?, ?, ?, ?)`,
		len(bars), func(i int) ([]any, bool) {
			b := bars[i]
			if b == nil || b.Symbol == "" {
				return nil, false
			}
			return []any{b.Symbol, b.TimestampMs, b.Close, b.Volume}, true
		})
}

// InsertIVPoints adds samples atomically. Fails entire batch on duplicate (symbol, timestamp_ms).
func (s *MarketStore) InsertIVPoints(ctx context.Context, points []*domain.IVPoint) error {
	return s.insertAll(ctx,
		`INSERT INTO iv_agg (symbol, timestamp_ms, iv_30d, skew_30d) VALUES (?, ?, ?, ?)`,
		len(points), func(i int) ([]any, bool) {
			p := points[i]
			if p == nil || p.Symbol == "" {
				return nil, false
			}
			return []any{p.Symbol, p.TimestampMs, p.IV30d, p.Skew30d}, true
		})
}

// InsertBasisPoints adds samples atomically. Fails entire batch on duplicate (symbol, timestamp_ms).
func (s *MarketStore) InsertBasisPoints(ctx context.Context, points []*domain.BasisPoint) error {
	return s.insertAll(ctx,
		`INSERT INTO basis_agg (symbol, timestamp_ms, basis_rel, funding_rate, open_interest) VALUES (?, ?, ?, ?, ?)`,
		len(points), func(i int) ([]any, bool) {
			p := points[i]
			if p == nil || p.Symbol == "" {
				return nil, false
			}
			return []any{p.Symbol, p.TimestampMs, p.BasisRel, p.FundingRate, p.OpenInterest}, true
		})
}

// GetSpotBars retrieves bars in [start, end), ordered by timestamp ASC.
func (s *MarketStore) GetSpotBars(ctx context.Context, symbol string, start, end int64) ([]*domain.SpotBar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timestamp_ms, close, volume
		FROM spot_data
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC
	`, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query spot bars: %w", err)
	}
	defer rows.Close()

	var bars []*domain.SpotBar
	for rows.Next() {
		var b domain.SpotBar
		if err := rows.Scan(&b.Symbol, &b.TimestampMs, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan spot row: %w", err)
		}
		bars = append(bars, &b)
	}
	return bars, rowsErr(rows, "spot")
}

// GetIVPoints retrieves samples in [start, end), ordered by timestamp ASC.
func (s *MarketStore) GetIVPoints(ctx context.Context, symbol string, start, end int64) ([]*domain.IVPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timestamp_ms, iv_30d, skew_30d
		FROM iv_agg
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC
	`, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query iv points: %w", err)
	}
	defer rows.Close()

	var points []*domain.IVPoint
	for rows.Next() {
		var p domain.IVPoint
		if err := rows.Scan(&p.Symbol, &p.TimestampMs, &p.IV30d, &p.Skew30d); err != nil {
			return nil, fmt.Errorf("scan iv row: %w", err)
		}
		points = append(points, &p)
	}
	return points, rowsErr(rows, "iv")
}

// GetBasisPoints retrieves samples in [start, end), ordered by timestamp ASC.
func (s *MarketStore) GetBasisPoints(ctx context.Context, symbol string, start, end int64) ([]*domain.BasisPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timestamp_ms, basis_rel, funding_rate, open_interest
		FROM basis_agg
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC
	`, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query basis points: %w", err)
	}
	defer rows.Close()

	var points []*domain.BasisPoint
	for rows.Next() {
		var p domain.BasisPoint
		if err := rows.Scan(&p.Symbol, &p.TimestampMs, &p.BasisRel, &p.FundingRate, &p.OpenInterest); err != nil {
			return nil, fmt.Errorf("scan basis row: %w", err)
		}
		points = append(points, &p)
	}
	return points, rowsErr(rows, "basis")
}

func rowsErr(rows *sql.Rows, kind string) error {
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s rows: %w", kind, err)
	}
	return nil
}
