package clickhouse

import (
	"context"
	"fmt"

	"formula-lab/internal/domain"
	"formula-lab/internal/storage"
)

// MarketStore implements storage.MarketStore over the spot_data, iv_agg and
// basis_agg tables.
type MarketStore struct {
	conn *Conn
}

// NewMarketStore creates a new MarketStore.
func NewMarketStore(conn *Conn) *MarketStore {
	return &MarketStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MarketStore = (*MarketStore)(nil)

// InsertSpotBars adds bars. Fails entire batch on duplicate (symbol, timestamp_ms).
func (s *MarketStore) InsertSpotBars(ctx context.Context, bars []*domain.SpotBar) error {
	if len(bars) == 0 {
		return nil
	}
	keys := make([]seriesKey, len(bars))
	for i, b := range bars {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}
		keys[i] = seriesKey{b.Symbol, b.TimestampMs}
	}
	if err := s.checkDuplicates(ctx, "spot_data", keys); err != nil {
		return err
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO spot_data (symbol, timestamp_ms, close, volume)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, b := range bars {
		if err := batch.Append(b.Symbol, uint64(b.TimestampMs), b.Close, b.Volume); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// InsertIVPoints adds samples. Fails entire batch on duplicate (symbol, timestamp_ms).
func (s *MarketStore) InsertIVPoints(ctx context.Context, points []*domain.IVPoint) error {
	if len(points) == 0 {
		return nil
	}
	keys := make([]seriesKey, len(points))
	for i, p := range points {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
		keys[i] = seriesKey{p.Symbol, p.TimestampMs}
	}
	if err := s.checkDuplicates(ctx, "iv_agg", keys); err != nil {
		return err
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO iv_agg (symbol, timestamp_ms, iv_30d, skew_30d)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, p := range points {
		if err := batch.Append(p.Symbol, uint64(p.TimestampMs), p.IV30d, p.Skew30d); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// InsertBasisPoints adds samples. Fails entire batch on duplicate (symbol, timestamp_ms).
func (s *MarketStore) InsertBasisPoints(ctx context.Context, points []*domain.BasisPoint) error {
	if len(points) == 0 {
		return nil
	}
	keys := make([]seriesKey, len(points))
	for i, p := range points {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
		keys[i] = seriesKey{p.Symbol, p.TimestampMs}
	}
	if err := s.checkDuplicates(ctx, "basis_agg", keys); err != nil {
		return err
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO basis_agg (symbol, timestamp_ms, basis_rel, funding_rate, open_interest)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, p := range points {
		if err := batch.Append(p.Symbol, uint64(p.TimestampMs), p.BasisRel, p.FundingRate, p.OpenInterest); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetSpotBars retrieves bars in [start, end), ordered by timestamp ASC.
func (s *MarketStore) GetSpotBars(ctx context.Context, symbol string, start, end int64) ([]*domain.SpotBar, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT symbol, timestamp_ms, close, volume
		FROM spot_data
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC
	`, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query spot bars: %w", err)
	}
	defer rows.Close()

	return scanSpotBars(rows)
}

// GetIVPoints retrieves samples in [start, end), ordered by timestamp ASC.
func (s *MarketStore) GetIVPoints(ctx context.Context, symbol string, start, end int64) ([]*domain.IVPoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT symbol, timestamp_ms, iv_30d, skew_30d
		FROM iv_agg
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC
	`, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query iv points: %w", err)
	}
	defer rows.Close()

	return scanIVPoints(rows)
}

// GetBasisPoints retrieves samples in [start, end), ordered by timestamp ASC.
func (s *MarketStore) GetBasisPoints(ctx context.Context, symbol string, start, end int64) ([]*domain.BasisPoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT symbol, timestamp_ms, basis_rel, funding_rate, open_interest
		FROM basis_agg
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC
	`, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query basis points: %w", err)
	}
	defer rows.Close()

	return scanBasisPoints(rows)
}

type seriesKey struct {
	symbol      string
	timestampMs int64
}

// checkDuplicates rejects intra-batch duplicates and keys already stored.
// MergeTree does not enforce uniqueness, so existing keys are looked up per
// symbol over the batch's time span.
func (s *MarketStore) checkDuplicates(ctx context.Context, table string, keys []seriesKey) error {
	seen := make(map[seriesKey]struct{}, len(keys))
	span := make(map[string][2]int64)
	for _, k := range keys {
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}

		r, ok := span[k.symbol]
		if !ok {
			r = [2]int64{k.timestampMs, k.timestampMs}
		}
		r[0] = min(r[0], k.timestampMs)
		r[1] = max(r[1], k.timestampMs)
		span[k.symbol] = r
	}

	for symbol, r := range span {
		rows, err := s.conn.Query(ctx, fmt.Sprintf(`
			SELECT timestamp_ms FROM %s
			WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		`, table), symbol, uint64(r[0]), uint64(r[1]))
		if err != nil {
			return fmt.Errorf("check existing %s: %w", table, err)
		}
		for rows.Next() {
			var ts uint64
			if err := rows.Scan(&ts); err != nil {
				rows.Close()
				return fmt.Errorf("scan existing %s: %w", table, err)
			}
			if _, dup := seen[seriesKey{symbol, int64(ts)}]; dup {
				rows.Close()
				return storage.ErrDuplicateKey
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("iterate existing %s: %w", table, err)
		}
	}
	return nil
}

func scanSpotBars(rows chRows) ([]*domain.SpotBar, error) {
	var bars []*domain.SpotBar
	for rows.Next() {
		var b domain.SpotBar
		var ts uint64
		if err := rows.Scan(&b.Symbol, &ts, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan spot row: %w", err)
		}
		b.TimestampMs = int64(ts)
		bars = append(bars, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spot rows: %w", err)
	}
	return bars, nil
}

func scanIVPoints(rows chRows) ([]*domain.IVPoint, error) {
	var points []*domain.IVPoint
	for rows.Next() {
		var p domain.IVPoint
		var ts uint64
		if err := rows.Scan(&p.Symbol, &ts, &p.IV30d, &p.Skew30d); err != nil {
			return nil, fmt.Errorf("scan iv row: %w", err)
		}
		p.TimestampMs = int64(ts)
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iv rows: %w", err)
	}
	return points, nil
}

func scanBasisPoints(rows chRows) ([]*domain.BasisPoint, error) {
	var points []*domain.BasisPoint
	for rows.Next() {
		var p domain.BasisPoint
		var ts uint64
		if err := rows.Scan(&p.Symbol, &ts, &p.BasisRel, &p.FundingRate, &p.OpenInterest); err != nil {
			return nil, fmt.Errorf("scan basis row: %w", err)
		}
		p.TimestampMs = int64(ts)
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate basis rows: %w", err)
	}
	return points, nil
}
