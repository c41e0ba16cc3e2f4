package storage

import (
	"context"

	"formula-lab/internal/domain"
)

// MarketDataSource provides read access to raw market series.
// All ranges are half-open [start, end) in Unix milliseconds.
type MarketDataSource interface {
	// GetSpotBars retrieves spot bars for a symbol, ordered by timestamp ASC.
	GetSpotBars(ctx context.Context, symbol string, start, end int64) ([]*domain.SpotBar, error)

	// GetIVPoints retrieves implied-volatility samples, ordered by timestamp ASC.
	GetIVPoints(ctx context.Context, symbol string, start, end int64) ([]*domain.IVPoint, error)

	// GetBasisPoints retrieves basis/funding samples, ordered by timestamp ASC.
	GetBasisPoints(ctx context.Context, symbol string, start, end int64) ([]*domain.BasisPoint, error)
}

// MarketDataWriter provides bulk ingest of raw market series.
type MarketDataWriter interface {
	// InsertSpotBars adds bars atomically. Fails entire batch on duplicate (symbol, timestamp_ms).
	InsertSpotBars(ctx context.Context, bars []*domain.SpotBar) error

	// InsertIVPoints adds samples atomically. Fails entire batch on duplicate (symbol, timestamp_ms).
	InsertIVPoints(ctx context.Context, points []*domain.IVPoint) error

	// InsertBasisPoints adds samples atomically. Fails entire batch on duplicate (symbol, timestamp_ms).
	InsertBasisPoints(ctx context.Context, points []*domain.BasisPoint) error
}

// MarketStore is a readable and writable market data backend.
type MarketStore interface {
	MarketDataSource
	MarketDataWriter
}

// ResultStore persists search result tables.
// Each save replaces the previous snapshot of that table only; other tables are untouched.
type ResultStore interface {
	// SaveResults replaces the contents of a table with results, preserving order.
	SaveResults(ctx context.Context, table domain.ResultTable, results []*domain.TrialResult) error

	// LoadResults returns a table's rows in saved order. Returns ErrNotFound if never saved.
	LoadResults(ctx context.Context, table domain.ResultTable) ([]*domain.TrialResult, error)
}
