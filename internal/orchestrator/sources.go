package orchestrator

import (
	"context"
	"fmt"

	"formula-lab/internal/config"
	"formula-lab/internal/domain"
	"formula-lab/internal/storage"
	chstore "formula-lab/internal/storage/clickhouse"
	"formula-lab/internal/storage/csvstore"
	"formula-lab/internal/storage/memory"
	"formula-lab/internal/storage/migrations"
	"formula-lab/internal/storage/postgres"
	"formula-lab/internal/storage/sqlite"
	"formula-lab/internal/synthetic"
)

// OpenSource opens the market data source selected by cfg.Data.Source.
// The returned close function is never nil.
func OpenSource(ctx context.Context, cfg *config.Config) (storage.MarketDataSource, func(), error) {
	noop := func() {}

	switch cfg.Data.Source {
	case config.SourceSynthetic:
		start, _, err := cfg.Range()
		if err != nil {
			return nil, noop, err
		}
		spot, iv, basis := synthetic.Market(synthetic.Options{
			Symbol:  cfg.Data.Symbol,
			StartMs: start,
			Bars:    cfg.Data.SyntheticBars,
			Noise:   0.002,
			Seed:    cfg.Reproducibility.Seed,
		})
		store := memory.NewMarketStore()
		if err := fill(ctx, store, spot, iv, basis); err != nil {
			return nil, noop, fmt.Errorf("load synthetic market: %w", err)
		}
		return store, noop, nil

	case config.SourceCSV:
		m, err := csvstore.LoadMarket(cfg.Data.CSVPath, cfg.Data.Symbol)
		if err != nil {
			return nil, noop, err
		}
		store := memory.NewMarketStore()
		if err := fill(ctx, store, m.Spot, m.IV, m.Basis); err != nil {
			return nil, noop, fmt.Errorf("load %s: %w", cfg.Data.CSVPath, err)
		}
		return store, noop, nil

	case config.SourceSQLite:
		db, err := sqlite.Open(ctx, cfg.Data.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return sqlite.NewMarketStore(db), func() { db.Close() }, nil

	case config.SourceClickHouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Data.ClickhouseDSN)
		if err != nil {
			return nil, noop, err
		}
		return chstore.NewMarketStore(conn), func() { conn.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}
}

// OpenResultStore opens PostgreSQL when cfg.Results.PostgresDSN is set and
// the CSV directory store otherwise.
func OpenResultStore(ctx context.Context, cfg *config.Config) (storage.ResultStore, func(), error) {
	if cfg.Results.PostgresDSN == "" {
		return csvstore.NewResultStore(cfg.Results.Dir), func() {}, nil
	}
	pool, err := postgres.NewPool(ctx, cfg.Results.PostgresDSN)
	if err != nil {
		return nil, func() {}, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, func() {}, err
	}
	return postgres.NewResultStore(pool), pool.Close, nil
}

func fill(ctx context.Context, w storage.MarketDataWriter, spot []*domain.SpotBar, iv []*domain.IVPoint, basis []*domain.BasisPoint) error {
	if err := w.InsertSpotBars(ctx, spot); err != nil {
		return err
	}
	if err := w.InsertIVPoints(ctx, iv); err != nil {
		return err
	}
	return w.InsertBasisPoints(ctx, basis)
}
