// Package main loads market data from a CSV file, or generates synthetic
// data, into the SQLite or ClickHouse market store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"formula-lab/internal/config"
	"formula-lab/internal/logging"
	"formula-lab/internal/storage"
	chstore "formula-lab/internal/storage/clickhouse"
	"formula-lab/internal/storage/csvstore"
	"formula-lab/internal/storage/migrations"
	"formula-lab/internal/storage/sqlite"
	"formula-lab/internal/synthetic"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config (defaults when empty)")
	input := flag.String("input", "", "Market CSV to load (synthetic data when empty)")
	symbol := flag.String("symbol", "", "Symbol (overrides data.symbol)")
	target := flag.String("target", config.SourceSQLite, "Target store: sqlite or clickhouse")
	bars := flag.Int("bars", 0, "Synthetic bars (overrides data.synthetic_bars)")
	batchSize := flag.Int("batch-size", 10000, "Rows per insert batch")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(2)
	}
	if *symbol != "" {
		cfg.Data.Symbol = *symbol
	}
	if *bars > 0 {
		cfg.Data.SyntheticBars = *bars
	}
	if *batchSize <= 0 {
		fmt.Fprintln(os.Stderr, "--batch-size must be positive")
		os.Exit(2)
	}
	logger := logging.Must(cfg.Logging.Level, cfg.Logging.Development).Named("ingest")
	defer logger.Sync()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	// Read input
	var m *csvstore.Market
	if *input != "" {
		m, err = csvstore.LoadMarket(*input, cfg.Data.Symbol)
		if err != nil {
			logger.Fatal("load market csv", zap.String("path", *input), zap.Error(err))
		}
	} else {
		start, _, err := cfg.Range()
		if err != nil {
			logger.Fatal("invalid range", zap.Error(err))
		}
		spot, iv, basis := synthetic.Market(synthetic.Options{
			Symbol:  cfg.Data.Symbol,
			StartMs: start,
			Bars:    cfg.Data.SyntheticBars,
			Noise:   0.002,
			Seed:    cfg.Reproducibility.Seed,
		})
		m = &csvstore.Market{Spot: spot, IV: iv, Basis: basis}
	}

	// Open target
	var store storage.MarketDataWriter
	switch *target {
	case config.SourceSQLite:
		db, err := sqlite.Open(ctx, cfg.Data.SQLitePath)
		if err != nil {
			logger.Fatal("open sqlite", zap.String("path", cfg.Data.SQLitePath), zap.Error(err))
		}
		defer db.Close()
		store = sqlite.NewMarketStore(db)
	case config.SourceClickHouse:
		if cfg.Data.ClickhouseDSN == "" {
			logger.Fatal("data.clickhouse_dsn is required for --target clickhouse")
		}
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Data.ClickhouseDSN)
		if err != nil {
			logger.Fatal("connect clickhouse", zap.Error(err))
		}
		defer conn.Close()
		store = chstore.NewMarketStore(conn)
	default:
		logger.Fatal("invalid target, must be sqlite or clickhouse", zap.String("target", *target))
	}

	spot := insertBatches(ctx, logger, "spot", m.Spot, *batchSize, store.InsertSpotBars)
	iv := insertBatches(ctx, logger, "iv", m.IV, *batchSize, store.InsertIVPoints)
	basis := insertBatches(ctx, logger, "basis", m.Basis, *batchSize, store.InsertBasisPoints)

	fmt.Printf("Ingest completed (%s, %s):\n", *target, cfg.Data.Symbol)
	fmt.Printf("  Spot bars:    %d inserted, %d skipped\n", spot.inserted, spot.skipped)
	fmt.Printf("  IV points:    %d inserted, %d skipped\n", iv.inserted, iv.skipped)
	fmt.Printf("  Basis points: %d inserted, %d skipped\n", basis.inserted, basis.skipped)
}

type counts struct {
	inserted int
	skipped  int
}

// insertBatches writes items in fixed-size batches. A batch that collides
// with existing rows is skipped as a whole; any other error is fatal.
func insertBatches[T any](ctx context.Context, logger *zap.Logger, kind string, items []*T, size int, insert func(context.Context, []*T) error) counts {
	var c counts
	for lo := 0; lo < len(items); lo += size {
		hi := min(lo+size, len(items))
		err := insert(ctx, items[lo:hi])
		switch {
		case err == nil:
			c.inserted += hi - lo
		case errors.Is(err, storage.ErrDuplicateKey):
			logger.Warn("batch already ingested, skipping",
				zap.String("kind", kind),
				zap.Int("from", lo),
				zap.Int("rows", hi-lo),
			)
			c.skipped += hi - lo
		default:
			logger.Fatal("insert failed", zap.String("kind", kind), zap.Int("from", lo), zap.Error(err))
		}
	}
	return c
}
