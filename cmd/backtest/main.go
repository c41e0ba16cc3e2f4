// Package main runs the advanced backtest validator on the best persisted
// strategy, or on a signal CSV, and writes the validation artifacts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"formula-lab/internal/config"
	"formula-lab/internal/logging"
	"formula-lab/internal/orchestrator"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config (defaults when empty)")
	signalsPath := flag.String("signals", "", "Signal CSV (overrides validation.signals_path)")
	outputDir := flag.String("output-dir", "", "Override results.dir")
	outputJSON := flag.Bool("json", false, "Print metrics as JSON")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(2)
	}
	if *signalsPath != "" {
		cfg.Validation.SignalsPath = *signalsPath
	}
	if *outputDir != "" {
		cfg.Results.Dir = *outputDir
	}
	logger := logging.Must(cfg.Logging.Level, cfg.Logging.Development).Named("backtest")
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

	source, closeSource, err := orchestrator.OpenSource(ctx, cfg)
	if err != nil {
		logger.Fatal("open data source", zap.String("source", cfg.Data.Source), zap.Error(err))
	}
	defer closeSource()

	results, closeResults, err := orchestrator.OpenResultStore(ctx, cfg)
	if err != nil {
		logger.Fatal("open result store", zap.Error(err))
	}
	defer closeResults()

	orch := orchestrator.New(orchestrator.Options{
		Config:  cfg,
		Source:  source,
		Results: results,
		Logger:  logger,
	})
	result, err := orch.Validate(ctx)
	if err != nil {
		logger.Error("validation failed", zap.Error(err))
		os.Exit(1)
	}
	if result.DataUnavailable {
		fmt.Println("No market data in the configured range; nothing produced.")
		return
	}

	m := result.Validation.Metrics
	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(m); err != nil {
			logger.Fatal("encode metrics", zap.Error(err))
		}
		return
	}

	fmt.Println("=== Validation ===")
	if result.Best != nil {
		fmt.Printf("Strategy:      %s %s\n", result.Best.FormulaID, result.Best.Params)
	}
	fmt.Printf("Signals:       %d\n", result.Signals)
	fmt.Printf("Trades:        %d (win rate %.2f%%)\n", m.TotalTrades, m.WinRate*100)
	fmt.Printf("Final capital: %.2f (return %.2f%%)\n", m.FinalCapital, m.TotalReturn*100)
	fmt.Printf("Max drawdown:  %.2f%%\n", m.MaxDrawdown*100)
	fmt.Printf("Sharpe:        %.4f\n", m.SharpeRatio)
	if m.Halted {
		fmt.Println("Drawdown limit reached: new entries were halted.")
	}
	for _, f := range result.Files {
		fmt.Printf("  - %s\n", f)
	}
}
