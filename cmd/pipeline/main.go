// Package main runs the full research pipeline once.
// Executes: feature frame → coarse search → fine-tune → validation → reports
package main

import (
	"context"
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
	outputDir := flag.String("output-dir", "", "Override results.dir")
	verbose := flag.Bool("verbose", false, "Debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(2)
	}
	if *outputDir != "" {
		cfg.Results.Dir = *outputDir
	}
	level := cfg.Logging.Level
	if *verbose {
		level = "debug"
	}
	logger := logging.Must(level, cfg.Logging.Development).Named("pipeline")
	defer logger.Sync()

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, cancelling pipeline", zap.String("signal", sig.String()))
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

	result, err := orch.Run(ctx)
	if err != nil {
		logger.Error("pipeline failed", zap.Error(err))
		os.Exit(1)
	}
	if result.DataUnavailable {
		fmt.Println("No market data in the configured range; nothing produced.")
		return
	}

	fmt.Printf("Pipeline completed:\n")
	fmt.Printf("  Bars: %d\n", result.Bars)
	fmt.Printf("  Coarse trials: %d\n", result.CoarseTrials)
	fmt.Printf("  Fine-tune trials: %d\n", result.FineTuneTrials)
	if result.Best != nil {
		fmt.Printf("  Best: %s %s (score %.4f)\n", result.Best.FormulaID, result.Best.Params, result.Best.Score)
	}
	fmt.Printf("  Signals: %d\n", result.Signals)
	if v := result.Validation; v != nil {
		fmt.Printf("  Trades: %d, final capital %.2f\n", v.Metrics.TotalTrades, v.Metrics.FinalCapital)
	}
	for _, f := range result.Files {
		fmt.Printf("  - %s\n", f)
	}
	if len(result.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
		os.Exit(1)
	}
}
