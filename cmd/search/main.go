// Package main runs a single search phase: coarse, fine-tune, both, or a
// walk-forward check.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cheggaaa/pb"
	"go.uber.org/zap"

	"formula-lab/internal/backtest"
	"formula-lab/internal/catalog"
	"formula-lab/internal/config"
	"formula-lab/internal/domain"
	"formula-lab/internal/features"
	"formula-lab/internal/formula"
	"formula-lab/internal/logging"
	"formula-lab/internal/orchestrator"
	"formula-lab/internal/search"
)

const (
	phaseCoarse      = "coarse"
	phaseFine        = "fine"
	phaseAll         = "all"
	phaseWalkForward = "walkforward"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config (defaults when empty)")
	phase := flag.String("phase", phaseAll, "Phase: coarse, fine, all, walkforward")
	showProgress := flag.Bool("progress", true, "Show a progress bar")
	trainBars := flag.Int("train-bars", search.DefaultTrainBars, "Walk-forward train window (bars)")
	testBars := flag.Int("test-bars", search.DefaultTestBars, "Walk-forward test window (bars)")
	stepBars := flag.Int("step-bars", search.DefaultStepBars, "Walk-forward step (bars)")
	flag.Parse()

	switch *phase {
	case phaseCoarse, phaseFine, phaseAll, phaseWalkForward:
	default:
		fmt.Fprintf(os.Stderr, "Invalid phase: %s. Must be coarse, fine, all, or walkforward\n", *phase)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(2)
	}
	logger := logging.Must(cfg.Logging.Level, cfg.Logging.Development).Named("search")
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

	start, end, err := cfg.Range()
	if err != nil {
		logger.Fatal("invalid range", zap.Error(err))
	}
	frame, err := features.NewBuilder(source, features.Options{Chunk: cfg.Chunk(), Logger: logger}).
		Build(ctx, cfg.Data.Symbol, start, end)
	if errors.Is(err, features.ErrDataUnavailable) {
		fmt.Println("No market data in the configured range; nothing produced.")
		return
	}
	if err != nil {
		logger.Fatal("build feature frame", zap.Error(err))
	}

	evalOpts := cfg.EvaluatorOptions()
	evalOpts.Logger = logger
	sim := backtest.NewSimulator(formula.NewEvaluator(catalog.Must(), evalOpts), cfg.BacktestOptions())

	opts := cfg.SearchOptions()
	opts.Logger = logger
	var bars progressBars
	if *showProgress {
		opts.Progress = bars.update
	}
	searcher := search.New(catalog.Must(), sim, results, opts)

	if *phase == phaseWalkForward {
		windows, err := searcher.WalkForward(ctx, frame, search.WalkForwardOptions{
			TrainBars: *trainBars,
			TestBars:  *testBars,
			StepBars:  *stepBars,
		})
		bars.finish()
		if err != nil {
			logger.Fatal("walk-forward failed", zap.Error(err))
		}
		fmt.Printf("%-6s %-4s %-40s %10s %10s\n", "WINDOW", "ID", "PARAMS", "IS_SHARPE", "OOS_SHARPE")
		for _, w := range windows {
			fmt.Printf("%-6d %-4s %-40s %10.4f %10.4f\n", w.Window, w.FormulaID, w.Params, w.InSample.SharpeRatio, w.OutOfSample.SharpeRatio)
		}
		return
	}

	if *phase == phaseCoarse || *phase == phaseAll {
		res, err := searcher.Coarse(ctx, frame)
		bars.finish()
		if err != nil {
			logger.Fatal("coarse search failed", zap.Error(err))
		}
		fmt.Printf("Coarse search: %d trials, %d failed, %d winners in %s\n",
			res.Trials, res.Failed, len(res.Results), res.Duration.Round(time.Millisecond))
		printTop("Leaderboard", res.Leaderboard)
	}

	if *phase == phaseFine || *phase == phaseAll {
		res, err := searcher.FineTune(ctx, frame)
		bars.finish()
		if err != nil {
			logger.Fatal("fine-tune failed", zap.Error(err))
		}
		fmt.Printf("Fine-tune: %d trials in %s\n", res.Trials, res.Duration.Round(time.Millisecond))
		printTop("Fine-tune top", res.Top)
		printTop("Leaderboard", res.Leaderboard)
	}
}

// progressBars shows one bar per search phase.
type progressBars struct {
	phase string
	bar   *pb.ProgressBar
}

func (b *progressBars) update(p search.Progress) {
	if b.bar == nil || b.phase != p.Phase {
		b.finish()
		b.phase = p.Phase
		b.bar = pb.New(p.Total).Prefix(p.Phase + " ")
		b.bar.Output = os.Stderr
		b.bar.Start()
	}
	b.bar.Set(p.Done)
}

func (b *progressBars) finish() {
	if b.bar != nil {
		b.bar.Finish()
		b.bar = nil
	}
}

func printTop(title string, rows []*domain.TrialResult) {
	fmt.Printf("\n%s:\n", title)
	for i, r := range rows {
		fmt.Printf("  %2d. %-4s %-9s %8.4f  %s\n", i+1, r.FormulaID, r.Origin, r.Score, r.Params)
	}
}
