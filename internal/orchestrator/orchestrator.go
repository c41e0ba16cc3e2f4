// Package orchestrator runs the end-to-end research pipeline.
// It coordinates: feature frame → coarse search → fine-tune → validation → reports
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"formula-lab/internal/backtest"
	"formula-lab/internal/catalog"
	"formula-lab/internal/config"
	"formula-lab/internal/domain"
	"formula-lab/internal/features"
	"formula-lab/internal/formula"
	"formula-lab/internal/lookup"
	"formula-lab/internal/reporting"
	"formula-lab/internal/search"
	"formula-lab/internal/simulation"
	"formula-lab/internal/storage"
	"formula-lab/internal/storage/csvstore"
)

// Orchestrator coordinates one pipeline execution.
type Orchestrator struct {
	cfg      *config.Config
	source   storage.MarketDataSource
	results  storage.ResultStore
	progress search.ProgressFunc
	logger   *zap.Logger
	now      func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	Config   *config.Config
	Source   storage.MarketDataSource
	Results  storage.ResultStore
	Progress search.ProgressFunc // optional
	Logger   *zap.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      opts.Config,
		source:   opts.Source,
		results:  opts.Results,
		progress: opts.Progress,
		logger:   opts.Logger,
		now:      time.Now,
	}
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	DataUnavailable bool // the range held no spot data; nothing was produced
	Bars            int
	CoarseRunID     string
	CoarseTrials    int
	FineTuneTrials  int
	Best            *domain.TrialResult
	Signals         int
	Validation      *simulation.Result
	Files           []string
	Errors          []string
}

// Run executes the full pipeline.
// Phases:
//  1. Build the feature frame
//  2. Coarse search
//  3. Fine-tune
//  4. Validate the best strategy's signals (or the configured signal file)
//  5. Write reports
//
// A failure before coarse results are persisted is returned as an error.
// Later failures are collected in RunResult.Errors and the remaining phases
// still run where their inputs exist.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	// Phase 1: Feature frame
	frame, err := o.frame(ctx)
	if errors.Is(err, features.ErrDataUnavailable) {
		result.DataUnavailable = true
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("phase 1 (feature frame) failed: %w", err)
	}
	result.Bars = frame.Len()

	sim := o.simulator()
	searcher := o.searcher(sim)

	// Phase 2: Coarse search
	coarse, err := searcher.Coarse(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("phase 2 (coarse search) failed: %w", err)
	}
	result.CoarseRunID = coarse.RunID
	result.CoarseTrials = coarse.Trials

	// Phase 3: Fine-tune
	fine, fineErr := searcher.FineTune(ctx, frame)
	if fineErr != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("fine-tune: %v", fineErr))
	} else {
		result.FineTuneTrials = fine.Trials
	}

	// Phase 4: Validation
	var (
		signals []domain.TradeSignal
		best    *domain.TrialResult
	)
	if fineErr != nil && o.cfg.Validation.SignalsPath == "" {
		// Stored fine-tune tables may belong to an earlier run on another frame.
		best, err = currentRunBest(coarse)
		if err == nil {
			signals, err = o.strategySignals(sim, frame, best)
		}
	} else {
		signals, best, err = o.signals(ctx, sim, frame)
	}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("signals: %v", err))
	} else {
		result.Best = best
		result.Signals = len(signals)
		res, files, err := o.validate(ctx, signals)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("validation: %v", err))
		} else {
			result.Validation = res
			result.Files = append(result.Files, files...)
		}
	}

	// Phase 5: Search report
	files, err := o.report(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("report: %v", err))
	} else {
		result.Files = append(result.Files, files...)
	}

	o.logger.Info("pipeline completed",
		zap.Int("coarse_trials", result.CoarseTrials),
		zap.Int("fine_tune_trials", result.FineTuneTrials),
		zap.Int("signals", result.Signals),
		zap.Int("files", len(result.Files)),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// Validate runs only the validation phase against persisted search results,
// or against the configured signal file. A signal file does not need market
// data; when the frame is available it fills missing prices and IV.
func (o *Orchestrator) Validate(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	frame, err := o.frame(ctx)
	switch {
	case errors.Is(err, features.ErrDataUnavailable):
		if o.cfg.Validation.SignalsPath == "" {
			result.DataUnavailable = true
			return result, nil
		}
		frame = nil
	case err != nil:
		return nil, err
	default:
		result.Bars = frame.Len()
	}

	signals, best, err := o.signals(ctx, o.simulator(), frame)
	if err != nil {
		return nil, err
	}
	result.Best = best
	result.Signals = len(signals)

	res, files, err := o.validate(ctx, signals)
	if err != nil {
		return nil, err
	}
	result.Validation = res
	result.Files = files
	return result, nil
}

func (o *Orchestrator) frame(ctx context.Context) (*domain.FeatureFrame, error) {
	cfg := o.cfg
	start, end, err := cfg.Range()
	if err != nil {
		return nil, err
	}
	builder := features.NewBuilder(o.source, features.Options{Chunk: cfg.Chunk(), Logger: o.logger})
	frame, err := builder.Build(ctx, cfg.Data.Symbol, start, end)
	if errors.Is(err, features.ErrDataUnavailable) {
		o.logger.Warn("no market data in range, nothing to do",
			zap.String("symbol", cfg.Data.Symbol),
			zap.String("start", cfg.Data.Start),
			zap.String("end", cfg.Data.End),
		)
	}
	return frame, err
}

func (o *Orchestrator) simulator() *backtest.Simulator {
	evalOpts := o.cfg.EvaluatorOptions()
	evalOpts.Logger = o.logger
	return backtest.NewSimulator(formula.NewEvaluator(catalog.Must(), evalOpts), o.cfg.BacktestOptions())
}

func (o *Orchestrator) searcher(sim *backtest.Simulator) *search.Searcher {
	opts := o.cfg.SearchOptions()
	opts.Logger = o.logger
	opts.Progress = o.progress
	return search.New(catalog.Must(), sim, o.results, opts)
}

// signals loads the configured signal file, or derives signals from the
// best fine-tune strategy, falling back to the leaderboard head.
func (o *Orchestrator) signals(ctx context.Context, sim *backtest.Simulator, frame *domain.FeatureFrame) ([]domain.TradeSignal, *domain.TrialResult, error) {
	if path := o.cfg.Validation.SignalsPath; path != "" {
		signals, err := csvstore.LoadSignals(path)
		if err != nil {
			return nil, nil, err
		}
		filled := fillFromFrame(signals, frame)
		o.logger.Info("loaded signals",
			zap.String("path", path),
			zap.Int("count", len(signals)),
			zap.Int("filled", filled),
		)
		return signals, nil, nil
	}

	best, err := o.bestStrategy(ctx, sim)
	if err != nil {
		return nil, nil, err
	}

	signals, err := o.strategySignals(sim, frame, best)
	if err != nil {
		return nil, nil, err
	}
	return signals, best, nil
}

// strategySignals evaluates best on frame and turns its series into trade signals.
func (o *Orchestrator) strategySignals(sim *backtest.Simulator, frame *domain.FeatureFrame, best *domain.TrialResult) ([]domain.TradeSignal, error) {
	y, _, err := sim.Signals(frame, best.FormulaID, best.Params)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", best.FormulaID, err)
	}
	bt := o.cfg.BacktestOptions()
	signals := simulation.SignalsFromSeries(frame, y, bt.ThLong, bt.ThShort)

	o.logger.Info("derived signals from best strategy",
		zap.String("formula_id", best.FormulaID),
		zap.String("origin", string(best.Origin)),
		zap.String("params", best.Params.String()),
		zap.Float64("score", best.Score),
		zap.Int("count", len(signals)),
	)
	return signals, nil
}

func (o *Orchestrator) bestStrategy(ctx context.Context, sim *backtest.Simulator) (*domain.TrialResult, error) {
	best, found, err := o.searcher(sim).BestStrategy(ctx)
	if err != nil {
		return nil, err
	}
	if found {
		return &best, nil
	}
	board, err := o.results.LoadResults(ctx, domain.TableLeaderboard)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if len(board) == 0 {
		return nil, errors.New("no strategy to validate: run a search first")
	}
	return search.Rank(board)[0], nil
}

// currentRunBest returns the head of this run's coarse leaderboard.
func currentRunBest(coarse *search.CoarseResult) (*domain.TrialResult, error) {
	if len(coarse.Leaderboard) == 0 {
		return nil, errors.New("no strategy from this run to validate")
	}
	return coarse.Leaderboard[0], nil
}

func (o *Orchestrator) validate(ctx context.Context, signals []domain.TradeSignal) (*simulation.Result, []string, error) {
	simCfg := o.cfg.SimulationConfig()
	v, err := simulation.NewValidator(simCfg, simulation.Options{Logger: o.logger})
	if err != nil {
		return nil, nil, err
	}
	res, err := v.Run(ctx, signals)
	if err != nil {
		return nil, nil, err
	}
	files, err := reporting.WriteValidation(o.cfg.Results.Dir, o.now(), simCfg, res)
	if err != nil {
		return res, nil, err
	}
	return res, files, nil
}

func (o *Orchestrator) report(ctx context.Context) ([]string, error) {
	r, err := reporting.NewGenerator(o.results).WithClock(o.now).Search(ctx)
	if err != nil {
		return nil, err
	}
	return reporting.WriteSearch(o.cfg.Results.Dir, r)
}

// fillFromFrame sets Price and IV of signals that lack them from the last
// frame row at or before the signal time. Returns the number of signals
// changed.
func fillFromFrame(signals []domain.TradeSignal, frame *domain.FeatureFrame) int {
	if frame == nil {
		return 0
	}
	filled := 0
	for i := range signals {
		s := &signals[i]
		if s.Price > 0 && s.IV > 0 {
			continue
		}
		row, err := lookup.At(s.TimestampMs, frame.Timestamps)
		if err != nil {
			return filled
		}
		if s.Price <= 0 {
			s.Price = frame.Spot[row]
		}
		if s.IV <= 0 && row < len(frame.IV) {
			s.IV = frame.IV[row]
		}
		filled++
	}
	return filled
}
