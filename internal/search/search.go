// Package search runs the coarse random sweep and the fine-tune grid
// refinement over the formula catalog, and maintains the leaderboard.
package search

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"formula-lab/internal/backtest"
	"formula-lab/internal/catalog"
	"formula-lab/internal/domain"
	"formula-lab/internal/formula"
	"formula-lab/internal/observability"
	"formula-lab/internal/storage"
)

// Phase names used in progress events, logs and metrics.
const (
	PhaseCoarse      = "coarse"
	PhaseFineTune    = "fine_tune"
	PhaseWalkForward = "walk_forward"
)

// Defaults
const (
	DefaultSamplesPerFormula  = 1000
	DefaultTopK               = 10
	DefaultLeaderboardSize    = 20
	DefaultFineTuneCandidates = 10
	DefaultFineTuneTopSize    = 10
	DefaultGridStep           = 0.05
	DefaultSeed               = 42
)

// Progress is a snapshot of a running phase.
type Progress struct {
	Phase     string  `json:"phase"`
	Done      int     `json:"done"`
	Total     int     `json:"total"`
	BestScore float64 `json:"best_score"`
}

// ProgressFunc receives progress events. Calls are serialized.
type ProgressFunc func(Progress)

// Options configure a Searcher.
type Options struct {
	SamplesPerFormula  int     // random parameter sets per formula
	TopK               int     // coarse winners kept per formula
	LeaderboardSize    int     // global leaderboard capacity
	FineTuneCandidates int     // coarse winners refined by fine-tune
	FineTuneTopSize    int     // size of the persisted fine-tune top table
	GridStep           float64 // absolute offset for grid refinement
	Workers            int     // runtime.NumCPU() if zero
	Seed               int64
	FormulaIDs         []string // restrict the sweep; all formulas if empty
	Logger             *zap.Logger
	Progress           ProgressFunc
}

func (o *Options) defaults() {
	if o.SamplesPerFormula <= 0 {
		o.SamplesPerFormula = DefaultSamplesPerFormula
	}
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.LeaderboardSize <= 0 {
		o.LeaderboardSize = DefaultLeaderboardSize
	}
	if o.FineTuneCandidates <= 0 {
		o.FineTuneCandidates = DefaultFineTuneCandidates
	}
	if o.FineTuneTopSize <= 0 {
		o.FineTuneTopSize = DefaultFineTuneTopSize
	}
	if o.GridStep <= 0 {
		o.GridStep = DefaultGridStep
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Searcher drives coarse search and fine-tune against a result store.
type Searcher struct {
	catalog *catalog.Catalog
	sim     *backtest.Simulator
	store   storage.ResultStore
	opts    Options
	logger  *zap.Logger
}

// New creates a Searcher.
func New(cat *catalog.Catalog, sim *backtest.Simulator, store storage.ResultStore, opts Options) *Searcher {
	opts.defaults()
	return &Searcher{
		catalog: cat,
		sim:     sim,
		store:   store,
		opts:    opts,
		logger:  opts.Logger,
	}
}

// formulas resolves the configured formula subset in sorted id order.
func (s *Searcher) formulas() ([]domain.Formula, error) {
	ids := s.opts.FormulaIDs
	if len(ids) == 0 {
		ids = s.catalog.IDs()
	}
	out := make([]domain.Formula, 0, len(ids))
	for _, id := range ids {
		f, ok := s.catalog.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", formula.ErrUnknownFormula, id)
		}
		out = append(out, f)
	}
	return out, nil
}

// runTrials backtests every trial on a bounded worker pool. Results keep the
// order of trials. A trial failure never aborts the phase; only context
// cancellation does.
func (s *Searcher) runTrials(ctx context.Context, frame *domain.FeatureFrame, phase string, trials []backtest.Trial) ([]*domain.TrialResult, error) {
	results := make([]*domain.TrialResult, len(trials))

	var (
		mu   sync.Mutex
		done int
		best = math.Inf(-1)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i := range trials {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := s.sim.RunTrial(frame, trials[i])
			results[i] = &res

			observability.RecordTrial(phase, string(res.Status))
			if res.Status == domain.TrialStatusFailed {
				observability.RecordTrialFailure(res.Failure)
				s.logger.Warn("trial failed",
					zap.String("phase", phase),
					zap.String("formula_id", res.FormulaID),
					zap.String("params_hash", res.Params.Hash()),
					zap.String("reason", res.Failure),
				)
			}

			mu.Lock()
			defer mu.Unlock()
			done++
			if res.Score > best {
				best = res.Score
			}
			if s.opts.Progress != nil {
				s.opts.Progress(Progress{Phase: phase, Done: done, Total: len(trials), BestScore: best})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s trials: %w", phase, err)
	}
	if len(results) > 0 {
		observability.UpdateBestScore(phase, best)
	}
	return results, nil
}

// loadTable returns a persisted table, or nil when it was never saved.
func (s *Searcher) loadTable(ctx context.Context, table domain.ResultTable) ([]*domain.TrialResult, error) {
	rows, err := s.store.LoadResults(ctx, table)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return rows, nil
}
