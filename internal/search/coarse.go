package search

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"formula-lab/internal/backtest"
	"formula-lab/internal/domain"
	"formula-lab/internal/features"
	"formula-lab/internal/observability"
)

// CoarseResult is the outcome of a coarse search run.
type CoarseResult struct {
	RunID       string
	Results     []*domain.TrialResult // top-K per formula, grouped by formula id
	Leaderboard []*domain.TrialResult
	Trials      int
	Failed      int
	Duration    time.Duration
}

// Coarse samples SamplesPerFormula parameter sets for every formula,
// backtests them, keeps the top-K per formula and persists both the
// winners and the global leaderboard.
func (s *Searcher) Coarse(ctx context.Context, frame *domain.FeatureFrame) (*CoarseResult, error) {
	start := time.Now()
	runID := uuid.NewString()

	winners, trials, failed, err := s.sweep(ctx, frame, runID, s.opts.Seed, PhaseCoarse)
	if err != nil {
		observability.RecordPhaseRun(PhaseCoarse, "error", time.Since(start).Seconds())
		return nil, err
	}

	leaderboard := Top(Rank(winners), s.opts.LeaderboardSize)

	if err := s.store.SaveResults(ctx, domain.TableCoarseResults, winners); err != nil {
		return nil, fmt.Errorf("save coarse results: %w", err)
	}
	if err := s.store.SaveResults(ctx, domain.TableLeaderboard, leaderboard); err != nil {
		return nil, fmt.Errorf("save leaderboard: %w", err)
	}

	elapsed := time.Since(start)
	observability.RecordPhaseRun(PhaseCoarse, "ok", elapsed.Seconds())

	s.logger.Info("coarse search complete",
		zap.String("run_id", runID),
		zap.Int("trials", trials),
		zap.Int("failed", failed),
		zap.Int("winners", len(winners)),
		zap.Duration("duration", elapsed),
	)

	return &CoarseResult{
		RunID:       runID,
		Results:     winners,
		Leaderboard: leaderboard,
		Trials:      trials,
		Failed:      failed,
		Duration:    elapsed,
	}, nil
}

// sweep samples every parameter set up front from one seeded stream, runs
// all trials and returns the per-formula top-K concatenated in formula order.
func (s *Searcher) sweep(ctx context.Context, frame *domain.FeatureFrame, runID string, seed int64, phase string) ([]*domain.TrialResult, int, int, error) {
	if frame.Len() < 2 {
		return nil, 0, 0, fmt.Errorf("%s search: frame has %d rows: %w", phase, frame.Len(), features.ErrDataUnavailable)
	}
	formulas, err := s.formulas()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%s search: %w", phase, err)
	}

	rng := rand.New(rand.NewSource(seed))
	trials := make([]backtest.Trial, 0, len(formulas)*s.opts.SamplesPerFormula)
	for _, f := range formulas {
		for _, p := range s.catalog.GenerateRandomParams(f.ID, s.opts.SamplesPerFormula, rng) {
			trials = append(trials, backtest.Trial{
				RunID:   runID,
				Formula: f,
				Params:  p,
				Origin:  domain.OriginCoarse,
			})
		}
	}

	s.logger.Info("search phase started",
		zap.String("phase", phase),
		zap.String("run_id", runID),
		zap.Int("formulas", len(formulas)),
		zap.Int("trials", len(trials)),
		zap.Int("rows", frame.Len()),
	)

	results, err := s.runTrials(ctx, frame, phase, trials)
	if err != nil {
		return nil, 0, 0, err
	}

	byFormula := make(map[string][]*domain.TrialResult, len(formulas))
	failed := 0
	for _, r := range results {
		byFormula[r.FormulaID] = append(byFormula[r.FormulaID], r)
		if r.Status == domain.TrialStatusFailed {
			failed++
		}
	}

	winners := make([]*domain.TrialResult, 0, len(formulas)*s.opts.TopK)
	for _, f := range formulas {
		top := Top(Rank(byFormula[f.ID]), s.opts.TopK)
		winners = append(winners, top...)
		if len(top) > 0 {
			s.logger.Debug("formula winners",
				zap.String("formula_id", f.ID),
				zap.Float64("best_score", top[0].Score),
			)
		}
	}
	return winners, len(trials), failed, nil
}
