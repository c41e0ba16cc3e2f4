package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"formula-lab/internal/backtest"
	"formula-lab/internal/catalog"
	"formula-lab/internal/domain"
	"formula-lab/internal/observability"
)

// FineTuneResult is the outcome of a fine-tune run.
type FineTuneResult struct {
	RunID       string
	Results     []*domain.TrialResult // one refinement per candidate, ranked
	Top         []*domain.TrialResult
	Leaderboard []*domain.TrialResult
	Trials      int
	Duration    time.Duration
}

// FineTune refines the best coarse winners. Coarse results are loaded from
// the store; if none were persisted, a coarse search runs first.
func (s *Searcher) FineTune(ctx context.Context, frame *domain.FeatureFrame) (*FineTuneResult, error) {
	start := time.Now()
	runID := uuid.NewString()

	coarse, err := s.loadTable(ctx, domain.TableCoarseResults)
	if err != nil {
		return nil, err
	}
	if len(coarse) == 0 {
		s.logger.Info("no coarse results persisted, running coarse search first")
		cr, err := s.Coarse(ctx, frame)
		if err != nil {
			return nil, fmt.Errorf("fine-tune: %w", err)
		}
		coarse = cr.Results
	}

	candidates := Top(Rank(coarse), s.opts.FineTuneCandidates)
	refined, trials, err := s.refine(ctx, frame, runID, candidates)
	if err != nil {
		observability.RecordPhaseRun(PhaseFineTune, "error", time.Since(start).Seconds())
		return nil, err
	}
	top := Top(refined, s.opts.FineTuneTopSize)

	board, err := s.loadTable(ctx, domain.TableLeaderboard)
	if err != nil {
		return nil, err
	}
	if board == nil {
		board = coarse
	}
	leaderboard := MergeLeaderboard(s.opts.LeaderboardSize, board, refined)

	if err := s.store.SaveResults(ctx, domain.TableFineTuneResults, refined); err != nil {
		return nil, fmt.Errorf("save fine-tune results: %w", err)
	}
	if err := s.store.SaveResults(ctx, domain.TableFineTuneTop, top); err != nil {
		return nil, fmt.Errorf("save fine-tune top: %w", err)
	}
	if err := s.store.SaveResults(ctx, domain.TableLeaderboard, leaderboard); err != nil {
		return nil, fmt.Errorf("save leaderboard: %w", err)
	}

	elapsed := time.Since(start)
	observability.RecordPhaseRun(PhaseFineTune, "ok", elapsed.Seconds())
	observability.MarkSearchSuccess(time.Now().Unix())

	s.logger.Info("fine-tune complete",
		zap.String("run_id", runID),
		zap.Int("candidates", len(candidates)),
		zap.Int("trials", trials),
		zap.Duration("duration", elapsed),
	)

	return &FineTuneResult{
		RunID:       runID,
		Results:     refined,
		Top:         top,
		Leaderboard: leaderboard,
		Trials:      trials,
		Duration:    elapsed,
	}, nil
}

// Refine grid-searches around each candidate and returns the single best
// grid point per candidate, ranked by score. Nothing is persisted.
func (s *Searcher) Refine(ctx context.Context, frame *domain.FeatureFrame, candidates []*domain.TrialResult) ([]*domain.TrialResult, error) {
	refined, _, err := s.refine(ctx, frame, uuid.NewString(), candidates)
	return refined, err
}

func (s *Searcher) refine(ctx context.Context, frame *domain.FeatureFrame, runID string, candidates []*domain.TrialResult) ([]*domain.TrialResult, int, error) {
	type span struct{ lo, hi int }

	var trials []backtest.Trial
	spans := make([]span, 0, len(candidates))
	for _, c := range candidates {
		f, ok := s.catalog.Get(c.FormulaID)
		if !ok {
			s.logger.Warn("skipping candidate with unknown formula", zap.String("formula_id", c.FormulaID))
			spans = append(spans, span{})
			continue
		}
		grid := catalog.Dedupe(s.catalog.CreateGridAround(c.Params, s.opts.GridStep))
		lo := len(trials)
		for _, p := range grid {
			trials = append(trials, backtest.Trial{
				RunID:       runID,
				Formula:     f,
				Params:      p,
				Origin:      domain.OriginFineTune,
				BaseTrialID: c.TrialID,
			})
		}
		spans = append(spans, span{lo, len(trials)})
	}

	s.logger.Info("search phase started",
		zap.String("phase", PhaseFineTune),
		zap.String("run_id", runID),
		zap.Int("candidates", len(candidates)),
		zap.Int("trials", len(trials)),
	)

	results, err := s.runTrials(ctx, frame, PhaseFineTune, trials)
	if err != nil {
		return nil, 0, err
	}

	refined := make([]*domain.TrialResult, 0, len(candidates))
	for _, sp := range spans {
		if sp.hi == sp.lo {
			continue
		}
		best := results[sp.lo]
		for _, r := range results[sp.lo+1 : sp.hi] {
			if r.Score > best.Score {
				best = r
			}
		}
		refined = append(refined, best)
	}
	return Rank(refined), len(trials), nil
}

// BestStrategy returns the highest scoring persisted fine-tune result.
// found is false when fine-tune has not run yet.
func (s *Searcher) BestStrategy(ctx context.Context) (domain.TrialResult, bool, error) {
	rows, err := s.loadTable(ctx, domain.TableFineTuneResults)
	if err != nil {
		return domain.TrialResult{}, false, err
	}
	if len(rows) == 0 {
		return domain.TrialResult{}, false, nil
	}
	return *Rank(rows)[0], true, nil
}
