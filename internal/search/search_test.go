package search

import (
	"context"
	"math"
	"testing"

	"formula-lab/internal/backtest"
	"formula-lab/internal/catalog"
	"formula-lab/internal/domain"
	"formula-lab/internal/formula"
	"formula-lab/internal/storage/memory"
	"formula-lab/internal/synthetic"
)

func newTestSearcher(t *testing.T, opts Options) (*Searcher, *memory.ResultStore) {
	t.Helper()
	cat, err := catalog.New()
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	eval := formula.NewEvaluator(cat, formula.Options{})
	sim := backtest.NewSimulator(eval, backtest.Options{FeeBps: 5})
	store := memory.NewResultStore()
	return New(cat, sim, store, opts), store
}

func sinusoidalFrame(t *testing.T, bars int) *domain.FeatureFrame {
	t.Helper()
	f, err := synthetic.Frame(synthetic.Options{Bars: bars, Seed: 42})
	if err != nil {
		t.Fatalf("synthetic.Frame: %v", err)
	}
	return f
}

func TestCoarse_TopKPerFormula(t *testing.T) {
	s, store := newTestSearcher(t, Options{SamplesPerFormula: 50, TopK: 3, Seed: 7})
	frame := sinusoidalFrame(t, 10000)
	ctx := context.Background()

	res, err := s.Coarse(ctx, frame)
	if err != nil {
		t.Fatalf("Coarse: %v", err)
	}

	formulas := s.catalog.Len()
	if len(res.Results) != 3*formulas {
		t.Fatalf("expected %d results, got %d", 3*formulas, len(res.Results))
	}
	perFormula := make(map[string]int)
	for _, r := range res.Results {
		if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
			t.Fatalf("non-finite score for %s", r.FormulaID)
		}
		if r.Origin != domain.OriginCoarse || r.RunID != res.RunID {
			t.Errorf("unexpected origin/run: %s/%s", r.Origin, r.RunID)
		}
		perFormula[r.FormulaID]++
	}
	for id, n := range perFormula {
		if n != 3 {
			t.Errorf("%s: expected 3 winners, got %d", id, n)
		}
	}

	if len(res.Leaderboard) > DefaultLeaderboardSize {
		t.Fatalf("leaderboard too long: %d", len(res.Leaderboard))
	}
	for i := 1; i < len(res.Leaderboard); i++ {
		if res.Leaderboard[i].Score > res.Leaderboard[i-1].Score {
			t.Fatalf("leaderboard not sorted at %d", i)
		}
	}

	saved, err := store.LoadResults(ctx, domain.TableCoarseResults)
	if err != nil {
		t.Fatalf("LoadResults: %v", err)
	}
	if len(saved) != len(res.Results) {
		t.Errorf("expected %d persisted rows, got %d", len(res.Results), len(saved))
	}
	if _, err := store.LoadResults(ctx, domain.TableLeaderboard); err != nil {
		t.Errorf("leaderboard not persisted: %v", err)
	}
}

func TestCoarse_ReproducibleAcrossWorkerCounts(t *testing.T) {
	frame := sinusoidalFrame(t, 2000)
	ctx := context.Background()

	one, _ := newTestSearcher(t, Options{SamplesPerFormula: 10, TopK: 2, Seed: 3, Workers: 1, FormulaIDs: []string{"F01", "F10"}})
	many, _ := newTestSearcher(t, Options{SamplesPerFormula: 10, TopK: 2, Seed: 3, Workers: 8, FormulaIDs: []string{"F01", "F10"}})

	a, err := one.Coarse(ctx, frame)
	if err != nil {
		t.Fatalf("Coarse: %v", err)
	}
	b, err := many.Coarse(ctx, frame)
	if err != nil {
		t.Fatalf("Coarse: %v", err)
	}

	if len(a.Results) != len(b.Results) {
		t.Fatalf("result counts differ: %d vs %d", len(a.Results), len(b.Results))
	}
	for i := range a.Results {
		if !a.Results[i].Params.Equal(b.Results[i].Params) || a.Results[i].Score != b.Results[i].Score {
			t.Errorf("result %d differs between worker counts", i)
		}
	}
}

func TestCoarse_UnknownFormula(t *testing.T) {
	s, _ := newTestSearcher(t, Options{SamplesPerFormula: 1, FormulaIDs: []string{"F99"}})
	if _, err := s.Coarse(context.Background(), sinusoidalFrame(t, 100)); err == nil {
		t.Fatal("expected error for unknown formula")
	}
}

func TestCoarse_Cancelled(t *testing.T) {
	s, _ := newTestSearcher(t, Options{SamplesPerFormula: 5})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Coarse(ctx, sinusoidalFrame(t, 500)); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestRefine_NeverRegresses(t *testing.T) {
	s, _ := newTestSearcher(t, Options{SamplesPerFormula: 20, TopK: 5, Seed: 11, FormulaIDs: []string{"F05"}})
	frame := sinusoidalFrame(t, 5000)
	ctx := context.Background()

	cr, err := s.Coarse(ctx, frame)
	if err != nil {
		t.Fatalf("Coarse: %v", err)
	}
	if len(cr.Results) != 5 {
		t.Fatalf("expected 5 coarse winners, got %d", len(cr.Results))
	}

	refined, err := s.Refine(ctx, frame, cr.Results)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if len(refined) != 5 {
		t.Fatalf("expected 5 refined results, got %d", len(refined))
	}

	base := make(map[string]*domain.TrialResult)
	for _, r := range cr.Results {
		base[r.TrialID] = r
	}
	for _, r := range refined {
		b, ok := base[r.BaseTrialID]
		if !ok {
			t.Fatalf("refined result has unknown base %q", r.BaseTrialID)
		}
		if r.Score < b.Score-1e-9 {
			t.Errorf("refinement regressed: %v < %v", r.Score, b.Score)
		}
		if r.Origin != domain.OriginFineTune {
			t.Errorf("expected fine_tune origin, got %s", r.Origin)
		}
	}
}

func TestFineTune_RunsCoarseWhenMissing(t *testing.T) {
	s, store := newTestSearcher(t, Options{SamplesPerFormula: 10, TopK: 2, FineTuneCandidates: 3, FormulaIDs: []string{"F02", "F03"}})
	frame := sinusoidalFrame(t, 3000)
	ctx := context.Background()

	if _, found, err := s.BestStrategy(ctx); err != nil || found {
		t.Fatalf("expected no best strategy before search, got found=%v err=%v", found, err)
	}

	res, err := s.FineTune(ctx, frame)
	if err != nil {
		t.Fatalf("FineTune: %v", err)
	}
	if len(res.Results) != 3 {
		t.Fatalf("expected 3 refined results, got %d", len(res.Results))
	}

	for _, table := range []domain.ResultTable{
		domain.TableCoarseResults,
		domain.TableFineTuneResults,
		domain.TableFineTuneTop,
		domain.TableLeaderboard,
	} {
		if _, err := store.LoadResults(ctx, table); err != nil {
			t.Errorf("%s not persisted: %v", table, err)
		}
	}

	best, found, err := s.BestStrategy(ctx)
	if err != nil || !found {
		t.Fatalf("expected best strategy, got found=%v err=%v", found, err)
	}
	if best.Score != res.Results[0].Score {
		t.Errorf("best score %v != top refined %v", best.Score, res.Results[0].Score)
	}
}

func TestWalkForward_Windows(t *testing.T) {
	s, _ := newTestSearcher(t, Options{SamplesPerFormula: 5, TopK: 1, FormulaIDs: []string{"F05", "F10"}})
	frame := sinusoidalFrame(t, 1000)

	rows, err := s.WalkForward(context.Background(), frame, WalkForwardOptions{TrainBars: 400, TestBars: 200, StepBars: 200})
	if err != nil {
		t.Fatalf("WalkForward: %v", err)
	}

	// windows start at 0, 200, 400
	if len(rows) != 3*2 {
		t.Fatalf("expected 6 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.TestStart <= r.TrainEnd {
			t.Errorf("window %d: test starts before train ends", r.Window)
		}
	}
}

func TestWalkForward_TooShort(t *testing.T) {
	s, _ := newTestSearcher(t, Options{SamplesPerFormula: 1})
	if _, err := s.WalkForward(context.Background(), sinusoidalFrame(t, 100), WalkForwardOptions{}); err == nil {
		t.Fatal("expected error for short frame")
	}
}
