package reporting

import (
	"context"
	"errors"
	"sort"
	"time"

	"formula-lab/internal/domain"
	"formula-lab/internal/storage"
)

// Generator produces reports from stored search results.
type Generator struct {
	store storage.ResultStore
	now   func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(store storage.ResultStore) *Generator {
	return &Generator{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Search builds a report from the coarse, fine-tune and leaderboard tables.
// Tables that were never saved are reported as empty.
func (g *Generator) Search(ctx context.Context) (*SearchReport, error) {
	coarse, err := g.load(ctx, domain.TableCoarseResults)
	if err != nil {
		return nil, err
	}
	fine, err := g.load(ctx, domain.TableFineTuneResults)
	if err != nil {
		return nil, err
	}
	top, err := g.load(ctx, domain.TableFineTuneTop)
	if err != nil {
		return nil, err
	}
	board, err := g.load(ctx, domain.TableLeaderboard)
	if err != nil {
		return nil, err
	}

	r := &SearchReport{
		GeneratedAt:    g.now(),
		CoarseTrials:   len(coarse),
		FineTuneTrials: len(fine),
		Leaderboard:    board,
		FineTuneTop:    top,
		BestPerFormula: bestPerFormula(coarse, fine),
	}
	r.FormulaCount = len(r.BestPerFormula)
	for _, set := range [][]*domain.TrialResult{coarse, fine} {
		for _, res := range set {
			if res.Status == domain.TrialStatusFailed {
				r.FailedTrials++
			}
		}
	}
	if len(board) > 0 {
		r.RunID = board[0].RunID
	}
	return r, nil
}

func (g *Generator) load(ctx context.Context, table domain.ResultTable) ([]*domain.TrialResult, error) {
	rows, err := g.store.LoadResults(ctx, table)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return rows, err
}

// bestPerFormula picks each formula's top result over both phases.
func bestPerFormula(coarse, fine []*domain.TrialResult) []FormulaBestRow {
	type acc struct {
		row        FormulaBestRow
		coarseBest float64
		fineBest   float64
		hasCoarse  bool
		hasFine    bool
	}
	byID := make(map[string]*acc)

	visit := func(r *domain.TrialResult) {
		a, ok := byID[r.FormulaID]
		if !ok {
			a = &acc{row: FormulaBestRow{FormulaID: r.FormulaID, FormulaName: r.FormulaName}}
			byID[r.FormulaID] = a
		}
		a.row.Trials++
		if a.row.Best == nil || r.Score > a.row.Best.Score {
			a.row.Best = r
		}
		if r.Origin == domain.OriginFineTune {
			if !a.hasFine || r.Score > a.fineBest {
				a.fineBest = r.Score
			}
			a.hasFine = true
		} else {
			if !a.hasCoarse || r.Score > a.coarseBest {
				a.coarseBest = r.Score
			}
			a.hasCoarse = true
		}
	}
	for _, r := range coarse {
		visit(r)
	}
	for _, r := range fine {
		visit(r)
	}

	rows := make([]FormulaBestRow, 0, len(byID))
	for _, a := range byID {
		if a.hasCoarse && a.hasFine {
			a.row.Improvement = a.fineBest - a.coarseBest
		}
		rows = append(rows, a.row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Best.Score != rows[j].Best.Score {
			return rows[i].Best.Score > rows[j].Best.Score
		}
		return rows[i].FormulaID < rows[j].FormulaID
	})
	return rows
}
