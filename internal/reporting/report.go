package reporting

import (
	"time"

	"formula-lab/internal/domain"
)

// SearchReport summarizes persisted search results.
type SearchReport struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string // run of the leaderboard head, empty if no results

	// Counts per phase
	CoarseTrials   int
	FineTuneTrials int
	FailedTrials   int
	FormulaCount   int

	// Best result per formula across both phases, sorted by score DESC
	BestPerFormula []FormulaBestRow

	// Cross-formula top results, in leaderboard order
	Leaderboard []*domain.TrialResult

	// Top refined results, in saved order
	FineTuneTop []*domain.TrialResult
}

// FormulaBestRow is the highest-scoring result of one formula.
type FormulaBestRow struct {
	FormulaID   string
	FormulaName string
	Trials      int
	Best        *domain.TrialResult
	Improvement float64 // fine-tune best minus coarse best, 0 without fine-tune
}
