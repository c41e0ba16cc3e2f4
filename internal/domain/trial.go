package domain

// PerformanceMetrics summarizes a strategy return series.
type PerformanceMetrics struct {
	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
	CalmarRatio  float64 `json:"calmar_ratio"`
	ProfitFactor float64 `json:"profit_factor"` // 0 when there are no losing periods
	WinRate      float64 `json:"win_rate"`
	MaxDrawdown  float64 `json:"max_drawdown"` // fraction of peak, 1 is worst case
	TotalReturn  float64 `json:"total_return"`
	Volatility   float64 `json:"volatility"` // annualized
	Periods      int     `json:"periods"`
}

// Origin tags which search phase produced a result.
type Origin string

// Origin values
const (
	OriginCoarse   Origin = "coarse"
	OriginFineTune Origin = "fine_tune"
)

// TrialStatus is the outcome of a single trial evaluation.
type TrialStatus string

// Trial status values
const (
	TrialStatusOK     TrialStatus = "ok"
	TrialStatusFailed TrialStatus = "failed"
)

// ResultTable names a persisted result collection.
type ResultTable string

// Result tables
const (
	TableCoarseResults   ResultTable = "coarse_search_results"
	TableFineTuneResults ResultTable = "fine_tune_results"
	TableFineTuneTop     ResultTable = "fine_tune_top10"
	TableLeaderboard     ResultTable = "leaderboard"
)

// TrialResult is the outcome of one (formula, ParameterSet) backtest.
// Never mutated after creation.
type TrialResult struct {
	TrialID     string // deterministic hash of formula, params and origin
	RunID       string // search run that produced it
	FormulaID   string
	FormulaName string
	Params      ParameterSet
	Metrics     PerformanceMetrics
	Score       float64 // sharpe_ratio, 0 for failed trials
	Status      TrialStatus
	Failure     string // failure kind, empty when ok
	Origin      Origin
	BaseTrialID string // fine-tune: trial_id of the refined coarse candidate
}

// Key identifies a result by formula and parameter values.
func (r *TrialResult) Key() string {
	return r.FormulaID + "|" + r.Params.Hash()
}
