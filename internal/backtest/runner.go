package backtest

import (
	"formula-lab/internal/domain"
	"formula-lab/internal/formula"
	"formula-lab/internal/idhash"
)

// Trial describes one (formula, ParameterSet) evaluation request.
type Trial struct {
	RunID       string
	Formula     domain.Formula
	Params      domain.ParameterSet
	Origin      domain.Origin
	BaseTrialID string
}

// RunTrial backtests t and wraps the outcome in a TrialResult. Evaluation
// failures do not propagate: the result carries status failed, the
// failure kind, neutral metrics and score 0.
func (s *Simulator) RunTrial(frame *domain.FeatureFrame, t Trial) domain.TrialResult {
	res := domain.TrialResult{
		TrialID:     idhash.ComputeTrialID(t.Formula.ID, t.Params.Hash(), string(t.Origin)),
		RunID:       t.RunID,
		FormulaID:   t.Formula.ID,
		FormulaName: t.Formula.Name,
		Params:      t.Params,
		Origin:      t.Origin,
		BaseTrialID: t.BaseTrialID,
		Status:      domain.TrialStatusOK,
	}

	m, err := s.Run(frame, t.Formula.ID, t.Params)
	res.Metrics = m
	if err != nil {
		res.Status = domain.TrialStatusFailed
		res.Failure = formula.FailureKind(err)
		return res
	}
	res.Score = m.SharpeRatio
	return res
}
