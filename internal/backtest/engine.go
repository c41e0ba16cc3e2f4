// Package backtest maps formula signals to strategy returns and scores trials.
package backtest

import (
	"formula-lab/internal/domain"
	"formula-lab/internal/formula"
	"formula-lab/internal/metrics"
)

// DefaultFeeBps is the taker fee charged per unit of signal change.
const DefaultFeeBps = 5.0

// Evaluator produces a normalized score series for a trial.
// Implemented by *formula.Evaluator.
type Evaluator interface {
	Evaluate(frame *domain.FeatureFrame, formulaID string, params domain.ParameterSet) ([]float64, error)
}

// Options configure a Simulator.
type Options struct {
	FeeBps  float64 // DefaultFeeBps if zero
	ThLong  float64 // formula.DefaultThresholdLong if both thresholds are zero
	ThShort float64
}

// Simulator is the search-phase backtest: signal at t-1 times spot return at
// t, minus fees on signal changes. Safe for concurrent use if the evaluator is.
type Simulator struct {
	eval    Evaluator
	fee     float64
	thLong  float64
	thShort float64
}

// NewSimulator creates a simulator over eval.
func NewSimulator(eval Evaluator, opts Options) *Simulator {
	if opts.FeeBps == 0 {
		opts.FeeBps = DefaultFeeBps
	}
	if opts.ThLong == 0 && opts.ThShort == 0 {
		opts.ThLong = formula.DefaultThresholdLong
		opts.ThShort = formula.DefaultThresholdShort
	}
	return &Simulator{
		eval:    eval,
		fee:     opts.FeeBps / 10000,
		thLong:  opts.ThLong,
		thShort: opts.ThShort,
	}
}

// Signals evaluates the formula and thresholds the score series.
func (s *Simulator) Signals(frame *domain.FeatureFrame, formulaID string, params domain.ParameterSet) ([]float64, []domain.Signal, error) {
	y, err := s.eval.Evaluate(frame, formulaID, params)
	if err != nil {
		return y, make([]domain.Signal, len(y)), err
	}
	return y, formula.Signals(y, s.thLong, s.thShort), nil
}

// Run backtests one trial. If evaluation fails the neutral metrics record is
// returned together with the evaluation error.
func (s *Simulator) Run(frame *domain.FeatureFrame, formulaID string, params domain.ParameterSet) (domain.PerformanceMetrics, error) {
	_, signals, err := s.Signals(frame, formulaID, params)
	if err != nil {
		return metrics.NeutralMetrics(), err
	}
	returns := metrics.StrategyReturns(signals, frame.Spot, s.fee)
	return metrics.ComputePerformance(returns), nil
}
