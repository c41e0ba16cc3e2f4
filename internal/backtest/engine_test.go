package backtest

import (
	"errors"
	"math"
	"testing"

	"formula-lab/internal/domain"
	"formula-lab/internal/formula"
	"formula-lab/internal/metrics"
)

// fixedEvaluator returns a preset score series.
type fixedEvaluator struct {
	y   []float64
	err error
}

func (f *fixedEvaluator) Evaluate(frame *domain.FeatureFrame, _ string, _ domain.ParameterSet) ([]float64, error) {
	if f.err != nil {
		return make([]float64, frame.Len()), f.err
	}
	out := make([]float64, len(f.y))
	copy(out, f.y)
	return out, nil
}

func testFrame(spot []float64) *domain.FeatureFrame {
	ts := make([]int64, len(spot))
	for i := range ts {
		ts[i] = int64(i) * 60_000
	}
	return &domain.FeatureFrame{ID: "test", Symbol: "BTC", Timestamps: ts, Spot: spot}
}

func testParams(t *testing.T) domain.ParameterSet {
	t.Helper()
	p, err := domain.NewParameterSet("F05", []string{"a", "b", "c"}, []float64{1, 1, 1})
	if err != nil {
		t.Fatalf("NewParameterSet: %v", err)
	}
	return p
}

func TestSimulator_LongOnRisingMarket(t *testing.T) {
	frame := testFrame([]float64{100, 101, 102, 103, 104})
	eval := &fixedEvaluator{y: []float64{2, 2, 2, 2, 2}}
	sim := NewSimulator(eval, Options{FeeBps: 10})

	m, err := sim.Run(frame, "F05", testParams(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// constant long: no fees after the first bar, every period positive
	want := 104.0/100 - 1
	if math.Abs(m.TotalReturn-want) > 1e-9 {
		t.Errorf("expected total return %v, got %v", want, m.TotalReturn)
	}
	if m.WinRate != 1 || m.MaxDrawdown != 0 {
		t.Errorf("expected win rate 1 and no drawdown, got %+v", m)
	}
	if m.Periods != 4 {
		t.Errorf("expected 4 periods, got %d", m.Periods)
	}
}

func TestSimulator_FlatSignalsNoReturn(t *testing.T) {
	frame := testFrame([]float64{100, 90, 120, 80})
	sim := NewSimulator(&fixedEvaluator{y: []float64{0, 1, -1, 0.5}}, Options{})

	m, err := sim.Run(frame, "F05", testParams(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.TotalReturn != 0 || m.SharpeRatio != 0 || m.MaxDrawdown != 0 {
		t.Errorf("expected zero metrics inside thresholds, got %+v", m)
	}
}

func TestSimulator_ThresholdOptions(t *testing.T) {
	sim := NewSimulator(&fixedEvaluator{y: []float64{0.6, -0.6}}, Options{ThLong: 0.5, ThShort: -0.5})
	_, sig, err := sim.Signals(testFrame([]float64{1, 1}), "F05", testParams(t))
	if err != nil {
		t.Fatalf("Signals: %v", err)
	}
	if sig[0] != domain.SignalLong || sig[1] != domain.SignalShort {
		t.Errorf("unexpected signals %v", sig)
	}
}

func TestSimulator_EvaluationFailureIsNeutral(t *testing.T) {
	frame := testFrame([]float64{100, 101})
	sim := NewSimulator(&fixedEvaluator{err: formula.ErrNumericDegenerate}, Options{})

	m, err := sim.Run(frame, "F05", testParams(t))
	if !errors.Is(err, formula.ErrNumericDegenerate) {
		t.Fatalf("expected ErrNumericDegenerate, got %v", err)
	}
	if m != metrics.NeutralMetrics() {
		t.Errorf("expected neutral metrics, got %+v", m)
	}
}

func TestRunTrial_FailedTrialScoresZero(t *testing.T) {
	frame := testFrame([]float64{100, 101})
	sim := NewSimulator(&fixedEvaluator{err: formula.ErrResourceExhausted}, Options{})

	res := sim.RunTrial(frame, Trial{
		RunID:   "run-1",
		Formula: domain.Formula{ID: "F05", Name: "Momentum"},
		Params:  testParams(t),
		Origin:  domain.OriginCoarse,
	})

	if res.Status != domain.TrialStatusFailed || res.Failure != "resource_exhausted" {
		t.Errorf("expected failed/resource_exhausted, got %s/%s", res.Status, res.Failure)
	}
	if res.Score != 0 {
		t.Errorf("expected score 0, got %v", res.Score)
	}
	if res.TrialID == "" || res.FormulaName != "Momentum" || res.RunID != "run-1" {
		t.Errorf("identity fields not populated: %+v", res)
	}
}

func TestRunTrial_ScoreIsSharpe(t *testing.T) {
	frame := testFrame([]float64{100, 101, 100.5, 102, 103})
	sim := NewSimulator(&fixedEvaluator{y: []float64{2, 2, 2, 2, 2}}, Options{})

	res := sim.RunTrial(frame, Trial{Formula: domain.Formula{ID: "F05"}, Params: testParams(t), Origin: domain.OriginCoarse})
	if res.Status != domain.TrialStatusOK {
		t.Fatalf("expected ok, got %s", res.Status)
	}
	if res.Score != res.Metrics.SharpeRatio {
		t.Errorf("score %v != sharpe %v", res.Score, res.Metrics.SharpeRatio)
	}
}
