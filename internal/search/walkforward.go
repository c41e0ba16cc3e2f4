package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"formula-lab/internal/domain"
	"formula-lab/internal/features"
	"formula-lab/internal/observability"
)

// Default walk-forward windows, in 1-minute bars.
const (
	DefaultTrainBars = 21 * 24 * 60
	DefaultTestBars  = 7 * 24 * 60
	DefaultStepBars  = 7 * 24 * 60
)

// WalkForwardOptions size the rolling train/test windows in bars.
type WalkForwardOptions struct {
	TrainBars int
	TestBars  int
	StepBars  int
}

func (o *WalkForwardOptions) defaults() {
	if o.TrainBars <= 0 {
		o.TrainBars = DefaultTrainBars
	}
	if o.TestBars <= 0 {
		o.TestBars = DefaultTestBars
	}
	if o.StepBars <= 0 {
		o.StepBars = DefaultStepBars
	}
}

// WalkForwardWindow reports one formula's winner on one window.
type WalkForwardWindow struct {
	Window      int
	TrainStart  int64
	TrainEnd    int64
	TestStart   int64
	TestEnd     int64
	FormulaID   string
	Params      domain.ParameterSet
	InSample    domain.PerformanceMetrics
	OutOfSample domain.PerformanceMetrics
}

// WalkForward runs a coarse sweep on each train window and re-scores each
// formula's best parameter set on the following test window. Nothing is
// persisted.
func (s *Searcher) WalkForward(ctx context.Context, frame *domain.FeatureFrame, opts WalkForwardOptions) ([]WalkForwardWindow, error) {
	opts.defaults()
	start := time.Now()
	runID := uuid.NewString()

	n := frame.Len()
	if n < opts.TrainBars+opts.TestBars {
		return nil, fmt.Errorf("walk-forward: %d rows, need %d: %w", n, opts.TrainBars+opts.TestBars, features.ErrDataUnavailable)
	}

	var out []WalkForwardWindow
	w := 0
	for lo := 0; lo+opts.TrainBars+opts.TestBars <= n; lo += opts.StepBars {
		mid := lo + opts.TrainBars
		hi := mid + opts.TestBars
		train := frame.Slice(lo, mid, fmt.Sprintf("%s/wf%d/train", frame.ID, w))
		test := frame.Slice(mid, hi, fmt.Sprintf("%s/wf%d/test", frame.ID, w))

		winners, _, _, err := s.sweep(ctx, train, runID, s.opts.Seed+int64(w), PhaseWalkForward)
		if err != nil {
			observability.RecordPhaseRun(PhaseWalkForward, "error", time.Since(start).Seconds())
			return nil, fmt.Errorf("walk-forward window %d: %w", w, err)
		}

		seen := make(map[string]bool)
		for _, r := range winners {
			if seen[r.FormulaID] {
				continue
			}
			seen[r.FormulaID] = true

			oos, err := s.sim.Run(test, r.FormulaID, r.Params)
			if err != nil {
				s.logger.Warn("out-of-sample evaluation failed",
					zap.Int("window", w),
					zap.String("formula_id", r.FormulaID),
					zap.Error(err),
				)
			}
			out = append(out, WalkForwardWindow{
				Window:      w,
				TrainStart:  train.Start(),
				TrainEnd:    train.End(),
				TestStart:   test.Start(),
				TestEnd:     test.End(),
				FormulaID:   r.FormulaID,
				Params:      r.Params,
				InSample:    r.Metrics,
				OutOfSample: oos,
			})
		}
		w++
	}

	observability.RecordPhaseRun(PhaseWalkForward, "ok", time.Since(start).Seconds())
	s.logger.Info("walk-forward complete",
		zap.String("run_id", runID),
		zap.Int("windows", w),
		zap.Int("rows", len(out)),
	)
	return out, nil
}
