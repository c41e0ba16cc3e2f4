// Package formula evaluates catalog formulas over feature frames.
//
// Evaluation is a pure function of (frame, formula, params): the raw
// closed-form expression is computed row by row, then re-normalized by its
// own rolling-60 z-score so thresholds are comparable across formulas.
package formula

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"formula-lab/internal/catalog"
	"formula-lab/internal/domain"
	"formula-lab/internal/features"
	"formula-lab/internal/observability"
)

// Evaluation errors. Each is returned together with a zero series of the
// frame's length so callers can still produce a neutral trial result.
var (
	ErrUnknownFormula    = errors.New("unknown formula")
	ErrInvalidParams     = errors.New("invalid parameters")
	ErrNumericDegenerate = errors.New("numeric degenerate")
	ErrResourceExhausted = errors.New("resource exhausted")
)

// DefaultMaxFrameLen bounds the number of rows a single evaluation may process.
const DefaultMaxFrameLen = 5_000_000

// normalization window and epsilon for the score z-score
const (
	normWindow = 60
	normEps    = 1e-6
)

// maxSeriesFrames bounds how many frames keep auxiliary columns in memory.
const maxSeriesFrames = 8

// Evaluator computes normalized score series. Safe for concurrent use.
type Evaluator struct {
	catalog     *catalog.Catalog
	cache       *resultCache
	maxFrameLen int
	logger      *zap.Logger

	seriesMu    sync.Mutex
	seriesByID  map[string]*seriesEntry
	seriesOrder []string

	hits   atomic.Int64
	misses atomic.Int64
}

type seriesEntry struct {
	once sync.Once
	s    *series
}

// Options configure an Evaluator.
type Options struct {
	CacheSize   int // DefaultCacheSize if zero
	MaxFrameLen int // DefaultMaxFrameLen if zero
	Logger      *zap.Logger
}

// NewEvaluator creates an Evaluator over cat.
func NewEvaluator(cat *catalog.Catalog, opts Options) *Evaluator {
	if opts.MaxFrameLen <= 0 {
		opts.MaxFrameLen = DefaultMaxFrameLen
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Evaluator{
		catalog:     cat,
		cache:       newResultCache(opts.CacheSize),
		maxFrameLen: opts.MaxFrameLen,
		logger:      opts.Logger,
		seriesByID:  make(map[string]*seriesEntry),
	}
}

// Catalog returns the evaluator's formula catalog.
func (e *Evaluator) Catalog() *catalog.Catalog {
	return e.catalog
}

// Evaluate returns the normalized score series Y for (frame, formulaID, params).
// On failure it returns a zero series of frame length and one of the
// evaluation errors; it never panics on bad numeric input.
// Repeated calls return identical values whether served from cache or not.
func (e *Evaluator) Evaluate(frame *domain.FeatureFrame, formulaID string, params domain.ParameterSet) ([]float64, error) {
	n := frame.Len()
	if n == 0 {
		return []float64{}, nil
	}
	if n > e.maxFrameLen {
		return make([]float64, n), fmt.Errorf("%w: frame has %d rows, limit %d", ErrResourceExhausted, n, e.maxFrameLen)
	}

	f, ok := e.catalog.Get(formulaID)
	if !ok {
		return make([]float64, n), fmt.Errorf("%w: %s", ErrUnknownFormula, formulaID)
	}
	expr, ok := expressions[formulaID]
	if !ok {
		return make([]float64, n), fmt.Errorf("%w: %s has no expression", ErrUnknownFormula, formulaID)
	}
	p, err := orderedParams(&f, params)
	if err != nil {
		return make([]float64, n), err
	}

	frameID := frame.ID
	if frameID == "" {
		frameID = frame.Fingerprint()
	}
	key := frameID + "|" + formulaID + "|" + params.Hash()
	if y, ok := e.cache.get(key); ok {
		e.hits.Add(1)
		observability.RecordCacheHit()
		return y, nil
	}
	e.misses.Add(1)
	observability.RecordCacheMiss()

	s := e.seriesFor(frameID, frame)
	raw := make([]float64, n)
	bad := 0
	for i := 0; i < n; i++ {
		v := expr(s, i, p)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
			bad++
		}
		raw[i] = v
	}
	if bad == n {
		return make([]float64, n), fmt.Errorf("%w: %s produced no finite values", ErrNumericDegenerate, formulaID)
	}

	y := features.Sanitize(features.ZScoreEps(raw, normWindow, normEps))

	evicted, size := e.cache.put(key, y)
	if evicted > 0 {
		observability.RecordCacheEviction(evicted, size)
		e.logger.Debug("evaluator cache evicted", zap.Int("evicted", evicted), zap.Int("size", size))
	} else {
		observability.UpdateCacheSize(size)
	}
	return y, nil
}

// CacheStats returns cache hit and miss counts and the current size.
func (e *Evaluator) CacheStats() (hits, misses int64, size int) {
	return e.hits.Load(), e.misses.Load(), e.cache.len()
}

// seriesFor returns the auxiliary columns for frame, computing them once.
func (e *Evaluator) seriesFor(frameID string, frame *domain.FeatureFrame) *series {
	e.seriesMu.Lock()
	entry, ok := e.seriesByID[frameID]
	if !ok {
		entry = &seriesEntry{}
		e.seriesByID[frameID] = entry
		e.seriesOrder = append(e.seriesOrder, frameID)
		if len(e.seriesOrder) > maxSeriesFrames {
			delete(e.seriesByID, e.seriesOrder[0])
			e.seriesOrder = e.seriesOrder[1:]
		}
	}
	e.seriesMu.Unlock()

	entry.once.Do(func() { entry.s = newSeries(frame) })
	return entry.s
}

// orderedParams maps params onto the formula's declaration order.
func orderedParams(f *domain.Formula, params domain.ParameterSet) ([]float64, error) {
	if params.FormulaID != "" && params.FormulaID != f.ID {
		return nil, fmt.Errorf("%w: params for %s passed to %s", ErrInvalidParams, params.FormulaID, f.ID)
	}
	if params.Len() != len(f.ParamNames) {
		return nil, fmt.Errorf("%w: %s expects %d params, got %d", ErrInvalidParams, f.ID, len(f.ParamNames), params.Len())
	}
	out := make([]float64, len(f.ParamNames))
	for i, name := range f.ParamNames {
		v, ok := params.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s missing %q", ErrInvalidParams, f.ID, name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s %q is not finite", ErrInvalidParams, f.ID, name)
		}
		out[i] = v
	}
	return out, nil
}

// FailureKind classifies an evaluation error for logging and metrics.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrResourceExhausted):
		return "resource_exhausted"
	case errors.Is(err, ErrNumericDegenerate):
		return "numeric_degenerate"
	case errors.Is(err, ErrUnknownFormula):
		return "unknown_formula"
	case errors.Is(err, ErrInvalidParams):
		return "invalid_params"
	}
	return "other"
}
