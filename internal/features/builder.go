// Package features builds merged, gap-filled feature frames from raw
// spot, implied-volatility and basis series.
package features

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"formula-lab/internal/domain"
	"formula-lab/internal/lookup"
	"formula-lab/internal/storage"
)

// ErrDataUnavailable is returned when the source yields no usable spot data.
var ErrDataUnavailable = errors.New("data unavailable")

// Window sizes in bars (one bar per minute).
const (
	ZScoreWindow     = 60
	VolatilityWindow = 20
	Trend1hWindow    = 60
	Trend4hWindow    = 240
	Momentum1h       = 60
	Momentum4h       = 240
)

// DefaultChunk is the source query span used when none is configured.
const DefaultChunk = 7 * 24 * time.Hour

// Builder loads raw series from a MarketDataSource and derives a FeatureFrame.
type Builder struct {
	source storage.MarketDataSource
	chunk  time.Duration
	logger *zap.Logger
}

// Options configure a Builder.
type Options struct {
	Chunk  time.Duration // span of each source query, DefaultChunk if zero
	Logger *zap.Logger
}

// NewBuilder creates a Builder over source.
func NewBuilder(source storage.MarketDataSource, opts Options) *Builder {
	if opts.Chunk <= 0 {
		opts.Chunk = DefaultChunk
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Builder{source: source, chunk: opts.Chunk, logger: opts.Logger}
}

// Build loads [start, end) for symbol in fixed-size chunks and builds the frame.
// Returns ErrDataUnavailable if no spot bars exist in the range.
func (b *Builder) Build(ctx context.Context, symbol string, start, end int64) (*domain.FeatureFrame, error) {
	if end <= start {
		return nil, fmt.Errorf("build frame: empty range [%d, %d): %w", start, end, ErrDataUnavailable)
	}

	var spot []*domain.SpotBar
	var iv []*domain.IVPoint
	var basis []*domain.BasisPoint

	step := b.chunk.Milliseconds()
	for from := start; from < end; from += step {
		to := from + step
		if to > end {
			to = end
		}

		s, err := b.source.GetSpotBars(ctx, symbol, from, to)
		if err != nil {
			return nil, fmt.Errorf("load spot bars: %w", err)
		}
		v, err := b.source.GetIVPoints(ctx, symbol, from, to)
		if err != nil {
			return nil, fmt.Errorf("load iv points: %w", err)
		}
		bs, err := b.source.GetBasisPoints(ctx, symbol, from, to)
		if err != nil {
			return nil, fmt.Errorf("load basis points: %w", err)
		}

		spot = append(spot, s...)
		iv = append(iv, v...)
		basis = append(basis, bs...)

		b.logger.Debug("loaded chunk",
			zap.String("symbol", symbol),
			zap.Int64("from", from),
			zap.Int64("to", to),
			zap.Int("spot", len(s)),
			zap.Int("iv", len(v)),
			zap.Int("basis", len(bs)),
		)
	}

	frame, err := FromMarket(symbol, spot, iv, basis)
	if err != nil {
		return nil, err
	}

	b.logger.Info("feature frame built",
		zap.String("symbol", symbol),
		zap.Int("rows", frame.Len()),
		zap.String("frame_id", frame.ID),
	)
	return frame, nil
}

// FromMarket merges raw series into a FeatureFrame.
//
// Merge policy:
//   - spot bars define the rows; duplicate timestamps keep the last bar
//   - IV and basis columns use as-of backward lookup: each sample applies to
//     every later spot row until superseded
//   - missing values are forward-filled, then leading gaps zero-filled
//
// Derived columns:
//   - iv_z, skew_z, basis_z = rolling-60 z-score (min one period)
//   - iv_change = 1-period pct change of iv
//   - momentum_1h / momentum_4h = 60 / 240-period pct change of spot
//   - volatility = rolling-20 std of spot
//   - trend_1h / trend_4h = rolling-60 / 240 mean of spot
//
// NaN and Inf in any derived column are replaced with 0.
func FromMarket(symbol string, spot []*domain.SpotBar, iv []*domain.IVPoint, basis []*domain.BasisPoint) (*domain.FeatureFrame, error) {
	bars := cleanSpot(spot)
	if len(bars) == 0 {
		return nil, fmt.Errorf("build frame %s: no spot bars: %w", symbol, ErrDataUnavailable)
	}

	n := len(bars)
	f := &domain.FeatureFrame{
		Symbol:     symbol,
		Timestamps: make([]int64, n),
		Spot:       make([]float64, n),
		Volume:     make([]float64, n),
	}
	for i, bar := range bars {
		f.Timestamps[i] = bar.TimestampMs
		f.Spot[i] = bar.Close
		f.Volume[i] = bar.Volume
	}
	fillForward(f.Volume)

	ivSorted := sortIV(iv)
	ivTs := make([]int64, len(ivSorted))
	for i, p := range ivSorted {
		ivTs[i] = p.TimestampMs
	}
	ivIdx := lookup.AsOfIndex(f.Timestamps, ivTs)
	f.IV = asOfColumn(ivIdx, func(j int) float64 { return ivSorted[j].IV30d })
	f.Skew = asOfColumn(ivIdx, func(j int) float64 { return ivSorted[j].Skew30d })

	basisSorted := sortBasis(basis)
	basisTs := make([]int64, len(basisSorted))
	for i, p := range basisSorted {
		basisTs[i] = p.TimestampMs
	}
	basisIdx := lookup.AsOfIndex(f.Timestamps, basisTs)
	f.Basis = asOfColumn(basisIdx, func(j int) float64 { return basisSorted[j].BasisRel })
	f.Funding = asOfColumn(basisIdx, func(j int) float64 { return basisSorted[j].FundingRate })
	f.OI = asOfColumn(basisIdx, func(j int) float64 { return basisSorted[j].OpenInterest })

	derive(f)
	f.ID = f.Fingerprint()
	return f, nil
}

// derive fills the derived columns of f from its raw columns.
func derive(f *domain.FeatureFrame) {
	f.IVZ = ZScore(f.IV, ZScoreWindow)
	f.SkewZ = ZScore(f.Skew, ZScoreWindow)
	f.BasisZ = ZScore(f.Basis, ZScoreWindow)
	f.IVChange = Sanitize(PctChange(f.IV, 1))
	f.Mom1h = Sanitize(PctChange(f.Spot, Momentum1h))
	f.Mom4h = Sanitize(PctChange(f.Spot, Momentum4h))
	f.Volatility = Sanitize(RollingStd(f.Spot, VolatilityWindow))
	f.Trend1h = Sanitize(RollingMean(f.Spot, Trend1hWindow))
	f.Trend4h = Sanitize(RollingMean(f.Spot, Trend4hWindow))
}

// cleanSpot sorts bars by timestamp, drops non-finite closes and keeps the
// last bar for repeated timestamps so the result is strictly increasing.
func cleanSpot(spot []*domain.SpotBar) []*domain.SpotBar {
	bars := make([]*domain.SpotBar, 0, len(spot))
	for _, b := range spot {
		if b == nil || math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			continue
		}
		bars = append(bars, b)
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].TimestampMs < bars[j].TimestampMs })

	out := bars[:0]
	for _, b := range bars {
		if len(out) > 0 && out[len(out)-1].TimestampMs == b.TimestampMs {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

func sortIV(points []*domain.IVPoint) []*domain.IVPoint {
	out := make([]*domain.IVPoint, 0, len(points))
	for _, p := range points {
		if p != nil {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimestampMs < out[j].TimestampMs })
	return out
}

func sortBasis(points []*domain.BasisPoint) []*domain.BasisPoint {
	out := make([]*domain.BasisPoint, 0, len(points))
	for _, p := range points {
		if p != nil {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimestampMs < out[j].TimestampMs })
	return out
}

// asOfColumn materializes a column from as-of indices, then forward-fills
// missing values and zero-fills the leading gap.
func asOfColumn(idx []int, value func(j int) float64) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		if j < 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = value(j)
	}
	fillForward(out)
	return out
}

// fillForward replaces NaN/Inf with the previous finite value, or 0 if none.
func fillForward(x []float64) {
	last := math.NaN()
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			x[i] = last
			continue
		}
		last = v
	}
	Sanitize(x)
}
