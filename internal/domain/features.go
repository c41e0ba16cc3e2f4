package domain

import "formula-lab/internal/idhash"

// FeatureFrame is a columnar, time-indexed table of raw market columns
// and derived rolling features. Every column has Len() entries.
// Timestamps are strictly increasing. A frame is read-only once built.
type FeatureFrame struct {
	ID     string // content fingerprint
	Symbol string

	Timestamps []int64 // Unix ms, strictly increasing

	// Raw columns
	Spot    []float64
	Volume  []float64
	IV      []float64 // iv_30d
	Skew    []float64 // skew_30d
	Basis   []float64 // basis_rel
	Funding []float64 // funding_rate
	OI      []float64 // open_interest

	// Derived columns
	IVZ        []float64 // rolling-60 z-score of IV
	SkewZ      []float64 // rolling-60 z-score of skew
	BasisZ     []float64 // rolling-60 z-score of basis
	IVChange   []float64 // 1-period pct change of IV
	Mom1h      []float64 // 60-period pct change of spot
	Mom4h      []float64 // 240-period pct change of spot
	Volatility []float64 // rolling-20 std of spot
	Trend1h    []float64 // rolling-60 mean of spot
	Trend4h    []float64 // rolling-240 mean of spot
}

// Len returns the number of records.
func (f *FeatureFrame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Timestamps)
}

// Fingerprint hashes the symbol, timestamps and raw columns. Derived
// columns are functions of the raw ones and are not hashed.
func (f *FeatureFrame) Fingerprint() string {
	return idhash.ComputeFrameFingerprint(f.Symbol, f.Timestamps,
		f.Spot, f.Volume, f.IV, f.Skew, f.Basis, f.Funding, f.OI)
}

// Start returns the first timestamp, or 0 for an empty frame.
func (f *FeatureFrame) Start() int64 {
	if f.Len() == 0 {
		return 0
	}
	return f.Timestamps[0]
}

// End returns the last timestamp, or 0 for an empty frame.
func (f *FeatureFrame) End() int64 {
	if f.Len() == 0 {
		return 0
	}
	return f.Timestamps[len(f.Timestamps)-1]
}

// Slice returns a view of records [i, j). Columns share backing arrays
// with the parent; id identifies the view.
func (f *FeatureFrame) Slice(i, j int, id string) *FeatureFrame {
	return &FeatureFrame{
		ID:         id,
		Symbol:     f.Symbol,
		Timestamps: f.Timestamps[i:j],
		Spot:       f.Spot[i:j],
		Volume:     f.Volume[i:j],
		IV:         f.IV[i:j],
		Skew:       f.Skew[i:j],
		Basis:      f.Basis[i:j],
		Funding:    f.Funding[i:j],
		OI:         f.OI[i:j],
		IVZ:        f.IVZ[i:j],
		SkewZ:      f.SkewZ[i:j],
		BasisZ:     f.BasisZ[i:j],
		IVChange:   f.IVChange[i:j],
		Mom1h:      f.Mom1h[i:j],
		Mom4h:      f.Mom4h[i:j],
		Volatility: f.Volatility[i:j],
		Trend1h:    f.Trend1h[i:j],
		Trend4h:    f.Trend4h[i:j],
	}
}

// Signal is a discrete trading signal: long, short or flat.
type Signal int8

// Signal values
const (
	SignalShort Signal = -1
	SignalFlat  Signal = 0
	SignalLong  Signal = 1
)
