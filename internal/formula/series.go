package formula

import (
	"math"

	"formula-lab/internal/domain"
	"formula-lab/internal/features"
)

const eps = 1e-6

// series bundles frame columns with parameter-independent auxiliary
// columns. Built once per frame and shared read-only by every trial.
type series struct {
	n int

	// frame columns
	spot, basis                  []float64
	ivZ, skewZ, basisZ, ivChange []float64
	mom1h, mom4h, volatility     []float64
	trend1h, trend4h             []float64

	// auxiliary columns
	volRatio       []float64 // volatility / rolling-60 mean volatility, 1 when undefined
	trendFilter    []float64 // +1 if trend_1h > trend_4h else -1
	volFilter      []float64 // 1 if volatility above its rolling-60 mean else 0
	trendSign      []float64 // sign(trend_1h - trend_4h)
	consistency    []float64 // sign(mom_1h) when 1h and 4h momentum agree, else 0
	skewChange     []float64 // 1-period pct change of skew
	basisChange    []float64 // 1-period pct change of basis
	ivSkewCorr     []float64 // rolling-20 corr(iv, skew)
	spotIVCorr     []float64 // rolling-20 corr(spot, iv)
	spotIVCorrMean []float64 // rolling-60 mean of spotIVCorr
	volumeZ        []float64
	fundingZ       []float64
	oiZ            []float64
	volatilityZ    []float64
	volChange60    []float64 // 60-period pct change of volatility
	mom1hZ         []float64 // rolling-60 z-score of mom_1h
	ret1           []float64
	ret5           []float64
	ret15          []float64
}

// newSeries derives the auxiliary columns for f.
func newSeries(f *domain.FeatureFrame) *series {
	n := f.Len()
	s := &series{
		n:          n,
		spot:       f.Spot,
		basis:      f.Basis,
		ivZ:        f.IVZ,
		skewZ:      f.SkewZ,
		basisZ:     f.BasisZ,
		ivChange:   f.IVChange,
		mom1h:      f.Mom1h,
		mom4h:      f.Mom4h,
		volatility: f.Volatility,
		trend1h:    f.Trend1h,
		trend4h:    f.Trend4h,
	}

	volMean := features.RollingMean(f.Volatility, features.ZScoreWindow)
	s.volRatio = make([]float64, n)
	s.trendFilter = make([]float64, n)
	s.volFilter = make([]float64, n)
	s.trendSign = make([]float64, n)
	s.consistency = make([]float64, n)
	for i := 0; i < n; i++ {
		r := f.Volatility[i] / volMean[i]
		if math.IsNaN(r) || math.IsInf(r, 0) {
			r = 1
		}
		s.volRatio[i] = r

		if f.Trend1h[i] > f.Trend4h[i] {
			s.trendFilter[i] = 1
		} else {
			s.trendFilter[i] = -1
		}
		if f.Volatility[i] > volMean[i] {
			s.volFilter[i] = 1
		}
		s.trendSign[i] = sign(f.Trend1h[i] - f.Trend4h[i])

		m1, m4 := sign(f.Mom1h[i]), sign(f.Mom4h[i])
		if m1 != 0 && m1 == m4 {
			s.consistency[i] = m1
		}
	}

	s.skewChange = features.Sanitize(features.PctChange(f.Skew, 1))
	s.basisChange = features.Sanitize(features.PctChange(f.Basis, 1))
	s.ivSkewCorr = features.Sanitize(features.RollingCorr(f.IV, f.Skew, 20))
	s.spotIVCorr = features.Sanitize(features.RollingCorr(f.Spot, f.IV, 20))
	s.spotIVCorrMean = features.RollingMean(s.spotIVCorr, features.ZScoreWindow)
	s.volumeZ = features.ZScore(f.Volume, features.ZScoreWindow)
	s.fundingZ = features.ZScore(f.Funding, features.ZScoreWindow)
	s.oiZ = features.ZScore(f.OI, features.ZScoreWindow)
	s.volatilityZ = features.ZScore(f.Volatility, features.ZScoreWindow)
	s.volChange60 = features.Sanitize(features.PctChange(f.Volatility, 60))
	s.mom1hZ = features.ZScore(f.Mom1h, features.ZScoreWindow)
	s.ret1 = features.Sanitize(features.PctChange(f.Spot, 1))
	s.ret5 = features.Sanitize(features.PctChange(f.Spot, 5))
	s.ret15 = features.Sanitize(features.PctChange(f.Spot, 15))
	return s
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
