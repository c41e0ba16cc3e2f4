package formula

import "math"

// exprFunc computes the raw formula value at row i. p holds parameter
// values in the formula's declaration order (a, b, c, ...).
type exprFunc func(s *series, i int, p []float64) float64

// expressions is the dispatch table from formula id to closed form.
var expressions = map[string]exprFunc{
	"F01": func(s *series, i int, p []float64) float64 {
		return p[0]*s.ivZ[i] + p[1]*s.ivChange[i] - p[2]*(1/(math.Abs(s.basis[i])+eps)) - p[3]*s.basis[i]
	},
	"F02": func(s *series, i int, p []float64) float64 {
		return p[0]*s.skewZ[i] + p[1]*s.skewChange[i] + p[2]*s.trendFilter[i]
	},
	"F03": func(s *series, i int, p []float64) float64 {
		return p[0]*s.basisZ[i] + p[1]*s.basisChange[i] + p[2]*s.volFilter[i]
	},
	"F04": func(s *series, i int, p []float64) float64 {
		return p[0]*s.ivZ[i] + p[1]*s.skewZ[i] + p[2]*s.ivSkewCorr[i]
	},
	"F05": func(s *series, i int, p []float64) float64 {
		return p[0]*s.mom1h[i] + p[1]*s.mom4h[i] + p[2]*s.volRatio[i]
	},
	"F06": func(s *series, i int, p []float64) float64 {
		var low, high float64
		if s.volRatio[i] < 1 {
			low = s.mom1h[i]
		} else {
			high = -s.mom1h[i]
		}
		return p[0]*low + p[1]*high + p[2]*(s.volRatio[i]-1)
	},
	"F07": func(s *series, i int, p []float64) float64 {
		return p[0]*(s.trend1h[i]-s.spot[i])/s.trend1h[i] - p[1]*s.basisZ[i] - p[2]*(s.volRatio[i]-1)
	},
	"F08": func(s *series, i int, p []float64) float64 {
		return p[0]*(s.trend1h[i]-s.trend4h[i])/s.trend4h[i] + p[1]*s.consistency[i] - p[2]*s.volatility[i]/s.spot[i]
	},
	"F09": func(s *series, i int, p []float64) float64 {
		return p[0]*(s.spot[i]-s.trend1h[i])/(s.volatility[i]+eps) + p[1]*s.volumeZ[i] + p[2]*(s.volRatio[i]-1)
	},
	"F10": func(s *series, i int, p []float64) float64 {
		return p[0]*s.ret1[i] + p[1]*s.ret5[i] + p[2]*s.ret15[i] + p[3]*s.mom1h[i]
	},
	"F11": func(s *series, i int, p []float64) float64 {
		return p[0]*s.volatilityZ[i] + p[1]*s.volChange60[i] + p[2]*s.trendSign[i]
	},
	"F12": func(s *series, i int, p []float64) float64 {
		return p[0]*s.spotIVCorr[i] + p[1]*s.spotIVCorrMean[i] - p[2]*math.Abs(s.basisZ[i])
	},
	"F13": func(s *series, i int, p []float64) float64 {
		return p[0]*s.ret15[i] + p[1]*s.mom4h[i] + p[2]*s.mom1h[i]/(s.volRatio[i]+eps)
	},
	"F14": func(s *series, i int, p []float64) float64 {
		strength := 100 * math.Abs(s.trend1h[i]-s.trend4h[i]) / s.trend4h[i]
		return p[0]*s.trendSign[i] + p[1]*strength - p[2]*s.fundingZ[i]
	},
	"F15": func(s *series, i int, p []float64) float64 {
		return -p[0]*s.ivZ[i] - p[1]*(s.volRatio[i]-1) + p[2]*s.oiZ[i]
	},
	"F16": func(s *series, i int, p []float64) float64 {
		return p[0]*s.mom1h[i] - p[1]*s.mom4h[i] - p[2]*s.skewZ[i]
	},
	"F17": func(s *series, i int, p []float64) float64 {
		return p[0]*s.ivZ[i] + p[1]*s.basisZ[i] + p[2]*s.skewZ[i] + p[3]*s.fundingZ[i]
	},
	"F18": func(s *series, i int, p []float64) float64 {
		return p[0]*(s.ivZ[i]+s.basisZ[i]) - p[1]*s.volRatio[i] + p[2]*s.oiZ[i]
	},
	"F19": func(s *series, i int, p []float64) float64 {
		return p[0]*(s.skewZ[i]+s.trendFilter[i]) + p[1]*(s.basisZ[i]+s.volFilter[i]) + p[2]*s.mom1hZ[i]
	},
	"F20": func(s *series, i int, p []float64) float64 {
		return p[0]*s.ivZ[i] + p[1]*s.skewZ[i] + p[2]*s.basisZ[i] + p[3]*s.mom1h[i] + p[4]*s.volatility[i] + p[5]*s.trendFilter[i]
	},
}
