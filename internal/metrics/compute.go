// Package metrics computes performance statistics for return series and
// validator trade ledgers.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"formula-lab/internal/domain"
)

// PeriodsPerYear annualizes 1-minute bar returns.
const PeriodsPerYear = 252 * 24 * 60

// NeutralMetrics is the worst-case record used for empty series and failed
// trials: every ratio 0, drawdown 1, volatility 1.
func NeutralMetrics() domain.PerformanceMetrics {
	return domain.PerformanceMetrics{
		MaxDrawdown: 1,
		Volatility:  1,
	}
}

// ComputePerformance aggregates a per-period strategy return series.
// Non-finite entries are dropped; if nothing remains the neutral record is
// returned.
func ComputePerformance(returns []float64) domain.PerformanceMetrics {
	r := finite(returns)
	n := len(r)
	if n == 0 {
		return NeutralMetrics()
	}

	annual := float64(PeriodsPerYear)
	sqrtAnnual := math.Sqrt(annual)

	mean := stat.Mean(r, nil)
	std := sampleStd(r)

	m := domain.PerformanceMetrics{Periods: n}
	m.TotalReturn = totalReturn(r)
	m.Volatility = std * sqrtAnnual
	if std > 0 {
		m.SharpeRatio = mean * annual / m.Volatility
	}

	var pos, neg float64
	var downside []float64
	wins := 0
	for _, v := range r {
		switch {
		case v > 0:
			pos += v
			wins++
		case v < 0:
			neg += v
			downside = append(downside, v)
		}
	}
	if neg != 0 {
		m.ProfitFactor = math.Abs(pos / neg)
	}
	m.WinRate = float64(wins) / float64(n)

	downsideVol := 1.0
	if len(downside) > 0 {
		downsideVol = sampleStd(downside) * sqrtAnnual
	}
	if downsideVol > 0 {
		m.SortinoRatio = mean * annual / downsideVol
	}

	m.MaxDrawdown = maxDrawdown(r)
	if m.MaxDrawdown > 0 {
		m.CalmarRatio = m.TotalReturn / m.MaxDrawdown
	}
	return sanitize(m)
}

// StrategyReturns turns a signal series and spot prices into per-period
// strategy returns: the previous signal times the spot return, less
// fee times the absolute signal change. The first period has no return and
// is dropped, so the result has len(spot)-1 entries.
func StrategyReturns(signals []domain.Signal, spot []float64, fee float64) []float64 {
	n := len(spot)
	if len(signals) < n {
		n = len(signals)
	}
	if n < 2 {
		return nil
	}
	out := make([]float64, n-1)
	for t := 1; t < n; t++ {
		ret := spot[t]/spot[t-1] - 1
		if math.IsNaN(ret) || math.IsInf(ret, 0) {
			ret = 0
		}
		prev := float64(signals[t-1])
		cur := float64(signals[t])
		out[t-1] = prev*ret - fee*math.Abs(cur-prev)
	}
	return out
}

func finite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// sampleStd is the n-1 standard deviation, NaN for fewer than 2 values.
func sampleStd(x []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.StdDev(x, nil)
}

func totalReturn(r []float64) float64 {
	cum := 1.0
	for _, v := range r {
		cum *= 1 + v
	}
	return cum - 1
}

// maxDrawdown is the largest relative decline of the compounded equity
// curve from its running peak.
func maxDrawdown(r []float64) float64 {
	cum := 1.0
	peak := math.Inf(-1)
	worst := 0.0
	for _, v := range r {
		cum *= 1 + v
		if cum > peak {
			peak = cum
		}
		dd := (cum - peak) / peak
		if math.IsNaN(dd) || math.IsInf(dd, 0) {
			return math.NaN()
		}
		if dd < worst {
			worst = dd
		}
	}
	return math.Abs(worst)
}

// sanitize replaces non-finite fields: ratios with 0, drawdown with 1.
func sanitize(m domain.PerformanceMetrics) domain.PerformanceMetrics {
	m.SharpeRatio = orZero(m.SharpeRatio)
	m.SortinoRatio = orZero(m.SortinoRatio)
	m.CalmarRatio = orZero(m.CalmarRatio)
	m.ProfitFactor = orZero(m.ProfitFactor)
	m.WinRate = orZero(m.WinRate)
	m.TotalReturn = orZero(m.TotalReturn)
	m.Volatility = orZero(m.Volatility)
	if math.IsNaN(m.MaxDrawdown) || math.IsInf(m.MaxDrawdown, 0) {
		m.MaxDrawdown = 1
	}
	return m
}

func orZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
