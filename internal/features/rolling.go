package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Rolling statistics follow trailing-window semantics with a minimum of one
// observation: position i aggregates x[max(0, i-w+1) .. i].
// Sample statistics (std, corr) are NaN until two observations are available.

// RollingMean returns the trailing mean over window w.
func RollingMean(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	if w < 1 {
		w = 1
	}
	var sum float64
	for i, v := range x {
		sum += v
		if i >= w {
			sum -= x[i-w]
		}
		n := i + 1
		if n > w {
			n = w
		}
		out[i] = sum / float64(n)
	}
	return out
}

// RollingStd returns the trailing sample standard deviation (n-1) over window w.
// Each window is computed from its own values, so a window of identical
// values is exactly 0 however long the series.
func RollingStd(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	if w < 1 {
		w = 1
	}
	for i := range x {
		lo := i - w + 1
		if lo < 0 {
			lo = 0
		}
		win := x[lo : i+1]
		if len(win) < 2 {
			out[i] = math.NaN()
			continue
		}
		if constant(win) {
			out[i] = 0
			continue
		}
		out[i] = stat.StdDev(win, nil)
	}
	return out
}

func constant(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}

// ZScore returns (x - rolling mean) / rolling std over window w.
// Undefined positions (zero or missing std) become 0.
func ZScore(x []float64, w int) []float64 {
	mean := RollingMean(x, w)
	std := RollingStd(x, w)
	out := make([]float64, len(x))
	for i := range x {
		out[i] = (x[i] - mean[i]) / std[i]
	}
	return Sanitize(out)
}

// ZScoreEps returns (x - rolling mean) / (rolling std + eps).
// Positions with an undefined std use std = 0.
func ZScoreEps(x []float64, w int, eps float64) []float64 {
	mean := RollingMean(x, w)
	std := RollingStd(x, w)
	out := make([]float64, len(x))
	for i := range x {
		s := std[i]
		if math.IsNaN(s) {
			s = 0
		}
		out[i] = (x[i] - mean[i]) / (s + eps)
	}
	return out
}

// PctChange returns x[i]/x[i-k] - 1. The first k positions are NaN.
func PctChange(x []float64, k int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < k {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[i]/x[i-k] - 1
	}
	return out
}

// RollingCorr returns the trailing Pearson correlation of x and y over window w.
func RollingCorr(x, y []float64, w int) []float64 {
	out := make([]float64, len(x))
	if w < 1 {
		w = 1
	}
	for i := range x {
		lo := i - w + 1
		if lo < 0 {
			lo = 0
		}
		if i-lo+1 < 2 {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.Correlation(x[lo:i+1], y[lo:i+1], nil)
	}
	return out
}

// Sanitize replaces NaN and ±Inf with 0 in place and returns x.
func Sanitize(x []float64) []float64 {
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			x[i] = 0
		}
	}
	return x
}
