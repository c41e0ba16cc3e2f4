package formula

import "formula-lab/internal/domain"

// Default decision thresholds on the normalized score.
const (
	DefaultThresholdLong  = 1.5
	DefaultThresholdShort = -1.5
)

// Signals converts a normalized score series into long/short/flat signals:
// long where y > thLong, short where y < thShort, flat otherwise.
func Signals(y []float64, thLong, thShort float64) []domain.Signal {
	out := make([]domain.Signal, len(y))
	for i, v := range y {
		switch {
		case v > thLong:
			out[i] = domain.SignalLong
		case v < thShort:
			out[i] = domain.SignalShort
		}
	}
	return out
}
