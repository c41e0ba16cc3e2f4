package simulation

import (
	"math"
	"time"

	"formula-lab/internal/domain"
	"formula-lab/internal/formula"
)

// SignalsFromSeries derives validator signals from a formula score series:
// one signal whenever the thresholded state changes into long or short.
// Confidence is min(|y|/3, 1); the session follows the UTC hour.
func SignalsFromSeries(frame *domain.FeatureFrame, y []float64, thLong, thShort float64) []domain.TradeSignal {
	n := frame.Len()
	if len(y) < n {
		n = len(y)
	}
	states := formula.Signals(y[:n], thLong, thShort)

	var out []domain.TradeSignal
	prev := domain.SignalFlat
	for i, s := range states {
		if s != prev && s != domain.SignalFlat {
			dir := domain.DirectionLong
			if s == domain.SignalShort {
				dir = domain.DirectionShort
			}
			ts := frame.Timestamps[i]
			var iv float64
			if i < len(frame.IV) {
				iv = frame.IV[i]
			}
			out = append(out, domain.TradeSignal{
				TimestampMs: ts,
				Direction:   dir,
				Confidence:  math.Min(math.Abs(y[i])/3, 1),
				IV:          iv,
				Session:     domain.SessionForHour(time.UnixMilli(ts).UTC().Hour()),
				Price:       frame.Spot[i],
			})
		}
		prev = s
	}
	return out
}
