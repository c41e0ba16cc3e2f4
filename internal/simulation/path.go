package simulation

import (
	"math"
	"math/rand"

	"formula-lab/internal/domain"
)

// minutesPerYear scales annualized IV to a per-minute standard deviation.
const minutesPerYear = 525600

// PricePath synthesizes the ticks following a signal's entry.
type PricePath interface {
	// Prices returns up to ticks prices, one per tick interval after entry.
	Prices(sig domain.TradeSignal, signalIndex, ticks int) []float64
}

// RandomWalk is the default PricePath: a drift of direction·confidence·1e-4
// per tick plus gaussian noise with standard deviation iv/sqrt(525600).
// Each signal gets its own stream seeded from Seed and the signal index.
type RandomWalk struct {
	Seed int64
}

// Prices implements PricePath.
func (w RandomWalk) Prices(sig domain.TradeSignal, signalIndex, ticks int) []float64 {
	if ticks <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(w.Seed + int64(signalIndex)))
	drift := sig.Direction.Sign() * sig.Confidence * 0.0001
	noise := sig.IV / math.Sqrt(minutesPerYear)

	out := make([]float64, ticks)
	p := sig.Price
	for k := range out {
		p *= 1 + drift + noise*rng.NormFloat64()
		out[k] = p
	}
	return out
}
