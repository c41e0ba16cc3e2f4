// Package synthetic generates deterministic market data for tests and demos.
package synthetic

import (
	"math"
	"math/rand"

	"formula-lab/internal/domain"
	"formula-lab/internal/features"
)

// Options control the generated market.
type Options struct {
	Symbol      string
	StartMs     int64
	Bars        int     // number of one-minute spot bars
	BasePrice   float64 // spot level, default 100
	Amplitude   float64 // sinusoid amplitude as fraction of base, default 0.02
	PeriodBars  int     // sinusoid period in bars, default 720
	IVEveryBars int     // IV sample spacing, default 5
	BasisEvery  int     // basis sample spacing, default 15
	Noise       float64 // gaussian noise as fraction of base; 0 keeps series purely sinusoidal
	Seed        int64
}

const minuteMs = int64(60_000)

func (o *Options) defaults() {
	if o.Symbol == "" {
		o.Symbol = "BTC"
	}
	if o.BasePrice == 0 {
		o.BasePrice = 100
	}
	if o.Amplitude == 0 {
		o.Amplitude = 0.02
	}
	if o.PeriodBars <= 0 {
		o.PeriodBars = 720
	}
	if o.IVEveryBars <= 0 {
		o.IVEveryBars = 5
	}
	if o.BasisEvery <= 0 {
		o.BasisEvery = 15
	}
}

// Market generates spot bars plus sparser IV and basis samples.
// Spot follows base·(1 + amplitude·sin(2πi/period)); the other series are
// phase-shifted sinusoids at different periods. Identical options always
// produce identical data.
func Market(opts Options) ([]*domain.SpotBar, []*domain.IVPoint, []*domain.BasisPoint) {
	opts.defaults()
	rng := rand.New(rand.NewSource(opts.Seed))

	period := float64(opts.PeriodBars)
	spot := make([]*domain.SpotBar, 0, opts.Bars)
	var iv []*domain.IVPoint
	var basis []*domain.BasisPoint

	for i := 0; i < opts.Bars; i++ {
		ts := opts.StartMs + int64(i)*minuteMs
		phase := 2 * math.Pi * float64(i) / period

		price := opts.BasePrice * (1 + opts.Amplitude*math.Sin(phase))
		if opts.Noise > 0 {
			price += opts.BasePrice * opts.Noise * rng.NormFloat64()
		}
		volume := 50 + 20*math.Sin(phase*3+0.5)
		spot = append(spot, &domain.SpotBar{Symbol: opts.Symbol, TimestampMs: ts, Close: price, Volume: volume})

		if i%opts.IVEveryBars == 0 {
			iv = append(iv, &domain.IVPoint{
				Symbol:      opts.Symbol,
				TimestampMs: ts,
				IV30d:       0.6 + 0.1*math.Sin(phase*1.7+1),
				Skew30d:     0.05 * math.Cos(phase*0.9),
			})
		}
		if i%opts.BasisEvery == 0 {
			basis = append(basis, &domain.BasisPoint{
				Symbol:       opts.Symbol,
				TimestampMs:  ts,
				BasisRel:     0.002 + 0.001*math.Sin(phase*0.6+2),
				FundingRate:  0.0001 * math.Cos(phase*1.3),
				OpenInterest: 1e6 * (1 + 0.1*math.Sin(phase*0.4)),
			})
		}
	}
	return spot, iv, basis
}

// Frame generates a market and builds its FeatureFrame.
func Frame(opts Options) (*domain.FeatureFrame, error) {
	spot, iv, basis := Market(opts)
	sym := opts.Symbol
	if sym == "" {
		sym = "BTC"
	}
	return features.FromMarket(sym, spot, iv, basis)
}
