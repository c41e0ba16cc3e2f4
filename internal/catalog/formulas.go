package catalog

import "formula-lab/internal/domain"

// param is one declared parameter with its sampling range.
type param struct {
	name     string
	min, max float64
}

// spec is the static declaration of one formula.
type spec struct {
	id, name, desc string
	params         []param
	thMin, thMax   float64 // long threshold range; short mirrors it
}

func p(name string, min, max float64) param { return param{name: name, min: min, max: max} }

// builtin declares F01..F20. Short thresholds mirror the long range.
var builtin = []spec{
	{"F01", "volatility_focused", "IV level and change against basis magnitude",
		[]param{p("a", 0.5, 2.5), p("b", 0.1, 1.0), p("c", 0.5, 2.0), p("d", 0.5, 2.0)}, 1.0, 3.0},
	{"F02", "skew_momentum", "Skew z-score and skew change filtered by trend direction",
		[]param{p("a", 0.8, 2.2), p("b", 0.3, 1.5), p("c", 0.2, 1.0)}, 1.2, 2.5},
	{"F03", "basis_reversal", "Basis z-score and basis change gated by elevated volatility",
		[]param{p("a", 0.6, 2.0), p("b", 0.4, 1.8), p("c", 0.3, 1.2)}, 1.5, 2.8},
	{"F04", "iv_skew_combo", "IV and skew z-scores plus their rolling correlation",
		[]param{p("a", 0.7, 2.3), p("b", 0.5, 1.8), p("c", 0.2, 1.0)}, 1.3, 2.6},
	{"F05", "momentum_enhanced", "1h and 4h momentum scaled by volatility ratio",
		[]param{p("a", 0.6, 2.0), p("b", 0.4, 1.6), p("c", 0.3, 1.4)}, 1.1, 2.4},
	{"F06", "volatility_regime", "Momentum following in calm regimes, fading in volatile ones",
		[]param{p("a", 0.8, 2.2), p("b", 0.6, 1.8), p("c", 0.4, 1.2)}, 1.2, 2.7},
	{"F07", "mean_reversion", "Distance from 1h trend, inverted basis and volatility excess",
		[]param{p("a", 0.5, 2.0), p("b", 0.7, 2.2), p("c", 0.3, 1.5)}, 1.4, 2.9},
	{"F08", "trend_following", "Trend spread with momentum consistency and volatility penalty",
		[]param{p("a", 0.6, 2.1), p("b", 0.5, 1.7), p("c", 0.4, 1.3)}, 1.0, 2.3},
	{"F09", "breakout_detector", "Price excursion over volatility with volume confirmation",
		[]param{p("a", 0.7, 2.3), p("b", 0.4, 1.6), p("c", 0.3, 1.2)}, 1.3, 2.6},
	{"F10", "multi_timeframe", "Returns over 1, 5 and 15 bars plus 1h momentum",
		[]param{p("a", 0.3, 1.5), p("b", 0.4, 1.8), p("c", 0.5, 2.0), p("d", 0.6, 2.2)}, 1.5, 2.8},
	{"F11", "volatility_breakout", "Volatility z-score and expansion with trend sign",
		[]param{p("a", 0.8, 2.4), p("b", 0.5, 1.9), p("c", 0.3, 1.4)}, 1.2, 2.5},
	{"F12", "correlation_enhanced", "Spot/IV correlation level and persistence against basis stress",
		[]param{p("a", 0.6, 2.0), p("b", 0.4, 1.6), p("c", 0.3, 1.2)}, 1.1, 2.4},
	{"F13", "adaptive_momentum", "Short and long momentum with volatility-adjusted 1h momentum",
		[]param{p("a", 0.5, 2.1), p("b", 0.6, 2.2), p("c", 0.4, 1.5)}, 1.3, 2.7},
	{"F14", "regime_switching", "Trend sign and strength against funding pressure",
		[]param{p("a", 0.7, 2.3), p("b", 0.5, 1.8), p("c", 0.3, 1.3)}, 1.4, 2.6},
	{"F15", "volatility_harvesting", "Inverted IV and volatility excess with open interest",
		[]param{p("a", 0.6, 2.0), p("b", 0.4, 1.6), p("c", 0.3, 1.2)}, 1.0, 2.3},
	{"F16", "momentum_contrarian", "1h momentum against 4h momentum and skew",
		[]param{p("a", 0.5, 2.2), p("b", 0.6, 2.1), p("c", 0.4, 1.4)}, 1.2, 2.5},
	{"F17", "multi_factor", "Linear blend of IV, basis, skew and funding z-scores",
		[]param{p("a", 0.4, 2.0), p("b", 0.4, 2.0), p("c", 0.4, 2.0), p("d", 0.2, 1.0)}, 1.5, 2.8},
	{"F18", "adaptive_threshold", "Combined IV/basis stress net of volatility ratio",
		[]param{p("a", 0.6, 2.1), p("b", 0.5, 1.8), p("c", 0.4, 1.3)}, 1.1, 2.4},
	{"F19", "ensemble_strategy", "Ensemble of skew, basis and normalized momentum sub-signals",
		[]param{p("a", 0.3, 1.8), p("b", 0.3, 1.8), p("c", 0.3, 1.8)}, 1.3, 2.6},
	{"F20", "optimal_combination", "Six-factor blend of every core feature",
		[]param{p("a", 0.2, 1.5), p("b", 0.2, 1.5), p("c", 0.2, 1.5), p("d", 0.2, 1.5), p("e", 0.2, 1.5), p("f", 0.2, 1.5)}, 1.6, 2.9},
}

// toFormula converts a static declaration into a domain.Formula.
func (s spec) toFormula() domain.Formula {
	f := domain.Formula{
		ID:          s.id,
		Name:        s.name,
		Description: s.desc,
		ParamNames:  make([]string, 0, len(s.params)),
		Bounds:      make(map[string]domain.Bound, len(s.params)),
		ThLong:      domain.Bound{Min: s.thMin, Max: s.thMax},
		ThShort:     domain.Bound{Min: -s.thMax, Max: -s.thMin},
	}
	for _, prm := range s.params {
		f.ParamNames = append(f.ParamNames, prm.name)
		f.Bounds[prm.name] = domain.Bound{Min: prm.min, Max: prm.max}
	}
	return f
}
