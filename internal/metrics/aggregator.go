package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"formula-lab/internal/domain"
)

// ValidatorPeriodsPerYear annualizes validator equity deltas (calendar minutes).
const ValidatorPeriodsPerYear = 365 * 24 * 60

// SummarizeTrades computes validator metrics from closed trades and the
// equity curve. Trades are ordered by entry time, then trade ID, before
// order-dependent statistics are computed. Rejections and Halted are left
// for the caller.
func SummarizeTrades(initialCapital float64, trades []*domain.Trade, equity []domain.EquityPoint) domain.ValidationMetrics {
	m := domain.ValidationMetrics{
		InitialCapital: initialCapital,
		FinalCapital:   initialCapital,
		ExitReasons:    make(map[domain.ExitReason]int),
		Rejections:     make(map[string]int),
		Sessions:       make(map[domain.Session]domain.SessionStats),
	}
	if len(trades) == 0 {
		return m
	}

	sorted := make([]*domain.Trade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EntryTimeMs != sorted[j].EntryTimeMs {
			return sorted[i].EntryTimeMs < sorted[j].EntryTimeMs
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	var winPnL, lossPnL float64
	for _, t := range sorted {
		m.TotalTrades++
		m.TotalPnL += t.PnL
		m.ExitReasons[t.ExitReason]++

		s := m.Sessions[t.Session]
		s.Trades++
		s.PnL += t.PnL

		switch {
		case t.PnL > 0:
			m.WinningTrades++
			winPnL += t.PnL
			s.Wins++
		case t.PnL < 0:
			m.LosingTrades++
			lossPnL += t.PnL
		}
		m.Sessions[t.Session] = s
	}
	for k, s := range m.Sessions {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
		m.Sessions[k] = s
	}

	n := float64(m.TotalTrades)
	m.WinRate = float64(m.WinningTrades) / n
	m.AvgPnL = m.TotalPnL / n
	if m.WinningTrades > 0 {
		m.AvgWin = winPnL / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = lossPnL / float64(m.LosingTrades)
	}
	if lossPnL != 0 {
		m.ProfitFactor = math.Abs(winPnL / lossPnL)
	}

	m.FinalCapital = initialCapital + m.TotalPnL
	if initialCapital > 0 {
		m.TotalReturn = m.TotalPnL / initialCapital
	}
	m.MaxDrawdown = equityDrawdown(initialCapital, equity)

	deltas := equityReturns(equity)
	if len(deltas) > 0 {
		mean, std := stat.PopMeanStdDev(deltas, nil)
		m.AnnualizedReturn = orZero(math.Pow(1+mean, ValidatorPeriodsPerYear) - 1)
		if std != 0 {
			m.SharpeRatio = orZero(mean / std * math.Sqrt(ValidatorPeriodsPerYear))
		}
		if m.MaxDrawdown != 0 {
			m.CalmarRatio = orZero(m.AnnualizedReturn / m.MaxDrawdown)
		}
	}
	return m
}

// equityDrawdown is the largest decline from the running peak, which starts
// at the initial capital.
func equityDrawdown(initial float64, equity []domain.EquityPoint) float64 {
	peak := initial
	worst := 0.0
	for _, e := range equity {
		if e.Capital > peak {
			peak = e.Capital
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - e.Capital) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}

// equityReturns returns period-over-period relative capital changes.
func equityReturns(equity []domain.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Capital
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (equity[i].Capital-prev)/prev)
	}
	return out
}
