package reporting

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"formula-lab/internal/domain"
	"formula-lab/internal/simulation"
)

// RenderSearchMarkdown renders a search report as Markdown string.
func RenderSearchMarkdown(r *SearchReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Formula Search Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	}

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Formulas | %d |\n", r.FormulaCount))
	sb.WriteString(fmt.Sprintf("| Coarse Results | %d |\n", r.CoarseTrials))
	sb.WriteString(fmt.Sprintf("| Fine-Tune Results | %d |\n", r.FineTuneTrials))
	sb.WriteString(fmt.Sprintf("| Failed | %d |\n", r.FailedTrials))
	sb.WriteString("\n")

	// Best per formula
	sb.WriteString("## Best per Formula\n\n")
	if len(r.BestPerFormula) > 0 {
		sb.WriteString("| Formula | Name | Results | Score | Sharpe | Sortino | MaxDD | Return | Origin | Fine-Tune Δ | Params |\n")
		sb.WriteString("|---------|------|---------|-------|--------|---------|-------|--------|--------|-------------|--------|\n")
		for _, row := range r.BestPerFormula {
			b := row.Best
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %.4f | %.4f | %.4f | %.4f | %.4f | %s | %+.4f | `%s` |\n",
				row.FormulaID, row.FormulaName, row.Trials, b.Score,
				b.Metrics.SharpeRatio, b.Metrics.SortinoRatio, b.Metrics.MaxDrawdown, b.Metrics.TotalReturn,
				b.Origin, row.Improvement, b.Params.String()))
		}
	} else {
		sb.WriteString("No search results available.\n")
	}
	sb.WriteString("\n")

	// Leaderboard
	sb.WriteString("## Leaderboard\n\n")
	if len(r.Leaderboard) > 0 {
		writeTrialTable(&sb, r.Leaderboard)
	} else {
		sb.WriteString("No leaderboard available.\n")
	}
	sb.WriteString("\n")

	// Fine-tune top
	if len(r.FineTuneTop) > 0 {
		sb.WriteString("## Fine-Tune Top\n\n")
		writeTrialTable(&sb, r.FineTuneTop)
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeTrialTable(sb *strings.Builder, results []*domain.TrialResult) {
	sb.WriteString("| # | Formula | Score | PF | WinRate | MaxDD | Vol | Calmar | Origin | Params |\n")
	sb.WriteString("|---|---------|-------|----|---------|-------|-----|--------|--------|--------|\n")
	for i, r := range results {
		m := r.Metrics
		sb.WriteString(fmt.Sprintf("| %d | %s | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %s | `%s` |\n",
			i+1, r.FormulaID, r.Score, m.ProfitFactor, m.WinRate, m.MaxDrawdown,
			m.Volatility, m.CalmarRatio, r.Origin, r.Params.String()))
	}
}

// RenderValidationMarkdown renders a validator run as Markdown string.
func RenderValidationMarkdown(generatedAt time.Time, cfg simulation.Config, res *simulation.Result) string {
	var sb strings.Builder
	m := res.Metrics

	sb.WriteString("# Validation Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", generatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", res.RunID))
	if m.Halted {
		sb.WriteString(fmt.Sprintf("**Drawdown limit of %s hit.** New entries were halted.\n\n", pct(cfg.MaxDrawdown)))
	}

	// Capital
	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Initial Capital | %s |\n", money(m.InitialCapital)))
	sb.WriteString(fmt.Sprintf("| Final Capital | %s |\n", money(m.FinalCapital)))
	sb.WriteString(fmt.Sprintf("| Total P&L | %s |\n", money(m.TotalPnL)))
	sb.WriteString(fmt.Sprintf("| Total Return | %s |\n", pct(m.TotalReturn)))
	sb.WriteString(fmt.Sprintf("| Annualized Return | %s |\n", pct(m.AnnualizedReturn)))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %s |\n", pct(m.MaxDrawdown)))
	sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %.4f |\n", m.SharpeRatio))
	sb.WriteString(fmt.Sprintf("| Calmar Ratio | %.4f |\n", m.CalmarRatio))
	sb.WriteString("\n")

	// Trades
	sb.WriteString("## Trades\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", m.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Winning / Losing | %d / %d |\n", m.WinningTrades, m.LosingTrades))
	sb.WriteString(fmt.Sprintf("| Win Rate | %s |\n", pct(m.WinRate)))
	sb.WriteString(fmt.Sprintf("| Avg P&L | %s |\n", money(m.AvgPnL)))
	sb.WriteString(fmt.Sprintf("| Avg Win | %s |\n", money(m.AvgWin)))
	sb.WriteString(fmt.Sprintf("| Avg Loss | %s |\n", money(m.AvgLoss)))
	sb.WriteString(fmt.Sprintf("| Profit Factor | %.4f |\n", m.ProfitFactor))
	sb.WriteString("\n")

	// Exit reasons
	sb.WriteString("## Exit Reasons\n\n")
	if len(m.ExitReasons) > 0 {
		sb.WriteString("| Reason | Count |\n")
		sb.WriteString("|--------|-------|\n")
		reasons := make([]string, 0, len(m.ExitReasons))
		for r := range m.ExitReasons {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", r, m.ExitReasons[domain.ExitReason(r)]))
		}
	} else {
		sb.WriteString("No closed trades.\n")
	}
	sb.WriteString("\n")

	// Sessions
	sb.WriteString("## Sessions\n\n")
	if len(m.Sessions) > 0 {
		sb.WriteString("| Session | Trades | Wins | Win Rate | P&L |\n")
		sb.WriteString("|---------|--------|------|----------|-----|\n")
		for _, s := range []domain.Session{domain.SessionAsian, domain.SessionEuropean, domain.SessionAmerican} {
			st, ok := m.Sessions[s]
			if !ok {
				continue
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %s |\n",
				s, st.Trades, st.Wins, pct(st.WinRate), money(st.PnL)))
		}
	} else {
		sb.WriteString("No session data.\n")
	}
	sb.WriteString("\n")

	// Rejections
	sb.WriteString("## Rejected Signals\n\n")
	if len(m.Rejections) > 0 {
		sb.WriteString("| Filter | Count |\n")
		sb.WriteString("|--------|-------|\n")
		filters := make([]string, 0, len(m.Rejections))
		for f := range m.Rejections {
			filters = append(filters, f)
		}
		sort.Strings(filters)
		for _, f := range filters {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", f, m.Rejections[f]))
		}
	} else {
		sb.WriteString("No signals rejected.\n")
	}
	sb.WriteString("\n")

	// Configuration
	sb.WriteString("## Configuration\n\n")
	sb.WriteString(fmt.Sprintf("- Position size: %s of capital, max %d open\n", pct(cfg.PositionSize), cfg.MaxPositions))
	sb.WriteString(fmt.Sprintf("- Costs: commission %s, slippage %s\n", pct(cfg.Commission), pct(cfg.Slippage)))
	sb.WriteString(fmt.Sprintf("- Exits: stop loss %s, take profit %s, max hold %s\n", pct(cfg.StopLoss), pct(cfg.TakeProfit), cfg.MaxHold))
	if cfg.VolatilityFilter {
		sb.WriteString(fmt.Sprintf("- IV ceiling: %.2f\n", cfg.IVCeiling))
	}
	if cfg.SessionFilter {
		sb.WriteString(fmt.Sprintf("- Asian session hours: %02d:00-%02d:59 UTC\n", cfg.AsianHourStart, cfg.AsianHourEnd))
	}
	sb.WriteString(fmt.Sprintf("- Seed: %d\n", cfg.Seed))

	return sb.String()
}

// money formats a quote-currency amount with two decimals.
func money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	d := decimal.NewFromFloat(v)
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

func pct(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).Shift(2).StringFixed(2) + "%"
}
