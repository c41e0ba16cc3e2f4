package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"

	"formula-lab/internal/domain"
)

var trialHeader = []string{
	"formula_id", "formula_name", "params",
	"sharpe_ratio", "profit_factor", "win_rate", "max_drawdown", "total_return",
	"volatility", "sortino_ratio", "calmar_ratio", "score",
	"status", "failure", "trial_id", "run_id",
}

// RenderTrialsCSV renders one row per trial result, in the given order.
func RenderTrialsCSV(results []*domain.TrialResult) string {
	return renderTrials(trialHeader, results, nil)
}

// RenderLeaderboardCSV renders the leaderboard with rank and origin columns.
func RenderLeaderboardCSV(results []*domain.TrialResult) string {
	header := append([]string{"rank"}, trialHeader...)
	header = append(header, "origin")
	return renderTrials(header, results, func(i int, r *domain.TrialResult, row []string) []string {
		row = append([]string{strconv.Itoa(i + 1)}, row...)
		return append(row, string(r.Origin))
	})
}

func renderTrials(header []string, results []*domain.TrialResult, decorate func(int, *domain.TrialResult, []string) []string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write(header)

	for i, r := range results {
		m := r.Metrics
		row := []string{
			r.FormulaID,
			r.FormulaName,
			r.Params.String(),
			ff(m.SharpeRatio),
			ff(m.ProfitFactor),
			ff(m.WinRate),
			ff(m.MaxDrawdown),
			ff(m.TotalReturn),
			ff(m.Volatility),
			ff(m.SortinoRatio),
			ff(m.CalmarRatio),
			ff(r.Score),
			string(r.Status),
			r.Failure,
			r.TrialID,
			r.RunID,
		}
		if decorate != nil {
			row = decorate(i, r, row)
		}
		_ = w.Write(row)
	}

	w.Flush()
	return sb.String()
}

// RenderTradesCSV renders the closed-trade ledger.
func RenderTradesCSV(trades []*domain.Trade) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write([]string{
		"trade_id", "signal_index", "direction", "session", "confidence",
		"entry_time_ms", "signal_price", "entry_price", "size",
		"exit_time_ms", "exit_price", "exit_reason", "pnl", "hold_ms",
	})

	for _, t := range trades {
		_ = w.Write([]string{
			t.TradeID,
			strconv.Itoa(t.SignalIndex),
			string(t.Direction),
			string(t.Session),
			ff(t.Confidence),
			strconv.FormatInt(t.EntryTimeMs, 10),
			ff(t.SignalPrice),
			ff(t.EntryPrice),
			ff(t.Size),
			strconv.FormatInt(t.ExitTimeMs, 10),
			ff(t.ExitPrice),
			string(t.ExitReason),
			ff(t.PnL),
			strconv.FormatInt(t.HoldDurationMs(), 10),
		})
	}

	w.Flush()
	return sb.String()
}

// RenderEquityCSV renders the equity curve.
func RenderEquityCSV(points []domain.EquityPoint) string {
	var sb strings.Builder
	sb.WriteString("timestamp_ms,capital,open_positions\n")
	for _, p := range points {
		sb.WriteString(strconv.FormatInt(p.TimestampMs, 10))
		sb.WriteByte(',')
		sb.WriteString(ff(p.Capital))
		sb.WriteByte(',')
		sb.WriteString(strconv.Itoa(p.OpenPositions))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
