package metrics

import (
	"math"
	"testing"

	"formula-lab/internal/domain"
)

func TestSummarizeTrades_Empty(t *testing.T) {
	m := SummarizeTrades(10000, nil, nil)
	if m.TotalTrades != 0 || m.FinalCapital != 10000 {
		t.Fatalf("unexpected summary %+v", m)
	}
	if m.ExitReasons == nil || m.Sessions == nil || m.Rejections == nil {
		t.Error("maps should be initialized")
	}
}

func TestSummarizeTrades_Ledger(t *testing.T) {
	trades := []*domain.Trade{
		{TradeID: "b", EntryTimeMs: 2000, PnL: -50, Session: domain.SessionAsian, ExitReason: domain.ExitReasonStopLoss, Closed: true},
		{TradeID: "a", EntryTimeMs: 1000, PnL: 150, Session: domain.SessionAsian, ExitReason: domain.ExitReasonTakeProfit, Closed: true},
		{TradeID: "c", EntryTimeMs: 3000, PnL: 0, Session: domain.SessionEuropean, ExitReason: domain.ExitReasonEndOfPeriod, Closed: true},
	}
	equity := []domain.EquityPoint{
		{TimestampMs: 1000, Capital: 10000},
		{TimestampMs: 2000, Capital: 10150},
		{TimestampMs: 3000, Capital: 10100},
	}

	m := SummarizeTrades(10000, trades, equity)

	if m.TotalTrades != 3 || m.WinningTrades != 1 || m.LosingTrades != 1 {
		t.Fatalf("unexpected counts %+v", m)
	}
	if m.TotalPnL != 100 || m.FinalCapital != 10100 {
		t.Errorf("expected pnl 100 and final 10100, got %v and %v", m.TotalPnL, m.FinalCapital)
	}
	if math.Abs(m.ProfitFactor-3) > tol {
		t.Errorf("expected profit factor 3, got %v", m.ProfitFactor)
	}
	if m.AvgWin != 150 || m.AvgLoss != -50 {
		t.Errorf("expected avg win 150 and avg loss -50, got %v and %v", m.AvgWin, m.AvgLoss)
	}
	if math.Abs(m.TotalReturn-0.01) > tol {
		t.Errorf("expected total return 0.01, got %v", m.TotalReturn)
	}
	wantDD := 50.0 / 10150
	if math.Abs(m.MaxDrawdown-wantDD) > tol {
		t.Errorf("expected drawdown %v, got %v", wantDD, m.MaxDrawdown)
	}

	asian := m.Sessions[domain.SessionAsian]
	if asian.Trades != 2 || asian.Wins != 1 || asian.WinRate != 0.5 || asian.PnL != 100 {
		t.Errorf("unexpected asian stats %+v", asian)
	}
	if m.ExitReasons[domain.ExitReasonEndOfPeriod] != 1 {
		t.Errorf("expected one end_of_period exit, got %d", m.ExitReasons[domain.ExitReasonEndOfPeriod])
	}
	if m.SharpeRatio == 0 {
		t.Error("expected non-zero sharpe from varying equity")
	}
}

func TestSummarizeTrades_NoLossesProfitFactorZero(t *testing.T) {
	trades := []*domain.Trade{{TradeID: "a", PnL: 10, Session: domain.SessionAmerican, Closed: true}}
	m := SummarizeTrades(1000, trades, nil)
	if m.ProfitFactor != 0 {
		t.Errorf("expected profit factor sentinel 0, got %v", m.ProfitFactor)
	}
	if m.WinRate != 1 {
		t.Errorf("expected win rate 1, got %v", m.WinRate)
	}
}
