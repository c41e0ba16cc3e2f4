package simulation

import (
	"context"
	"math"
	"testing"
	"time"

	"formula-lab/internal/domain"
)

// scriptedPath replays fixed prices for every signal.
type scriptedPath struct {
	prices []float64
}

func (p scriptedPath) Prices(_ domain.TradeSignal, _ int, ticks int) []float64 {
	if ticks < len(p.prices) {
		return p.prices[:ticks]
	}
	return p.prices
}

// 2024-01-01 10:00 UTC, european session
var baseMs = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC).UnixMilli()

func signalAt(offset time.Duration, dir domain.Direction) domain.TradeSignal {
	return domain.TradeSignal{
		TimestampMs: baseMs + offset.Milliseconds(),
		Direction:   dir,
		Confidence:  0.8,
		IV:          0.5,
		Session:     domain.SessionEuropean,
		Price:       100,
	}
}

// settler is a late signal rejected by the IV filter; it only advances time.
func settler(offset time.Duration) domain.TradeSignal {
	s := signalAt(offset, domain.DirectionLong)
	s.IV = 9
	return s
}

func newTestValidator(t *testing.T, cfg Config, prices []float64) *Validator {
	t.Helper()
	v, err := NewValidator(cfg, Options{Path: scriptedPath{prices: prices}, RunID: "test-run"})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestValidator_TakeProfit(t *testing.T) {
	v := newTestValidator(t, DefaultConfig(), []float64{101, 110, 120, 90})

	res, err := v.Run(context.Background(), []domain.TradeSignal{
		signalAt(0, domain.DirectionLong),
		settler(time.Hour),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.ExitReason != domain.ExitReasonTakeProfit {
		t.Fatalf("expected take_profit, got %s", tr.ExitReason)
	}

	entry := 100 * 1.0015
	exit := entry * 1.15 * (1 - 0.0015)
	size := 10000 * 0.1 / 100
	if math.Abs(tr.EntryPrice-entry) > 1e-9 || math.Abs(tr.ExitPrice-exit) > 1e-9 {
		t.Errorf("expected entry %v exit %v, got %v %v", entry, exit, tr.EntryPrice, tr.ExitPrice)
	}
	if math.Abs(tr.PnL-(exit-entry)*size) > 1e-9 {
		t.Errorf("expected pnl %v, got %v", (exit-entry)*size, tr.PnL)
	}
	if tr.ExitTimeMs != baseMs+3*time.Minute.Milliseconds() {
		t.Errorf("expected exit after 3 ticks, got %d", tr.ExitTimeMs-baseMs)
	}
	if math.Abs(res.Metrics.FinalCapital-(10000+tr.PnL)) > 1e-9 {
		t.Errorf("final capital %v does not include pnl", res.Metrics.FinalCapital)
	}
}

func TestValidator_LongStopLoss(t *testing.T) {
	v := newTestValidator(t, DefaultConfig(), []float64{99, 97, 94})

	res, err := v.Run(context.Background(), []domain.TradeSignal{
		signalAt(0, domain.DirectionLong),
		settler(time.Hour),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.ExitReason != domain.ExitReasonStopLoss {
		t.Fatalf("expected stop_loss, got %s", tr.ExitReason)
	}
	entry := 100 * 1.0015
	exit := entry * 0.95 * (1 - 0.0015)
	size := 10000 * 0.1 / 100
	if math.Abs(tr.ExitPrice-exit) > 1e-9 {
		t.Errorf("expected exit %v, got %v", exit, tr.ExitPrice)
	}
	if math.Abs(tr.PnL-(exit-entry)*size) > 1e-9 {
		t.Errorf("expected pnl %v, got %v", (exit-entry)*size, tr.PnL)
	}
	if tr.PnL >= 0 {
		t.Errorf("expected a loss, got %v", tr.PnL)
	}
}

func TestValidator_ShortStopLoss(t *testing.T) {
	v := newTestValidator(t, DefaultConfig(), []float64{100, 104, 108})

	res, err := v.Run(context.Background(), []domain.TradeSignal{
		signalAt(0, domain.DirectionShort),
		settler(time.Hour),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	tr := res.Trades[0]
	if tr.ExitReason != domain.ExitReasonStopLoss {
		t.Fatalf("expected stop_loss, got %s", tr.ExitReason)
	}
	entry := 100 * 1.0015
	exit := entry * 1.05 * 1.0015
	if math.Abs(tr.ExitPrice-exit) > 1e-9 {
		t.Errorf("expected exit %v, got %v", exit, tr.ExitPrice)
	}
	if tr.PnL >= 0 {
		t.Errorf("expected a loss, got %v", tr.PnL)
	}
}

func TestValidator_TimeExit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHold = 3 * time.Minute
	v := newTestValidator(t, cfg, []float64{100, 101, 102, 103, 104})

	res, err := v.Run(context.Background(), []domain.TradeSignal{
		signalAt(0, domain.DirectionLong),
		settler(time.Hour),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	tr := res.Trades[0]
	if tr.ExitReason != domain.ExitReasonTimeExit {
		t.Fatalf("expected time_exit, got %s", tr.ExitReason)
	}
	if math.Abs(tr.ExitPrice-102*(1-0.0015)) > 1e-9 {
		t.Errorf("expected exit at third tick, got %v", tr.ExitPrice)
	}
}

func TestValidator_MaxPositionsCap(t *testing.T) {
	v := newTestValidator(t, DefaultConfig(), flat(100, 1440))

	var signals []domain.TradeSignal
	for i := 0; i < 7; i++ {
		signals = append(signals, signalAt(time.Duration(i)*3*time.Hour, domain.DirectionLong))
	}
	res, err := v.Run(context.Background(), signals)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Metrics.Rejections[RejectMaxPositions] != 2 {
		t.Errorf("expected 2 max_positions rejections, got %v", res.Metrics.Rejections)
	}
	if len(res.Trades) != 5 {
		t.Fatalf("expected 5 trades, got %d", len(res.Trades))
	}
	for _, tr := range res.Trades {
		if tr.ExitReason != domain.ExitReasonEndOfPeriod || tr.PnL != 0 || tr.ExitPrice != tr.EntryPrice {
			t.Errorf("expected zero-pnl end_of_period close, got %s %v", tr.ExitReason, tr.PnL)
		}
	}
	for _, e := range res.Equity {
		if e.OpenPositions > 5 {
			t.Fatalf("open positions exceeded cap: %d", e.OpenPositions)
		}
	}
}

func TestValidator_RiskFilters(t *testing.T) {
	v := newTestValidator(t, DefaultConfig(), flat(100, 1440))

	highIV := signalAt(5*time.Hour, domain.DirectionShort)
	highIV.IV = 2

	asianLate := signalAt(0, domain.DirectionShort)
	asianLate.TimestampMs = time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC).UnixMilli()
	asianLate.Session = domain.SessionAsian

	asianOK := signalAt(0, domain.DirectionShort)
	asianOK.TimestampMs = time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC).UnixMilli()
	asianOK.Session = domain.SessionAsian

	bad := signalAt(6*time.Hour, "SIDEWAYS")

	res, err := v.Run(context.Background(), []domain.TradeSignal{
		signalAt(0, domain.DirectionLong),
		signalAt(time.Hour, domain.DirectionLong),  // proximity
		signalAt(time.Hour, domain.DirectionShort), // other direction is fine
		highIV,
		asianLate,
		asianOK,
		bad,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := map[string]int{
		RejectProximity: 1,
		RejectIVCeiling: 1,
		RejectSession:   1,
		RejectInvalid:   1,
	}
	for k, n := range want {
		if res.Metrics.Rejections[k] != n {
			t.Errorf("%s: expected %d rejections, got %d", k, n, res.Metrics.Rejections[k])
		}
	}
	if len(res.Trades) != 3 {
		t.Errorf("expected 3 trades, got %d", len(res.Trades))
	}
}

func TestValidator_DrawdownHalt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDrawdown = 0.001
	cfg.ProximityWindow = time.Minute
	v := newTestValidator(t, cfg, []float64{99, 94})

	res, err := v.Run(context.Background(), []domain.TradeSignal{
		signalAt(0, domain.DirectionLong),
		signalAt(time.Hour, domain.DirectionLong),
		signalAt(2*time.Hour, domain.DirectionLong),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Metrics.Halted {
		t.Fatal("expected halted run")
	}
	// first trade stops out and breaches the floor before the second signal
	if res.Metrics.Rejections[RejectHalted] != 2 {
		t.Errorf("expected 2 drawdown_halt rejections, got %v", res.Metrics.Rejections)
	}
	if len(res.Equity) != 3 {
		t.Errorf("expected an equity point per signal, got %d", len(res.Equity))
	}
}

func TestValidator_ContextCancelled(t *testing.T) {
	v := newTestValidator(t, DefaultConfig(), flat(100, 10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := v.Run(ctx, []domain.TradeSignal{signalAt(0, domain.DirectionLong)}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestNewValidator_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPositions = 0
	if _, err := NewValidator(cfg, Options{}); err == nil {
		t.Fatal("expected config error")
	}
}

func TestRandomWalk_Deterministic(t *testing.T) {
	w := RandomWalk{Seed: 42}
	sig := signalAt(0, domain.DirectionLong)

	a := w.Prices(sig, 3, 100)
	b := w.Prices(sig, 3, 100)
	c := w.Prices(sig, 4, 100)

	if len(a) != 100 {
		t.Fatalf("expected 100 ticks, got %d", len(a))
	}
	same := true
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed and index differ at %d", i)
		}
		if a[i] != c[i] {
			same = false
		}
	}
	if same {
		t.Error("different signal index should produce a different path")
	}
}

func TestSignalsFromSeries(t *testing.T) {
	ts := []int64{
		time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC).UnixMilli(),
		time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC).UnixMilli(),
		time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC).UnixMilli(),
		time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC).UnixMilli(),
		time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC).UnixMilli(),
	}
	frame := &domain.FeatureFrame{
		Timestamps: ts,
		Spot:       []float64{10, 11, 12, 13, 14},
		IV:         []float64{0.5, 0.6, 0.7, 0.8, 0.9},
	}
	y := []float64{0, 2, 2, -6, 0}

	got := SignalsFromSeries(frame, y, 1.5, -1.5)
	if len(got) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(got))
	}
	if got[0].Direction != domain.DirectionLong || got[0].Session != domain.SessionEuropean || got[0].Price != 11 {
		t.Errorf("unexpected first signal %+v", got[0])
	}
	if math.Abs(got[0].Confidence-2.0/3) > 1e-12 {
		t.Errorf("expected confidence 2/3, got %v", got[0].Confidence)
	}
	if got[1].Direction != domain.DirectionShort || got[1].Session != domain.SessionAmerican || got[1].Confidence != 1 {
		t.Errorf("unexpected second signal %+v", got[1])
	}
}

func flat(price float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}
