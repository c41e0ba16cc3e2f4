package simulation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"formula-lab/internal/domain"
	"formula-lab/internal/idhash"
	"formula-lab/internal/metrics"
	"formula-lab/internal/observability"
)

// Rejection filters
const (
	RejectInvalid      = "invalid_signal"
	RejectHalted       = "drawdown_halt"
	RejectMaxPositions = "max_positions"
	RejectProximity    = "proximity"
	RejectIVCeiling    = "iv_ceiling"
	RejectSession      = "session"
)

// Options configure a Validator.
type Options struct {
	Path   PricePath // RandomWalk{Seed: cfg.Seed} if nil
	RunID  string    // random UUID if empty
	Logger *zap.Logger
}

// Validator simulates risk-managed trading on a signal list.
type Validator struct {
	cfg    Config
	path   PricePath
	runID  string
	logger *zap.Logger
}

// Result is the outcome of a validator run.
type Result struct {
	RunID   string
	Trades  []*domain.Trade // closed trades in close order
	Equity  []domain.EquityPoint
	Metrics domain.ValidationMetrics
}

// position is an open trade with its pre-simulated exit.
type position struct {
	trade      *domain.Trade
	exitTimeMs int64
	exitPrice  float64
	reason     domain.ExitReason
	pnl        float64
}

// NewValidator creates a validator. cfg must pass Validate.
func NewValidator(cfg Config, opts Options) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validator config: %w", err)
	}
	if opts.Path == nil {
		opts.Path = RandomWalk{Seed: cfg.Seed}
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Validator{cfg: cfg, path: opts.Path, runID: opts.RunID, logger: opts.Logger}, nil
}

// Run processes signals in chronological order. Before each signal, open
// positions whose simulated exit has passed are settled into capital; the
// signal then goes through the risk filters and, if accepted, opens a
// position whose exit is simulated along the price path. Positions still
// open after the last signal are closed at their entry price with zero P&L.
func (v *Validator) Run(ctx context.Context, signals []domain.TradeSignal) (*Result, error) {
	ordered := make([]domain.TradeSignal, len(signals))
	copy(ordered, signals)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].TimestampMs < ordered[j].TimestampMs })

	capital := v.cfg.InitialCapital
	floor := v.cfg.InitialCapital * (1 - v.cfg.MaxDrawdown)
	halted := false
	rejections := make(map[string]int)

	var (
		open   []*position
		closed []*domain.Trade
		equity = make([]domain.EquityPoint, 0, len(ordered))
	)

	settle := func(p *position) {
		t := p.trade
		t.ExitTimeMs = p.exitTimeMs
		t.ExitPrice = p.exitPrice
		t.ExitReason = p.reason
		t.PnL = p.pnl
		t.Closed = true
		closed = append(closed, t)
		capital += p.pnl
		observability.RecordValidatorTrade(string(p.reason))
		if !halted && capital < floor {
			halted = true
			v.logger.Warn("drawdown limit reached, no new entries",
				zap.Float64("capital", capital),
				zap.Float64("floor", floor),
			)
		}
	}

	for idx, sig := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		open = v.settleDue(open, sig.TimestampMs, settle)

		if filter := v.reject(sig, open, halted); filter != "" {
			rejections[filter]++
			observability.RecordValidatorRejection(filter)
		} else {
			open = append(open, v.open(sig, idx, capital))
		}

		equity = append(equity, domain.EquityPoint{
			TimestampMs:   sig.TimestampMs,
			Capital:       capital,
			OpenPositions: len(open),
		})
	}

	if len(ordered) > 0 {
		last := ordered[len(ordered)-1].TimestampMs
		for _, p := range open {
			p.exitTimeMs = last
			p.exitPrice = p.trade.EntryPrice
			p.reason = domain.ExitReasonEndOfPeriod
			p.pnl = 0
			settle(p)
		}
	}
	observability.UpdateValidatorCapital(capital)

	m := metrics.SummarizeTrades(v.cfg.InitialCapital, closed, equity)
	for k, n := range rejections {
		m.Rejections[k] = n
	}
	m.Halted = halted

	v.logger.Info("validation complete",
		zap.String("run_id", v.runID),
		zap.Int("signals", len(ordered)),
		zap.Int("trades", len(closed)),
		zap.Float64("final_capital", m.FinalCapital),
		zap.Bool("halted", halted),
	)

	return &Result{RunID: v.runID, Trades: closed, Equity: equity, Metrics: m}, nil
}

// settleDue settles positions whose exit time is at or before now, in exit
// order, and returns the positions still open.
func (v *Validator) settleDue(open []*position, now int64, settle func(*position)) []*position {
	var due []*position
	remaining := open[:0]
	for _, p := range open {
		if p.exitTimeMs <= now {
			due = append(due, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].exitTimeMs < due[j].exitTimeMs })
	for _, p := range due {
		settle(p)
	}
	return remaining
}

// reject returns the name of the first filter that rejects sig, or "".
func (v *Validator) reject(sig domain.TradeSignal, open []*position, halted bool) string {
	if !sig.Direction.IsValid() || !(sig.Price > 0) || math.IsInf(sig.Price, 0) {
		return RejectInvalid
	}
	if halted {
		return RejectHalted
	}
	if len(open) >= v.cfg.MaxPositions {
		return RejectMaxPositions
	}
	window := v.cfg.ProximityWindow.Milliseconds()
	for _, p := range open {
		if p.trade.Direction != sig.Direction {
			continue
		}
		d := sig.TimestampMs - p.trade.EntryTimeMs
		if d < 0 {
			d = -d
		}
		if d < window {
			return RejectProximity
		}
	}
	if v.cfg.VolatilityFilter && sig.IV > v.cfg.IVCeiling {
		return RejectIVCeiling
	}
	if v.cfg.SessionFilter && sig.Session == domain.SessionAsian {
		hour := time.UnixMilli(sig.TimestampMs).UTC().Hour()
		if hour < v.cfg.AsianHourStart || hour > v.cfg.AsianHourEnd {
			return RejectSession
		}
	}
	return ""
}

// open creates a position for an accepted signal and simulates its exit.
func (v *Validator) open(sig domain.TradeSignal, idx int, capital float64) *position {
	cost := v.cfg.Commission + v.cfg.Slippage
	entry := sig.Price * (1 + cost)
	size := capital * v.cfg.PositionSize / sig.Price

	t := &domain.Trade{
		TradeID:     idhash.ComputeTradeID(v.runID, string(sig.Direction), sig.TimestampMs, idx),
		SignalIndex: idx,
		Direction:   sig.Direction,
		Session:     sig.Session,
		Confidence:  sig.Confidence,
		EntryTimeMs: sig.TimestampMs,
		SignalPrice: sig.Price,
		EntryPrice:  entry,
		Size:        size,
	}

	sign := sig.Direction.Sign()
	stop := entry * (1 - sign*v.cfg.StopLoss)
	take := entry * (1 + sign*v.cfg.TakeProfit)
	tick := v.cfg.TickInterval.Milliseconds()
	ticks := int(v.cfg.MaxHold / v.cfg.TickInterval)

	raw := sig.Price
	reason := domain.ExitReasonTimeExit
	held := 0
	for k, price := range v.path.Prices(sig, idx, ticks) {
		held = k + 1
		raw = price
		move := sign * (price - entry) / entry
		if move <= -v.cfg.StopLoss {
			raw, reason = stop, domain.ExitReasonStopLoss
			break
		}
		if move >= v.cfg.TakeProfit {
			raw, reason = take, domain.ExitReasonTakeProfit
			break
		}
	}

	exit := raw * (1 - cost)
	if sig.Direction == domain.DirectionShort {
		exit = raw * (1 + cost)
	}
	return &position{
		trade:      t,
		exitTimeMs: sig.TimestampMs + int64(held)*tick,
		exitPrice:  exit,
		reason:     reason,
		pnl:        sign * (exit - entry) * size,
	}
}
