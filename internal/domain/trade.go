package domain

// Direction is the side of a validator signal or trade.
type Direction string

// Directions
const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Sign returns +1 for long and -1 for short.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

// IsValid reports whether d is a known direction.
func (d Direction) IsValid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Session is the trading session tag of a signal.
type Session string

// Sessions
const (
	SessionAsian    Session = "asian"
	SessionEuropean Session = "european"
	SessionAmerican Session = "american"
)

// SessionForHour maps a UTC hour to a session.
func SessionForHour(hour int) Session {
	switch {
	case hour < 8:
		return SessionAsian
	case hour < 16:
		return SessionEuropean
	default:
		return SessionAmerican
	}
}

// TradeSignal is one externally generated signal consumed by the validator.
type TradeSignal struct {
	TimestampMs int64
	Direction   Direction
	Confidence  float64 // [0, 1]
	IV          float64 // instantaneous implied volatility
	Session     Session
	Price       float64 // underlying reference price
}

// ExitReason codes
type ExitReason string

// Exit reasons
const (
	ExitReasonStopLoss    ExitReason = "stop_loss"
	ExitReasonTakeProfit  ExitReason = "take_profit"
	ExitReasonTimeExit    ExitReason = "time_exit"
	ExitReasonEndOfPeriod ExitReason = "end_of_period"
)

// Trade is a validator position. Opened once, closed exactly once.
type Trade struct {
	TradeID     string // deterministic hash
	SignalIndex int    // position of the originating signal
	Direction   Direction
	Session     Session
	Confidence  float64

	// Entry
	EntryTimeMs int64
	SignalPrice float64 // reference price at signal
	EntryPrice  float64 // after commission + slippage
	Size        float64 // units of the underlying

	// Exit
	ExitTimeMs int64
	ExitPrice  float64 // after commission + slippage
	ExitReason ExitReason

	// Outcome
	PnL    float64 // realized, quote currency
	Closed bool
}

// HoldDurationMs returns the holding time of a closed trade.
func (t *Trade) HoldDurationMs() int64 {
	if !t.Closed {
		return 0
	}
	return t.ExitTimeMs - t.EntryTimeMs
}

// EquityPoint is a capital snapshot taken after each processed signal.
type EquityPoint struct {
	TimestampMs   int64   `json:"timestamp_ms"`
	Capital       float64 `json:"capital"`
	OpenPositions int     `json:"open_positions"`
}

// SessionStats aggregates closed trades per session.
type SessionStats struct {
	Trades  int     `json:"trades"`
	PnL     float64 `json:"pnl"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
}

// ValidationMetrics summarizes a validator run.
type ValidationMetrics struct {
	InitialCapital   float64                  `json:"initial_capital"`
	FinalCapital     float64                  `json:"final_capital"`
	TotalTrades      int                      `json:"total_trades"`
	WinningTrades    int                      `json:"winning_trades"`
	LosingTrades     int                      `json:"losing_trades"`
	WinRate          float64                  `json:"win_rate"`
	TotalPnL         float64                  `json:"total_pnl"`
	AvgPnL           float64                  `json:"avg_pnl"`
	AvgWin           float64                  `json:"avg_win"`
	AvgLoss          float64                  `json:"avg_loss"`
	ProfitFactor     float64                  `json:"profit_factor"`
	TotalReturn      float64                  `json:"total_return"`
	AnnualizedReturn float64                  `json:"annualized_return"`
	MaxDrawdown      float64                  `json:"max_drawdown"`
	SharpeRatio      float64                  `json:"sharpe_ratio"`
	CalmarRatio      float64                  `json:"calmar_ratio"`
	ExitReasons      map[ExitReason]int       `json:"exit_reasons"`
	Rejections       map[string]int           `json:"rejections"`
	Sessions         map[Session]SessionStats `json:"sessions"`
	Halted           bool                     `json:"halted"` // drawdown limit hit
}
