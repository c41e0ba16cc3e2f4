// Package simulation is the advanced backtest validator: it replays a
// chronological list of trade signals through explicit risk management,
// synthesized price paths and stop/take-profit/time exits.
package simulation

import (
	"errors"
	"fmt"
	"time"
)

// Config holds validator trading and risk parameters.
type Config struct {
	InitialCapital float64
	PositionSize   float64 // fraction of current capital per trade
	MaxPositions   int
	Commission     float64
	Slippage       float64

	StopLoss    float64 // fraction of entry price
	TakeProfit  float64 // fraction of entry price
	MaxHold     time.Duration
	MaxDrawdown float64 // new entries stop below InitialCapital·(1-MaxDrawdown)

	VolatilityFilter bool
	IVCeiling        float64
	ProximityWindow  time.Duration // same-direction entries closer than this are rejected

	SessionFilter  bool
	AsianHourStart int // inclusive UTC hour
	AsianHourEnd   int // inclusive UTC hour

	TickInterval time.Duration
	Seed         int64
}

// DefaultConfig returns the standard validator parameters.
func DefaultConfig() Config {
	return Config{
		InitialCapital:   10000,
		PositionSize:     0.1,
		MaxPositions:     5,
		Commission:       0.001,
		Slippage:         0.0005,
		StopLoss:         0.05,
		TakeProfit:       0.15,
		MaxHold:          24 * time.Hour,
		MaxDrawdown:      0.20,
		VolatilityFilter: true,
		IVCeiling:        1.5,
		ProximityWindow:  2 * time.Hour,
		SessionFilter:    true,
		AsianHourStart:   2,
		AsianHourEnd:     6,
		TickInterval:     time.Minute,
		Seed:             42,
	}
}

// Validate checks the configuration for values the validator cannot run with.
func (c Config) Validate() error {
	switch {
	case c.InitialCapital <= 0:
		return fmt.Errorf("initial capital must be positive, got %v", c.InitialCapital)
	case c.PositionSize <= 0 || c.PositionSize > 1:
		return fmt.Errorf("position size must be in (0, 1], got %v", c.PositionSize)
	case c.MaxPositions < 1:
		return fmt.Errorf("max positions must be at least 1, got %d", c.MaxPositions)
	case c.Commission < 0 || c.Slippage < 0:
		return errors.New("commission and slippage must be non-negative")
	case c.StopLoss <= 0 || c.TakeProfit <= 0:
		return errors.New("stop loss and take profit must be positive")
	case c.MaxDrawdown <= 0 || c.MaxDrawdown > 1:
		return fmt.Errorf("max drawdown must be in (0, 1], got %v", c.MaxDrawdown)
	case c.TickInterval <= 0:
		return errors.New("tick interval must be positive")
	case c.MaxHold < c.TickInterval:
		return fmt.Errorf("max hold %s shorter than tick interval %s", c.MaxHold, c.TickInterval)
	case c.AsianHourStart < 0 || c.AsianHourEnd > 23 || c.AsianHourStart > c.AsianHourEnd:
		return fmt.Errorf("invalid asian session hours [%d, %d]", c.AsianHourStart, c.AsianHourEnd)
	}
	return nil
}
