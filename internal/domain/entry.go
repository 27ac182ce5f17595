package domain

import (
	"errors"
	"fmt"
)

// Side is the direction of a trade.
type Side string

// Side constants.
const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Multiplier returns +1 for long, -1 for short.
func (s Side) Multiplier() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// EntrySpec describes an intended entry plus its risk parameters.
// Produced by an external signal generator; the simulator consumes it read-only.
// EntryPrice is trusted to approximate the tradable price at EntryTimeMs;
// coherence is the producer's responsibility.
type EntrySpec struct {
	Instrument string
	Side       Side
	EntryTimeMs int64
	EntryPrice  float64

	TakeProfitPrice float64
	StopLossPrice   float64

	// TrailingStopDistance is an absolute price distance. Zero disables trailing.
	TrailingStopDistance float64

	// TimeStopBars forces an exit after this many bars. Zero means no bar limit;
	// the trade still closes at end of available data.
	TimeStopBars int
}

// EntrySpec validation errors.
var (
	ErrEntrySide       = errors.New("entry side must be LONG or SHORT")
	ErrEntryPrice      = errors.New("entry price must be positive")
	ErrEntryThresholds = errors.New("take-profit and stop-loss must straddle the entry price")
)

// Validate checks structural coherence of the spec. It does not check
// the entry price against market data.
func (e *EntrySpec) Validate() error {
	if e.Side != SideLong && e.Side != SideShort {
		return fmt.Errorf("%w: got %q", ErrEntrySide, e.Side)
	}
	if e.EntryPrice <= 0 {
		return fmt.Errorf("%w: got %g", ErrEntryPrice, e.EntryPrice)
	}
	if e.Side == SideLong {
		if e.TakeProfitPrice <= e.EntryPrice || e.StopLossPrice >= e.EntryPrice {
			return fmt.Errorf("%w: long entry=%g tp=%g sl=%g", ErrEntryThresholds,
				e.EntryPrice, e.TakeProfitPrice, e.StopLossPrice)
		}
	} else {
		if e.TakeProfitPrice >= e.EntryPrice || e.StopLossPrice <= e.EntryPrice {
			return fmt.Errorf("%w: short entry=%g tp=%g sl=%g", ErrEntryThresholds,
				e.EntryPrice, e.TakeProfitPrice, e.StopLossPrice)
		}
	}
	if e.TrailingStopDistance < 0 {
		return fmt.Errorf("trailing stop distance must be non-negative: got %g", e.TrailingStopDistance)
	}
	if e.TimeStopBars < 0 {
		return fmt.Errorf("time stop bars must be non-negative: got %d", e.TimeStopBars)
	}
	return nil
}
