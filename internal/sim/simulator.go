// Package sim resolves entry specs against bar sequences.
//
// Resolution is a pure function of its inputs: no I/O, no shared state, no
// mutation of the input bars. This is what allows walk-forward folds and
// Monte Carlo paths to run the simulator concurrently.
package sim

import (
	"fmt"
	"math"

	"tradesim-lab/internal/domain"
)

// Simulator scans bars after an entry and determines the realized exit.
type Simulator struct {
	// Quantity applied to every resolved trade. Defaults to 1.0.
	Quantity float64
}

// New creates a simulator with unit position size.
func New() *Simulator {
	return &Simulator{Quantity: 1.0}
}

// Resolve produces exactly one trade from an entry spec and the bars
// strictly after the entry time.
//
// Per-bar resolution order:
//  1. Ratchet the active stop from the favorable extremes of earlier bars
//     (the current bar's own extreme never raises the stop used against it;
//     intrabar sequencing is unobservable from OHLC data).
//  2. Test the bar range against take-profit and the active stop.
//  3. If both are breached within the same bar, the stop side wins. The
//     simulator never assumes favorable execution order inside a bar.
//  4. Bar-count time stop exits at that bar's close.
//  5. Exhausted data exits at the last close as a time stop; zero bars after
//     entry is the distinct NO_DATA outcome.
func (s *Simulator) Resolve(spec *domain.EntrySpec, bars []domain.Bar) (*domain.Trade, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", spec.Instrument, err)
	}

	qty := s.Quantity
	if qty == 0 {
		qty = 1.0
	}

	if len(bars) == 0 {
		return &domain.Trade{
			Instrument:  spec.Instrument,
			Side:        spec.Side,
			EntryTimeMs: spec.EntryTimeMs,
			EntryPrice:  spec.EntryPrice,
			ExitTimeMs:  spec.EntryTimeMs,
			ExitPrice:   spec.EntryPrice,
			ExitReason:  domain.ExitReasonNoData,
			BarsHeld:    0,
			RealizedPnL: 0,
			Quantity:    qty,
		}, nil
	}

	mult := spec.Side.Multiplier()
	long := spec.Side == domain.SideLong

	initialStop := spec.StopLossPrice
	activeStop := initialStop
	trailing := spec.TrailingStopDistance > 0

	// Extreme favorable price over bars already scanned.
	extreme := spec.EntryPrice

	var (
		exitTime   int64
		exitPrice  float64
		exitReason string
	)

	for i := range bars {
		bar := &bars[i]

		// Step 1: ratchet from earlier bars' extremes, never loosening.
		if trailing {
			if long {
				if cand := extreme - spec.TrailingStopDistance; cand > activeStop {
					activeStop = cand
				}
			} else {
				if cand := extreme + spec.TrailingStopDistance; cand < activeStop {
					activeStop = cand
				}
			}
		}

		// Step 2: oriented breach tests.
		var tpHit, stopHit bool
		if long {
			tpHit = bar.High >= spec.TakeProfitPrice
			stopHit = bar.Low <= activeStop
		} else {
			tpHit = bar.Low <= spec.TakeProfitPrice
			stopHit = bar.High >= activeStop
		}

		// Step 3: stop side wins ties.
		if stopHit {
			exitTime = bar.TimestampMs
			exitPrice = activeStop
			if ratcheted(activeStop, initialStop, long) {
				exitReason = domain.ExitReasonTrailingStop
			} else {
				exitReason = domain.ExitReasonStopLoss
			}
			return s.build(spec, exitTime, exitPrice, exitReason, i+1, mult, qty), nil
		}
		if tpHit {
			exitTime = bar.TimestampMs
			exitPrice = spec.TakeProfitPrice
			exitReason = domain.ExitReasonTakeProfit
			return s.build(spec, exitTime, exitPrice, exitReason, i+1, mult, qty), nil
		}

		// Step 4: bar-count time stop.
		if spec.TimeStopBars > 0 && i+1 >= spec.TimeStopBars {
			return s.build(spec, bar.TimestampMs, bar.Close, domain.ExitReasonTimeStop, i+1, mult, qty), nil
		}

		// Track the favorable extreme for the next bar's ratchet.
		if long {
			if bar.High > extreme {
				extreme = bar.High
			}
		} else {
			if bar.Low < extreme {
				extreme = bar.Low
			}
		}
	}

	// Step 5: end of available data, forced close at the last bar.
	last := &bars[len(bars)-1]
	return s.build(spec, last.TimestampMs, last.Close, domain.ExitReasonTimeStop, len(bars), mult, qty), nil
}

// ratcheted reports whether the active stop moved past the initial stop.
func ratcheted(activeStop, initialStop float64, long bool) bool {
	if long {
		return activeStop > initialStop
	}
	return activeStop < initialStop
}

func (s *Simulator) build(spec *domain.EntrySpec, exitTime int64, exitPrice float64, reason string, barsHeld int, mult, qty float64) *domain.Trade {
	pnl := (exitPrice - spec.EntryPrice) * mult * qty
	if math.IsNaN(pnl) {
		pnl = 0
	}
	return &domain.Trade{
		Instrument:  spec.Instrument,
		Side:        spec.Side,
		EntryTimeMs: spec.EntryTimeMs,
		EntryPrice:  spec.EntryPrice,
		ExitTimeMs:  exitTime,
		ExitPrice:   exitPrice,
		ExitReason:  reason,
		BarsHeld:    barsHeld,
		RealizedPnL: pnl,
		Quantity:    qty,
	}
}
