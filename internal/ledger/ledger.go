// Package ledger accumulates resolved trades into fills, positions and an
// equity timeline, and computes aggregate KPIs.
//
// A Ledger is not safe for concurrent mutation. Parallel simulation workers
// each own a ledger and merge at the end (see Merge).
package ledger

import (
	"sort"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/idhash"
)

// EquityPoint is one step of the cumulative realized-PnL curve.
type EquityPoint struct {
	TimestampMs int64
	NetPnL      float64
}

// Ledger owns the trades applied to it.
type Ledger struct {
	runID string

	// FeePerFill is charged on every fill. Defaults to zero.
	FeePerFill float64

	// PeriodsPerYear annualizes the Sharpe-like ratio. Defaults to 252.
	PeriodsPerYear float64

	trades    []*domain.Trade
	fills     []*domain.Fill
	positions map[string]*domain.Position
	noData    int
}

// New creates an empty ledger for one evaluation run.
func New(runID string) *Ledger {
	return &Ledger{
		runID:          runID,
		PeriodsPerYear: 252,
		positions:      make(map[string]*domain.Position),
	}
}

// RunID returns the run this ledger accumulates.
func (l *Ledger) RunID() string {
	return l.runID
}

// ApplyTrade records one resolved trade: an entry fill, an exit fill, the
// transient position they open and close, and the realized PnL entry.
//
// NO_DATA trades are tallied separately and produce no fills; they must not
// contaminate PnL or win-rate figures.
func (l *Ledger) ApplyTrade(t *domain.Trade) {
	trade := *t
	if trade.RunID == "" {
		trade.RunID = l.runID
	}
	if trade.TradeID == "" {
		trade.TradeID = idhash.ComputeTradeID(trade.RunID, trade.Instrument, string(trade.Side), trade.EntryTimeMs)
	}

	if !trade.Resolved() {
		l.noData++
		l.trades = append(l.trades, &trade)
		return
	}

	openQty := trade.Quantity * trade.Side.Multiplier()

	entryFill := &domain.Fill{
		OrderID:     idhash.ComputeOrderID(trade.TradeID, "entry"),
		TradeID:     trade.TradeID,
		Instrument:  trade.Instrument,
		Side:        trade.Side,
		Quantity:    openQty,
		Price:       trade.EntryPrice,
		TimestampMs: trade.EntryTimeMs,
		Fee:         l.FeePerFill,
	}
	exitFill := &domain.Fill{
		OrderID:     idhash.ComputeOrderID(trade.TradeID, "exit"),
		TradeID:     trade.TradeID,
		Instrument:  trade.Instrument,
		Side:        trade.Side,
		Quantity:    -openQty,
		Price:       trade.ExitPrice,
		TimestampMs: trade.ExitTimeMs,
		Fee:         l.FeePerFill,
	}

	l.applyFill(entryFill)
	l.applyFill(exitFill)
	l.trades = append(l.trades, &trade)
}

// applyFill updates the position book; a position whose quantity returns to
// zero is removed.
func (l *Ledger) applyFill(f *domain.Fill) {
	l.fills = append(l.fills, f)

	pos, ok := l.positions[f.Instrument]
	if !ok {
		l.positions[f.Instrument] = &domain.Position{
			Instrument:        f.Instrument,
			Quantity:          f.Quantity,
			AverageEntryPrice: f.Price,
		}
		return
	}

	newQty := pos.Quantity + f.Quantity
	if newQty == 0 {
		delete(l.positions, f.Instrument)
		return
	}

	// Adding exposure in the same direction re-averages the entry price;
	// reductions keep it.
	if (pos.Quantity > 0) == (f.Quantity > 0) {
		total := pos.Quantity + f.Quantity
		pos.AverageEntryPrice = (pos.AverageEntryPrice*pos.Quantity + f.Price*f.Quantity) / total
	}
	pos.Quantity = newQty
}

// Trades returns the applied trades in application order.
func (l *Ledger) Trades() []*domain.Trade {
	return l.trades
}

// Fills returns the append-only fill log.
func (l *Ledger) Fills() []*domain.Fill {
	return l.fills
}

// OpenPositions returns currently open positions sorted by instrument.
func (l *Ledger) OpenPositions() []*domain.Position {
	out := make([]*domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// UnrealizedPnL marks open positions against externally supplied prices.
// The ledger never fetches prices itself. Instruments without a mark
// contribute zero.
func (l *Ledger) UnrealizedPnL(marks map[string]float64) float64 {
	var total float64
	for instrument, pos := range l.positions {
		mark, ok := marks[instrument]
		if !ok {
			continue
		}
		total += (mark - pos.AverageEntryPrice) * pos.Quantity
	}
	return total
}

// EquityCurve returns cumulative realized PnL ordered by exit time, with
// trade ID as the deterministic tie-break. NO_DATA trades are excluded.
func (l *Ledger) EquityCurve() []EquityPoint {
	resolved := l.resolvedTradesByExit()
	curve := make([]EquityPoint, 0, len(resolved))
	cum := 0.0
	for _, t := range resolved {
		cum += t.RealizedPnL
		curve = append(curve, EquityPoint{TimestampMs: t.ExitTimeMs, NetPnL: cum})
	}
	return curve
}

// Merge appends another ledger's trades into this one. Fills, positions and
// tallies are rebuilt through the normal apply path so invariants hold.
func (l *Ledger) Merge(other *Ledger) {
	for _, t := range other.trades {
		l.ApplyTrade(t)
	}
}

func (l *Ledger) resolvedTradesByExit() []*domain.Trade {
	resolved := make([]*domain.Trade, 0, len(l.trades))
	for _, t := range l.trades {
		if t.Resolved() {
			resolved = append(resolved, t)
		}
	}
	sort.Slice(resolved, func(i, j int) bool {
		if resolved[i].ExitTimeMs != resolved[j].ExitTimeMs {
			return resolved[i].ExitTimeMs < resolved[j].ExitTimeMs
		}
		return resolved[i].TradeID < resolved[j].TradeID
	})
	return resolved
}
