package domain

// Trade represents one fully resolved simulated trade.
// Created exclusively by the execution simulator; immutable once produced.
// Corresponds to the trades table in PostgreSQL.
type Trade struct {
	TradeID    string // deterministic hash
	RunID      string // evaluation run this trade belongs to
	Instrument string
	Side       Side

	EntryTimeMs int64
	EntryPrice  float64
	ExitTimeMs  int64
	ExitPrice   float64
	ExitReason  string

	BarsHeld    int
	RealizedPnL float64 // (exit - entry) * side multiplier * quantity
	Quantity    float64
}

// Exit reason codes.
const (
	ExitReasonTakeProfit   = "TAKE_PROFIT"
	ExitReasonStopLoss     = "STOP_LOSS"
	ExitReasonTrailingStop = "TRAILING_STOP"
	ExitReasonTimeStop     = "TIME_STOP"

	// ExitReasonNoData marks a trade that could not be resolved because no
	// bars were available after entry. It is a signaled state, never a loss:
	// KPI aggregation reports it as a distinct bucket.
	ExitReasonNoData = "NO_DATA"
)

// Resolved reports whether the trade reached a determined outcome.
func (t *Trade) Resolved() bool {
	return t.ExitReason != ExitReasonNoData
}
