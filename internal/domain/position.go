package domain

// Position tracks open exposure in one instrument.
// Mutated only by the ledger in response to fills; removed when
// quantity returns to zero.
type Position struct {
	Instrument        string
	Quantity          float64 // signed: positive long, negative short
	AverageEntryPrice float64
}

// Fill is one execution record, append-only.
// Each resolved trade produces exactly two fills: entry and exit.
// Corresponds to the fills table in PostgreSQL.
type Fill struct {
	OrderID     string // deterministic hash
	TradeID     string // owning trade
	Instrument  string
	Side        Side    // direction of the owning trade
	Quantity    float64 // signed: positive opens exposure, negative closes it
	Price       float64
	TimestampMs int64
	Fee         float64
}
