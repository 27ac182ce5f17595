package domain

// KPIReport holds aggregate performance figures for one ledger.
// Corresponds to the kpi_reports table in PostgreSQL.
//
// Sentinel semantics for degenerate denominators:
//   - ProfitFactor is +Inf when there are no losing trades but at least one
//     winner, and 0 when there are no trades or no gross profit.
//   - Sharpe is NaN when fewer than 2 resolved trades exist.
//
// Both are documented sentinels, never computation errors.
type KPIReport struct {
	RunID string

	TotalTrades   int // resolved trades only
	NoDataTrades  int // indeterminate outcomes, reported separately
	Wins          int
	Losses        int
	WinRate       float64 // wins / (wins + losses), excluding NoData

	GrossProfit  float64
	GrossLoss    float64 // reported as a positive magnitude
	NetPnL       float64
	ProfitFactor float64

	MaxDrawdown float64 // worst peak-to-trough on the cumulative PnL curve
	Sharpe      float64 // mean/stdev of per-trade PnL, annualized

	ComputedAtMs int64
}
