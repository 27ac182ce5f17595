package reporting

import "time"

// Report summarizes one or more evaluation runs.
type Report struct {
	// Metadata
	GeneratedAt     time.Time
	RunCount        int
	InstrumentCount int

	// Data Summary
	DataSummary DataSummary

	// Per-run KPI rows (sorted by run_id)
	KPIRows []KPIRow

	// Candidate scores (sorted by cycle, then composite score DESC)
	Scores []ScoreRow

	// Gate membership of the most recent cycle, if a gate ran.
	Gate *GateSection
}

// DataSummary describes the trade population behind the report.
type DataSummary struct {
	TotalTrades      int
	NoDataTrades     int
	DateRangeStartMs int64
	DateRangeEndMs   int64
}

// KPIRow is one run's KPI summary.
type KPIRow struct {
	RunID        string
	TotalTrades  int
	NoDataTrades int
	WinRate      float64
	NetPnL       float64
	ProfitFactor float64
	MaxDrawdown  float64
	Sharpe       float64
}

// ScoreRow is one candidate's Monte Carlo score.
type ScoreRow struct {
	Instrument     string
	Cycle          int
	ExpectedValue  float64
	CVaR95         float64
	ProbLoss       float64
	CompositeScore float64
}

// GateSection lists the active set and the churn of the latest rebalance.
type GateSection struct {
	Cycle   int
	Active  []string
	Added   []string
	Dropped []string
}
