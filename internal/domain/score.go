package domain

// CandidateScore is the Monte Carlo evaluation of one candidate
// (instrument, parameter set) for one gate cycle. Prior cycles' scores are
// never mutated, only superseded by rows with a later cycle.
// Corresponds to the candidate_scores table in PostgreSQL.
type CandidateScore struct {
	Instrument string
	Cycle      int // gate cycle that produced this score

	ExpectedValue  float64 // mean per-path PnL
	CVaR95         float64 // mean PnL over the worst 5% of paths
	ProbLoss       float64 // fraction of paths with negative PnL
	CompositeScore float64 // ev - lambda*|cvar| - mu*probLoss

	Paths     int   // paths aggregated
	Seed      int64 // base seed used for path generation
	ScoredAtMs int64
}
