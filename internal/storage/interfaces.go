package storage

import (
	"context"

	"tradesim-lab/internal/domain"
)

// BarStore provides access to bars storage.
type BarStore interface {
	// InsertBulk adds multiple bars for one instrument. Fails the entire
	// batch on a duplicate (instrument, timestamp_ms).
	InsertBulk(ctx context.Context, instrument string, bars []domain.Bar) error

	// GetByInstrument retrieves all bars for an instrument, ordered by timestamp ASC.
	GetByInstrument(ctx context.Context, instrument string) ([]domain.Bar, error)

	// GetByTimeRange retrieves bars for an instrument within [start, end) ordered ASC.
	GetByTimeRange(ctx context.Context, instrument string, startMs, endMs int64) ([]domain.Bar, error)

	// Instruments lists distinct instruments with stored bars, sorted ASC.
	Instruments(ctx context.Context) ([]string, error)
}

// TradeStore provides access to trades storage.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// GetByRun retrieves all trades for a run, ordered by entry time ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.Trade, error)

	// GetByInstrument retrieves all trades for an instrument, ordered by entry time ASC.
	GetByInstrument(ctx context.Context, instrument string) ([]*domain.Trade, error)
}

// FillStore provides access to the append-only fills log.
type FillStore interface {
	// InsertBulk adds multiple fills atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, fills []*domain.Fill) error

	// GetByTrade retrieves the fills of one trade, entry leg first.
	GetByTrade(ctx context.Context, tradeID string) ([]*domain.Fill, error)
}

// KPIStore provides access to kpi_reports storage.
type KPIStore interface {
	// Insert adds a new report. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.KPIReport) error

	// GetByRun retrieves the report for a run. Returns ErrNotFound if not exists.
	GetByRun(ctx context.Context, runID string) (*domain.KPIReport, error)

	// GetAll retrieves all reports sorted by run_id.
	GetAll(ctx context.Context) ([]*domain.KPIReport, error)
}

// ScoreStore provides access to candidate_scores storage. Scores are
// append-only per (instrument, cycle); recomputation happens in a new cycle.
type ScoreStore interface {
	// Insert adds a new score. Returns ErrDuplicateKey if (instrument, cycle) exists.
	Insert(ctx context.Context, s *domain.CandidateScore) error

	// InsertBulk adds multiple scores atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, scores []*domain.CandidateScore) error

	// GetByCycle retrieves all scores for a gate cycle, sorted by composite score DESC.
	GetByCycle(ctx context.Context, cycle int) ([]*domain.CandidateScore, error)

	// GetAll retrieves all scores sorted by (cycle, instrument).
	GetAll(ctx context.Context) ([]*domain.CandidateScore, error)
}
