package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/storage"
)

// KPIStore implements storage.KPIStore using PostgreSQL.
//
// ProfitFactor and Sharpe carry sentinel values (+Inf, NaN) which round-trip
// through DOUBLE PRECISION columns without special handling.
type KPIStore struct {
	pool *Pool
}

// NewKPIStore creates a new KPIStore.
func NewKPIStore(pool *Pool) *KPIStore {
	return &KPIStore{pool: pool}
}

// Compile-time interface check.
var _ storage.KPIStore = (*KPIStore)(nil)

const selectKPIColumns = `
	SELECT
		run_id, total_trades, no_data_trades, wins, losses, win_rate,
		gross_profit, gross_loss, net_pnl, profit_factor,
		max_drawdown, sharpe, computed_at_ms
	FROM kpi_reports
`

// Insert adds a new report. Returns ErrDuplicateKey if run_id exists.
func (s *KPIStore) Insert(ctx context.Context, r *domain.KPIReport) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO kpi_reports (
			run_id, total_trades, no_data_trades, wins, losses, win_rate,
			gross_profit, gross_loss, net_pnl, profit_factor,
			max_drawdown, sharpe, computed_at_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.TotalTrades, r.NoDataTrades, r.Wins, r.Losses, r.WinRate,
		r.GrossProfit, r.GrossLoss, r.NetPnL, r.ProfitFactor,
		r.MaxDrawdown, r.Sharpe, r.ComputedAtMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert kpi report: %w", err)
	}
	return nil
}

// GetByRun retrieves the report for a run. Returns ErrNotFound if not exists.
func (s *KPIStore) GetByRun(ctx context.Context, runID string) (*domain.KPIReport, error) {
	query := selectKPIColumns + ` WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	r, err := scanKPIReport(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get kpi report by run: %w", err)
	}
	return r, nil
}

// GetAll retrieves all reports sorted by run_id.
func (s *KPIStore) GetAll(ctx context.Context) ([]*domain.KPIReport, error) {
	query := selectKPIColumns + ` ORDER BY run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all kpi reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.KPIReport
	for rows.Next() {
		r, err := scanKPIReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan kpi report row: %w", err)
		}
		reports = append(reports, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kpi report rows: %w", err)
	}

	return reports, nil
}

// scanKPIReport scans a single row into a KPIReport.
func scanKPIReport(row pgx.Row) (*domain.KPIReport, error) {
	var r domain.KPIReport

	err := row.Scan(
		&r.RunID, &r.TotalTrades, &r.NoDataTrades, &r.Wins, &r.Losses, &r.WinRate,
		&r.GrossProfit, &r.GrossLoss, &r.NetPnL, &r.ProfitFactor,
		&r.MaxDrawdown, &r.Sharpe, &r.ComputedAtMs,
	)
	if err != nil {
		return nil, err
	}

	return &r, nil
}
