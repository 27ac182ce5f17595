package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const insertTradeQuery = `
	INSERT INTO trades (
		trade_id, run_id, instrument, side,
		entry_time_ms, entry_price, exit_time_ms, exit_price,
		exit_reason, bars_held, realized_pnl, quantity
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8,
		$9, $10, $11, $12
	)
`

const selectTradeColumns = `
	SELECT
		trade_id, run_id, instrument, side,
		entry_time_ms, entry_price, exit_time_ms, exit_price,
		exit_reason, bars_held, realized_pnl, quantity
	FROM trades
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTradeQuery,
		t.TradeID, t.RunID, t.Instrument, t.Side,
		t.EntryTimeMs, t.EntryPrice, t.ExitTimeMs, t.ExitPrice,
		t.ExitReason, t.BarsHeld, t.RealizedPnL, t.Quantity,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertTradeQuery,
			t.TradeID, t.RunID, t.Instrument, t.Side,
			t.EntryTimeMs, t.EntryPrice, t.ExitTimeMs, t.ExitPrice,
			t.ExitReason, t.BarsHeld, t.RealizedPnL, t.Quantity,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := selectTradeColumns + ` WHERE trade_id = $1`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetByRun retrieves all trades for a run, ordered by entry time ASC.
func (s *TradeStore) GetByRun(ctx context.Context, runID string) ([]*domain.Trade, error) {
	query := selectTradeColumns + `
		WHERE run_id = $1
		ORDER BY entry_time_ms ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trades by run: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByInstrument retrieves all trades for an instrument, ordered by entry time ASC.
func (s *TradeStore) GetByInstrument(ctx context.Context, instrument string) ([]*domain.Trade, error) {
	query := selectTradeColumns + `
		WHERE instrument = $1
		ORDER BY entry_time_ms ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, instrument)
	if err != nil {
		return nil, fmt.Errorf("get trades by instrument: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade

	err := row.Scan(
		&t.TradeID, &t.RunID, &t.Instrument, &t.Side,
		&t.EntryTimeMs, &t.EntryPrice, &t.ExitTimeMs, &t.ExitPrice,
		&t.ExitReason, &t.BarsHeld, &t.RealizedPnL, &t.Quantity,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var t domain.Trade

		err := rows.Scan(
			&t.TradeID, &t.RunID, &t.Instrument, &t.Side,
			&t.EntryTimeMs, &t.EntryPrice, &t.ExitTimeMs, &t.ExitPrice,
			&t.ExitReason, &t.BarsHeld, &t.RealizedPnL, &t.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
