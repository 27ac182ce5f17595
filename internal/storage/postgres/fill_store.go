package postgres

import (
	"context"
	"fmt"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/storage"
)

// FillStore implements storage.FillStore using PostgreSQL.
type FillStore struct {
	pool *Pool
}

// NewFillStore creates a new FillStore.
func NewFillStore(pool *Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FillStore = (*FillStore)(nil)

const insertFillQuery = `
	INSERT INTO fills (
		order_id, trade_id, instrument, side,
		quantity, price, timestamp_ms, fee
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8
	)
`

// InsertBulk adds multiple fills atomically. Fails entire batch on any duplicate.
func (s *FillStore) InsertBulk(ctx context.Context, fills []*domain.Fill) error {
	if len(fills) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, f := range fills {
		if f == nil || f.OrderID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertFillQuery,
			f.OrderID, f.TradeID, f.Instrument, f.Side,
			f.Quantity, f.Price, f.TimestampMs, f.Fee,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert fill in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByTrade retrieves the fills of one trade ordered by timestamp, which
// places the entry leg first.
func (s *FillStore) GetByTrade(ctx context.Context, tradeID string) ([]*domain.Fill, error) {
	query := `
		SELECT order_id, trade_id, instrument, side,
			quantity, price, timestamp_ms, fee
		FROM fills
		WHERE trade_id = $1
		ORDER BY timestamp_ms ASC, order_id ASC
	`

	rows, err := s.pool.Query(ctx, query, tradeID)
	if err != nil {
		return nil, fmt.Errorf("get fills by trade: %w", err)
	}
	defer rows.Close()

	var fills []*domain.Fill
	for rows.Next() {
		var f domain.Fill

		err := rows.Scan(
			&f.OrderID, &f.TradeID, &f.Instrument, &f.Side,
			&f.Quantity, &f.Price, &f.TimestampMs, &f.Fee,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fill row: %w", err)
		}

		fills = append(fills, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fill rows: %w", err)
	}

	return fills, nil
}
