package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/storage"
)

func createTestTrade(runID, tradeID string, entryTimeMs int64) *domain.Trade {
	return &domain.Trade{
		TradeID:     tradeID,
		RunID:       runID,
		Instrument:  "BTC-USD",
		Side:        domain.SideLong,
		EntryTimeMs: entryTimeMs,
		EntryPrice:  100.0,
		ExitTimeMs:  entryTimeMs + 4*60_000,
		ExitPrice:   103.0,
		ExitReason:  domain.ExitReasonTakeProfit,
		BarsHeld:    4,
		RealizedPnL: 3.0,
		Quantity:    1.0,
	}
}

func TestTradeStore_Postgres_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	trade := createTestTrade("run-001", "trade-001", 1_700_000_000_000)

	err := store.Insert(ctx, trade)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, "trade-001")
	require.NoError(t, err)

	assert.Equal(t, trade.TradeID, retrieved.TradeID)
	assert.Equal(t, trade.RunID, retrieved.RunID)
	assert.Equal(t, trade.Instrument, retrieved.Instrument)
	assert.Equal(t, trade.Side, retrieved.Side)
	assert.Equal(t, trade.EntryTimeMs, retrieved.EntryTimeMs)
	assert.InDelta(t, trade.EntryPrice, retrieved.EntryPrice, 0.0001)
	assert.Equal(t, trade.ExitTimeMs, retrieved.ExitTimeMs)
	assert.InDelta(t, trade.ExitPrice, retrieved.ExitPrice, 0.0001)
	assert.Equal(t, trade.ExitReason, retrieved.ExitReason)
	assert.Equal(t, trade.BarsHeld, retrieved.BarsHeld)
	assert.InDelta(t, trade.RealizedPnL, retrieved.RealizedPnL, 0.0001)
}

func TestTradeStore_Postgres_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	trade := createTestTrade("run-001", "trade-001", 1_700_000_000_000)

	require.NoError(t, store.Insert(ctx, trade))

	err := store.Insert(ctx, trade)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTradeStore_Postgres_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	_, err := store.GetByID(ctx, "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_Postgres_InsertBulkRollsBackOnDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	require.NoError(t, store.Insert(ctx, createTestTrade("run-001", "trade-001", 1_700_000_000_000)))

	batch := []*domain.Trade{
		createTestTrade("run-001", "trade-002", 1_700_000_060_000),
		createTestTrade("run-001", "trade-001", 1_700_000_120_000), // duplicate
	}

	err := store.InsertBulk(ctx, batch)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Transaction rollback: trade-002 must not be visible.
	all, err := store.GetByRun(ctx, "run-001")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTradeStore_Postgres_GetByRunOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	trades := []*domain.Trade{
		createTestTrade("run-001", "trade-003", 1_700_000_180_000),
		createTestTrade("run-001", "trade-001", 1_700_000_000_000),
		createTestTrade("run-002", "trade-002", 1_700_000_060_000),
	}
	require.NoError(t, store.InsertBulk(ctx, trades))

	result, err := store.GetByRun(ctx, "run-001")
	require.NoError(t, err)

	require.Len(t, result, 2)
	assert.Equal(t, "trade-001", result[0].TradeID)
	assert.Equal(t, "trade-003", result[1].TradeID)
}

func TestFillStore_Postgres_RoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	tradeStore := NewTradeStore(pool)
	fillStore := NewFillStore(pool)

	trade := createTestTrade("run-001", "trade-001", 1_700_000_000_000)
	require.NoError(t, tradeStore.Insert(ctx, trade))

	fills := []*domain.Fill{
		{OrderID: "order-exit", TradeID: "trade-001", Instrument: "BTC-USD", Side: domain.SideLong, Quantity: -1, Price: 103.0, TimestampMs: trade.ExitTimeMs},
		{OrderID: "order-entry", TradeID: "trade-001", Instrument: "BTC-USD", Side: domain.SideLong, Quantity: 1, Price: 100.0, TimestampMs: trade.EntryTimeMs},
	}
	require.NoError(t, fillStore.InsertBulk(ctx, fills))

	got, err := fillStore.GetByTrade(ctx, "trade-001")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "order-entry", got[0].OrderID)
	assert.Equal(t, "order-exit", got[1].OrderID)
	assert.InDelta(t, 1.0, got[0].Quantity, 0.0001)
	assert.InDelta(t, -1.0, got[1].Quantity, 0.0001)
}
