package memory

import (
	"context"
	"errors"
	"testing"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/storage"
)

func TestTradeStore_InsertAndGet(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trade := &domain.Trade{
		TradeID:     "trade1",
		RunID:       "run1",
		Instrument:  "BTC-USD",
		Side:        domain.SideLong,
		EntryTimeMs: 1000,
		EntryPrice:  100.0,
		ExitTimeMs:  5000,
		ExitPrice:   103.0,
		ExitReason:  domain.ExitReasonTakeProfit,
		RealizedPnL: 3.0,
	}

	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "trade1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.RealizedPnL != 3.0 {
		t.Errorf("RealizedPnL mismatch: got %f, want %f", got.RealizedPnL, 3.0)
	}
}

func TestTradeStore_DuplicateKey(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trade := &domain.Trade{TradeID: "trade1", RunID: "run1", Instrument: "BTC-USD", Side: domain.SideLong}

	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, trade)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeStore_NotFound(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTradeStore_InsertBulkPartialDuplicate(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	first := &domain.Trade{TradeID: "t1", RunID: "run1", Instrument: "BTC-USD", Side: domain.SideLong}
	if err := store.Insert(ctx, first); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	trades := []*domain.Trade{
		{TradeID: "t2", RunID: "run1", Instrument: "BTC-USD", Side: domain.SideLong},
		{TradeID: "t1", RunID: "run1", Instrument: "BTC-USD", Side: domain.SideLong}, // duplicate
	}

	err := store.InsertBulk(ctx, trades)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Verify all-or-nothing
	all, _ := store.GetByRun(ctx, "run1")
	if len(all) != 1 {
		t.Errorf("Expected 1 trade (no partial insert), got %d", len(all))
	}
}

func TestTradeStore_GetByRunOrdered(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trades := []*domain.Trade{
		{TradeID: "t3", RunID: "run1", Instrument: "ETH-USD", Side: domain.SideLong, EntryTimeMs: 3000},
		{TradeID: "t1", RunID: "run1", Instrument: "BTC-USD", Side: domain.SideLong, EntryTimeMs: 1000},
		{TradeID: "t2", RunID: "run2", Instrument: "BTC-USD", Side: domain.SideShort, EntryTimeMs: 2000},
	}

	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByRun(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 trades for run1, got %d", len(result))
	}
	if result[0].TradeID != "t1" || result[1].TradeID != "t3" {
		t.Errorf("Results not ordered by entry time: got %s, %s", result[0].TradeID, result[1].TradeID)
	}
}

func TestTradeStore_InvalidInput(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	err := store.Insert(ctx, nil)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}

	err = store.Insert(ctx, &domain.Trade{TradeID: ""})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty ID, got %v", err)
	}
}
