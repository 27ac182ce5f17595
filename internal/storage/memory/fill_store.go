package memory

import (
	"context"
	"sort"
	"sync"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/storage"
)

// FillStore is an in-memory implementation of storage.FillStore.
type FillStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Fill // keyed by order_id
}

// NewFillStore creates a new in-memory fill store.
func NewFillStore() *FillStore {
	return &FillStore{
		data: make(map[string]*domain.Fill),
	}
}

// Compile-time interface check.
var _ storage.FillStore = (*FillStore)(nil)

// InsertBulk adds multiple fills atomically. Fails entire batch on any duplicate.
func (s *FillStore) InsertBulk(_ context.Context, fills []*domain.Fill) error {
	if len(fills) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(fills))
	for _, f := range fills {
		if f == nil || f.OrderID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[f.OrderID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[f.OrderID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[f.OrderID] = struct{}{}
	}

	for _, f := range fills {
		cp := *f
		s.data[f.OrderID] = &cp
	}
	return nil
}

// GetByTrade retrieves the fills of one trade ordered by timestamp, which
// places the entry leg first.
func (s *FillStore) GetByTrade(_ context.Context, tradeID string) ([]*domain.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Fill
	for _, f := range s.data {
		if f.TradeID == tradeID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimestampMs != out[j].TimestampMs {
			return out[i].TimestampMs < out[j].TimestampMs
		}
		// Entry and exit never share a timestamp for resolved trades, but
		// if they did the opening leg sorts first.
		return opensPosition(out[i]) && !opensPosition(out[j])
	})
	return out, nil
}

// opensPosition reports whether a fill increases exposure in the direction
// of its trade's side.
func opensPosition(f *domain.Fill) bool {
	return f.Quantity*f.Side.Multiplier() > 0
}
