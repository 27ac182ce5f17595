package memory

import (
	"context"
	"sort"
	"sync"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string][]domain.Bar // keyed by instrument, sorted by timestamp
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string][]domain.Bar),
	}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails the entire batch on a duplicate
// (instrument, timestamp_ms).
func (s *BarStore) InsertBulk(_ context.Context, instrument string, bars []domain.Bar) error {
	if instrument == "" {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[int64]struct{}, len(s.data[instrument]))
	for _, b := range s.data[instrument] {
		existing[b.TimestampMs] = struct{}{}
	}
	for _, b := range bars {
		if _, dup := existing[b.TimestampMs]; dup {
			return storage.ErrDuplicateKey
		}
		existing[b.TimestampMs] = struct{}{}
	}

	merged := append(append([]domain.Bar{}, s.data[instrument]...), bars...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].TimestampMs < merged[j].TimestampMs })
	s.data[instrument] = merged
	return nil
}

// GetByInstrument retrieves all bars for an instrument, ordered by timestamp ASC.
func (s *BarStore) GetByInstrument(_ context.Context, instrument string) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bars := s.data[instrument]
	out := make([]domain.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// GetByTimeRange retrieves bars within [start, end) ordered ASC.
func (s *BarStore) GetByTimeRange(_ context.Context, instrument string, startMs, endMs int64) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Bar
	for _, b := range s.data[instrument] {
		if b.TimestampMs >= startMs && b.TimestampMs < endMs {
			out = append(out, b)
		}
	}
	return out, nil
}

// Instruments lists distinct instruments with stored bars, sorted ASC.
func (s *BarStore) Instruments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.data))
	for instrument := range s.data {
		out = append(out, instrument)
	}
	sort.Strings(out)
	return out, nil
}
