package memory

import (
	"context"
	"sort"
	"sync"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/storage"
)

// KPIStore is an in-memory implementation of storage.KPIStore.
type KPIStore struct {
	mu   sync.RWMutex
	data map[string]*domain.KPIReport // keyed by run_id
}

// NewKPIStore creates a new in-memory KPI report store.
func NewKPIStore() *KPIStore {
	return &KPIStore{
		data: make(map[string]*domain.KPIReport),
	}
}

// Compile-time interface check.
var _ storage.KPIStore = (*KPIStore)(nil)

// Insert adds a new report. Returns ErrDuplicateKey if run_id exists.
func (s *KPIStore) Insert(_ context.Context, r *domain.KPIReport) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *r
	s.data[r.RunID] = &cp
	return nil
}

// GetByRun retrieves the report for a run. Returns ErrNotFound if not exists.
func (s *KPIStore) GetByRun(_ context.Context, runID string) (*domain.KPIReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// GetAll retrieves all reports sorted by run_id.
func (s *KPIStore) GetAll(_ context.Context) ([]*domain.KPIReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.KPIReport, 0, len(s.data))
	for _, r := range s.data {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out, nil
}
