package memory

import (
	"context"
	"sort"
	"sync"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/storage"
)

type scoreKey struct {
	instrument string
	cycle      int
}

// ScoreStore is an in-memory implementation of storage.ScoreStore.
type ScoreStore struct {
	mu   sync.RWMutex
	data map[scoreKey]*domain.CandidateScore
}

// NewScoreStore creates a new in-memory candidate score store.
func NewScoreStore() *ScoreStore {
	return &ScoreStore{
		data: make(map[scoreKey]*domain.CandidateScore),
	}
}

// Compile-time interface check.
var _ storage.ScoreStore = (*ScoreStore)(nil)

// Insert adds a new score. Returns ErrDuplicateKey if (instrument, cycle) exists.
func (s *ScoreStore) Insert(_ context.Context, sc *domain.CandidateScore) error {
	if sc == nil || sc.Instrument == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := scoreKey{sc.Instrument, sc.Cycle}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *sc
	s.data[key] = &cp
	return nil
}

// InsertBulk adds multiple scores atomically. Fails entire batch on any duplicate.
func (s *ScoreStore) InsertBulk(_ context.Context, scores []*domain.CandidateScore) error {
	if len(scores) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[scoreKey]struct{}, len(scores))
	for _, sc := range scores {
		if sc == nil || sc.Instrument == "" {
			return storage.ErrInvalidInput
		}
		key := scoreKey{sc.Instrument, sc.Cycle}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, sc := range scores {
		cp := *sc
		s.data[scoreKey{sc.Instrument, sc.Cycle}] = &cp
	}
	return nil
}

// GetByCycle retrieves all scores for a gate cycle, sorted by composite
// score DESC with instrument ASC as the tie-break.
func (s *ScoreStore) GetByCycle(_ context.Context, cycle int) ([]*domain.CandidateScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.CandidateScore
	for key, sc := range s.data {
		if key.cycle == cycle {
			cp := *sc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompositeScore != out[j].CompositeScore {
			return out[i].CompositeScore > out[j].CompositeScore
		}
		return out[i].Instrument < out[j].Instrument
	})
	return out, nil
}

// GetAll retrieves all scores sorted by (cycle, instrument).
func (s *ScoreStore) GetAll(_ context.Context) ([]*domain.CandidateScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.CandidateScore, 0, len(s.data))
	for _, sc := range s.data {
		cp := *sc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cycle != out[j].Cycle {
			return out[i].Cycle < out[j].Cycle
		}
		return out[i].Instrument < out[j].Instrument
	})
	return out, nil
}
