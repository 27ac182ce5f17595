// Package gate admits only top-scoring candidates into the active set.
package gate

import (
	"errors"
	"fmt"
	"sort"

	"tradesim-lab/internal/domain"
)

// ErrGateConfig marks unusable selector parameters.
var ErrGateConfig = errors.New("invalid gate configuration")

// Transition is the outcome of one rebalance tick. It is recomputed
// immutably each cycle; prior transitions are never mutated.
type Transition struct {
	Cycle   int
	Active  []string // the new working set, ranked order
	Kept    []string
	Added   []string
	Dropped []string
}

// Selector ranks candidate scores and maintains a top-K working set.
//
// States: uninitialized (no set yet) and active. The first rebalance moves
// to active with the plain top-K; later rebalances are bounded by the
// rotation budget. Static mode performs only that first transition.
type Selector struct {
	topK           int
	rotationBudget int
	static         bool

	active []string // nil while uninitialized
	cycle  int
}

// NewSelector creates a dynamic selector.
func NewSelector(topK, rotationBudget int) (*Selector, error) {
	if topK <= 0 || rotationBudget < 0 {
		return nil, fmt.Errorf("%w: top_k=%d rotation_budget=%d", ErrGateConfig, topK, rotationBudget)
	}
	return &Selector{topK: topK, rotationBudget: rotationBudget}, nil
}

// NewStaticSelector creates a selector that picks its set once and never
// rotates within the evaluation period.
func NewStaticSelector(topK int) (*Selector, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k=%d", ErrGateConfig, topK)
	}
	return &Selector{topK: topK, static: true}, nil
}

// Active returns the current working set, or nil while uninitialized.
func (s *Selector) Active() []string {
	if s.active == nil {
		return nil
	}
	out := make([]string, len(s.active))
	copy(out, s.active)
	return out
}

// Rebalance applies one tick with fresh scores. The transition is
// deterministic given the ranking and rotation budget; ties rank by
// instrument for reproducibility. No randomness enters at this layer.
func (s *Selector) Rebalance(scores []*domain.CandidateScore) Transition {
	s.cycle++
	ranked := rankInstruments(scores)

	// First tick, and every tick in static mode: plain top-K.
	if s.active == nil {
		s.active = head(ranked, s.topK)
		return Transition{
			Cycle:  s.cycle,
			Active: s.Active(),
			Added:  s.Active(),
		}
	}
	if s.static {
		return Transition{
			Cycle:  s.cycle,
			Active: s.Active(),
			Kept:   s.Active(),
		}
	}

	// kept = current set still ranked within K + rotation budget.
	window := makeSet(head(ranked, s.topK+s.rotationBudget))
	var kept, dropped []string
	for _, inst := range s.active {
		if _, ok := window[inst]; ok {
			kept = append(kept, inst)
		} else {
			dropped = append(dropped, inst)
		}
	}

	// Fill open slots from the highest-ranked candidates not already kept,
	// bounded by the rotation budget.
	slots := s.topK - len(kept)
	if slots > s.rotationBudget {
		slots = s.rotationBudget
	}
	keptSet := makeSet(kept)
	var added []string
	for _, inst := range ranked {
		if slots <= 0 {
			break
		}
		if _, ok := keptSet[inst]; ok {
			continue
		}
		added = append(added, inst)
		keptSet[inst] = struct{}{}
		slots--
	}

	// Rotation budget can leave the set short of K for one cycle; the
	// shortfall closes on later ticks.
	next := append(append([]string{}, kept...), added...)
	s.active = next

	return Transition{
		Cycle:   s.cycle,
		Active:  s.Active(),
		Kept:    kept,
		Added:   added,
		Dropped: dropped,
	}
}

// rankInstruments orders by composite score descending, instrument
// ascending on ties.
func rankInstruments(scores []*domain.CandidateScore) []string {
	sorted := make([]*domain.CandidateScore, len(scores))
	copy(sorted, scores)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CompositeScore != sorted[j].CompositeScore {
			return sorted[i].CompositeScore > sorted[j].CompositeScore
		}
		return sorted[i].Instrument < sorted[j].Instrument
	})

	out := make([]string, len(sorted))
	for i, sc := range sorted {
		out[i] = sc.Instrument
	}
	return out
}

func head(xs []string, n int) []string {
	if n > len(xs) {
		n = len(xs)
	}
	out := make([]string, n)
	copy(out, xs[:n])
	return out
}

func makeSet(xs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		set[x] = struct{}{}
	}
	return set
}
