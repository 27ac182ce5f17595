package domain

import (
	"errors"
	"fmt"
	"sort"
)

// Bar represents one OHLCV observation at a fixed sampling interval.
// Corresponds to the bars table in ClickHouse.
type Bar struct {
	TimestampMs int64   // bar open timestamp, Unix ms, timezone-aware at ingestion
	Open        float64 // first traded price in the interval
	High        float64 // highest traded price in the interval
	Low         float64 // lowest traded price in the interval
	Close       float64 // last traded price in the interval
	Volume      float64 // traded volume in the interval
}

// Bar validation errors.
var (
	ErrBarRangeInvalid   = errors.New("bar range invalid: low/high do not bracket open/close")
	ErrBarsNotIncreasing = errors.New("bar timestamps not strictly increasing")
)

// Validate checks the OHLC range invariant: low <= open,close <= high.
func (b *Bar) Validate() error {
	if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close || b.Low > b.High {
		return fmt.Errorf("%w: ts=%d o=%g h=%g l=%g c=%g", ErrBarRangeInvalid,
			b.TimestampMs, b.Open, b.High, b.Low, b.Close)
	}
	return nil
}

// BarSeries is an immutable, time-ordered sequence of bars for one instrument.
// Consumers receive slices of Bars and must not mutate them.
type BarSeries struct {
	Instrument string
	Bars       []Bar
}

// Validate checks per-bar OHLC ranges and strict timestamp ordering.
func (s *BarSeries) Validate() error {
	for i := range s.Bars {
		if err := s.Bars[i].Validate(); err != nil {
			return fmt.Errorf("instrument %s bar %d: %w", s.Instrument, i, err)
		}
		if i > 0 && s.Bars[i].TimestampMs <= s.Bars[i-1].TimestampMs {
			return fmt.Errorf("instrument %s bar %d: %w (%d <= %d)", s.Instrument, i,
				ErrBarsNotIncreasing, s.Bars[i].TimestampMs, s.Bars[i-1].TimestampMs)
		}
	}
	return nil
}

// SliceAfter returns the bars strictly after the given timestamp.
// The returned slice aliases the series; callers treat it as read-only.
func (s *BarSeries) SliceAfter(tsMs int64) []Bar {
	idx := sort.Search(len(s.Bars), func(i int) bool {
		return s.Bars[i].TimestampMs > tsMs
	})
	return s.Bars[idx:]
}

// SliceRange returns the bars with timestamp in [startMs, endMs).
func (s *BarSeries) SliceRange(startMs, endMs int64) []Bar {
	lo := sort.Search(len(s.Bars), func(i int) bool {
		return s.Bars[i].TimestampMs >= startMs
	})
	hi := sort.Search(len(s.Bars), func(i int) bool {
		return s.Bars[i].TimestampMs >= endMs
	})
	return s.Bars[lo:hi]
}

// Returns computes close-to-close simple returns.
// The result has len(Bars)-1 elements; empty input yields nil.
func (s *BarSeries) Returns() []float64 {
	if len(s.Bars) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(s.Bars)-1)
	for i := 1; i < len(s.Bars); i++ {
		prev := s.Bars[i-1].Close
		if prev == 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, s.Bars[i].Close/prev-1)
	}
	return rets
}
