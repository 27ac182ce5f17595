package pipeline

import (
	"context"
	"math"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/storage"
)

// LoadFixtures populates the bar store with synthetic price history for
// demonstration runs against the memory backend.
func LoadFixtures(ctx context.Context, barStore storage.BarStore) error {
	fixtures := map[string]fixtureShape{
		"BTC-USD": {basePrice: 40000, amplitude: 0.015, period: 40, drift: 0.0004},
		"ETH-USD": {basePrice: 2500, amplitude: 0.02, period: 30, drift: 0.0002},
		"SOL-USD": {basePrice: 100, amplitude: 0.03, period: 25, drift: -0.0001},
	}

	const (
		bars       = 400
		startMs    = int64(1704067200000) // 2024-01-01 00:00:00 UTC
		intervalMs = int64(60_000)
	)

	for instrument, shape := range fixtures {
		series := syntheticBars(shape, bars, startMs, intervalMs)
		if err := barStore.InsertBulk(ctx, instrument, series); err != nil {
			return err
		}
	}
	return nil
}

type fixtureShape struct {
	basePrice float64
	amplitude float64
	period    float64
	drift     float64
}

// syntheticBars builds a drifting sine wave so walk-forward folds see both
// trending and mean-reverting stretches.
func syntheticBars(shape fixtureShape, n int, startMs, intervalMs int64) []domain.Bar {
	out := make([]domain.Bar, n)
	prev := shape.basePrice
	for i := 0; i < n; i++ {
		factor := 1 + shape.drift*float64(i) + shape.amplitude*math.Sin(2*math.Pi*float64(i)/shape.period)
		close := shape.basePrice * factor

		open := prev
		high := math.Max(open, close) * 1.001
		low := math.Min(open, close) * 0.999

		out[i] = domain.Bar{
			TimestampMs: startMs + int64(i)*intervalMs,
			Open:        open,
			High:        high,
			Low:         low,
			Close:       close,
			Volume:      10 + math.Abs(close-open),
		}
		prev = close
	}
	return out
}
