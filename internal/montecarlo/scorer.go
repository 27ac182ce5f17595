// Package montecarlo estimates candidate quality by block-bootstrap
// resampling of historical returns.
//
// Every random draw comes from a path-local generator seeded from the base
// seed and the path index; no global random state is read or written. Paths
// write their PnL into a slice indexed by path, so parallel and sequential
// execution aggregate bit-identically for the same seed.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/sim"
)

// ErrInsufficientSample marks a candidate whose return history is too short
// to bootstrap. Recoverable: callers skip and tally the candidate.
var ErrInsufficientSample = errors.New("insufficient sample for block bootstrap")

// ErrParams marks unusable scoring parameters.
var ErrParams = errors.New("invalid monte carlo parameters")

// Params controls one scoring call.
type Params struct {
	BlockSize   int   // bars per bootstrap block
	Paths       int   // synthetic paths to generate
	HorizonBars int   // bars each path must cover
	Seed        int64 // base seed; path i uses Seed+i

	// Risk-aversion weights for the composite score.
	LambdaCVaR float64
	MuLossProb float64

	// Execution parameters applied to every path, as fractions of the
	// last real price.
	TakeProfitPct float64
	StopLossPct   float64
	TrailingPct   float64

	// Workers bounds path parallelism. Zero or one runs sequentially.
	Workers int
}

func (p *Params) validate() error {
	if p.BlockSize <= 0 || p.Paths <= 0 || p.HorizonBars <= 0 {
		return fmt.Errorf("%w: block=%d paths=%d horizon=%d",
			ErrParams, p.BlockSize, p.Paths, p.HorizonBars)
	}
	if p.LambdaCVaR < 0 || p.MuLossProb < 0 {
		return fmt.Errorf("%w: lambda=%g mu=%g", ErrParams, p.LambdaCVaR, p.MuLossProb)
	}
	return nil
}

// Scorer runs bootstrap paths through the execution simulator.
type Scorer struct {
	simulator *sim.Simulator
}

// NewScorer creates a scorer backed by the given simulator.
func NewScorer(simulator *sim.Simulator) *Scorer {
	return &Scorer{simulator: simulator}
}

// Score evaluates one candidate instrument over its lookback bars.
// Returns ErrInsufficientSample when the return series is shorter than one
// block. On cancellation no score is produced.
func (s *Scorer) Score(ctx context.Context, instrument string, bars []domain.Bar, cycle int, p Params) (*domain.CandidateScore, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("score %s: %w", instrument, err)
	}

	series := domain.BarSeries{Instrument: instrument, Bars: bars}
	returns := series.Returns()
	if len(returns) < p.BlockSize {
		return nil, fmt.Errorf("score %s: %w: %d returns, block size %d",
			instrument, ErrInsufficientSample, len(returns), p.BlockSize)
	}

	last := bars[len(bars)-1]
	intervalMs := int64(60000)
	if len(bars) > 1 {
		intervalMs = bars[1].TimestampMs - bars[0].TimestampMs
	}

	pnls := make([]float64, p.Paths)

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > p.Paths {
		workers = p.Paths
	}

	pathCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range pathCh {
				pnls[i] = s.runPath(instrument, returns, last.Close, last.TimestampMs, intervalMs, i, p)
			}
		}()
	}

dispatch:
	for i := 0; i < p.Paths; i++ {
		select {
		case <-ctx.Done():
			break dispatch
		case pathCh <- i:
		}
	}
	close(pathCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		// A partial path set is a biased sample; report nothing.
		return nil, fmt.Errorf("score %s cancelled: %w", instrument, err)
	}

	ev := mean(pnls)
	cvar := cvar95(pnls)
	probLoss := lossFraction(pnls)

	return &domain.CandidateScore{
		Instrument:     instrument,
		Cycle:          cycle,
		ExpectedValue:  ev,
		CVaR95:         cvar,
		ProbLoss:       probLoss,
		CompositeScore: ev - p.LambdaCVaR*math.Abs(cvar) - p.MuLossProb*probLoss,
		Paths:          p.Paths,
		Seed:           p.Seed,
	}, nil
}

// runPath builds one synthetic price path and resolves the candidate's
// entry against it.
func (s *Scorer) runPath(instrument string, returns []float64, lastPrice float64, lastTs, intervalMs int64, pathIndex int, p Params) float64 {
	rng := rand.New(rand.NewSource(p.Seed + int64(pathIndex)))

	synthetic := samplePath(rng, returns, p.BlockSize, p.HorizonBars)
	bars := reconstructBars(synthetic, lastPrice, lastTs, intervalMs)

	spec := &domain.EntrySpec{
		Instrument:           instrument,
		Side:                 domain.SideLong,
		EntryTimeMs:          lastTs,
		EntryPrice:           lastPrice,
		TakeProfitPrice:      lastPrice * (1 + p.TakeProfitPct),
		StopLossPrice:        lastPrice * (1 - p.StopLossPct),
		TrailingStopDistance: lastPrice * p.TrailingPct,
		TimeStopBars:         p.HorizonBars,
	}

	trade, err := s.simulator.Resolve(spec, bars)
	if err != nil || !trade.Resolved() {
		return 0
	}
	return trade.RealizedPnL
}

// samplePath draws overlapping blocks with replacement and concatenates
// them until the horizon is covered, then truncates to exact length.
func samplePath(rng *rand.Rand, returns []float64, blockSize, horizon int) []float64 {
	numBlocks := len(returns) - blockSize + 1
	path := make([]float64, 0, horizon+blockSize)
	for len(path) < horizon {
		start := rng.Intn(numBlocks)
		path = append(path, returns[start:start+blockSize]...)
	}
	return path[:horizon]
}

// reconstructBars turns a synthetic return path into bars anchored at the
// last known real price. Highs and lows span open and close only; the
// bootstrap has no intrabar information to add.
func reconstructBars(returns []float64, lastPrice float64, lastTs, intervalMs int64) []domain.Bar {
	bars := make([]domain.Bar, len(returns))
	price := lastPrice
	for i, r := range returns {
		next := price * (1 + r)
		bars[i] = domain.Bar{
			TimestampMs: lastTs + int64(i+1)*intervalMs,
			Open:        price,
			High:        math.Max(price, next),
			Low:         math.Min(price, next),
			Close:       next,
		}
		price = next
	}
	return bars
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// cvar95 computes the mean PnL over the worst 5% of paths (at least one).
func cvar95(pnls []float64) float64 {
	sorted := make([]float64, len(pnls))
	copy(sorted, pnls)
	sort.Float64s(sorted)

	tail := int(math.Ceil(0.05 * float64(len(sorted))))
	if tail < 1 {
		tail = 1
	}
	return mean(sorted[:tail])
}

func lossFraction(pnls []float64) float64 {
	if len(pnls) == 0 {
		return 0
	}
	losses := 0
	for _, p := range pnls {
		if p < 0 {
			losses++
		}
	}
	return float64(losses) / float64(len(pnls))
}
