package montecarlo

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/sim"
)

// makeBars builds a deterministic lookback window.
func makeBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	price := 100.0
	for i := 0; i < n; i++ {
		next := price * (1 + 0.008*math.Sin(float64(i)/2) + 0.001)
		bars[i] = domain.Bar{
			TimestampMs: 1000000 + int64(i)*60000,
			Open:        price,
			High:        math.Max(price, next),
			Low:         math.Min(price, next),
			Close:       next,
			Volume:      500,
		}
		price = next
	}
	return bars
}

func defaultParams() Params {
	return Params{
		BlockSize:     10,
		Paths:         200,
		HorizonBars:   30,
		Seed:          42,
		LambdaCVaR:    1.0,
		MuLossProb:    0.5,
		TakeProfitPct: 0.05,
		StopLossPct:   0.03,
	}
}

func TestScore_DeterministicAcrossRuns(t *testing.T) {
	bars := makeBars(120)
	scorer := NewScorer(sim.New())

	first, err := scorer.Score(context.Background(), "BTCUSD", bars, 1, defaultParams())
	if err != nil {
		t.Fatalf("first Score failed: %v", err)
	}
	second, err := scorer.Score(context.Background(), "BTCUSD", bars, 1, defaultParams())
	if err != nil {
		t.Fatalf("second Score failed: %v", err)
	}

	if *first != *second {
		t.Errorf("same seed and inputs produced different scores:\n%+v\n%+v", first, second)
	}
}

func TestScore_ParallelMatchesSequential(t *testing.T) {
	bars := makeBars(120)
	scorer := NewScorer(sim.New())

	seqParams := defaultParams()
	seqParams.Workers = 1
	parParams := defaultParams()
	parParams.Workers = 8

	seq, err := scorer.Score(context.Background(), "BTCUSD", bars, 1, seqParams)
	if err != nil {
		t.Fatalf("sequential Score failed: %v", err)
	}
	par, err := scorer.Score(context.Background(), "BTCUSD", bars, 1, parParams)
	if err != nil {
		t.Fatalf("parallel Score failed: %v", err)
	}

	if *seq != *par {
		t.Errorf("parallel score differs from sequential:\nseq: %+v\npar: %+v", seq, par)
	}
}

func TestScore_SeedChangesOutput(t *testing.T) {
	bars := makeBars(120)
	scorer := NewScorer(sim.New())

	a, err := scorer.Score(context.Background(), "BTCUSD", bars, 1, defaultParams())
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	p := defaultParams()
	p.Seed = 43
	b, err := scorer.Score(context.Background(), "BTCUSD", bars, 1, p)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if a.ExpectedValue == b.ExpectedValue && a.CVaR95 == b.CVaR95 && a.ProbLoss == b.ProbLoss {
		t.Error("different seeds produced identical aggregates; suspicious")
	}
}

func TestScore_InsufficientSample(t *testing.T) {
	bars := makeBars(5) // 4 returns, block size 10
	scorer := NewScorer(sim.New())

	_, err := scorer.Score(context.Background(), "THIN", bars, 1, defaultParams())
	if !errors.Is(err, ErrInsufficientSample) {
		t.Fatalf("err = %v, want ErrInsufficientSample", err)
	}
}

func TestScore_CancellationProducesNoScore(t *testing.T) {
	bars := makeBars(120)
	scorer := NewScorer(sim.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	score, err := scorer.Score(ctx, "BTCUSD", bars, 1, defaultParams())
	if err == nil {
		t.Fatal("expected error from cancelled scoring call")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if score != nil {
		t.Error("cancelled call must not return a partial score")
	}
}

func TestScore_CompositeFormula(t *testing.T) {
	bars := makeBars(120)
	scorer := NewScorer(sim.New())

	p := defaultParams()
	p.LambdaCVaR = 2.0
	p.MuLossProb = 3.0

	score, err := scorer.Score(context.Background(), "BTCUSD", bars, 1, p)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	want := score.ExpectedValue - 2.0*math.Abs(score.CVaR95) - 3.0*score.ProbLoss
	if score.CompositeScore != want {
		t.Errorf("CompositeScore = %g, want %g", score.CompositeScore, want)
	}
}

func TestScore_InvalidParams(t *testing.T) {
	bars := makeBars(120)
	scorer := NewScorer(sim.New())

	p := defaultParams()
	p.Paths = 0
	if _, err := scorer.Score(context.Background(), "BTCUSD", bars, 1, p); !errors.Is(err, ErrParams) {
		t.Errorf("err = %v, want ErrParams", err)
	}

	p = defaultParams()
	p.LambdaCVaR = -1
	if _, err := scorer.Score(context.Background(), "BTCUSD", bars, 1, p); !errors.Is(err, ErrParams) {
		t.Errorf("err = %v, want ErrParams for negative lambda", err)
	}
}

func TestSamplePath_ExactHorizon(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	returns := []float64{0.01, -0.02, 0.005, 0.015, -0.01, 0.002, 0.008}

	for _, horizon := range []int{1, 3, 10, 25} {
		path := samplePath(rng, returns, 3, horizon)
		if len(path) != horizon {
			t.Errorf("horizon %d: path length = %d", horizon, len(path))
		}
	}
}

func TestCVaR95_WorstTail(t *testing.T) {
	// 20 values: worst 5% is exactly the single worst value.
	pnls := make([]float64, 20)
	for i := range pnls {
		pnls[i] = float64(i) // 0..19
	}
	pnls[3] = -50

	if got := cvar95(pnls); got != -50 {
		t.Errorf("cvar95 = %g, want -50", got)
	}
}

func TestReconstructBars_AnchoredAtLastPrice(t *testing.T) {
	returns := []float64{0.10, -0.05}
	bars := reconstructBars(returns, 200.0, 1000000, 60000)

	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	if bars[0].Open != 200.0 {
		t.Errorf("first open = %g, want anchor 200", bars[0].Open)
	}
	if bars[0].Close != 220.0 {
		t.Errorf("first close = %g, want 220", bars[0].Close)
	}
	if math.Abs(bars[1].Close-209.0) > 1e-9 {
		t.Errorf("second close = %g, want 209", bars[1].Close)
	}
	for i := range bars {
		if err := bars[i].Validate(); err != nil {
			t.Errorf("bar %d invalid: %v", i, err)
		}
	}
}
