package walkforward

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/ledger"
	"tradesim-lab/internal/sim"
)

// Orchestrator runs fold-by-fold evaluation: fit the external model on the
// train window, generate signals on the test window, resolve them through
// the simulator, accumulate per-fold ledgers.
//
// Folds are stateless and independent; nothing carries over between them
// except what each fold re-derives from its own frozen train window. That
// independence is what permits the worker pool below.
type Orchestrator struct {
	fitter    ModelFitter
	simulator *sim.Simulator
	cfg       FoldConfig

	// Workers bounds fold parallelism. Zero or one runs sequentially.
	Workers int

	logger zerolog.Logger
}

// NewOrchestrator creates an orchestrator with a sequential default.
func NewOrchestrator(fitter ModelFitter, simulator *sim.Simulator, cfg FoldConfig, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		fitter:    fitter,
		simulator: simulator,
		cfg:       cfg,
		Workers:   1,
		logger:    logger,
	}
}

// FoldOutcome is the per-fold evaluation result.
type FoldOutcome struct {
	Fold       domain.WalkForwardFold
	Trades     []*domain.Trade
	SkipReason string // empty when the fold was evaluated
}

// Result aggregates an orchestrator run. Skipped folds are tallied by
// reason and excluded from the merged ledger, never silently dropped from
// the reported fold count.
type Result struct {
	Ledger      *ledger.Ledger
	Folds       []FoldOutcome
	Evaluated   int
	Skipped     int
	SkipReasons map[string]int
}

// Run generates folds over the series and evaluates them. Fold outcomes are
// merged in fold-index order so parallel and sequential execution produce
// identical aggregates. On cancellation partial results are discarded.
func (o *Orchestrator) Run(ctx context.Context, runID string, series *domain.BarSeries) (*Result, error) {
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("walk-forward %s: %w", series.Instrument, err)
	}

	folds, err := GenerateFolds(len(series.Bars), o.cfg)
	if err != nil {
		return nil, fmt.Errorf("walk-forward %s: %w", series.Instrument, err)
	}

	outcomes := make([]FoldOutcome, len(folds))

	workers := o.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(folds) {
		workers = len(folds)
	}

	foldCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range foldCh {
				outcomes[idx] = o.evaluateFold(ctx, series, folds[idx])
			}
		}()
	}

dispatch:
	for i := range folds {
		select {
		case <-ctx.Done():
			break dispatch
		case foldCh <- i:
		}
	}
	close(foldCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		// Partial fold results would bias every aggregate; discard them.
		return nil, fmt.Errorf("walk-forward %s cancelled: %w", series.Instrument, err)
	}

	result := &Result{
		Ledger:      ledger.New(runID),
		Folds:       outcomes,
		SkipReasons: make(map[string]int),
	}
	for _, out := range outcomes {
		if out.SkipReason != "" {
			result.Skipped++
			result.SkipReasons[out.SkipReason]++
			o.logger.Warn().
				Int("fold", out.Fold.FoldIndex).
				Str("reason", out.SkipReason).
				Msg("walk-forward fold skipped")
			continue
		}
		result.Evaluated++
		for _, t := range out.Trades {
			result.Ledger.ApplyTrade(t)
		}
	}

	o.logger.Info().
		Str("instrument", series.Instrument).
		Int("folds", len(folds)).
		Int("evaluated", result.Evaluated).
		Int("skipped", result.Skipped).
		Int("trades", len(result.Ledger.Trades())).
		Msg("walk-forward run complete")

	return result, nil
}

// evaluateFold runs one fold end to end. The model sees train bars only;
// signal resolution sees test bars only.
func (o *Orchestrator) evaluateFold(ctx context.Context, series *domain.BarSeries, fold domain.WalkForwardFold) FoldOutcome {
	out := FoldOutcome{Fold: fold}

	train := series.Bars[fold.TrainStart:fold.TrainEnd]
	test := series.Bars[fold.TestStart:fold.TestEnd]

	if o.cfg.MinTrainSamples > 0 && len(train) < o.cfg.MinTrainSamples {
		out.SkipReason = domain.SkipReasonTrainTooSmall
		return out
	}
	if o.cfg.MinTestSamples > 0 && len(test) < o.cfg.MinTestSamples {
		out.SkipReason = domain.SkipReasonTestTooSmall
		return out
	}

	model, err := o.fitter.Fit(ctx, series.Instrument, train)
	if err != nil {
		out.SkipReason = domain.SkipReasonNoSignals
		o.logger.Error().Err(err).Int("fold", fold.FoldIndex).Msg("model fit failed")
		return out
	}

	specs := model.Signals(test)
	if len(specs) == 0 {
		out.SkipReason = domain.SkipReasonNoSignals
		return out
	}

	testSeries := domain.BarSeries{Instrument: series.Instrument, Bars: test}
	for _, spec := range specs {
		// Resolution consults test-window bars strictly after entry; the
		// test window boundary caps what any trade may observe.
		bars := testSeries.SliceAfter(spec.EntryTimeMs)
		trade, err := o.simulator.Resolve(spec, bars)
		if err != nil {
			o.logger.Error().Err(err).Int("fold", fold.FoldIndex).Msg("entry spec rejected")
			continue
		}
		out.Trades = append(out.Trades, trade)
	}
	return out
}
