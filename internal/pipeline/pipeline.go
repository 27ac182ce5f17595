// Package pipeline wires the full evaluation flow: stored bars through
// walk-forward evaluation, Monte Carlo scoring, gate selection, persistence,
// and report rendering.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"tradesim-lab/internal/config"
	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/gate"
	"tradesim-lab/internal/ledger"
	"tradesim-lab/internal/montecarlo"
	"tradesim-lab/internal/observability"
	"tradesim-lab/internal/reporting"
	"tradesim-lab/internal/sim"
	"tradesim-lab/internal/storage"
	"tradesim-lab/internal/walkforward"
)

// Instrument skip reasons surfaced in RunResult.
const (
	SkipReasonNoBars       = "NO_BARS"
	SkipReasonInvalidBars  = "INVALID_BARS"
	SkipReasonFoldCalendar = "FOLD_CALENDAR"
	SkipReasonShortHistory = "SHORT_HISTORY"
)

// Stores groups the persistence surface the pipeline needs.
type Stores struct {
	Bars   storage.BarStore
	Trades storage.TradeStore
	Fills  storage.FillStore
	KPIs   storage.KPIStore
	Scores storage.ScoreStore
}

// RunResult tallies one pipeline run.
type RunResult struct {
	RunID                string
	Cycle                int
	InstrumentsProcessed int
	InstrumentsSkipped   int
	SkipReasons          map[string]int
	TradesPersisted      int
	FoldsEvaluated       int
	FoldsSkipped         int
	CandidatesScored     int
	GateTransition       *gate.Transition
}

// Pipeline runs the end-to-end evaluation.
type Pipeline struct {
	stores    Stores
	cfg       *config.Config
	fitter    walkforward.ModelFitter
	simulator *sim.Simulator
	selector  *gate.Selector
	outputDir string
	logger    zerolog.Logger
	clock     func() time.Time
}

// New creates a pipeline. The fitter is the signal model collaborator the
// walk-forward stage fits per fold.
func New(stores Stores, cfg *config.Config, fitter walkforward.ModelFitter, outputDir string, logger zerolog.Logger) (*Pipeline, error) {
	simulator := sim.New()
	simulator.Quantity = cfg.Execution.Quantity

	var selector *gate.Selector
	var err error
	if cfg.Gate.Static {
		selector, err = gate.NewStaticSelector(cfg.Gate.TopK)
	} else {
		selector, err = gate.NewSelector(cfg.Gate.TopK, cfg.Gate.RotationBudget)
	}
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		stores:    stores,
		cfg:       cfg,
		fitter:    fitter,
		simulator: simulator,
		selector:  selector,
		outputDir: outputDir,
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// Run executes the full pipeline for one gate cycle and writes report files
// to the output directory: trades.csv, kpis.csv, scores.csv, REPORT.md.
//
// Recoverable per-instrument problems (no bars, short history) are logged,
// tallied, and skipped. Configuration faults, including fold leakage, abort
// the run.
func (p *Pipeline) Run(ctx context.Context, runID string, cycle int) (*RunResult, error) {
	start := p.clock()

	result := &RunResult{
		RunID:       runID,
		Cycle:       cycle,
		SkipReasons: make(map[string]int),
	}

	instruments, err := p.stores.Bars.Instruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}

	var scores []*domain.CandidateScore
	for _, instrument := range instruments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		score, err := p.evaluateInstrument(ctx, runID, cycle, instrument, result)
		if err != nil {
			return nil, err
		}
		if score != nil {
			scores = append(scores, score)
		}
	}

	// Gate selection over the scored candidates.
	if len(scores) > 0 {
		transition := p.selector.Rebalance(scores)
		result.GateTransition = &transition
		observability.RecordGateRebalance(len(transition.Active), len(transition.Added), len(transition.Dropped))

		p.logger.Info().
			Int("cycle", transition.Cycle).
			Strs("active", transition.Active).
			Strs("added", transition.Added).
			Strs("dropped", transition.Dropped).
			Msg("gate rebalanced")
	}

	if err := p.writeReports(ctx, result); err != nil {
		return nil, err
	}

	observability.RecordPipelineRun("full", "ok", p.clock().Sub(start).Seconds())

	p.logger.Info().
		Str("run_id", runID).
		Int("instruments", result.InstrumentsProcessed).
		Int("skipped", result.InstrumentsSkipped).
		Int("trades", result.TradesPersisted).
		Int("scored", result.CandidatesScored).
		Msg("pipeline run complete")

	return result, nil
}

// evaluateInstrument runs walk-forward and Monte Carlo for one instrument,
// persisting trades, fills, KPIs, and the candidate score. Returns nil
// without error when the instrument is skipped.
func (p *Pipeline) evaluateInstrument(ctx context.Context, runID string, cycle int, instrument string, result *RunResult) (*domain.CandidateScore, error) {
	skip := func(reason string) {
		result.InstrumentsSkipped++
		result.SkipReasons[reason]++
		p.logger.Warn().
			Str("instrument", instrument).
			Str("reason", reason).
			Msg("instrument skipped")
	}

	bars, err := p.stores.Bars.GetByInstrument(ctx, instrument)
	if err != nil {
		return nil, fmt.Errorf("load bars for %s: %w", instrument, err)
	}
	if len(bars) == 0 {
		skip(SkipReasonNoBars)
		return nil, nil
	}

	series := &domain.BarSeries{Instrument: instrument, Bars: bars}
	if err := series.Validate(); err != nil {
		skip(SkipReasonInvalidBars)
		return nil, nil
	}

	// Walk-forward evaluation.
	wf := p.cfg.WalkForward
	orch := walkforward.NewOrchestrator(p.fitter, p.simulator, walkforward.FoldConfig{
		TrainLength:     wf.TrainLength,
		TestLength:      wf.TestLength,
		StepLength:      wf.StepLength,
		GapBars:         wf.GapBars,
		MinTrainSamples: wf.MinTrainSamples,
		MinTestSamples:  wf.MinTestSamples,
	}, p.logger)
	orch.Workers = wf.Workers

	instrumentRunID := runID + ":" + instrument
	wfResult, err := orch.Run(ctx, instrumentRunID, series)
	if err != nil {
		if errors.Is(err, walkforward.ErrLeakage) {
			observability.RecordLeakageViolation()
			return nil, err
		}
		if errors.Is(err, walkforward.ErrFoldConfig) {
			skip(SkipReasonFoldCalendar)
			return nil, nil
		}
		return nil, err
	}

	result.FoldsEvaluated += wfResult.Evaluated
	result.FoldsSkipped += wfResult.Skipped

	if err := p.persistLedger(ctx, wfResult.Ledger, result); err != nil {
		return nil, err
	}

	// Monte Carlo scoring on the full history.
	mc := p.cfg.MonteCarlo
	scorer := montecarlo.NewScorer(p.simulator)
	score, err := scorer.Score(ctx, instrument, bars, cycle, montecarlo.Params{
		BlockSize:     mc.BlockSize,
		Paths:         mc.Paths,
		HorizonBars:   mc.HorizonBars,
		Seed:          mc.Seed,
		LambdaCVaR:    mc.LambdaCVaR,
		MuLossProb:    mc.MuLossProb,
		TakeProfitPct: p.cfg.Execution.TakeProfitPct,
		StopLossPct:   p.cfg.Execution.StopLossPct,
		TrailingPct:   p.cfg.Execution.TrailingPct,
		Workers:       mc.Workers,
	})
	if err != nil {
		if errors.Is(err, montecarlo.ErrInsufficientSample) {
			skip(SkipReasonShortHistory)
			return nil, nil
		}
		return nil, fmt.Errorf("score %s: %w", instrument, err)
	}

	if err := p.stores.Scores.Insert(ctx, score); err != nil {
		return nil, fmt.Errorf("persist score for %s: %w", instrument, err)
	}
	result.CandidatesScored++
	observability.RecordCandidateScored(score.Paths)

	result.InstrumentsProcessed++
	return score, nil
}

// persistLedger writes one instrument-run's trades, fills, and KPI report.
func (p *Pipeline) persistLedger(ctx context.Context, l *ledger.Ledger, result *RunResult) error {
	trades := l.Trades()
	if len(trades) > 0 {
		if err := p.stores.Trades.InsertBulk(ctx, trades); err != nil {
			return fmt.Errorf("persist trades: %w", err)
		}
		result.TradesPersisted += len(trades)

		for _, t := range trades {
			observability.RecordTradeSimulated(t.ExitReason)
		}
	}

	fills := l.Fills()
	if len(fills) > 0 {
		if err := p.stores.Fills.InsertBulk(ctx, fills); err != nil {
			return fmt.Errorf("persist fills: %w", err)
		}
	}

	report := l.KPIs()
	report.ComputedAtMs = p.clock().UnixMilli()
	if err := p.stores.KPIs.Insert(ctx, report); err != nil {
		return fmt.Errorf("persist kpi report: %w", err)
	}

	return nil
}

// writeReports renders and writes the output files for the run.
func (p *Pipeline) writeReports(ctx context.Context, result *RunResult) error {
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var gateSection *reporting.GateSection
	if result.GateTransition != nil {
		gateSection = &reporting.GateSection{
			Cycle:   result.GateTransition.Cycle,
			Active:  result.GateTransition.Active,
			Added:   result.GateTransition.Added,
			Dropped: result.GateTransition.Dropped,
		}
	}

	gen := reporting.NewGenerator(p.stores.Trades, p.stores.KPIs, p.stores.Scores).WithClock(p.clock)
	report, err := gen.Generate(ctx, gateSection)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	var allTrades []*domain.Trade
	for _, row := range report.KPIRows {
		trades, err := p.stores.Trades.GetByRun(ctx, row.RunID)
		if err != nil {
			return fmt.Errorf("load trades for export: %w", err)
		}
		allTrades = append(allTrades, trades...)
	}

	files := map[string]string{
		"trades.csv": reporting.RenderTradesCSV(allTrades),
		"kpis.csv":   reporting.RenderKPIsCSV(report.KPIRows),
		"scores.csv": reporting.RenderScoresCSV(report.Scores),
		"REPORT.md":  reporting.RenderMarkdown(report),
	}
	for name, content := range files {
		path := filepath.Join(p.outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	return nil
}
