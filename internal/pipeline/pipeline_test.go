package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"tradesim-lab/internal/config"
	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/storage/memory"
	"tradesim-lab/internal/walkforward"
)

// stubFitter enters long on the first test bar of every fold.
type stubFitter struct{}

type stubModel struct {
	instrument string
}

func (f *stubFitter) Fit(_ context.Context, instrument string, _ []domain.Bar) (walkforward.SignalModel, error) {
	return &stubModel{instrument: instrument}, nil
}

func (m *stubModel) Signals(test []domain.Bar) []*domain.EntrySpec {
	if len(test) == 0 {
		return nil
	}
	price := test[0].Close
	return []*domain.EntrySpec{{
		Instrument:      m.instrument,
		Side:            domain.SideLong,
		EntryTimeMs:     test[0].TimestampMs,
		EntryPrice:      price,
		TakeProfitPrice: price * 1.05,
		StopLossPrice:   price * 0.95,
		TimeStopBars:    5,
	}}
}

func newTestStores() Stores {
	return Stores{
		Bars:   memory.NewBarStore(),
		Trades: memory.NewTradeStore(),
		Fills:  memory.NewFillStore(),
		KPIs:   memory.NewKPIStore(),
		Scores: memory.NewScoreStore(),
	}
}

func newTestConfig() *config.Config {
	cfg := config.Default()
	cfg.MonteCarlo.Paths = 100
	cfg.WalkForward.Workers = 2
	return cfg
}

func TestPipeline_Run_EndToEnd(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores()

	if err := LoadFixtures(ctx, stores.Bars); err != nil {
		t.Fatalf("LoadFixtures failed: %v", err)
	}

	outputDir := t.TempDir()
	p, err := New(stores, newTestConfig(), &stubFitter{}, outputDir, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := p.Run(ctx, "run-e2e", 1)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.InstrumentsProcessed != 3 {
		t.Errorf("Expected 3 instruments processed, got %d", result.InstrumentsProcessed)
	}
	if result.InstrumentsSkipped != 0 {
		t.Errorf("Expected no skips, got %d (%v)", result.InstrumentsSkipped, result.SkipReasons)
	}
	if result.CandidatesScored != 3 {
		t.Errorf("Expected 3 candidates scored, got %d", result.CandidatesScored)
	}
	if result.TradesPersisted == 0 {
		t.Error("Expected trades to be persisted")
	}
	if result.FoldsEvaluated == 0 {
		t.Error("Expected folds to be evaluated")
	}

	// Gate runs over all three candidates; top_k default exceeds the field.
	if result.GateTransition == nil {
		t.Fatal("Expected a gate transition")
	}
	if len(result.GateTransition.Active) != 3 {
		t.Errorf("Expected active set of 3, got %v", result.GateTransition.Active)
	}

	// One KPI report per instrument run.
	reports, err := stores.KPIs.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll KPIs failed: %v", err)
	}
	if len(reports) != 3 {
		t.Errorf("Expected 3 KPI reports, got %d", len(reports))
	}

	// Trades persisted under the per-instrument run ID.
	trades, err := stores.Trades.GetByRun(ctx, "run-e2e:BTC-USD")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(trades) == 0 {
		t.Error("Expected trades for run-e2e:BTC-USD")
	}
	for _, tr := range trades {
		if tr.Instrument != "BTC-USD" {
			t.Errorf("Trade %s carries wrong instrument %s", tr.TradeID, tr.Instrument)
		}
	}

	// Every trade has both fills.
	fills, err := stores.Fills.GetByTrade(ctx, trades[0].TradeID)
	if err != nil {
		t.Fatalf("GetByTrade failed: %v", err)
	}
	if len(fills) != 2 {
		t.Errorf("Expected 2 fills for resolved trade, got %d", len(fills))
	}

	// Report files written.
	for _, name := range []string{"trades.csv", "kpis.csv", "scores.csv", "REPORT.md"} {
		if _, err := os.Stat(filepath.Join(outputDir, name)); err != nil {
			t.Errorf("Expected output file %s: %v", name, err)
		}
	}
}

func TestPipeline_Run_SkipsShortHistory(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores()

	// Too short for both fold generation and a single bootstrap block.
	short := syntheticBars(fixtureShape{basePrice: 50, amplitude: 0.01, period: 10}, 5, 1704067200000, 60_000)
	if err := stores.Bars.InsertBulk(ctx, "DOGE-USD", short); err != nil {
		t.Fatalf("seed bars: %v", err)
	}

	p, err := New(stores, newTestConfig(), &stubFitter{}, t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := p.Run(ctx, "run-short", 1)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.InstrumentsProcessed != 0 {
		t.Errorf("Expected no instruments processed, got %d", result.InstrumentsProcessed)
	}
	if result.SkipReasons[SkipReasonShortHistory] != 1 {
		t.Errorf("Expected SHORT_HISTORY skip, got %v", result.SkipReasons)
	}
	if result.GateTransition != nil {
		t.Error("Expected no gate transition without scored candidates")
	}
}

func TestPipeline_Run_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stores := newTestStores()

	if err := LoadFixtures(ctx, stores.Bars); err != nil {
		t.Fatalf("LoadFixtures failed: %v", err)
	}

	p, err := New(stores, newTestConfig(), &stubFitter{}, t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cancel()

	_, err = p.Run(ctx, "run-cancelled", 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
