package reporting

import (
	"context"
	"sort"
	"time"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	tradeStore storage.TradeStore
	kpiStore   storage.KPIStore
	scoreStore storage.ScoreStore
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	tradeStore storage.TradeStore,
	kpiStore storage.KPIStore,
	scoreStore storage.ScoreStore,
) *Generator {
	return &Generator{
		tradeStore: tradeStore,
		kpiStore:   kpiStore,
		scoreStore: scoreStore,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a report covering every stored run, optionally with the
// latest gate transition.
func (g *Generator) Generate(ctx context.Context, gate *GateSection) (*Report, error) {
	reports, err := g.kpiStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	kpiRows := make([]KPIRow, 0, len(reports))
	for _, r := range reports {
		kpiRows = append(kpiRows, KPIRow{
			RunID:        r.RunID,
			TotalTrades:  r.TotalTrades,
			NoDataTrades: r.NoDataTrades,
			WinRate:      r.WinRate,
			NetPnL:       r.NetPnL,
			ProfitFactor: r.ProfitFactor,
			MaxDrawdown:  r.MaxDrawdown,
			Sharpe:       r.Sharpe,
		})
	}

	summary, instrumentCount, err := g.generateDataSummary(ctx, reports)
	if err != nil {
		return nil, err
	}

	scoreRows, err := g.generateScoreRows(ctx)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt:     g.now(),
		RunCount:        len(reports),
		InstrumentCount: instrumentCount,
		DataSummary:     *summary,
		KPIRows:         kpiRows,
		Scores:          scoreRows,
		Gate:            gate,
	}, nil
}

// generateDataSummary walks the trades of every run to find totals and the
// covered date range.
func (g *Generator) generateDataSummary(ctx context.Context, reports []*domain.KPIReport) (*DataSummary, int, error) {
	summary := &DataSummary{}
	instruments := make(map[string]struct{})

	for _, r := range reports {
		trades, err := g.tradeStore.GetByRun(ctx, r.RunID)
		if err != nil {
			return nil, 0, err
		}

		for _, t := range trades {
			summary.TotalTrades++
			if t.ExitReason == domain.ExitReasonNoData {
				summary.NoDataTrades++
			}
			instruments[t.Instrument] = struct{}{}

			if summary.DateRangeStartMs == 0 || t.EntryTimeMs < summary.DateRangeStartMs {
				summary.DateRangeStartMs = t.EntryTimeMs
			}
			if t.ExitTimeMs > summary.DateRangeEndMs {
				summary.DateRangeEndMs = t.ExitTimeMs
			}
		}
	}

	return summary, len(instruments), nil
}

// generateScoreRows loads all scores ordered by cycle, then composite DESC
// within each cycle.
func (g *Generator) generateScoreRows(ctx context.Context) ([]ScoreRow, error) {
	scores, err := g.scoreStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]ScoreRow, 0, len(scores))
	for _, s := range scores {
		rows = append(rows, ScoreRow{
			Instrument:     s.Instrument,
			Cycle:          s.Cycle,
			ExpectedValue:  s.ExpectedValue,
			CVaR95:         s.CVaR95,
			ProbLoss:       s.ProbLoss,
			CompositeScore: s.CompositeScore,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Cycle != rows[j].Cycle {
			return rows[i].Cycle < rows[j].Cycle
		}
		if rows[i].CompositeScore != rows[j].CompositeScore {
			return rows[i].CompositeScore > rows[j].CompositeScore
		}
		return rows[i].Instrument < rows[j].Instrument
	})

	return rows, nil
}
