package walkforward

import (
	"context"
	"math"

	"tradesim-lab/internal/domain"
)

// SignalModel generates entry specs for a test window. It is produced by a
// ModelFitter from train data only and must not refit inside the test window.
type SignalModel interface {
	// Signals returns entry specs for the given test bars. Every spec's
	// entry time must fall inside the test range; resolution never
	// observes data before it.
	Signals(test []domain.Bar) []*domain.EntrySpec
}

// ModelFitter fits a signal model on a frozen train window.
// Implementations see train data exclusively; the orchestrator enforces
// the window boundaries.
type ModelFitter interface {
	Fit(ctx context.Context, instrument string, train []domain.Bar) (SignalModel, error)
}

// MomentumFitter is a minimal built-in fitter: it derives a return
// threshold from the train window and enters long on test bars whose
// return exceeds it. It exists so the pipeline and commands have a working
// collaborator; production models plug in through ModelFitter.
type MomentumFitter struct {
	// ThresholdSigma scales the train-window return stddev. Defaults to 1.
	ThresholdSigma float64

	// Risk parameters applied to every generated entry, as fractions of
	// the entry price.
	TakeProfitPct float64
	StopLossPct   float64
	TrailingPct   float64
	TimeStopBars  int
}

type momentumModel struct {
	instrument string
	threshold  float64
	fitter     *MomentumFitter
}

// Fit computes mean and stddev of train-window returns.
func (f *MomentumFitter) Fit(_ context.Context, instrument string, train []domain.Bar) (SignalModel, error) {
	series := domain.BarSeries{Instrument: instrument, Bars: train}
	rets := series.Returns()

	sigma := f.ThresholdSigma
	if sigma == 0 {
		sigma = 1
	}

	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	if len(rets) > 0 {
		mean /= float64(len(rets))
	}
	variance := 0.0
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	if len(rets) > 1 {
		variance /= float64(len(rets) - 1)
	}

	return &momentumModel{
		instrument: instrument,
		threshold:  mean + sigma*math.Sqrt(variance),
		fitter:     f,
	}, nil
}

// Signals enters long at a bar's close when its return over the prior bar
// exceeds the fitted threshold. Only test-window data is consulted.
func (m *momentumModel) Signals(test []domain.Bar) []*domain.EntrySpec {
	var specs []*domain.EntrySpec
	for i := 1; i < len(test); i++ {
		prev := test[i-1].Close
		if prev == 0 {
			continue
		}
		if test[i].Close/prev-1 <= m.threshold {
			continue
		}
		price := test[i].Close
		specs = append(specs, &domain.EntrySpec{
			Instrument:           m.instrument,
			Side:                 domain.SideLong,
			EntryTimeMs:          test[i].TimestampMs,
			EntryPrice:           price,
			TakeProfitPrice:      price * (1 + m.fitter.TakeProfitPct),
			StopLossPrice:        price * (1 - m.fitter.StopLossPct),
			TrailingStopDistance: price * m.fitter.TrailingPct,
			TimeStopBars:         m.fitter.TimeStopBars,
		})
	}
	return specs
}
