package ledger

import (
	"math"

	"tradesim-lab/internal/domain"
)

// KPIs computes aggregate figures over the accumulated trades.
// Degenerate denominators resolve to documented sentinels, never errors:
// profit factor is +Inf with winners and no losers, 0 otherwise; the
// Sharpe-like ratio is NaN under 2 resolved trades.
func (l *Ledger) KPIs() *domain.KPIReport {
	resolved := l.resolvedTradesByExit()
	n := len(resolved)

	report := &domain.KPIReport{
		RunID:        l.runID,
		TotalTrades:  n,
		NoDataTrades: l.noData,
	}
	if n == 0 {
		report.Sharpe = math.NaN()
		return report
	}

	pnls := make([]float64, n)
	for i, t := range resolved {
		pnls[i] = t.RealizedPnL
		report.NetPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			report.Wins++
			report.GrossProfit += t.RealizedPnL
		} else {
			report.Losses++
			report.GrossLoss += -t.RealizedPnL
		}
	}

	if report.Wins+report.Losses > 0 {
		report.WinRate = float64(report.Wins) / float64(report.Wins+report.Losses)
	}
	report.ProfitFactor = profitFactor(report.GrossProfit, report.GrossLoss)
	report.MaxDrawdown = maxDrawdown(pnls)
	report.Sharpe = sharpeRatio(pnls, l.PeriodsPerYear)

	return report
}

// profitFactor returns gross_profit / gross_loss with sentinel values:
// +Inf when there is profit and no loss, 0 when there is no profit.
func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}

// maxDrawdown computes the worst peak-to-trough on the cumulative PnL curve.
// PnLs must be in chronological order.
func maxDrawdown(pnls []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDD := 0.0
	for _, p := range pnls {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// sharpeRatio computes mean/stdev of per-trade PnL annualized by
// sqrt(periodsPerYear). Sample stddev (n-1 denominator). NaN under 2 trades
// or when the stddev is zero.
func sharpeRatio(pnls []float64, periodsPerYear float64) float64 {
	n := len(pnls)
	if n < 2 {
		return math.NaN()
	}

	mean := 0.0
	for _, p := range pnls {
		mean += p
	}
	mean /= float64(n)

	sumSq := 0.0
	for _, p := range pnls {
		diff := p - mean
		sumSq += diff * diff
	}
	stdev := math.Sqrt(sumSq / float64(n-1))
	if stdev == 0 {
		return math.NaN()
	}
	return mean / stdev * math.Sqrt(periodsPerYear)
}
