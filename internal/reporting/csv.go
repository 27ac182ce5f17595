package reporting

import (
	"fmt"
	"strings"

	"tradesim-lab/internal/domain"
)

// RenderTradesCSV renders resolved trades as a flat CSV string.
func RenderTradesCSV(trades []*domain.Trade) string {
	var sb strings.Builder

	sb.WriteString("trade_id,run_id,instrument,side,entry_time_ms,entry_price,")
	sb.WriteString("exit_time_ms,exit_price,exit_reason,bars_held,realized_pnl\n")

	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%.6f,%d,%.6f,%s,%d,%.6f\n",
			t.TradeID,
			t.RunID,
			t.Instrument,
			t.Side,
			t.EntryTimeMs,
			t.EntryPrice,
			t.ExitTimeMs,
			t.ExitPrice,
			t.ExitReason,
			t.BarsHeld,
			t.RealizedPnL,
		))
	}

	return sb.String()
}

// RenderKPIsCSV renders per-run KPI rows as CSV. Sentinel values print as
// +Inf and NaN, which is how fmt renders them.
func RenderKPIsCSV(rows []KPIRow) string {
	var sb strings.Builder

	sb.WriteString("run_id,total_trades,no_data_trades,win_rate,net_pnl,")
	sb.WriteString("profit_factor,max_drawdown,sharpe\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f\n",
			r.RunID,
			r.TotalTrades,
			r.NoDataTrades,
			r.WinRate,
			r.NetPnL,
			r.ProfitFactor,
			r.MaxDrawdown,
			r.Sharpe,
		))
	}

	return sb.String()
}

// RenderScoresCSV renders candidate scores as CSV.
func RenderScoresCSV(rows []ScoreRow) string {
	var sb strings.Builder

	sb.WriteString("instrument,cycle,expected_value,cvar95,prob_loss,composite_score\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%.6f,%.6f,%.6f,%.6f\n",
			r.Instrument,
			r.Cycle,
			r.ExpectedValue,
			r.CVaR95,
			r.ProbLoss,
			r.CompositeScore,
		))
	}

	return sb.String()
}
