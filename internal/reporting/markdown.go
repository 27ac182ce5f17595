package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Evaluation Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Runs: %d | Instruments: %d\n\n", r.RunCount, r.InstrumentCount))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", r.DataSummary.TotalTrades))
	sb.WriteString(fmt.Sprintf("| NoData Trades | %d |\n", r.DataSummary.NoDataTrades))
	sb.WriteString(fmt.Sprintf("| Date Range Start (ms) | %d |\n", r.DataSummary.DateRangeStartMs))
	sb.WriteString(fmt.Sprintf("| Date Range End (ms) | %d |\n", r.DataSummary.DateRangeEndMs))
	sb.WriteString("\n")

	// KPIs
	sb.WriteString("## Run KPIs\n\n")
	if len(r.KPIRows) > 0 {
		sb.WriteString("| Run | Trades | NoData | WinRate | NetPnL | ProfitFactor | MaxDD | Sharpe |\n")
		sb.WriteString("|-----|--------|--------|---------|--------|--------------|-------|--------|\n")
		for _, k := range r.KPIRows {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
				k.RunID, k.TotalTrades, k.NoDataTrades, k.WinRate,
				k.NetPnL, k.ProfitFactor, k.MaxDrawdown, k.Sharpe))
		}
	} else {
		sb.WriteString("No KPI reports available.\n")
	}
	sb.WriteString("\n")

	// Candidate Scores
	sb.WriteString("## Candidate Scores\n\n")
	if len(r.Scores) > 0 {
		sb.WriteString("| Instrument | Cycle | EV | CVaR95 | ProbLoss | Composite |\n")
		sb.WriteString("|------------|-------|----|--------|----------|-----------|\n")
		for _, s := range r.Scores {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %.4f | %.4f | %.4f |\n",
				s.Instrument, s.Cycle,
				s.ExpectedValue, s.CVaR95, s.ProbLoss, s.CompositeScore))
		}
	} else {
		sb.WriteString("No candidate scores available.\n")
	}
	sb.WriteString("\n")

	// Gate Membership
	sb.WriteString("## Gate Membership\n\n")
	if r.Gate != nil {
		sb.WriteString(fmt.Sprintf("Cycle %d\n\n", r.Gate.Cycle))
		sb.WriteString(fmt.Sprintf("- Active: %s\n", joinOrDash(r.Gate.Active)))
		sb.WriteString(fmt.Sprintf("- Added: %s\n", joinOrDash(r.Gate.Added)))
		sb.WriteString(fmt.Sprintf("- Dropped: %s\n", joinOrDash(r.Gate.Dropped)))
	} else {
		sb.WriteString("No gate selection ran.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
