package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a run report as a Markdown string.
func RenderMarkdown(r *RunReport) string {
	var sb strings.Builder

	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Runs: %d\n\n", len(r.Reports)))

	for _, report := range r.Reports {
		sb.WriteString(fmt.Sprintf("## Run %s\n\n", report.RunID))
		sb.WriteString(fmt.Sprintf("Strategy: `%s`\n\n", report.StrategyID))

		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", report.TotalTrades))
		sb.WriteString(fmt.Sprintf("| Wins / Losses | %d / %d |\n", report.Wins, report.Losses))
		sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", report.WinRate*100))
		sb.WriteString(fmt.Sprintf("| Net Profit | %.2f |\n", report.NetProfit))
		sb.WriteString(fmt.Sprintf("| Profit Factor | %.2f |\n", report.ProfitFactor))
		sb.WriteString(fmt.Sprintf("| Total Return | %.2f%% |\n", report.TotalReturnPct*100))
		sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f (%.2f%%) |\n", report.MaxDrawdown, report.MaxDrawdownPct*100))
		sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", report.MaxConsecutiveLosses))
		sb.WriteString(fmt.Sprintf("| Total Commission | %.2f |\n", report.TotalCommission))
		sb.WriteString("\n")

		sb.WriteString("### Per-Trade Profit Distribution\n\n")
		sb.WriteString("| Stat | Value |\n")
		sb.WriteString("|------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Mean | %.4f |\n", report.ProfitMean))
		sb.WriteString(fmt.Sprintf("| Median | %.4f |\n", report.ProfitMedian))
		sb.WriteString(fmt.Sprintf("| P10 / P90 | %.4f / %.4f |\n", report.ProfitP10, report.ProfitP90))
		sb.WriteString(fmt.Sprintf("| P25 / P75 | %.4f / %.4f |\n", report.ProfitP25, report.ProfitP75))
		sb.WriteString(fmt.Sprintf("| Min / Max | %.4f / %.4f |\n", report.ProfitMin, report.ProfitMax))
		sb.WriteString(fmt.Sprintf("| Stddev | %.4f |\n", report.ProfitStddev))
		sb.WriteString("\n")
	}

	return sb.String()
}
