package reporting

import (
	"fmt"
	"strings"

	"drummond-lab/internal/domain"
	"drummond-lab/internal/metrics"
)

// RenderMetricsCSV renders run metrics as a CSV string, one row per run.
func RenderMetricsCSV(reports []*metrics.Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,strategy_id,total_trades,wins,losses,win_rate,")
	sb.WriteString("net_profit,profit_factor,profit_mean,profit_median,profit_p10,profit_p90,")
	sb.WriteString("max_drawdown,max_drawdown_pct,max_consecutive_losses,total_return_pct\n")

	// Rows
	for _, r := range reports {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%d,%.6f\n",
			r.RunID,
			r.StrategyID,
			r.TotalTrades,
			r.Wins,
			r.Losses,
			r.WinRate,
			r.NetProfit,
			r.ProfitFactor,
			r.ProfitMean,
			r.ProfitMedian,
			r.ProfitP10,
			r.ProfitP90,
			r.MaxDrawdown,
			r.MaxDrawdownPct,
			r.MaxConsecutiveLosses,
			r.TotalReturnPct,
		))
	}

	return sb.String()
}

// RenderTradesCSV renders trades as a CSV string, one row per trade.
func RenderTradesCSV(trades []*domain.Trade) string {
	var sb strings.Builder

	sb.WriteString("run_id,symbol,side,quantity,entry_price,entry_time_ms,")
	sb.WriteString("exit_price,exit_time_ms,gross_profit,net_profit,commission_paid,exit_reason\n")

	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%.6f,%.6f,%d,%.6f,%d,%.6f,%.6f,%.6f,%s\n",
			t.RunID,
			t.Symbol,
			t.Side,
			t.Quantity,
			t.EntryPrice,
			t.EntryTimeMs,
			t.ExitPrice,
			t.ExitTimeMs,
			t.GrossProfit,
			t.NetProfit,
			t.CommissionPaid,
			t.ExitReason,
		))
	}

	return sb.String()
}
