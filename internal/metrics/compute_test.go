package metrics

import (
	"math"
	"testing"

	"drummond-lab/internal/domain"
)

func tradeWithProfit(symbol string, entryTimeMs int64, netProfit float64) *domain.Trade {
	return &domain.Trade{
		RunID:          "run-1",
		Symbol:         symbol,
		Side:           domain.SideLong,
		Quantity:       1,
		EntryTimeMs:    entryTimeMs,
		ExitTimeMs:     entryTimeMs + 1000,
		GrossProfit:    netProfit,
		NetProfit:      netProfit,
		CommissionPaid: 0.5,
	}
}

func TestComputeReport_Counts(t *testing.T) {
	result := &domain.BacktestResult{
		RunID:        "run-1",
		StrategyID:   "S1",
		StartingCash: 10_000,
		EndingEquity: 10_100,
		Trades: []*domain.Trade{
			tradeWithProfit("AAPL", 1000, 50),
			tradeWithProfit("AAPL", 2000, -20),
			tradeWithProfit("AAPL", 3000, 70),
		},
	}

	report := ComputeReport(result)

	if report.TotalTrades != 3 || report.Wins != 2 || report.Losses != 1 {
		t.Fatalf("counts: got %d/%d/%d", report.TotalTrades, report.Wins, report.Losses)
	}
	if math.Abs(report.WinRate-2.0/3.0) > 1e-9 {
		t.Errorf("win rate: got %f", report.WinRate)
	}
	if math.Abs(report.NetProfit-100) > 1e-9 {
		t.Errorf("net profit: got %f", report.NetProfit)
	}
	if math.Abs(report.GrossProfit-120) > 1e-9 || math.Abs(report.GrossLoss-20) > 1e-9 {
		t.Errorf("gross: got %f / %f", report.GrossProfit, report.GrossLoss)
	}
	if math.Abs(report.ProfitFactor-6.0) > 1e-9 {
		t.Errorf("profit factor: got %f", report.ProfitFactor)
	}
	if math.Abs(report.TotalCommission-1.5) > 1e-9 {
		t.Errorf("commission: got %f", report.TotalCommission)
	}
	if math.Abs(report.TotalReturnPct-0.01) > 1e-9 {
		t.Errorf("total return: got %f", report.TotalReturnPct)
	}
}

func TestComputeReport_ProfitFactorNoLosses(t *testing.T) {
	result := &domain.BacktestResult{
		RunID:      "run-1",
		StrategyID: "S1",
		Trades: []*domain.Trade{
			tradeWithProfit("AAPL", 1000, 50),
		},
	}

	report := ComputeReport(result)
	if report.ProfitFactor != 0 {
		t.Errorf("profit factor with no losses should be 0, got %f", report.ProfitFactor)
	}
}

func TestComputeReport_Distribution(t *testing.T) {
	result := &domain.BacktestResult{
		RunID:      "run-1",
		StrategyID: "S1",
		Trades: []*domain.Trade{
			tradeWithProfit("AAPL", 1000, 10),
			tradeWithProfit("AAPL", 2000, 20),
			tradeWithProfit("AAPL", 3000, 30),
			tradeWithProfit("AAPL", 4000, 40),
			tradeWithProfit("AAPL", 5000, 50),
		},
	}

	report := ComputeReport(result)

	if math.Abs(report.ProfitMean-30) > 1e-9 {
		t.Errorf("mean: got %f", report.ProfitMean)
	}
	if math.Abs(report.ProfitMedian-30) > 1e-9 {
		t.Errorf("median: got %f", report.ProfitMedian)
	}
	// p25 over [10..50]: idx = 0.25*4 = 1.0 exactly, so value 20.
	if math.Abs(report.ProfitP25-20) > 1e-9 {
		t.Errorf("p25: got %f", report.ProfitP25)
	}
	// p10: idx = 0.4, interpolates between 10 and 20.
	if math.Abs(report.ProfitP10-14) > 1e-9 {
		t.Errorf("p10: got %f", report.ProfitP10)
	}
	if report.ProfitMin != 10 || report.ProfitMax != 50 {
		t.Errorf("min/max: got %f / %f", report.ProfitMin, report.ProfitMax)
	}
	// Sample stddev of 10..50 step 10 is sqrt(1000/4) = sqrt(250).
	if math.Abs(report.ProfitStddev-math.Sqrt(250)) > 1e-9 {
		t.Errorf("stddev: got %f", report.ProfitStddev)
	}
}

func TestComputeReport_MaxConsecutiveLosses(t *testing.T) {
	// Entry times out of order to verify chronological sorting first.
	result := &domain.BacktestResult{
		RunID:      "run-1",
		StrategyID: "S1",
		Trades: []*domain.Trade{
			tradeWithProfit("AAPL", 5000, -5),
			tradeWithProfit("AAPL", 1000, 10),
			tradeWithProfit("AAPL", 2000, -5),
			tradeWithProfit("AAPL", 3000, -5),
			tradeWithProfit("AAPL", 4000, 10),
		},
	}

	report := ComputeReport(result)
	if report.MaxConsecutiveLosses != 2 {
		t.Errorf("max consecutive losses: got %d, want 2", report.MaxConsecutiveLosses)
	}
}

func TestComputeReport_MaxDrawdown(t *testing.T) {
	result := &domain.BacktestResult{
		RunID:        "run-1",
		StrategyID:   "S1",
		StartingCash: 1000,
		EndingEquity: 1150,
		EquityCurve: []*domain.PortfolioSnapshot{
			{TimestampMs: 1, Equity: 1000},
			{TimestampMs: 2, Equity: 1200},
			{TimestampMs: 3, Equity: 900},
			{TimestampMs: 4, Equity: 1100},
			{TimestampMs: 5, Equity: 1150},
		},
	}

	report := ComputeReport(result)
	if math.Abs(report.MaxDrawdown-300) > 1e-9 {
		t.Errorf("max drawdown: got %f, want 300", report.MaxDrawdown)
	}
	if math.Abs(report.MaxDrawdownPct-0.25) > 1e-9 {
		t.Errorf("max drawdown pct: got %f, want 0.25", report.MaxDrawdownPct)
	}
}

func TestComputeReport_NoTrades(t *testing.T) {
	report := ComputeReport(&domain.BacktestResult{RunID: "run-1", StrategyID: "S1"})
	if report.TotalTrades != 0 || report.WinRate != 0 || report.ProfitFactor != 0 {
		t.Errorf("empty run should produce zero metrics: %+v", report)
	}
}
