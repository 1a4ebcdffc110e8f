package metrics

import (
	"math"
	"sort"

	"drummond-lab/internal/domain"
)

// Report holds the performance metrics of one backtest run.
type Report struct {
	RunID      string
	StrategyID string

	// Counts
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64

	// Profit
	NetProfit    float64
	GrossProfit  float64 // sum of winning trades' net profit
	GrossLoss    float64 // absolute sum of losing trades' net profit
	ProfitFactor float64 // GrossProfit / GrossLoss, 0 when no losses

	// Per-trade net profit distribution
	ProfitMean   float64
	ProfitMedian float64
	ProfitP10    float64
	ProfitP25    float64
	ProfitP75    float64
	ProfitP90    float64
	ProfitMin    float64
	ProfitMax    float64
	ProfitStddev float64

	// Equity curve (order-dependent)
	MaxDrawdown          float64 // worst peak-to-trough equity drop
	MaxDrawdownPct       float64 // MaxDrawdown relative to the peak
	MaxConsecutiveLosses int

	TotalCommission float64
	TotalReturnPct  float64 // (EndingEquity - StartingCash) / StartingCash
}

// ComputeReport calculates all metrics for a finished run.
// Trades are sorted by entry time ASC, symbol ASC before computing
// order-dependent metrics.
func ComputeReport(result *domain.BacktestResult) *Report {
	report := &Report{
		RunID:      result.RunID,
		StrategyID: result.StrategyID,
	}
	if result.StartingCash > 0 {
		report.TotalReturnPct = (result.EndingEquity - result.StartingCash) / result.StartingCash
	}
	report.MaxDrawdown, report.MaxDrawdownPct = computeMaxDrawdown(result.EquityCurve)

	n := len(result.Trades)
	if n == 0 {
		return report
	}

	sorted := make([]*domain.Trade, n)
	copy(sorted, result.Trades)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EntryTimeMs != sorted[j].EntryTimeMs {
			return sorted[i].EntryTimeMs < sorted[j].EntryTimeMs
		}
		return sorted[i].Symbol < sorted[j].Symbol
	})

	profits := make([]float64, n)
	for i, t := range sorted {
		profits[i] = t.NetProfit
		report.NetProfit += t.NetProfit
		report.TotalCommission += t.CommissionPaid
		if t.NetProfit > 0 {
			report.Wins++
			report.GrossProfit += t.NetProfit
		} else {
			report.Losses++
			report.GrossLoss += -t.NetProfit
		}
	}

	report.TotalTrades = n
	report.WinRate = float64(report.Wins) / float64(n)
	if report.GrossLoss > 0 {
		report.ProfitFactor = report.GrossProfit / report.GrossLoss
	}

	sortedProfits := make([]float64, n)
	copy(sortedProfits, profits)
	sort.Float64s(sortedProfits)

	mean := computeMean(profits)
	report.ProfitMean = mean
	report.ProfitMedian = computePercentile(sortedProfits, 0.50)
	report.ProfitP10 = computePercentile(sortedProfits, 0.10)
	report.ProfitP25 = computePercentile(sortedProfits, 0.25)
	report.ProfitP75 = computePercentile(sortedProfits, 0.75)
	report.ProfitP90 = computePercentile(sortedProfits, 0.90)
	report.ProfitMin = sortedProfits[0]
	report.ProfitMax = sortedProfits[n-1]
	report.ProfitStddev = computeStddev(profits, mean)
	report.MaxConsecutiveLosses = computeMaxConsecutiveLosses(sorted)

	return report
}

// computeMean calculates arithmetic mean of profits.
func computeMean(profits []float64) float64 {
	if len(profits) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range profits {
		sum += p
	}
	return sum / float64(len(profits))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(profits []float64, mean float64) float64 {
	n := len(profits)
	if n < 2 {
		return 0 // Need at least 2 samples for sample stddev
	}
	sumSq := 0.0
	for _, p := range profits {
		diff := p - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates the worst peak-to-trough drop on the
// equity curve, absolute and relative to the peak.
// Snapshots must be in chronological order.
func computeMaxDrawdown(curve []*domain.PortfolioSnapshot) (float64, float64) {
	if len(curve) == 0 {
		return 0, 0
	}

	peak := curve[0].Equity
	maxDrawdown := 0.0
	maxDrawdownPct := 0.0

	for _, snap := range curve {
		if snap.Equity > peak {
			peak = snap.Equity
		}
		drawdown := peak - snap.Equity
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
			if peak > 0 {
				maxDrawdownPct = drawdown / peak
			}
		}
	}
	return maxDrawdown, maxDrawdownPct
}

// computeMaxConsecutiveLosses finds the longest streak of net profit <= 0.
// Trades must be in chronological order.
func computeMaxConsecutiveLosses(trades []*domain.Trade) int {
	maxStreak := 0
	currentStreak := 0

	for _, t := range trades {
		if t.NetProfit <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
