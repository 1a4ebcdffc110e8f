package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"drummond-lab/internal/storage"
)

// ErrNoRuns is returned when no stored runs match the request.
var ErrNoRuns = errors.New("no runs available for aggregation")

// Aggregator computes performance reports from stored backtest results.
type Aggregator struct {
	resultStore storage.BacktestResultStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(resultStore storage.BacktestResultStore) *Aggregator {
	return &Aggregator{resultStore: resultStore}
}

// ComputeForRun loads a stored run and computes its report.
func (a *Aggregator) ComputeForRun(ctx context.Context, runID string) (*Report, error) {
	result, err := a.resultStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return ComputeReport(result), nil
}

// ComputeForStrategy computes one report per stored run of a strategy,
// newest run first. Returns ErrNoRuns if the strategy has no stored runs.
func (a *Aggregator) ComputeForStrategy(ctx context.Context, strategyID string) ([]*Report, error) {
	results, err := a.resultStore.GetByStrategyID(ctx, strategyID)
	if err != nil {
		return nil, fmt.Errorf("load runs for %s: %w", strategyID, err)
	}
	if len(results) == 0 {
		return nil, ErrNoRuns
	}

	reports := make([]*Report, 0, len(results))
	for _, r := range results {
		reports = append(reports, ComputeReport(r))
	}
	return reports, nil
}

// RankStrategies computes the mean net profit per strategy across its runs
// and returns strategy IDs ordered best first.
func (a *Aggregator) RankStrategies(ctx context.Context, strategyIDs []string) ([]string, error) {
	type ranked struct {
		id   string
		mean float64
	}

	var entries []ranked
	for _, id := range strategyIDs {
		reports, err := a.ComputeForStrategy(ctx, id)
		if errors.Is(err, ErrNoRuns) {
			continue
		}
		if err != nil {
			return nil, err
		}

		sum := 0.0
		for _, r := range reports {
			sum += r.NetProfit
		}
		entries = append(entries, ranked{id: id, mean: sum / float64(len(reports))})
	}

	if len(entries) == 0 {
		return nil, ErrNoRuns
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].mean != entries[j].mean {
			return entries[i].mean > entries[j].mean
		}
		return entries[i].id < entries[j].id
	})

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}
