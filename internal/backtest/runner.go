package backtest

import (
	"context"
	"fmt"

	"drummond-lab/internal/domain"
	"drummond-lab/internal/engine"
	"drummond-lab/internal/execution"
	"drummond-lab/internal/strategy"
)

// Runner ties the walk-forward analysis pass to an engine replay.
type Runner struct {
	analysisCfg AnalysisConfig
	engine      *engine.Engine
}

// NewRunner creates a Runner.
func NewRunner(analysisCfg AnalysisConfig, engineCfg engine.Config, execCfg execution.Config) *Runner {
	return &Runner{
		analysisCfg: analysisCfg,
		engine:      engine.New(engineCfg, execution.New(execCfg)),
	}
}

// Run precomputes per-bar analyses for the series and replays it through
// the strategy.
func (r *Runner) Run(ctx context.Context, strat strategy.Strategy, bars []*domain.Bar) (*domain.BacktestResult, error) {
	analyses, err := PrecomputeAnalyses(r.analysisCfg, bars)
	if err != nil {
		return nil, fmt.Errorf("precompute analyses: %w", err)
	}
	return r.engine.Run(ctx, strat, engine.Input{Bars: bars, Analyses: analyses})
}
