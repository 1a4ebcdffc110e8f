// Package backtest turns a stored bar series into engine input: it walks
// the series forward, computing one multi-timeframe snapshot per bar from
// only the history available at that bar, then replays the series through
// a strategy.
package backtest

import (
	"fmt"

	"drummond-lab/internal/aggregator"
	"drummond-lab/internal/classify"
	"drummond-lab/internal/confluence"
	"drummond-lab/internal/domain"
	"drummond-lab/internal/indicator"
	"drummond-lab/internal/pattern"
)

// AnalysisConfig holds the parameters of the walk-forward analysis pass.
type AnalysisConfig struct {
	TradingInterval string
	HigherInterval  string
	MinBars         int // history required before the first snapshot
	PatternLookback int // trading bars a pattern stays relevant

	Indicator  indicator.Config
	Classify   classify.Config
	Pattern    pattern.Config
	Confluence confluence.Config
}

// DefaultAnalysisConfig mirrors the live-pipeline defaults.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		TradingInterval: domain.Interval5Min,
		HigherInterval:  domain.Interval30Min,
		MinBars:         30,
		PatternLookback: 5,
		Indicator:       indicator.DefaultConfig(),
		Classify:        classify.DefaultConfig(),
		Pattern:         pattern.DefaultConfig(),
		Confluence:      confluence.DefaultConfig(),
	}
}

// PrecomputeAnalyses computes one snapshot per bar, keyed by bar timestamp.
// The snapshot at bar i sees bars[0..i] only, so a replay over the result
// has no lookahead. Bars before MinBars of history, and bars whose higher
// timeframe is still warming up, get no entry.
func PrecomputeAnalyses(cfg AnalysisConfig, bars []*domain.Bar) (map[int64]*domain.MultiTimeframeAnalysis, error) {
	if cfg.MinBars <= 0 {
		cfg.MinBars = DefaultAnalysisConfig().MinBars
	}

	classifier := classify.New(cfg.Classify)
	analyzer := confluence.New(cfg.Confluence)

	out := make(map[int64]*domain.MultiTimeframeAnalysis)
	for i := cfg.MinBars - 1; i < len(bars); i++ {
		window := bars[:i+1]

		tradingView, err := snapshotFor(cfg, classifier, cfg.TradingInterval, window)
		if err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}

		higherBars, err := aggregator.ResampleBars(window, cfg.HigherInterval)
		if err != nil {
			return nil, fmt.Errorf("bar %d: resample to %s: %w", i, cfg.HigherInterval, err)
		}
		if len(higherBars) < cfg.Indicator.EnvelopeLength {
			continue
		}
		higherView, err := snapshotFor(cfg, classifier, cfg.HigherInterval, higherBars)
		if err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}

		last := window[len(window)-1]
		analysis, err := analyzer.Analyze(&confluence.Input{
			Symbol:      last.Symbol,
			TimestampMs: last.TimestampMs,
			Higher:      *higherView,
			Trading:     *tradingView,
		})
		if err != nil {
			return nil, fmt.Errorf("bar %d: confluence: %w", i, err)
		}
		out[last.TimestampMs] = analysis
	}
	return out, nil
}

// snapshotFor computes indicators, states and patterns over one timeframe's
// bars and returns the snapshot at the last bar.
func snapshotFor(cfg AnalysisConfig, classifier *classify.Classifier, interval string, bars []*domain.Bar) (*confluence.TimeframeSnapshot, error) {
	intervalMs := domain.IntervalDurationMs[interval]

	refs, err := indicator.ReferenceLine(bars, intervalMs, cfg.Indicator)
	if err != nil {
		return nil, fmt.Errorf("reference line %s: %w", interval, err)
	}
	env, err := indicator.Envelope(bars, cfg.Indicator)
	if err != nil {
		return nil, fmt.Errorf("envelope %s: %w", interval, err)
	}
	states, err := classifier.Classify(bars, refs)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", interval, err)
	}
	patterns, err := pattern.ScanAll(cfg.Pattern, &pattern.Input{
		Bars:      bars,
		Reference: refs,
		Envelope:  env,
	})
	if err != nil {
		return nil, fmt.Errorf("patterns %s: %w", interval, err)
	}

	last := len(bars) - 1
	cutoff := bars[last].TimestampMs - int64(cfg.PatternLookback)*intervalMs
	var recent []*domain.PatternEvent
	for _, ev := range patterns {
		if ev.EndMs >= cutoff {
			recent = append(recent, ev)
		}
	}

	return &confluence.TimeframeSnapshot{
		Interval:  interval,
		State:     states[last],
		Reference: refs[last],
		Envelope:  env[last],
		Patterns:  recent,
		Close:     bars[last].Close,
	}, nil
}
