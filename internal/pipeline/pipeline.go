// Package pipeline wires the live flow together: ticks are aggregated
// into bars, bars are stored and published, and each flush drives a fresh
// multi-timeframe analysis that lands in the cache.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"drummond-lab/internal/aggregator"
	"drummond-lab/internal/cache"
	"drummond-lab/internal/classify"
	"drummond-lab/internal/confluence"
	"drummond-lab/internal/domain"
	"drummond-lab/internal/indicator"
	"drummond-lab/internal/observability"
	"drummond-lab/internal/pattern"
	"drummond-lab/internal/storage"
)

// ErrInsufficientHistory is returned when a symbol has too few bars for
// a full analysis pass.
var ErrInsufficientHistory = errors.New("pipeline: insufficient bar history")

// BarSink receives flushed bars, typically a Kafka publisher.
type BarSink interface {
	Publish(ctx context.Context, bars []*domain.Bar) error
}

// Config holds pipeline parameters. BaseInterval is the interval ticks
// are aggregated and stored at; trading and higher series are resampled
// from it.
type Config struct {
	BaseInterval    string
	TradingInterval string
	HigherInterval  string
	MinTradingBars  int // bars required before the first analysis
	PatternLookback int // trading bars a pattern stays relevant
	CacheTTL        time.Duration

	Indicator  indicator.Config
	Classify   classify.Config
	Pattern    pattern.Config
	Confluence confluence.Config
}

// DefaultConfig returns the standard live-pipeline parameters.
func DefaultConfig() Config {
	return Config{
		BaseInterval:    domain.Interval1Min,
		TradingInterval: domain.Interval5Min,
		HigherInterval:  domain.Interval30Min,
		MinTradingBars:  30,
		PatternLookback: 5,
		CacheTTL:        10 * time.Minute,
		Indicator:       indicator.DefaultConfig(),
		Classify:        classify.DefaultConfig(),
		Pattern:         pattern.DefaultConfig(),
		Confluence:      confluence.DefaultConfig(),
	}
}

// Pipeline drives the tick-to-analysis flow.
type Pipeline struct {
	cfg        Config
	agg        *aggregator.Aggregator
	barStore   storage.BarStore
	stateStore storage.StateStore
	cache      cache.Cache
	sink       BarSink // may be nil
	classifier *classify.Classifier
	analyzer   *confluence.Analyzer
	log        zerolog.Logger
}

// New creates a Pipeline. The sink may be nil when no downstream
// publishing is configured.
func New(cfg Config, agg *aggregator.Aggregator, barStore storage.BarStore, stateStore storage.StateStore, c cache.Cache, sink BarSink, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		agg:        agg,
		barStore:   barStore,
		stateStore: stateStore,
		cache:      c,
		sink:       sink,
		classifier: classify.New(cfg.Classify),
		analyzer:   confluence.New(cfg.Confluence),
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// HandleTick feeds one tick into the aggregator.
func (p *Pipeline) HandleTick(tick *domain.Tick) error {
	if err := p.agg.AddTick(tick); err != nil {
		return err
	}
	observability.RecordTick(tick.Symbol)
	return nil
}

// Flush drains completed buckets strictly before cutoffMs, persists and
// publishes them, then re-analyzes every symbol that produced a bar.
// Returns the fresh analyses keyed by symbol.
func (p *Pipeline) Flush(ctx context.Context, cutoffMs int64) (map[string]*domain.MultiTimeframeAnalysis, error) {
	start := time.Now()

	bars := p.agg.FlushBefore(cutoffMs)
	if len(bars) == 0 {
		return nil, nil
	}

	if err := p.barStore.InsertBulk(ctx, bars); err != nil {
		observability.RecordPipelineRun("flush", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("store flushed bars: %w", err)
	}

	stats := p.agg.GetStats()
	observability.RecordBarsFlushed(p.cfg.BaseInterval, len(bars), stats.PendingBars)
	observability.DefaultMetrics.LastSuccessfulFlush.Set(float64(time.Now().Unix()))

	if p.sink != nil {
		if err := p.sink.Publish(ctx, bars); err != nil {
			// Publishing is best effort; storage already succeeded.
			observability.DefaultMetrics.PublishErrors.Inc()
			p.log.Warn().Err(err).Int("bars", len(bars)).Msg("bar publish failed")
		} else {
			observability.DefaultMetrics.BarsPublished.Add(float64(len(bars)))
		}
	}

	symbols := make(map[string]struct{})
	for _, b := range bars {
		symbols[b.Symbol] = struct{}{}
	}

	analyses := make(map[string]*domain.MultiTimeframeAnalysis)
	for symbol := range symbols {
		analysis, err := p.AnalyzeSymbol(ctx, symbol)
		if errors.Is(err, ErrInsufficientHistory) {
			p.log.Debug().Str("symbol", symbol).Msg("not enough history yet")
			continue
		}
		if err != nil {
			observability.RecordPipelineRun("analyze", "error", time.Since(start).Seconds())
			return nil, fmt.Errorf("analyze %s: %w", symbol, err)
		}
		analyses[symbol] = analysis
	}

	observability.RecordPipelineRun("flush", "ok", time.Since(start).Seconds())
	return analyses, nil
}

// AnalyzeSymbol runs the full analysis chain for one symbol from stored
// trading-interval bars: indicators, classification, patterns, a resampled
// higher timeframe and the fused confluence snapshot. New state records
// are persisted and the snapshot is cached.
func (p *Pipeline) AnalyzeSymbol(ctx context.Context, symbol string) (*domain.MultiTimeframeAnalysis, error) {
	base, err := p.barStore.GetBySymbol(ctx, symbol, p.cfg.BaseInterval)
	if err != nil {
		return nil, fmt.Errorf("load base bars: %w", err)
	}

	trading := base
	if p.cfg.BaseInterval != p.cfg.TradingInterval {
		trading, err = aggregator.ResampleBars(base, p.cfg.TradingInterval)
		if err != nil {
			return nil, fmt.Errorf("resample to %s: %w", p.cfg.TradingInterval, err)
		}
	}
	if len(trading) < p.cfg.MinTradingBars {
		return nil, ErrInsufficientHistory
	}

	tradingView, err := p.analyzeTimeframe(ctx, symbol, p.cfg.TradingInterval, trading)
	if err != nil {
		return nil, err
	}

	higherBars, err := aggregator.ResampleBars(trading, p.cfg.HigherInterval)
	if err != nil {
		return nil, fmt.Errorf("resample to %s: %w", p.cfg.HigherInterval, err)
	}
	if len(higherBars) < p.cfg.Indicator.EnvelopeLength {
		return nil, ErrInsufficientHistory
	}

	higherView, err := p.analyzeTimeframe(ctx, symbol, p.cfg.HigherInterval, higherBars)
	if err != nil {
		return nil, err
	}

	last := trading[len(trading)-1]
	analysis, err := p.analyzer.Analyze(&confluence.Input{
		Symbol:      symbol,
		TimestampMs: last.TimestampMs,
		Higher:      *higherView,
		Trading:     *tradingView,
	})
	if err != nil {
		return nil, fmt.Errorf("confluence: %w", err)
	}

	observability.DefaultMetrics.AnalysesComputed.Inc()
	observability.DefaultMetrics.LastSuccessfulAnalysis.Set(float64(time.Now().Unix()))

	if p.cache != nil {
		key := analysisKey(symbol, p.cfg.TradingInterval)
		if err := p.cache.Set(ctx, key, analysis, p.cfg.CacheTTL); err != nil {
			p.log.Warn().Err(err).Str("symbol", symbol).Msg("analysis cache write failed")
		}
	}

	return analysis, nil
}

// LatestAnalysis returns the cached snapshot for a symbol, if present.
func (p *Pipeline) LatestAnalysis(ctx context.Context, symbol string) (*domain.MultiTimeframeAnalysis, error) {
	if p.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	var analysis domain.MultiTimeframeAnalysis
	if err := p.cache.Get(ctx, analysisKey(symbol, p.cfg.TradingInterval), &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// analyzeTimeframe computes indicators, states and patterns for one
// timeframe and returns its latest snapshot.
func (p *Pipeline) analyzeTimeframe(ctx context.Context, symbol, interval string, bars []*domain.Bar) (*confluence.TimeframeSnapshot, error) {
	intervalMs := domain.IntervalDurationMs[interval]

	refs, err := indicator.ReferenceLine(bars, intervalMs, p.cfg.Indicator)
	if err != nil {
		return nil, fmt.Errorf("reference line %s: %w", interval, err)
	}
	env, err := indicator.Envelope(bars, p.cfg.Indicator)
	if err != nil {
		return nil, fmt.Errorf("envelope %s: %w", interval, err)
	}

	states, err := p.classifier.Classify(bars, refs)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", interval, err)
	}
	if err := p.persistNewStates(ctx, symbol, interval, states); err != nil {
		return nil, err
	}

	patterns, err := pattern.ScanAll(p.cfg.Pattern, &pattern.Input{
		Bars:      bars,
		Reference: refs,
		Envelope:  env,
	})
	if err != nil {
		return nil, fmt.Errorf("patterns %s: %w", interval, err)
	}

	last := len(bars) - 1
	state := states[last]
	observability.RecordStateClassified(string(state.Regime))
	for _, ev := range patterns {
		observability.RecordPattern(string(ev.Kind))
	}

	return &confluence.TimeframeSnapshot{
		Interval:  interval,
		State:     state,
		Reference: refs[last],
		Envelope:  env[last],
		Patterns:  p.recentPatterns(patterns, bars[last].TimestampMs, intervalMs),
		Close:     bars[last].Close,
	}, nil
}

// persistNewStates stores only the records newer than the latest one
// already persisted, so repeated analysis passes stay idempotent.
func (p *Pipeline) persistNewStates(ctx context.Context, symbol, interval string, states []*domain.MarketStateRecord) error {
	if p.stateStore == nil || len(states) == 0 {
		return nil
	}

	sinceMs := int64(-1)
	latest, err := p.stateStore.GetLatest(ctx, symbol, interval)
	switch {
	case err == nil:
		sinceMs = latest.TimestampMs
	case errors.Is(err, storage.ErrNotFound):
		// First pass for this symbol/interval.
	default:
		return fmt.Errorf("latest state %s/%s: %w", symbol, interval, err)
	}

	var fresh []*domain.MarketStateRecord
	for _, st := range states {
		if st.TimestampMs > sinceMs {
			fresh = append(fresh, st)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := p.stateStore.InsertBulk(ctx, fresh); err != nil {
		return fmt.Errorf("store states %s/%s: %w", symbol, interval, err)
	}
	return nil
}

// recentPatterns keeps events that ended within the lookback window.
func (p *Pipeline) recentPatterns(events []*domain.PatternEvent, lastMs, intervalMs int64) []*domain.PatternEvent {
	cutoff := lastMs - int64(p.cfg.PatternLookback)*intervalMs
	var recent []*domain.PatternEvent
	for _, ev := range events {
		if ev.EndMs >= cutoff {
			recent = append(recent, ev)
		}
	}
	return recent
}

func analysisKey(symbol, interval string) string {
	return fmt.Sprintf("analysis:%s:%s", symbol, interval)
}
