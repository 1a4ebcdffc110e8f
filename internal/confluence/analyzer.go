// Package confluence fuses higher-timeframe and trading-timeframe
// classification into one analysis snapshot per trading-timeframe bar.
package confluence

import (
	"errors"

	"drummond-lab/internal/domain"
)

// Analyzer errors.
var (
	ErrMissingState = errors.New("both timeframe states are required")
	ErrMissingClose = errors.New("trading-timeframe close price is required")
)

// Config holds fusion thresholds. Nil fields fall back to the documented
// defaults; a non-nil zero is honored (a PatternBoost of 0 disables the
// boost, an ActWithPatterns of 0 acts on any permitted signal).
type Config struct {
	// ZoneTolerancePct is the clustering tolerance as a fraction of price.
	ZoneTolerancePct *float64

	// ActWithPatterns is the minimum signal strength to recommend an entry
	// when both timeframes show compatible patterns.
	ActWithPatterns *float64

	// ActWithoutPatterns is the minimum signal strength to recommend an
	// entry on alignment alone.
	ActWithoutPatterns *float64

	// PatternBoost is added to the alignment score when pattern confluence
	// is present.
	PatternBoost *float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		ZoneTolerancePct:   f64(0.0025),
		ActWithPatterns:    f64(0.70),
		ActWithoutPatterns: f64(0.85),
		PatternBoost:       f64(0.15),
	}
}

func f64(v float64) *float64 { return &v }

// thresholds is Config with every optional resolved.
type thresholds struct {
	zoneTolerancePct   float64
	actWithPatterns    float64
	actWithoutPatterns float64
	patternBoost       float64
}

// TimeframeSnapshot is one timeframe's view at a given wall-clock bar.
type TimeframeSnapshot struct {
	Interval  string
	State     *domain.MarketStateRecord
	Reference *domain.ReferenceLineSample
	Envelope  *domain.EnvelopeSample
	Patterns  []*domain.PatternEvent
	Close     float64
}

// Input pairs the higher and trading timeframe snapshots for one bar.
type Input struct {
	Symbol      string
	TimestampMs int64
	Higher      TimeframeSnapshot
	Trading     TimeframeSnapshot
}

// Analyzer fuses two timeframes into MultiTimeframeAnalysis snapshots.
type Analyzer struct {
	cfg thresholds
}

// New creates an Analyzer. Nil config fields fall back to defaults.
func New(cfg Config) *Analyzer {
	def := DefaultConfig()
	return &Analyzer{cfg: thresholds{
		zoneTolerancePct:   orDefault(cfg.ZoneTolerancePct, *def.ZoneTolerancePct),
		actWithPatterns:    orDefault(cfg.ActWithPatterns, *def.ActWithPatterns),
		actWithoutPatterns: orDefault(cfg.ActWithoutPatterns, *def.ActWithoutPatterns),
		patternBoost:       orDefault(cfg.PatternBoost, *def.PatternBoost),
	}}
}

func orDefault(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// Analyze builds one fused snapshot. The recommended action is never derived
// from a single source: it requires the alignment score, the trade-permitted
// flag and (for the lower threshold) pattern confluence together.
func (a *Analyzer) Analyze(in *Input) (*domain.MultiTimeframeAnalysis, error) {
	if in.Higher.State == nil || in.Trading.State == nil {
		return nil, ErrMissingState
	}
	if in.Trading.Close <= 0 {
		return nil, ErrMissingClose
	}

	alignment := alignTimeframes(in.Higher, in.Trading)
	overlay := buildOverlay(in.Higher.Reference, in.Trading.Reference)
	zones := a.clusterZones(in)
	patternConfluence := hasPatternConfluence(in.Higher.Patterns, in.Trading.Patterns)

	strength := alignment.Score
	if patternConfluence {
		strength += a.cfg.patternBoost
		if strength > 1 {
			strength = 1
		}
	}

	analysis := &domain.MultiTimeframeAnalysis{
		Symbol:            in.Symbol,
		TimestampMs:       in.TimestampMs,
		Alignment:         alignment,
		Overlay:           overlay,
		Zones:             zones,
		HigherPatterns:    in.Higher.Patterns,
		TradingPatterns:   in.Trading.Patterns,
		PatternConfluence: patternConfluence,
		SignalStrength:    strength,
		Risk:              riskTier(strength),
		Action:            a.recommend(alignment, strength, patternConfluence),
	}
	return analysis, nil
}

// alignTimeframes scores regime/direction agreement between timeframes.
// Trade is not permitted when the two trends actively conflict.
func alignTimeframes(higher, trading TimeframeSnapshot) domain.Alignment {
	h, l := higher.State, trading.State

	conflict := h.Direction != domain.TrendFlat &&
		l.Direction != domain.TrendFlat &&
		h.Direction != l.Direction

	score := 0.0
	switch {
	case conflict:
		score = 0
	case h.Direction == l.Direction && h.Direction != domain.TrendFlat:
		score = 0.6
	default:
		// one side undetermined or flat
		score = 0.3
	}

	if !conflict {
		if isDirectional(h.Regime) && isDirectional(l.Regime) {
			score += 0.2
		}
		score += 0.2 * (h.Confidence + l.Confidence) / 2
	}
	if score > 1 {
		score = 1
	}

	return domain.Alignment{
		Higher: domain.TimeframeState{
			Interval:    higher.Interval,
			Regime:      h.Regime,
			Direction:   h.Direction,
			Confidence:  h.Confidence,
			BarsInState: h.BarsInState,
		},
		Trading: domain.TimeframeState{
			Interval:    trading.Interval,
			Regime:      l.Regime,
			Direction:   l.Direction,
			Confidence:  l.Confidence,
			BarsInState: l.BarsInState,
		},
		Score:          score,
		TradePermitted: !conflict,
	}
}

// isDirectional reports whether a regime carries trend conviction.
func isDirectional(r domain.Regime) bool {
	switch r {
	case domain.RegimeTrend, domain.RegimeCongestionExit, domain.RegimeReversal:
		return true
	default:
		return false
	}
}

// buildOverlay compares the two reference lines at the same bar.
func buildOverlay(higher, trading *domain.ReferenceLineSample) domain.ReferenceOverlay {
	ov := domain.ReferenceOverlay{}
	if higher != nil {
		ov.HigherValue = higher.Value
	}
	if trading != nil {
		ov.TradingValue = trading.Value
	}
	ov.Spread = ov.TradingValue - ov.HigherValue
	ov.TradingAbove = ov.Spread > 0
	return ov
}

// hasPatternConfluence reports whether both timeframes produced at least one
// compatible-direction pattern in the same window.
func hasPatternConfluence(higher, trading []*domain.PatternEvent) bool {
	for _, h := range higher {
		if h.Direction == 0 {
			continue
		}
		for _, l := range trading {
			if l.Direction == h.Direction {
				return true
			}
		}
	}
	return false
}

// riskTier grades a signal strength.
func riskTier(strength float64) domain.RiskTier {
	switch {
	case strength >= 0.8:
		return domain.RiskLow
	case strength >= 0.6:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

// recommend derives the action. trade_permitted=false suppresses entries
// regardless of the other fields.
func (a *Analyzer) recommend(al domain.Alignment, strength float64, patternConfluence bool) domain.Action {
	if !al.TradePermitted {
		return domain.ActionHold
	}

	dir := al.Higher.Direction
	if dir == domain.TrendFlat {
		dir = al.Trading.Direction
	}
	if dir == domain.TrendFlat {
		return domain.ActionHold
	}

	threshold := a.cfg.actWithoutPatterns
	if patternConfluence {
		threshold = a.cfg.actWithPatterns
	}
	if strength < threshold {
		return domain.ActionHold
	}

	if dir == domain.TrendUp {
		return domain.ActionLong
	}
	return domain.ActionShort
}
