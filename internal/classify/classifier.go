// Package classify implements the sequential market-regime classifier.
// It is a pure scan over ordered bars: one MarketStateRecord out per bar in,
// no look-ahead, fully deterministic for a given input.
package classify

import (
	"errors"

	"drummond-lab/internal/domain"
)

// Classifier errors.
var (
	ErrSeriesMismatch  = errors.New("bar and reference-line series must be equal length")
	ErrNonMonotonic    = errors.New("bar timestamps must be strictly increasing")
	ErrEmptyBarSeries  = errors.New("empty bar series")
)

// Config holds classifier parameters.
type Config struct {
	// TrendRunLength is the number of consecutive same-side bars that
	// establishes a trend.
	TrendRunLength int

	// SlopeEpsilon is the symmetric band around zero inside which the
	// reference-line slope is bucketed as horizontal.
	SlopeEpsilon float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TrendRunLength: 3,
		SlopeEpsilon:   1e-6,
	}
}

// Classifier classifies bars into the five Drummond regimes.
type Classifier struct {
	cfg Config
}

// New creates a Classifier. Zero-valued config fields fall back to defaults.
func New(cfg Config) *Classifier {
	def := DefaultConfig()
	if cfg.TrendRunLength <= 0 {
		cfg.TrendRunLength = def.TrendRunLength
	}
	if cfg.SlopeEpsilon <= 0 {
		cfg.SlopeEpsilon = def.SlopeEpsilon
	}
	return &Classifier{cfg: cfg}
}

// side is the binary position of a close relative to the reference line.
type side int

const (
	sideAbove side = 1
	sideBelow side = -1
)

func (s side) direction() domain.TrendDirection {
	if s == sideAbove {
		return domain.TrendUp
	}
	return domain.TrendDown
}

// scanState is the mutable state threaded through one classification pass.
type scanState struct {
	regime      domain.Regime
	direction   domain.TrendDirection
	barsInState int
	curSide     side
	runLength   int // consecutive bars on curSide
	priorTrend  domain.TrendDirection // trend direction before congestion began
	inTrend     bool
}

// Classify runs the full scan. The caller must guarantee strictly increasing
// timestamps and 1:1 alignment between bars and refs; violations are fatal
// precondition errors.
func (c *Classifier) Classify(bars []*domain.Bar, refs []*domain.ReferenceLineSample) ([]*domain.MarketStateRecord, error) {
	if len(bars) == 0 {
		return nil, ErrEmptyBarSeries
	}
	if len(bars) != len(refs) {
		return nil, ErrSeriesMismatch
	}

	out := make([]*domain.MarketStateRecord, len(bars))
	st := scanState{regime: domain.RegimeUndetermined, direction: domain.TrendFlat}

	for i, bar := range bars {
		if i > 0 && bar.TimestampMs <= bars[i-1].TimestampMs {
			return nil, ErrNonMonotonic
		}

		s := sideBelow
		if bar.Close >= refs[i].Value {
			s = sideAbove
		}

		if i == 0 || s != st.curSide {
			st.curSide = s
			st.runLength = 1
		} else {
			st.runLength++
		}

		regime, dir, reason := c.transition(&st, s)
		if regime == st.regime && i > 0 {
			st.barsInState++
		} else {
			st.barsInState = 1
		}
		st.regime = regime
		st.direction = dir

		out[i] = &domain.MarketStateRecord{
			Symbol:      bar.Symbol,
			Interval:    bar.Interval,
			TimestampMs: bar.TimestampMs,
			Regime:      regime,
			Direction:   dir,
			Confidence:  confidence(st.barsInState),
			BarsInState: st.barsInState,
			SlopeTrend:  c.bucketSlope(refs[i].Slope),
			Reason:      reason,
		}
	}
	return out, nil
}

// transition applies one bar's side observation to the state machine and
// returns the resulting regime, direction, and an optional transition reason.
func (c *Classifier) transition(st *scanState, s side) (domain.Regime, domain.TrendDirection, string) {
	run := st.runLength >= c.cfg.TrendRunLength

	switch st.regime {
	case domain.RegimeUndetermined:
		if run {
			st.inTrend = true
			st.priorTrend = s.direction()
			return domain.RegimeTrend, s.direction(), "initial run established"
		}
		return domain.RegimeUndetermined, domain.TrendFlat, ""

	case domain.RegimeTrend:
		if s.direction() == st.direction {
			return domain.RegimeTrend, st.direction, ""
		}
		// first bar on the opposite side after a trend
		st.inTrend = false
		st.priorTrend = st.direction
		return domain.RegimeCongestionEntrance, st.priorTrend, "close crossed reference line"

	case domain.RegimeCongestionEntrance, domain.RegimeCongestionAction:
		if run {
			if s.direction() == st.priorTrend {
				return domain.RegimeCongestionExit, st.priorTrend, "pre-congestion trend resumed"
			}
			return domain.RegimeReversal, s.direction(), "opposite run after congestion"
		}
		return domain.RegimeCongestionAction, st.priorTrend, ""

	case domain.RegimeCongestionExit:
		if run && s.direction() == st.direction {
			st.inTrend = true
			return domain.RegimeTrend, st.direction, "trend re-established"
		}
		if s.direction() != st.direction {
			st.priorTrend = st.direction
			return domain.RegimeCongestionEntrance, st.priorTrend, "close crossed reference line"
		}
		return domain.RegimeCongestionExit, st.direction, ""

	case domain.RegimeReversal:
		if run && s.direction() == st.direction {
			st.inTrend = true
			st.priorTrend = st.direction
			return domain.RegimeTrend, st.direction, "reversal confirmed as trend"
		}
		if s.direction() != st.direction {
			st.priorTrend = st.direction
			return domain.RegimeCongestionEntrance, st.priorTrend, "close crossed reference line"
		}
		return domain.RegimeReversal, st.direction, ""
	}

	return domain.RegimeUndetermined, domain.TrendFlat, ""
}

// confidence maps bars-in-state to [0,1], non-decreasing while a label holds.
func confidence(barsInState int) float64 {
	c := 0.25 + 0.25*float64(barsInState-1)
	if c > 1 {
		return 1
	}
	return c
}

// bucketSlope classifies the reference-line slope.
func (c *Classifier) bucketSlope(slope float64) domain.SlopeTrend {
	switch {
	case slope > c.cfg.SlopeEpsilon:
		return domain.SlopeRising
	case slope < -c.cfg.SlopeEpsilon:
		return domain.SlopeFalling
	default:
		return domain.SlopeHorizontal
	}
}
