package domain

// Regime labels one of the five Drummond market states, plus the
// undetermined warmup state emitted before enough history exists.
type Regime string

// Regime constants.
const (
	RegimeUndetermined       Regime = "UNDETERMINED"
	RegimeTrend              Regime = "TREND"
	RegimeCongestionEntrance Regime = "CONGESTION_ENTRANCE"
	RegimeCongestionAction   Regime = "CONGESTION_ACTION"
	RegimeCongestionExit     Regime = "CONGESTION_EXIT"
	RegimeReversal           Regime = "REVERSAL"
)

// TrendDirection is the direction attached to a classified state.
type TrendDirection string

// TrendDirection constants.
const (
	TrendUp   TrendDirection = "UP"
	TrendDown TrendDirection = "DOWN"
	TrendFlat TrendDirection = "FLAT"
)

// SlopeTrend buckets the reference-line slope around zero.
type SlopeTrend string

// SlopeTrend constants.
const (
	SlopeRising     SlopeTrend = "RISING"
	SlopeHorizontal SlopeTrend = "HORIZONTAL"
	SlopeFalling    SlopeTrend = "FALLING"
)

// MarketStateRecord is the classifier output for a single bar.
// Records are produced one per input bar, in input order; classification
// is sequential and stateful, so ordering matters.
type MarketStateRecord struct {
	Symbol      string
	Interval    string
	TimestampMs int64
	Regime      Regime
	Direction   TrendDirection
	Confidence  float64 // [0,1], non-decreasing while the label holds
	BarsInState int     // resets to 1 on every label change
	SlopeTrend  SlopeTrend
	Reason      string // optional transition reason
}
