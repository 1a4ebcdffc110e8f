package domain

// ZoneType classifies a confluence zone relative to current price.
type ZoneType string

// ZoneType constants.
const (
	ZoneSupport    ZoneType = "SUPPORT"
	ZoneResistance ZoneType = "RESISTANCE"
)

// ConfluenceZone is a price level where multiple independent analytical
// sources agree within a tolerance band.
type ConfluenceZone struct {
	Price            float64
	Upper            float64
	Lower            float64
	Strength         int     // count of distinct contributing sources
	WeightedStrength float64 // sum of per-source weights
	Timeframes       []string
	Type             ZoneType
	FirstTouchMs     int64
	LastTouchMs      int64
	Volatility       float64
}

// TimeframeState summarizes one timeframe's classification for alignment.
type TimeframeState struct {
	Interval    string
	Regime      Regime
	Direction   TrendDirection
	Confidence  float64
	BarsInState int
}

// Alignment records agreement between the higher and trading timeframes.
// TradePermitted is false whenever the two trends actively conflict.
type Alignment struct {
	Higher         TimeframeState
	Trading        TimeframeState
	Score          float64 // [0,1]
	TradePermitted bool
}

// ReferenceOverlay captures the higher-timeframe reference line relative
// to the trading-timeframe one at the same wall-clock bar.
type ReferenceOverlay struct {
	HigherValue  float64
	TradingValue float64
	Spread       float64 // trading minus higher
	TradingAbove bool
}

// Action is the recommended trading action of an analysis snapshot.
type Action string

// Action constants.
const (
	ActionLong  Action = "LONG"
	ActionShort Action = "SHORT"
	ActionHold  Action = "HOLD"
)

// RiskTier grades the risk of acting on an analysis snapshot.
type RiskTier string

// RiskTier constants.
const (
	RiskLow    RiskTier = "LOW"
	RiskMedium RiskTier = "MEDIUM"
	RiskHigh   RiskTier = "HIGH"
)

// MultiTimeframeAnalysis is one fused analysis snapshot per trading-timeframe
// bar. Invariant: Alignment.TradePermitted == false must suppress entry
// signals regardless of the other fields.
type MultiTimeframeAnalysis struct {
	Symbol            string
	TimestampMs       int64
	Alignment         Alignment
	Overlay           ReferenceOverlay
	Zones             []ConfluenceZone
	HigherPatterns    []*PatternEvent
	TradingPatterns   []*PatternEvent
	PatternConfluence bool
	SignalStrength    float64 // [0,1]
	Risk              RiskTier
	Action            Action
}
