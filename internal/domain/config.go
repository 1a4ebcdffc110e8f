package domain

// StrategyConfig carries strategy selection and parameters.
// Pointer fields are required only for the strategy types that use them;
// the factory validates per type.
type StrategyConfig struct {
	StrategyType string // "CONFLUENCE" | "TRAILING_STOP" | "REGIME_FOLLOW"

	// Common parameters
	Size             *float64 // fixed position size in units; portfolio runs size by risk instead
	MinimumStrength  *float64 // minimum analysis signal strength to act on
	StopDistancePct  *float64 // stop distance as fraction of entry price
	AllowShortSide   *bool    // short entries enabled (default true)

	// TRAILING_STOP parameters
	TrailPct       *float64 // trailing stop distance from peak (e.g. 0.05)
	InitialStopPct *float64 // initial stop below/above entry

	// REGIME_FOLLOW parameters
	MinBarsInState *int // bars the trading-timeframe regime must hold before entry
}

// Strategy type constants.
const (
	StrategyTypeConfluence   = "CONFLUENCE"
	StrategyTypeTrailingStop = "TRAILING_STOP"
	StrategyTypeRegimeFollow = "REGIME_FOLLOW"
)
