package strategy

import (
	"errors"

	"drummond-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType    = errors.New("unknown strategy type")
	ErrMissingMinimumStrength = errors.New("CONFLUENCE/TRAILING_STOP requires MinimumStrength")
	ErrMissingStopDistance    = errors.New("CONFLUENCE/REGIME_FOLLOW requires StopDistancePct")
	ErrMissingTrailPct        = errors.New("TRAILING_STOP requires TrailPct")
	ErrMissingInitialStopPct  = errors.New("TRAILING_STOP requires InitialStopPct")
	ErrMissingMinBarsInState  = errors.New("REGIME_FOLLOW requires MinBarsInState")
)

// FromConfig creates a Strategy from domain.StrategyConfig.
// Validates required parameters per strategy type.
// Returns clear errors for missing/invalid params.
func FromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	switch cfg.StrategyType {
	case domain.StrategyTypeConfluence:
		return fromConfluenceConfig(cfg)
	case domain.StrategyTypeTrailingStop:
		return fromTrailingStopConfig(cfg)
	case domain.StrategyTypeRegimeFollow:
		return fromRegimeFollowConfig(cfg)
	default:
		return nil, ErrUnknownStrategyType
	}
}

// fromConfluenceConfig creates ConfluenceStrategy from config.
func fromConfluenceConfig(cfg domain.StrategyConfig) (*ConfluenceStrategy, error) {
	if cfg.MinimumStrength == nil {
		return nil, ErrMissingMinimumStrength
	}
	if cfg.StopDistancePct == nil {
		return nil, ErrMissingStopDistance
	}

	return NewConfluenceStrategy(
		*cfg.MinimumStrength,
		sizeOrZero(cfg.Size),
		*cfg.StopDistancePct,
		allowShort(cfg.AllowShortSide),
	), nil
}

// fromTrailingStopConfig creates TrailingStopStrategy from config.
func fromTrailingStopConfig(cfg domain.StrategyConfig) (*TrailingStopStrategy, error) {
	if cfg.MinimumStrength == nil {
		return nil, ErrMissingMinimumStrength
	}
	if cfg.TrailPct == nil {
		return nil, ErrMissingTrailPct
	}
	if cfg.InitialStopPct == nil {
		return nil, ErrMissingInitialStopPct
	}

	return NewTrailingStopStrategy(
		*cfg.MinimumStrength,
		sizeOrZero(cfg.Size),
		*cfg.TrailPct,
		*cfg.InitialStopPct,
		allowShort(cfg.AllowShortSide),
	), nil
}

// fromRegimeFollowConfig creates RegimeFollowStrategy from config.
func fromRegimeFollowConfig(cfg domain.StrategyConfig) (*RegimeFollowStrategy, error) {
	if cfg.MinBarsInState == nil {
		return nil, ErrMissingMinBarsInState
	}
	if cfg.StopDistancePct == nil {
		return nil, ErrMissingStopDistance
	}

	return NewRegimeFollowStrategy(
		sizeOrZero(cfg.Size),
		*cfg.MinBarsInState,
		*cfg.StopDistancePct,
		allowShort(cfg.AllowShortSide),
	), nil
}

// sizeOrZero unwraps the optional fixed size; zero lets the engine size.
func sizeOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// allowShort defaults the short-side permission to true.
func allowShort(p *bool) bool {
	if p == nil {
		return true
	}
	return *p
}
