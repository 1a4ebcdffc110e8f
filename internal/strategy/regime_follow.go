package strategy

import (
	"context"
	"fmt"

	"drummond-lab/internal/domain"
)

// RegimeFollowStrategy trades the trading-timeframe regime directly: it
// enters in the trend direction once a TREND has persisted for a minimum
// number of bars and the higher timeframe does not forbid trading, and
// exits when the trend flips or the regime resolves into a REVERSAL.
type RegimeFollowStrategy struct {
	Size           float64
	MinBarsInState int
	StopDistance   float64
	AllowShort     bool
}

// NewRegimeFollowStrategy creates a RegimeFollowStrategy.
func NewRegimeFollowStrategy(size float64, minBarsInState int, stopDistancePct float64, allowShort bool) *RegimeFollowStrategy {
	return &RegimeFollowStrategy{
		Size:           size,
		MinBarsInState: minBarsInState,
		StopDistance:   stopDistancePct,
		AllowShort:     allowShort,
	}
}

// ID returns the strategy identifier including parameters.
func (s *RegimeFollowStrategy) ID() string {
	return fmt.Sprintf("REGIME_FOLLOW_bars%d_stop%.1f", s.MinBarsInState, s.StopDistance*100)
}

// Prepare implements Strategy. No warm-up required.
func (s *RegimeFollowStrategy) Prepare(_ []*domain.Bar) error { return nil }

// OnBar implements Strategy.
func (s *RegimeFollowStrategy) OnBar(_ context.Context, bc *BarContext) ([]*Signal, error) {
	a := bc.Analysis
	if a == nil {
		return nil, nil
	}
	trading := a.Alignment.Trading

	if bc.Position != nil {
		if exit := s.exitSignal(bc.Position, trading); exit != nil {
			return []*Signal{exit}, nil
		}
		return nil, nil
	}

	if !a.Alignment.TradePermitted {
		return nil, nil
	}
	if trading.Regime != domain.RegimeTrend || trading.BarsInState < s.MinBarsInState {
		return nil, nil
	}

	close := bc.Bar.Close
	switch trading.Direction {
	case domain.TrendUp:
		stop := nearestStop(a, domain.SideLong, close, s.StopDistance)
		return []*Signal{{Action: SignalEnterLong, Size: s.Size, StopPrice: stop, Reason: "trend up"}}, nil
	case domain.TrendDown:
		if !s.AllowShort {
			return nil, nil
		}
		stop := nearestStop(a, domain.SideShort, close, s.StopDistance)
		return []*Signal{{Action: SignalEnterShort, Size: s.Size, StopPrice: stop, Reason: "trend down"}}, nil
	default:
		return nil, nil
	}
}

// exitSignal closes the position when the trading regime has reversed or
// the trend direction no longer matches the position side.
func (s *RegimeFollowStrategy) exitSignal(pos *domain.Position, trading domain.TimeframeState) *Signal {
	against := (pos.Side == domain.SideLong && trading.Direction == domain.TrendDown) ||
		(pos.Side == domain.SideShort && trading.Direction == domain.TrendUp)
	if trading.Regime != domain.RegimeReversal && !against {
		return nil
	}

	reason := "trend flipped"
	if trading.Regime == domain.RegimeReversal {
		reason = "reversal"
	}
	action := SignalExitLong
	if pos.Side == domain.SideShort {
		action = SignalExitShort
	}
	return &Signal{Action: action, Reason: reason}
}

// Ensure RegimeFollowStrategy implements Strategy.
var _ Strategy = (*RegimeFollowStrategy)(nil)
