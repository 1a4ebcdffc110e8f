package strategy

import (
	"context"
	"fmt"

	"drummond-lab/internal/domain"
)

// ConfluenceStrategy follows the fused multi-timeframe analysis directly:
// it enters when the snapshot recommends a side with sufficient strength
// and exits when the recommendation flips or trade permission is lost.
type ConfluenceStrategy struct {
	MinimumStrength float64
	Size            float64
	StopDistancePct float64
	AllowShort      bool
}

// NewConfluenceStrategy creates a ConfluenceStrategy.
func NewConfluenceStrategy(minimumStrength, size, stopDistancePct float64, allowShort bool) *ConfluenceStrategy {
	return &ConfluenceStrategy{
		MinimumStrength: minimumStrength,
		Size:            size,
		StopDistancePct: stopDistancePct,
		AllowShort:      allowShort,
	}
}

// ID returns the strategy identifier including parameters.
func (s *ConfluenceStrategy) ID() string {
	return fmt.Sprintf("CONFLUENCE_min%.0f_stop%.1f", s.MinimumStrength*100, s.StopDistancePct*100)
}

// Prepare implements Strategy. No warm-up required.
func (s *ConfluenceStrategy) Prepare(_ []*domain.Bar) error { return nil }

// OnBar implements Strategy.
func (s *ConfluenceStrategy) OnBar(_ context.Context, bc *BarContext) ([]*Signal, error) {
	a := bc.Analysis

	// exits first: an open position is closed when the snapshot stops
	// supporting it, including loss of trade permission
	if bc.Position != nil {
		exit := s.exitSignal(bc.Position, a)
		if exit != nil {
			return []*Signal{exit}, nil
		}
		return nil, nil
	}

	if !entryPermitted(a) || a.SignalStrength < s.MinimumStrength {
		return nil, nil
	}

	switch a.Action {
	case domain.ActionLong:
		stop := nearestStop(a, domain.SideLong, bc.Bar.Close, s.StopDistancePct)
		return []*Signal{{
			Action:    SignalEnterLong,
			Size:      s.Size,
			StopPrice: stop,
			Reason:    "confluence long",
		}}, nil
	case domain.ActionShort:
		if !s.AllowShort {
			return nil, nil
		}
		stop := nearestStop(a, domain.SideShort, bc.Bar.Close, s.StopDistancePct)
		return []*Signal{{
			Action:    SignalEnterShort,
			Size:      s.Size,
			StopPrice: stop,
			Reason:    "confluence short",
		}}, nil
	default:
		return nil, nil
	}
}

// exitSignal decides whether the open position should be closed this bar.
func (s *ConfluenceStrategy) exitSignal(pos *domain.Position, a *domain.MultiTimeframeAnalysis) *Signal {
	if a == nil {
		return nil
	}

	flip := (pos.Side == domain.SideLong && a.Action == domain.ActionShort) ||
		(pos.Side == domain.SideShort && a.Action == domain.ActionLong)
	if !flip && a.Alignment.TradePermitted {
		return nil
	}

	reason := "recommendation flipped"
	if !a.Alignment.TradePermitted {
		reason = "trade permission lost"
	}

	action := SignalExitLong
	if pos.Side == domain.SideShort {
		action = SignalExitShort
	}
	return &Signal{Action: action, Reason: reason}
}

// Ensure ConfluenceStrategy implements Strategy.
var _ Strategy = (*ConfluenceStrategy)(nil)
