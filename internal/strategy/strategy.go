// Package strategy defines the pluggable trading-strategy interface and the
// built-in strategies. Strategies are selected by type string via FromConfig.
package strategy

import (
	"context"

	"drummond-lab/internal/domain"
)

// SignalAction is the action a strategy requests from the engine.
type SignalAction string

// SignalAction constants.
const (
	SignalEnterLong  SignalAction = "ENTER_LONG"
	SignalEnterShort SignalAction = "ENTER_SHORT"
	SignalExitLong   SignalAction = "EXIT_LONG"
	SignalExitShort  SignalAction = "EXIT_SHORT"
)

// Signal is one trading signal emitted by a strategy for the current bar.
type Signal struct {
	Action    SignalAction
	Size      float64 // optional; 0 lets the engine choose (fixed or risk-based)
	StopPrice float64 // optional risk anchor used for portfolio sizing
	Reason    string
	Metadata  map[string]string
}

// BarContext is everything a strategy sees for one bar. The Analysis field
// is nil when no multi-timeframe snapshot is available for this bar.
type BarContext struct {
	Bar      *domain.Bar
	Position *domain.Position // nil when flat
	Cash     float64
	Equity   float64
	Analysis *domain.MultiTimeframeAnalysis
	History  []*domain.Bar // bounded rolling window, oldest first
}

// Strategy produces signals from per-bar context.
type Strategy interface {
	// Prepare is an optional warm-up hook called once with the available
	// history before the first OnBar.
	Prepare(history []*domain.Bar) error

	// OnBar is called once per bar in order. Returns zero or more signals.
	OnBar(ctx context.Context, bc *BarContext) ([]*Signal, error)

	// ID returns the strategy identifier (includes parameters).
	ID() string
}

// entryPermitted reports whether an analysis snapshot allows entries at all.
// A missing snapshot never permits confluence-driven entries.
func entryPermitted(a *domain.MultiTimeframeAnalysis) bool {
	return a != nil && a.Alignment.TradePermitted
}

// nearestStop derives a stop price from the strongest confluence zone on the
// protective side of price, falling back to a fixed percentage distance.
func nearestStop(a *domain.MultiTimeframeAnalysis, side domain.Side, price, fallbackPct float64) float64 {
	if a != nil {
		for _, z := range a.Zones {
			if side == domain.SideLong && z.Type == domain.ZoneSupport && z.Price < price {
				return z.Lower
			}
			if side == domain.SideShort && z.Type == domain.ZoneResistance && z.Price > price {
				return z.Upper
			}
		}
	}
	if side == domain.SideLong {
		return price * (1 - fallbackPct)
	}
	return price * (1 + fallbackPct)
}
