package strategy

import (
	"context"
	"fmt"

	"drummond-lab/internal/domain"
)

// trailState tracks the peak (or trough, for shorts) since entry for one
// symbol. The map of these is owned by the strategy instance — never
// process-wide state.
type trailState struct {
	extreme     float64 // highest close since entry (lowest for shorts)
	initialStop float64
}

// TrailingStopStrategy enters on the confluence recommendation and exits on
// a per-symbol trailing stop from the best price since entry, an initial
// stop from the entry price, or a recommendation flip.
type TrailingStopStrategy struct {
	MinimumStrength float64
	Size            float64
	TrailPct        float64
	InitialStopPct  float64
	AllowShort      bool

	trails map[string]*trailState
}

// NewTrailingStopStrategy creates a TrailingStopStrategy.
func NewTrailingStopStrategy(minimumStrength, size, trailPct, initialStopPct float64, allowShort bool) *TrailingStopStrategy {
	return &TrailingStopStrategy{
		MinimumStrength: minimumStrength,
		Size:            size,
		TrailPct:        trailPct,
		InitialStopPct:  initialStopPct,
		AllowShort:      allowShort,
		trails:          make(map[string]*trailState),
	}
}

// ID returns the strategy identifier including parameters.
func (s *TrailingStopStrategy) ID() string {
	return fmt.Sprintf("TRAILING_STOP_trail%.1f_stop%.1f", s.TrailPct*100, s.InitialStopPct*100)
}

// Prepare implements Strategy. Resets per-symbol trail state.
func (s *TrailingStopStrategy) Prepare(_ []*domain.Bar) error {
	s.trails = make(map[string]*trailState)
	return nil
}

// OnBar implements Strategy.
func (s *TrailingStopStrategy) OnBar(_ context.Context, bc *BarContext) ([]*Signal, error) {
	symbol := bc.Bar.Symbol

	if bc.Position != nil {
		return s.manageOpen(bc, symbol), nil
	}
	delete(s.trails, symbol)

	a := bc.Analysis
	if !entryPermitted(a) || a.SignalStrength < s.MinimumStrength {
		return nil, nil
	}

	close := bc.Bar.Close
	switch a.Action {
	case domain.ActionLong:
		stop := close * (1 - s.InitialStopPct)
		s.trails[symbol] = &trailState{extreme: close, initialStop: stop}
		return []*Signal{{Action: SignalEnterLong, Size: s.Size, StopPrice: stop, Reason: "confluence long"}}, nil
	case domain.ActionShort:
		if !s.AllowShort {
			return nil, nil
		}
		stop := close * (1 + s.InitialStopPct)
		s.trails[symbol] = &trailState{extreme: close, initialStop: stop}
		return []*Signal{{Action: SignalEnterShort, Size: s.Size, StopPrice: stop, Reason: "confluence short"}}, nil
	default:
		return nil, nil
	}
}

// manageOpen updates the trail for an open position and emits an exit when
// a stop is hit. Initial stop is checked before the trailing stop.
func (s *TrailingStopStrategy) manageOpen(bc *BarContext, symbol string) []*Signal {
	pos := bc.Position
	close := bc.Bar.Close

	st, ok := s.trails[symbol]
	if !ok {
		// position opened elsewhere (e.g. resumed run); adopt it
		st = &trailState{extreme: pos.EntryPrice, initialStop: pos.StopPrice}
		s.trails[symbol] = st
	}

	exit := SignalExitLong
	var hit bool
	var reason string

	if pos.Side == domain.SideLong {
		if close > st.extreme {
			st.extreme = close
		}
		trail := st.extreme * (1 - s.TrailPct)
		switch {
		case st.initialStop > 0 && close <= st.initialStop:
			hit, reason = true, domain.ExitReasonInitialStop
		case close <= trail:
			hit, reason = true, domain.ExitReasonTrailingStop
		}
	} else {
		exit = SignalExitShort
		if close < st.extreme {
			st.extreme = close
		}
		trail := st.extreme * (1 + s.TrailPct)
		switch {
		case st.initialStop > 0 && close >= st.initialStop:
			hit, reason = true, domain.ExitReasonInitialStop
		case close >= trail:
			hit, reason = true, domain.ExitReasonTrailingStop
		}
	}

	if !hit {
		return nil
	}
	delete(s.trails, symbol)
	return []*Signal{{Action: exit, Reason: reason}}
}

// Ensure TrailingStopStrategy implements Strategy.
var _ Strategy = (*TrailingStopStrategy)(nil)
