package pattern

import "drummond-lab/internal/domain"

// scanRefresh detects PLDOT_REFRESH: price holds one side of the reference
// line, touches or slightly crosses to the other side within a tolerance
// band, then returns to the original side. Direction is the original side;
// the pattern signals a refresh of the prior trend.
func scanRefresh(cfg Config, in *Input) []*domain.PatternEvent {
	var events []*domain.PatternEvent

	n := len(in.Bars)
	sideOf := func(i int) int {
		return sign(in.Bars[i].Close - in.Reference[i].Value)
	}

	i := 0
	for i < n {
		// count bars on a constant side
		s := sideOf(i)
		if s == 0 {
			i++
			continue
		}
		runStart := i
		for i+1 < n && sideOf(i+1) == s {
			i++
		}
		sideBars := i - runStart + 1
		if sideBars < cfg.RefreshMinSideBars || i+1 >= n {
			i++
			continue
		}

		// candidate touch episode on the far side, within tolerance
		touchStart := i + 1
		j := touchStart
		touched := 0
		for j < n && sideOf(j) == -s && touched < cfg.RefreshMaxTouchBars {
			tol := cfg.RefreshTolerancePct * in.Envelope[j].Width / 2
			if abs(in.Bars[j].Close-in.Reference[j].Value) > tol {
				break
			}
			touched++
			j++
		}

		if touched == 0 || j >= n || sideOf(j) != s {
			// not a shallow touch that returned; resume after the run
			i++
			continue
		}

		events = append(events, &domain.PatternEvent{
			Kind:        domain.PatternPLDotRefresh,
			Direction:   s,
			StartMs:     in.Bars[touchStart].TimestampMs,
			EndMs:       in.Bars[j].TimestampMs,
			Strength:    touched,
			AnchorPrice: in.Reference[j].Value,
		})
		i = j
	}

	return events
}
