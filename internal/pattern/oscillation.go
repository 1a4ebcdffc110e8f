package pattern

import "drummond-lab/internal/domain"

// scanOscillation detects CONGESTION_OSCILLATION: the envelope position
// crossing the 0.5 midpoint repeatedly inside a bounded window without a
// sustained run on either side. Direction-neutral.
func scanOscillation(cfg Config, in *Input) []*domain.PatternEvent {
	var events []*domain.PatternEvent

	n := len(in.Bars)
	halfSide := func(i int) int {
		return sign(in.Envelope[i].Position - 0.5)
	}

	i := 0
	for i+cfg.OscillationWindow <= n {
		end := i + cfg.OscillationWindow // exclusive

		crossings := 0
		maxRun := 0
		run := 0
		prev := 0
		for j := i; j < end; j++ {
			s := halfSide(j)
			if s == 0 {
				continue
			}
			if prev != 0 && s != prev {
				crossings++
				run = 1
			} else {
				run++
			}
			if run > maxRun {
				maxRun = run
			}
			prev = s
		}

		if crossings >= cfg.OscillationMinCrossings && maxRun < cfg.OscillationMaxRun {
			events = append(events, &domain.PatternEvent{
				Kind:        domain.PatternCongestionOscillation,
				Direction:   0,
				StartMs:     in.Bars[i].TimestampMs,
				EndMs:       in.Bars[end-1].TimestampMs,
				Strength:    crossings,
				AnchorPrice: in.Envelope[end-1].Center,
			})
			// one event per oscillation episode
			i = end
			continue
		}
		i++
	}

	return events
}
