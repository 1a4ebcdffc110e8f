package pattern

import "drummond-lab/internal/domain"

// scanCWave detects C_WAVE: the envelope position pinned at or beyond a
// band edge for several consecutive bars while the envelope center drifts
// in the same direction.
func scanCWave(cfg Config, in *Input) []*domain.PatternEvent {
	var events []*domain.PatternEvent

	edgeDir := func(i int) int {
		switch {
		case in.Envelope[i].Position >= cfg.CWavePositionHigh:
			return 1
		case in.Envelope[i].Position <= cfg.CWavePositionLow:
			return -1
		default:
			return 0
		}
	}

	n := len(in.Bars)
	i := 0
	for i < n {
		dir := edgeDir(i)
		if dir == 0 {
			i++
			continue
		}
		start := i
		for i+1 < n && edgeDir(i+1) == dir {
			i++
		}
		runLen := i - start + 1

		drift := sign(in.Envelope[i].Center - in.Envelope[start].Center)
		if runLen >= cfg.CWaveMinBars && drift == dir {
			events = append(events, &domain.PatternEvent{
				Kind:        domain.PatternCWave,
				Direction:   dir,
				StartMs:     in.Bars[start].TimestampMs,
				EndMs:       in.Bars[i].TimestampMs,
				Strength:    runLen,
				AnchorPrice: in.Envelope[i].Center,
			})
		}
		i++
	}

	return events
}
