package pattern

import "drummond-lab/internal/domain"

// scanExhaust detects EXHAUST: price extending beyond an envelope band by at
// least ExhaustExtensionThreshold band-widths for ExhaustMinBars or more
// consecutive bars, with the very next bar back inside the band. Fires
// exactly once per extension episode; direction is opposite the extension
// (a mean-reversion signal). Never fires if the extension is too short or
// never reverts.
func scanExhaust(cfg Config, in *Input) []*domain.PatternEvent {
	var events []*domain.PatternEvent

	// extension returns +1 above the upper band, -1 below the lower band.
	extension := func(i int) int {
		env := in.Envelope[i]
		lim := cfg.ExhaustExtensionThreshold * env.Width
		switch {
		case in.Bars[i].Close > env.Upper+lim:
			return 1
		case in.Bars[i].Close < env.Lower-lim:
			return -1
		default:
			return 0
		}
	}
	inside := func(i int) bool {
		return in.Bars[i].Close <= in.Envelope[i].Upper && in.Bars[i].Close >= in.Envelope[i].Lower
	}

	n := len(in.Bars)
	i := 0
	for i < n {
		dir := extension(i)
		if dir == 0 {
			i++
			continue
		}
		start := i
		for i+1 < n && extension(i+1) == dir {
			i++
		}
		extended := i - start + 1

		if extended >= cfg.ExhaustMinBars && i+1 < n && inside(i+1) {
			events = append(events, &domain.PatternEvent{
				Kind:        domain.PatternExhaust,
				Direction:   -dir,
				StartMs:     in.Bars[start].TimestampMs,
				EndMs:       in.Bars[i+1].TimestampMs,
				Strength:    extended,
				AnchorPrice: anchorBand(in.Envelope[i], dir),
			})
		}
		i++
	}

	return events
}

// anchorBand returns the band edge the exhaustion occurred beyond.
func anchorBand(env *domain.EnvelopeSample, dir int) float64 {
	if dir > 0 {
		return env.Upper
	}
	return env.Lower
}
