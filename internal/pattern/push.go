package pattern

import "drummond-lab/internal/domain"

// scanPush detects PLDOT_PUSH: consecutive bars whose distance from the
// reference line grows monotonically on one side while the line slopes the
// same way. Fires once per run with strength = run length.
func scanPush(cfg Config, in *Input) []*domain.PatternEvent {
	var events []*domain.PatternEvent

	runStart := -1
	runLen := 0
	runDir := 0

	flush := func(endIdx int) {
		if runLen >= cfg.PushMinBars {
			events = append(events, &domain.PatternEvent{
				Kind:        domain.PatternPLDotPush,
				Direction:   runDir,
				StartMs:     in.Bars[runStart].TimestampMs,
				EndMs:       in.Bars[endIdx].TimestampMs,
				Strength:    runLen,
				AnchorPrice: in.Reference[endIdx].Value,
			})
		}
		runStart, runLen, runDir = -1, 0, 0
	}

	for i := 1; i < len(in.Bars); i++ {
		disp := in.Bars[i].Close - in.Reference[i].Value
		prev := in.Bars[i-1].Close - in.Reference[i-1].Value
		dir := sign(disp)

		qualifies := dir != 0 &&
			dir == sign(prev) &&
			abs(disp) > abs(prev) &&
			sign(in.Reference[i].Slope) == dir &&
			abs(in.Reference[i].Slope) > cfg.PushSlopeEpsilon

		switch {
		case qualifies && dir == runDir:
			runLen++
			if runLen > cfg.PushWindow {
				// cap the run at the scan window; restart behind it
				runStart++
				runLen = cfg.PushWindow
			}
		case qualifies:
			flush(i - 1)
			runStart = i - 1
			runLen = 2 // the pair (i-1, i) starts a push
			runDir = dir
		default:
			flush(i - 1)
		}
	}
	flush(len(in.Bars) - 1)

	return events
}
