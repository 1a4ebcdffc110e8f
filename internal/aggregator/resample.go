package aggregator

import (
	"errors"
	"sort"

	"drummond-lab/internal/domain"
)

// Resample errors
var (
	ErrBadTargetInterval = errors.New("target interval must be a known, coarser interval")
)

// ResampleBars composes higher-timeframe bars from finer ones: open from
// the first source bar of each bucket, close from the last, high/low as
// extremes, volume summed. Source bars may arrive unsorted; output is
// ordered by bucket start. Partial trailing buckets are included.
func ResampleBars(bars []*domain.Bar, targetInterval string) ([]*domain.Bar, error) {
	targetMs, ok := domain.IntervalDurationMs[targetInterval]
	if !ok {
		return nil, ErrBadTargetInterval
	}
	if len(bars) == 0 {
		return nil, nil
	}
	srcMs, ok := domain.IntervalDurationMs[bars[0].Interval]
	if ok && srcMs >= targetMs {
		return nil, ErrBadTargetInterval
	}

	sorted := make([]*domain.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TimestampMs < sorted[j].TimestampMs
	})

	var out []*domain.Bar
	var cur *domain.Bar
	for _, b := range sorted {
		bucket := b.TimestampMs - b.TimestampMs%targetMs
		if cur == nil || cur.TimestampMs != bucket {
			copied := *b
			copied.Interval = targetInterval
			copied.TimestampMs = bucket
			cur = &copied
			out = append(out, cur)
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.AdjClose = b.AdjClose
		cur.Volume += b.Volume
	}
	return out, nil
}
