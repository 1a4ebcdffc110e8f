package pattern

import (
	"errors"
	"testing"

	"drummond-lab/internal/domain"
)

// fixture builds an aligned Input from closes, line values and envelope
// (center, halfWidth) pairs.
type fixtureBar struct {
	close  float64
	line   float64
	center float64
	half   float64
}

func makeInput(rows []fixtureBar) *Input {
	in := &Input{}
	var prevLine float64
	for i, r := range rows {
		ts := int64(1_000_000 + i*60_000)
		in.Bars = append(in.Bars, &domain.Bar{
			Symbol:      "TEST",
			Interval:    domain.Interval1Min,
			TimestampMs: ts,
			Open:        r.close,
			High:        r.close + 0.5,
			Low:         r.close - 0.5,
			Close:       r.close,
		})
		slope := 0.0
		if i > 0 {
			slope = r.line - prevLine
		}
		in.Reference = append(in.Reference, &domain.ReferenceLineSample{
			TimestampMs: ts,
			Value:       r.line,
			Slope:       slope,
		})
		upper := r.center + r.half
		lower := r.center - r.half
		pos := 0.5
		if upper != lower {
			pos = (r.close - lower) / (upper - lower)
			if pos < 0 {
				pos = 0
			}
			if pos > 1 {
				pos = 1
			}
		}
		in.Envelope = append(in.Envelope, &domain.EnvelopeSample{
			TimestampMs: ts,
			Center:      r.center,
			Upper:       upper,
			Lower:       lower,
			Width:       upper - lower,
			Position:    pos,
		})
		prevLine = r.line
	}
	return in
}

func eventsOf(t *testing.T, events []*domain.PatternEvent, kind domain.PatternKind) []*domain.PatternEvent {
	t.Helper()
	var out []*domain.PatternEvent
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestScanPush_FiresOnMonotoneDivergence(t *testing.T) {
	// Close pulls away from a rising line on the upside, bar after bar.
	rows := []fixtureBar{
		{100.5, 100.0, 100, 5},
		{101.5, 100.4, 101, 5},
		{102.8, 100.8, 101, 5},
		{104.4, 101.2, 102, 5},
		{106.3, 101.6, 103, 5},
	}
	events, err := ScanAll(DefaultConfig(), makeInput(rows))
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}

	pushes := eventsOf(t, events, domain.PatternPLDotPush)
	if len(pushes) != 1 {
		t.Fatalf("expected 1 push event, got %d", len(pushes))
	}
	if pushes[0].Direction != 1 {
		t.Errorf("expected direction +1, got %d", pushes[0].Direction)
	}
	if pushes[0].Strength < 3 {
		t.Errorf("expected strength >= 3, got %d", pushes[0].Strength)
	}
}

func TestScanPush_NoFireWithoutSlope(t *testing.T) {
	// Distance grows but the line is flat.
	rows := []fixtureBar{
		{100.5, 100, 100, 5},
		{101.5, 100, 100, 5},
		{102.8, 100, 100, 5},
		{104.4, 100, 100, 5},
	}
	events, err := ScanAll(DefaultConfig(), makeInput(rows))
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}
	if pushes := eventsOf(t, events, domain.PatternPLDotPush); len(pushes) != 0 {
		t.Errorf("expected no push on flat slope, got %d", len(pushes))
	}
}

func TestScanRefresh_TouchAndReturn(t *testing.T) {
	// Above the line for 3 bars, one shallow dip below, then back above.
	rows := []fixtureBar{
		{102, 100, 101, 4},
		{103, 100, 101, 4},
		{102.5, 100, 101, 4},
		{99.8, 100, 101, 4}, // touch: 0.2 below, tolerance = 0.25*4 = 1.0
		{102, 100, 101, 4},
	}
	events, err := ScanAll(DefaultConfig(), makeInput(rows))
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}

	refreshes := eventsOf(t, events, domain.PatternPLDotRefresh)
	if len(refreshes) != 1 {
		t.Fatalf("expected 1 refresh event, got %d", len(refreshes))
	}
	if refreshes[0].Direction != 1 {
		t.Errorf("expected direction +1 (original side), got %d", refreshes[0].Direction)
	}
}

func TestScanRefresh_DeepCrossDoesNotFire(t *testing.T) {
	// The cross goes far beyond the tolerance band.
	rows := []fixtureBar{
		{102, 100, 101, 4},
		{103, 100, 101, 4},
		{95, 100, 101, 4}, // 5 below, tolerance is 1.0
		{102, 100, 101, 4},
	}
	events, err := ScanAll(DefaultConfig(), makeInput(rows))
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}
	if refreshes := eventsOf(t, events, domain.PatternPLDotRefresh); len(refreshes) != 0 {
		t.Errorf("expected no refresh on deep cross, got %d", len(refreshes))
	}
}

func TestScanCWave_EdgeRideWithDrift(t *testing.T) {
	// Close rides the upper band while the center drifts up.
	rows := []fixtureBar{
		{104, 100, 100, 4},
		{104.5, 100, 100.5, 4},
		{105, 100, 101, 4},
		{105.5, 100, 101.5, 4},
	}
	events, err := ScanAll(DefaultConfig(), makeInput(rows))
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}

	waves := eventsOf(t, events, domain.PatternCWave)
	if len(waves) != 1 {
		t.Fatalf("expected 1 c-wave event, got %d", len(waves))
	}
	if waves[0].Direction != 1 {
		t.Errorf("expected direction +1, got %d", waves[0].Direction)
	}
}

func TestScanOscillation_MidpointChop(t *testing.T) {
	// Position flips around 0.5 every bar or two inside a 10-bar window.
	rows := []fixtureBar{
		{101, 100, 100, 4},
		{99, 100, 100, 4},
		{101, 100, 100, 4},
		{99, 100, 100, 4},
		{101, 100, 100, 4},
		{99, 100, 100, 4},
		{101, 100, 100, 4},
		{99, 100, 100, 4},
		{101, 100, 100, 4},
		{99, 100, 100, 4},
	}
	events, err := ScanAll(DefaultConfig(), makeInput(rows))
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}

	osc := eventsOf(t, events, domain.PatternCongestionOscillation)
	if len(osc) != 1 {
		t.Fatalf("expected 1 oscillation event, got %d", len(osc))
	}
	if osc[0].Strength < 3 {
		t.Errorf("expected >= 3 crossings, got %d", osc[0].Strength)
	}
}

func TestScanExhaust_FiresAfterTwoBarExtensionAndRevert(t *testing.T) {
	// Band is [96,104], width 8, threshold 0.25*8 = 2, so beyond 106.
	rows := []fixtureBar{
		{100, 100, 100, 4},
		{107, 100, 100, 4},
		{108, 100, 100, 4},
		{103, 100, 100, 4}, // back inside
	}
	events, err := ScanAll(DefaultConfig(), makeInput(rows))
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}

	ex := eventsOf(t, events, domain.PatternExhaust)
	if len(ex) != 1 {
		t.Fatalf("expected 1 exhaust event, got %d", len(ex))
	}
	if ex[0].Direction != -1 {
		t.Errorf("expected mean-reversion direction -1, got %d", ex[0].Direction)
	}
	if ex[0].Strength != 2 {
		t.Errorf("expected 2 extended bars, got %d", ex[0].Strength)
	}
	if ex[0].StartMs != 1_060_000 || ex[0].EndMs != 1_180_000 {
		t.Errorf("unexpected episode window: [%d, %d]", ex[0].StartMs, ex[0].EndMs)
	}
}

func TestScanExhaust_SingleBarExtensionNeverFires(t *testing.T) {
	rows := []fixtureBar{
		{100, 100, 100, 4},
		{107, 100, 100, 4},
		{103, 100, 100, 4},
	}
	events, err := ScanAll(DefaultConfig(), makeInput(rows))
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}
	if ex := eventsOf(t, events, domain.PatternExhaust); len(ex) != 0 {
		t.Errorf("expected no exhaust on 1-bar extension, got %d", len(ex))
	}
}

func TestScanExhaust_NoRevertNoFire(t *testing.T) {
	rows := []fixtureBar{
		{100, 100, 100, 4},
		{107, 100, 100, 4},
		{108, 100, 100, 4},
	}
	events, err := ScanAll(DefaultConfig(), makeInput(rows))
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}
	if ex := eventsOf(t, events, domain.PatternExhaust); len(ex) != 0 {
		t.Errorf("expected no exhaust without a revert bar, got %d", len(ex))
	}
}

func TestScanAll_Preconditions(t *testing.T) {
	in := makeInput([]fixtureBar{{100, 100, 100, 4}, {101, 100, 100, 4}})
	in.Envelope = in.Envelope[:1]

	if _, err := ScanAll(DefaultConfig(), in); !errors.Is(err, ErrSeriesMismatch) {
		t.Errorf("expected ErrSeriesMismatch, got %v", err)
	}
	if _, err := ScanAll(DefaultConfig(), &Input{}); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("expected ErrEmptySeries, got %v", err)
	}
}
