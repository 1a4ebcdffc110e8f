package classify

import (
	"errors"
	"testing"

	"drummond-lab/internal/domain"
)

// makeSeries builds aligned bar and reference-line series from closes and
// line values.
func makeSeries(closes, lines []float64) ([]*domain.Bar, []*domain.ReferenceLineSample) {
	bars := make([]*domain.Bar, len(closes))
	refs := make([]*domain.ReferenceLineSample, len(lines))
	for i := range closes {
		ts := int64(1_000_000 + i*60_000)
		bars[i] = &domain.Bar{
			Symbol:      "TEST",
			Interval:    domain.Interval1Min,
			TimestampMs: ts,
			Open:        closes[i],
			High:        closes[i] + 0.5,
			Low:         closes[i] - 0.5,
			Close:       closes[i],
		}
		slope := 0.0
		if i > 0 {
			slope = lines[i] - lines[i-1]
		}
		refs[i] = &domain.ReferenceLineSample{
			TimestampMs: ts,
			Value:       lines[i],
			Slope:       slope,
		}
	}
	return bars, refs
}

func TestClassify_TrendAtThirdBar(t *testing.T) {
	// Closes [100,101,102,103] above a rising line [98,99,100,101].
	bars, refs := makeSeries(
		[]float64{100, 101, 102, 103},
		[]float64{98, 99, 100, 101},
	)

	records, err := New(Config{}).Classify(bars, refs)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if len(records) != len(bars) {
		t.Fatalf("expected %d records, got %d", len(bars), len(records))
	}

	for i, want := range []domain.Regime{
		domain.RegimeUndetermined,
		domain.RegimeUndetermined,
		domain.RegimeTrend,
		domain.RegimeTrend,
	} {
		if records[i].Regime != want {
			t.Errorf("bar %d: expected %s, got %s", i, want, records[i].Regime)
		}
	}

	if records[2].Direction != domain.TrendUp {
		t.Errorf("expected TREND direction UP, got %s", records[2].Direction)
	}
	if records[3].BarsInState != 2 {
		t.Errorf("expected bars_in_state 2 at bar 4, got %d", records[3].BarsInState)
	}
	if records[3].SlopeTrend != domain.SlopeRising {
		t.Errorf("expected rising slope, got %s", records[3].SlopeTrend)
	}
}

func TestClassify_BarsInStateResetsOnEveryLabelChange(t *testing.T) {
	// Up trend, cross below, oscillate, then a 3-bar down run (reversal).
	closes := []float64{101, 102, 103, 99, 101, 99, 98, 97}
	lines := []float64{100, 100, 100, 100, 100, 100, 100, 100}
	bars, refs := makeSeries(closes, lines)

	records, err := New(Config{}).Classify(bars, refs)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	prev := records[0]
	for _, r := range records[1:] {
		if r.Regime != prev.Regime && r.BarsInState != 1 {
			t.Errorf("at %d: label changed %s->%s but bars_in_state=%d",
				r.TimestampMs, prev.Regime, r.Regime, r.BarsInState)
		}
		if r.Regime == prev.Regime && r.BarsInState != prev.BarsInState+1 {
			t.Errorf("at %d: label held but bars_in_state %d->%d",
				r.TimestampMs, prev.BarsInState, r.BarsInState)
		}
		prev = r
	}
}

func TestClassify_CongestionAndReversal(t *testing.T) {
	// Trend up, congestion entrance, action, then reversal down.
	closes := []float64{101, 102, 103, 99, 101, 99, 98, 97, 96}
	lines := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100}
	bars, refs := makeSeries(closes, lines)

	records, err := New(Config{}).Classify(bars, refs)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	want := []domain.Regime{
		domain.RegimeUndetermined,
		domain.RegimeUndetermined,
		domain.RegimeTrend,
		domain.RegimeCongestionEntrance,
		domain.RegimeCongestionAction,
		domain.RegimeCongestionAction,
		domain.RegimeCongestionAction,
		domain.RegimeReversal,
		domain.RegimeTrend,
	}
	for i, w := range want {
		if records[i].Regime != w {
			t.Errorf("bar %d: expected %s, got %s", i, w, records[i].Regime)
		}
	}
	if records[7].Direction != domain.TrendDown {
		t.Errorf("reversal direction: expected DOWN, got %s", records[7].Direction)
	}
}

func TestClassify_CongestionExitOnTrendResumption(t *testing.T) {
	// Trend up, dip below, then a 3-bar run back above the line.
	closes := []float64{101, 102, 103, 99, 101, 102, 103}
	lines := []float64{100, 100, 100, 100, 100, 100, 100}
	bars, refs := makeSeries(closes, lines)

	records, err := New(Config{}).Classify(bars, refs)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	// Bars 5 and 6 are the 2nd and 3rd above-line bars after the dip.
	if records[6].Regime != domain.RegimeCongestionExit {
		t.Errorf("expected CONGESTION_EXIT at bar 7, got %s", records[6].Regime)
	}
	if records[6].Direction != domain.TrendUp {
		t.Errorf("congestion exit direction: expected UP, got %s", records[6].Direction)
	}
}

func TestClassify_ConfidenceMonotoneWhileLabelHolds(t *testing.T) {
	closes := []float64{101, 102, 103, 104, 105, 106, 107, 108}
	lines := []float64{100, 100, 100, 100, 100, 100, 100, 100}
	bars, refs := makeSeries(closes, lines)

	records, err := New(Config{}).Classify(bars, refs)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	for i := 1; i < len(records); i++ {
		if records[i].Regime != records[i-1].Regime {
			continue
		}
		if records[i].Confidence < records[i-1].Confidence {
			t.Errorf("confidence decreased at bar %d: %.2f -> %.2f",
				i, records[i-1].Confidence, records[i].Confidence)
		}
		if records[i].Confidence > 1 || records[i].Confidence < 0 {
			t.Errorf("confidence out of range at bar %d: %.2f", i, records[i].Confidence)
		}
	}
}

func TestClassify_Preconditions(t *testing.T) {
	bars, refs := makeSeries([]float64{100, 101}, []float64{99, 99})

	if _, err := New(Config{}).Classify(bars, refs[:1]); !errors.Is(err, ErrSeriesMismatch) {
		t.Errorf("expected ErrSeriesMismatch, got %v", err)
	}

	bars[1].TimestampMs = bars[0].TimestampMs
	if _, err := New(Config{}).Classify(bars, refs); !errors.Is(err, ErrNonMonotonic) {
		t.Errorf("expected ErrNonMonotonic, got %v", err)
	}

	if _, err := New(Config{}).Classify(nil, nil); !errors.Is(err, ErrEmptyBarSeries) {
		t.Errorf("expected ErrEmptyBarSeries, got %v", err)
	}
}
