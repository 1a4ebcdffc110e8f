// Package pattern implements the discrete chart-pattern detectors.
// Each detector is an independent pure scan over aligned bar/indicator
// series; detectors share no state and are safe to run concurrently over
// the same inputs.
package pattern

import (
	"errors"

	"drummond-lab/internal/domain"
)

// Detector errors.
var (
	ErrSeriesMismatch = errors.New("bar and indicator series must be equal length")
	ErrEmptySeries    = errors.New("empty bar series")
)

// Config exposes every detector threshold; exact values are tunable,
// the defaults below are the documented ones.
type Config struct {
	// PLDOT_PUSH
	PushMinBars      int     // qualifying bars before the detector fires
	PushWindow       int     // scan window for a push run
	PushSlopeEpsilon float64 // minimum |slope| for a non-trivial push

	// PLDOT_REFRESH
	RefreshMinSideBars   int     // bars on the original side before a touch
	RefreshMaxTouchBars  int     // bars allowed on the far side during the touch
	RefreshTolerancePct  float64 // tolerance band as fraction of envelope half-width

	// C_WAVE
	CWaveMinBars      int     // consecutive bars at the band edge
	CWavePositionHigh float64 // envelope position at/above which a bull c-wave runs
	CWavePositionLow  float64 // envelope position at/below which a bear c-wave runs

	// CONGESTION_OSCILLATION
	OscillationWindow       int // bars examined per window
	OscillationMinCrossings int // midpoint alternations required
	OscillationMaxRun       int // longest same-side run allowed inside the window

	// EXHAUST
	ExhaustExtensionThreshold float64 // extension beyond the band, in band widths
	ExhaustMinBars            int     // consecutive extended bars required
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		PushMinBars:      3,
		PushWindow:       5,
		PushSlopeEpsilon: 1e-6,

		RefreshMinSideBars:  2,
		RefreshMaxTouchBars: 2,
		RefreshTolerancePct: 0.25,

		CWaveMinBars:      3,
		CWavePositionHigh: 0.9,
		CWavePositionLow:  0.1,

		OscillationWindow:       10,
		OscillationMinCrossings: 3,
		OscillationMaxRun:       4,

		ExhaustExtensionThreshold: 0.25,
		ExhaustMinBars:            2,
	}
}

// Input bundles the aligned series every detector scans.
type Input struct {
	Bars      []*domain.Bar
	Reference []*domain.ReferenceLineSample
	Envelope  []*domain.EnvelopeSample
}

// validate checks the feed contract: equal-length, non-empty series.
func (in *Input) validate() error {
	if len(in.Bars) == 0 {
		return ErrEmptySeries
	}
	if len(in.Reference) != len(in.Bars) || len(in.Envelope) != len(in.Bars) {
		return ErrSeriesMismatch
	}
	return nil
}

// ScanAll runs every detector in a fixed order and returns the combined
// event list. The order is deterministic; detectors themselves are pure
// and could equally run in parallel.
func ScanAll(cfg Config, in *Input) ([]*domain.PatternEvent, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var events []*domain.PatternEvent
	for _, scan := range []func(Config, *Input) []*domain.PatternEvent{
		scanPush,
		scanRefresh,
		scanCWave,
		scanOscillation,
		scanExhaust,
	} {
		events = append(events, scan(cfg, in)...)
	}
	return events, nil
}

// sign returns -1, 0 or +1.
func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
