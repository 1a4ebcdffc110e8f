package domain

// PatternKind identifies a discrete chart pattern.
type PatternKind string

// Pattern kind constants.
const (
	PatternPLDotPush             PatternKind = "PLDOT_PUSH"
	PatternPLDotRefresh          PatternKind = "PLDOT_REFRESH"
	PatternCWave                 PatternKind = "C_WAVE"
	PatternCongestionOscillation PatternKind = "CONGESTION_OSCILLATION"
	PatternExhaust               PatternKind = "EXHAUST"
)

// PatternEvent is one detected pattern occurrence. Detectors produce these
// sparsely; multiple detectors may fire independently on the same window.
type PatternEvent struct {
	Kind        PatternKind
	Direction   int // +1 bullish, -1 bearish, 0 direction-neutral
	StartMs     int64
	EndMs       int64
	Strength    int     // bar count or severity score
	AnchorPrice float64 // representative price level, used for zone clustering
}
