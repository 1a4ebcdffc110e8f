package domain

// ReferenceLineSample is one point of the trend-following reference line
// (the "PLdot"), aligned 1:1 with a bar.
type ReferenceLineSample struct {
	TimestampMs          int64
	Value                float64
	Slope                float64 // per-bar change of the line
	ProjectedValue       float64 // projected value for the next bar
	ProjectedTimestampMs int64
	Displacement         float64 // close minus line value at this bar
}

// EnvelopeSample is one point of the volatility envelope, aligned 1:1 with a bar.
// Position is normalized within the band: 0 = at the lower band, 1 = at the upper.
type EnvelopeSample struct {
	TimestampMs int64
	Center      float64
	Upper       float64
	Lower       float64
	Width       float64
	Position    float64
}
