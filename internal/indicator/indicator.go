// Package indicator computes the reference-line ("PLdot") and volatility
// envelope series consumed by classification and pattern detection.
// Both outputs are aligned 1:1 with the input bars; any external producer
// honoring that contract can replace this package.
package indicator

import (
	"errors"
	"math"

	"drummond-lab/internal/domain"
)

// ErrEmptySeries is returned when no bars are provided.
var ErrEmptySeries = errors.New("empty bar series")

// Config holds indicator calculation parameters.
type Config struct {
	DotLength          int     // bars averaged into the reference dot
	EnvelopeLength     int     // bars in the envelope center window
	EnvelopeMultiplier float64 // band half-width in close stddevs
}

// DefaultConfig returns the standard Drummond parameters.
func DefaultConfig() Config {
	return Config{
		DotLength:          3,
		EnvelopeLength:     10,
		EnvelopeMultiplier: 2.0,
	}
}

// typical returns the (H+L+C)/3 price of a bar.
func typical(b *domain.Bar) float64 {
	return (b.High + b.Low + b.Close) / 3
}

// ReferenceLine computes the reference-line series for bars.
// The dot at bar i is the mean typical price of the trailing DotLength bars
// (shorter during warmup so the output stays 1:1 with the input).
func ReferenceLine(bars []*domain.Bar, intervalMs int64, cfg Config) ([]*domain.ReferenceLineSample, error) {
	if len(bars) == 0 {
		return nil, ErrEmptySeries
	}
	if cfg.DotLength <= 0 {
		cfg.DotLength = DefaultConfig().DotLength
	}

	out := make([]*domain.ReferenceLineSample, len(bars))
	prev := 0.0
	for i, b := range bars {
		start := i - cfg.DotLength + 1
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for j := start; j <= i; j++ {
			sum += typical(bars[j])
		}
		value := sum / float64(i-start+1)

		slope := 0.0
		if i > 0 {
			slope = value - prev
		}

		out[i] = &domain.ReferenceLineSample{
			TimestampMs:          b.TimestampMs,
			Value:                value,
			Slope:                slope,
			ProjectedValue:       value + slope,
			ProjectedTimestampMs: b.TimestampMs + intervalMs,
			Displacement:         b.Close - value,
		}
		prev = value
	}
	return out, nil
}

// Envelope computes the volatility envelope series for bars.
// Center is the rolling mean typical price; the band half-width is
// EnvelopeMultiplier rolling close stddevs. Position is the close's
// normalized location in the band, clamped to [0,1].
func Envelope(bars []*domain.Bar, cfg Config) ([]*domain.EnvelopeSample, error) {
	if len(bars) == 0 {
		return nil, ErrEmptySeries
	}
	if cfg.EnvelopeLength <= 0 {
		cfg.EnvelopeLength = DefaultConfig().EnvelopeLength
	}
	if cfg.EnvelopeMultiplier <= 0 {
		cfg.EnvelopeMultiplier = DefaultConfig().EnvelopeMultiplier
	}

	out := make([]*domain.EnvelopeSample, len(bars))
	for i, b := range bars {
		start := i - cfg.EnvelopeLength + 1
		if start < 0 {
			start = 0
		}
		n := float64(i - start + 1)

		mean := 0.0
		for j := start; j <= i; j++ {
			mean += typical(bars[j])
		}
		mean /= n

		variance := 0.0
		for j := start; j <= i; j++ {
			d := bars[j].Close - mean
			variance += d * d
		}
		variance /= n
		half := cfg.EnvelopeMultiplier * math.Sqrt(variance)
		if half == 0 {
			// flat window; keep a minimal band so Position stays defined
			half = math.Max(mean*1e-6, 1e-9)
		}

		upper := mean + half
		lower := mean - half
		width := upper - lower

		pos := (b.Close - lower) / width
		if pos < 0 {
			pos = 0
		}
		if pos > 1 {
			pos = 1
		}

		out[i] = &domain.EnvelopeSample{
			TimestampMs: b.TimestampMs,
			Center:      mean,
			Upper:       upper,
			Lower:       lower,
			Width:       width,
			Position:    pos,
		}
	}
	return out, nil
}
