package domain

// Bar represents a single OHLCV bar for a symbol/interval.
// Immutable once created; produced either by historical load or by the
// tick aggregator on bucket flush.
type Bar struct {
	Symbol      string
	Exchange    string
	Interval    string // interval tag, e.g. "5m", "30m", "1d"
	TimestampMs int64  // bucket start, Unix milliseconds
	Open        float64
	High        float64
	Low         float64
	Close       float64
	AdjClose    float64
	Volume      float64
}

// Tick represents a single trade tick from a live stream.
// Transient input to the aggregator; never persisted directly.
type Tick struct {
	Symbol      string
	TimestampMs int64
	Price       float64
	Volume      float64
	TradeType   string // optional venue-specific tag
}

// Interval tag constants for the intervals the system works with.
const (
	Interval1Min  = "1m"
	Interval5Min  = "5m"
	Interval30Min = "30m"
	Interval1Hour = "1h"
	Interval1Day  = "1d"
)

// IntervalDurationMs maps interval tags to their length in milliseconds.
var IntervalDurationMs = map[string]int64{
	Interval1Min:  60_000,
	Interval5Min:  300_000,
	Interval30Min: 1_800_000,
	Interval1Hour: 3_600_000,
	Interval1Day:  86_400_000,
}
