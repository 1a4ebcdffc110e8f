// Package aggregator builds OHLCV bars from live ticks. One mutex guards
// the pending-bar map so the network-receive path and the flush timer
// never observe a half-updated accumulator.
package aggregator

import (
	"errors"
	"math"
	"sort"
	"sync"

	"drummond-lab/internal/domain"
)

// Aggregator errors
var (
	ErrUnknownInterval = errors.New("unknown interval tag")
	ErrInvalidTick     = errors.New("tick must have a symbol and positive price")
)

// bucketKey identifies one pending bar.
type bucketKey struct {
	symbol   string
	bucketMs int64
}

// Stats is a read-only snapshot of aggregator state.
type Stats struct {
	PendingBars   int
	TicksAccepted int64
	BarsFlushed   int64
}

// Aggregator accumulates ticks into per-symbol pending bars for one
// interval. Safe for concurrent use.
type Aggregator struct {
	interval   string
	intervalMs int64

	mu      sync.Mutex
	pending map[bucketKey]*domain.Bar
	// latest bucket per symbol, for GetPendingBar
	current  map[string]int64
	accepted int64
	flushed  int64
}

// New creates an Aggregator for one interval tag.
func New(interval string) (*Aggregator, error) {
	ms, ok := domain.IntervalDurationMs[interval]
	if !ok {
		return nil, ErrUnknownInterval
	}
	return &Aggregator{
		interval:   interval,
		intervalMs: ms,
		pending:    make(map[bucketKey]*domain.Bar),
		current:    make(map[string]int64),
	}, nil
}

// AlignToInterval floors a timestamp to the start of its containing
// bucket. Idempotent: aligning an aligned timestamp is a no-op.
func (a *Aggregator) AlignToInterval(timestampMs int64) int64 {
	return timestampMs - timestampMs%a.intervalMs
}

// AddTick folds one tick into its bucket's pending bar. A tick landing in
// a new bucket starts a new pending bar without discarding the prior one;
// the old bucket stays pending until flushed.
func (a *Aggregator) AddTick(tick *domain.Tick) error {
	if tick == nil || tick.Symbol == "" || tick.Price <= 0 {
		return ErrInvalidTick
	}

	bucket := a.AlignToInterval(tick.TimestampMs)
	key := bucketKey{symbol: tick.Symbol, bucketMs: bucket}

	a.mu.Lock()
	defer a.mu.Unlock()

	bar, ok := a.pending[key]
	if !ok {
		a.pending[key] = &domain.Bar{
			Symbol:      tick.Symbol,
			Interval:    a.interval,
			TimestampMs: bucket,
			Open:        tick.Price,
			High:        tick.Price,
			Low:         tick.Price,
			Close:       tick.Price,
			Volume:      tick.Volume,
		}
		if bucket > a.current[tick.Symbol] {
			a.current[tick.Symbol] = bucket
		}
		a.accepted++
		return nil
	}

	if tick.Price > bar.High {
		bar.High = tick.Price
	}
	if tick.Price < bar.Low {
		bar.Low = tick.Price
	}
	bar.Close = tick.Price
	bar.Volume += tick.Volume
	a.accepted++
	return nil
}

// FlushBefore returns and removes every pending bar whose bucket start is
// strictly before cutoffMs, sorted by (timestamp, symbol) for determinism.
// Newer buckets stay pending.
func (a *Aggregator) FlushBefore(cutoffMs int64) []*domain.Bar {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []*domain.Bar
	for key, bar := range a.pending {
		if key.bucketMs < cutoffMs {
			out = append(out, bar)
			delete(a.pending, key)
			if a.current[key.symbol] == key.bucketMs {
				delete(a.current, key.symbol)
			}
		}
	}
	a.flushed += int64(len(out))

	sort.Slice(out, func(i, j int) bool {
		if out[i].TimestampMs != out[j].TimestampMs {
			return out[i].TimestampMs < out[j].TimestampMs
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// FlushAll drains every pending bar. Used on shutdown so no in-progress
// bar is lost.
func (a *Aggregator) FlushAll() []*domain.Bar {
	return a.FlushBefore(math.MaxInt64)
}

// GetPendingBar returns a copy of the symbol's newest pending bar, or nil
// when the symbol has none. Read-only, no side effects.
func (a *Aggregator) GetPendingBar(symbol string) *domain.Bar {
	a.mu.Lock()
	defer a.mu.Unlock()

	bucket, ok := a.current[symbol]
	if !ok {
		return nil
	}
	bar, ok := a.pending[bucketKey{symbol: symbol, bucketMs: bucket}]
	if !ok {
		return nil
	}
	copied := *bar
	return &copied
}

// GetStats returns a snapshot of counters. Read-only, no side effects.
func (a *Aggregator) GetStats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		PendingBars:   len(a.pending),
		TicksAccepted: a.accepted,
		BarsFlushed:   a.flushed,
	}
}
