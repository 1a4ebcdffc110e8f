// Package portfolio runs multi-symbol backtests over one synchronized
// timeline with a shared cash pool, risk-based sizing and portfolio caps.
package portfolio

import (
	"sort"

	"drummond-lab/internal/domain"
)

// Timestep is one point of the synchronized timeline. Symbols lists which
// symbols have a bar at this timestamp, in ascending order; a symbol being
// absent at a step is expected, not an error.
type Timestep struct {
	TimestampMs int64
	Symbols     []string
}

// BuildTimeline returns the sorted union of all symbols' bar timestamps.
// Symbol order within a step is lexicographic so replays are deterministic.
func BuildTimeline(series map[string][]*domain.Bar) []Timestep {
	bySymbol := make(map[int64][]string)
	for symbol, bars := range series {
		for _, b := range bars {
			bySymbol[b.TimestampMs] = append(bySymbol[b.TimestampMs], symbol)
		}
	}

	steps := make([]Timestep, 0, len(bySymbol))
	for ts, symbols := range bySymbol {
		sort.Strings(symbols)
		steps = append(steps, Timestep{TimestampMs: ts, Symbols: symbols})
	}
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].TimestampMs < steps[j].TimestampMs
	})
	return steps
}
