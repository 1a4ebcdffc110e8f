// Package feed provides live tick sources (websocket, kafka) and the
// kafka publisher for aggregated bars.
package feed

import (
	"context"

	"drummond-lab/internal/domain"
)

// TickSource streams live ticks. Implementations own their connection
// lifecycle; Read returns the tick and error channels, both closed when
// the source stops.
type TickSource interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *domain.Tick, <-chan error)
	Close() error
}
