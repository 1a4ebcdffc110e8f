package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"drummond-lab/internal/domain"
	"drummond-lab/internal/storage"
)

// StateStore is an in-memory implementation of storage.StateStore.
type StateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MarketStateRecord // keyed by (symbol, interval, timestamp_ms)
}

// NewStateStore creates a new in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{
		data: make(map[string]*domain.MarketStateRecord),
	}
}

// stateKey generates a unique key for a state record.
func stateKey(symbol, interval string, timestampMs int64) string {
	return fmt.Sprintf("%s|%s|%d", symbol, interval, timestampMs)
}

// InsertBulk adds multiple state records atomically. Fails entire batch on duplicate.
func (s *StateStore) InsertBulk(_ context.Context, states []*domain.MarketStateRecord) error {
	if len(states) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(states))

	for _, st := range states {
		if st == nil || st.Symbol == "" || st.Interval == "" {
			return storage.ErrInvalidInput
		}
		key := stateKey(st.Symbol, st.Interval, st.TimestampMs)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, st := range states {
		copy := *st
		s.data[stateKey(st.Symbol, st.Interval, st.TimestampMs)] = &copy
	}
	return nil
}

// GetByTimeRange retrieves states within [start, end] inclusive, ordered by timestamp ASC.
func (s *StateStore) GetByTimeRange(_ context.Context, symbol, interval string, start, end int64) ([]*domain.MarketStateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketStateRecord
	for _, st := range s.data {
		if st.Symbol == symbol && st.Interval == interval && st.TimestampMs >= start && st.TimestampMs <= end {
			copy := *st
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

// GetLatest retrieves the newest state for a symbol/interval. Returns ErrNotFound if none.
func (s *StateStore) GetLatest(_ context.Context, symbol, interval string) (*domain.MarketStateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.MarketStateRecord
	for _, st := range s.data {
		if st.Symbol != symbol || st.Interval != interval {
			continue
		}
		if latest == nil || st.TimestampMs > latest.TimestampMs {
			latest = st
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}

var _ storage.StateStore = (*StateStore)(nil)
