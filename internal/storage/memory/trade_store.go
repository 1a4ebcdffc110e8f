package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"drummond-lab/internal/domain"
	"drummond-lab/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by (run_id, symbol, entry_time_ms)
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.Trade),
	}
}

// tradeKey generates a unique key for a trade.
func tradeKey(runID, symbol string, entryTimeMs int64) string {
	return fmt.Sprintf("%s|%s|%d", runID, symbol, entryTimeMs)
}

// Insert adds a new trade. Returns ErrDuplicateKey if the key exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.RunID == "" || t.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := tradeKey(t.RunID, t.Symbol, t.EntryTimeMs)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[key] = &copy
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(_ context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(trades))

	for _, t := range trades {
		if t == nil || t.RunID == "" || t.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := tradeKey(t.RunID, t.Symbol, t.EntryTimeMs)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, t := range trades {
		copy := *t
		s.data[tradeKey(t.RunID, t.Symbol, t.EntryTimeMs)] = &copy
	}
	return nil
}

// GetByRunID retrieves all trades for a run, ordered by entry time ASC.
func (s *TradeStore) GetByRunID(_ context.Context, runID string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.RunID == runID {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].EntryTimeMs != result[j].EntryTimeMs {
			return result[i].EntryTimeMs < result[j].EntryTimeMs
		}
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}

var _ storage.TradeStore = (*TradeStore)(nil)
