package memory

import (
	"context"
	"sort"
	"sync"

	"drummond-lab/internal/domain"
	"drummond-lab/internal/storage"
)

// BacktestResultStore is an in-memory implementation of storage.BacktestResultStore.
type BacktestResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BacktestResult // keyed by run_id
}

// NewBacktestResultStore creates a new in-memory result store.
func NewBacktestResultStore() *BacktestResultStore {
	return &BacktestResultStore{
		data: make(map[string]*domain.BacktestResult),
	}
}

// Insert adds a new result. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestResultStore) Insert(_ context.Context, r *domain.BacktestResult) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.RunID] = copyResult(r)
	return nil
}

// GetByRunID retrieves a result by run ID. Returns ErrNotFound if not exists.
func (s *BacktestResultStore) GetByRunID(_ context.Context, runID string) (*domain.BacktestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyResult(r), nil
}

// GetByStrategyID retrieves all results for a strategy, newest first by
// final equity-curve timestamp.
func (s *BacktestResultStore) GetByStrategyID(_ context.Context, strategyID string) ([]*domain.BacktestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BacktestResult
	for _, r := range s.data {
		if r.StrategyID == strategyID {
			result = append(result, copyResult(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return lastCurveMs(result[i]) > lastCurveMs(result[j])
	})
	return result, nil
}

// copyResult deep-copies a result so callers cannot mutate stored state.
func copyResult(r *domain.BacktestResult) *domain.BacktestResult {
	copied := *r
	copied.Symbols = append([]string(nil), r.Symbols...)
	copied.Trades = make([]*domain.Trade, len(r.Trades))
	for i, t := range r.Trades {
		trade := *t
		copied.Trades[i] = &trade
	}
	copied.EquityCurve = make([]*domain.PortfolioSnapshot, len(r.EquityCurve))
	for i, p := range r.EquityCurve {
		snap := *p
		copied.EquityCurve[i] = &snap
	}
	if r.Metadata != nil {
		copied.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			copied.Metadata[k] = v
		}
	}
	return &copied
}

func lastCurveMs(r *domain.BacktestResult) int64 {
	if len(r.EquityCurve) == 0 {
		return 0
	}
	return r.EquityCurve[len(r.EquityCurve)-1].TimestampMs
}

var _ storage.BacktestResultStore = (*BacktestResultStore)(nil)
