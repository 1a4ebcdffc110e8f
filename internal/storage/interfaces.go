package storage

import (
	"context"

	"drummond-lab/internal/domain"
)

// BarStore provides access to OHLCV bar storage.
type BarStore interface {
	// InsertBulk adds multiple bars atomically. Fails entire batch on
	// duplicate (symbol, interval, timestamp_ms).
	InsertBulk(ctx context.Context, bars []*domain.Bar) error

	// GetBySymbol retrieves all bars for a symbol/interval, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol, interval string) ([]*domain.Bar, error)

	// GetByTimeRange retrieves bars within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]*domain.Bar, error)
}

// StateStore provides access to market state classification storage.
type StateStore interface {
	// InsertBulk adds multiple state records atomically. Fails entire batch
	// on duplicate (symbol, interval, timestamp_ms).
	InsertBulk(ctx context.Context, states []*domain.MarketStateRecord) error

	// GetByTimeRange retrieves states within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]*domain.MarketStateRecord, error)

	// GetLatest retrieves the newest state for a symbol/interval. Returns ErrNotFound if none.
	GetLatest(ctx context.Context, symbol, interval string) (*domain.MarketStateRecord, error)
}

// TradeStore provides access to backtest trade storage.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if
	// (run_id, symbol, entry_time_ms) exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetByRunID retrieves all trades for a run, ordered by entry time ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.Trade, error)
}

// BacktestResultStore provides access to finished backtest results.
type BacktestResultStore interface {
	// Insert adds a new result. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.BacktestResult) error

	// GetByRunID retrieves a result by run ID. Returns ErrNotFound if not exists.
	GetByRunID(ctx context.Context, runID string) (*domain.BacktestResult, error)

	// GetByStrategyID retrieves all results for a strategy, newest first.
	GetByStrategyID(ctx context.Context, strategyID string) ([]*domain.BacktestResult, error)
}
