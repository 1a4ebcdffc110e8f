package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"drummond-lab/internal/domain"
	"drummond-lab/internal/storage"
)

// BacktestResultStore implements storage.BacktestResultStore using PostgreSQL.
// Trades are persisted alongside the result row in the same transaction so a
// stored run is always complete.
type BacktestResultStore struct {
	pool *Pool
}

// NewBacktestResultStore creates a new BacktestResultStore.
func NewBacktestResultStore(pool *Pool) *BacktestResultStore {
	return &BacktestResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestResultStore = (*BacktestResultStore)(nil)

const insertResultQuery = `
	INSERT INTO backtest_results (
		run_id, strategy_id, symbols,
		starting_cash, ending_cash, ending_equity,
		signals_rejected, equity_curve, metadata
	) VALUES (
		$1, $2, $3,
		$4, $5, $6,
		$7, $8, $9
	)
`

// Insert stores a finished run and its trades atomically.
// Returns ErrDuplicateKey if the run_id already exists.
func (s *BacktestResultStore) Insert(ctx context.Context, r *domain.BacktestResult) error {
	if r == nil || r.RunID == "" || r.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	curve, err := json.Marshal(r.EquityCurve)
	if err != nil {
		return fmt.Errorf("marshal equity curve: %w", err)
	}
	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, insertResultQuery,
		r.RunID, r.StrategyID, r.Symbols,
		r.StartingCash, r.EndingCash, r.EndingEquity,
		r.SignalsRejected, curve, meta,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert result: %w", err)
	}

	for _, t := range r.Trades {
		if t == nil {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertTradeQuery,
			t.RunID, t.Symbol, string(t.Side), t.Quantity,
			t.EntryPrice, t.EntryTimeMs, t.ExitPrice, t.ExitTimeMs,
			t.GrossProfit, t.NetProfit, t.CommissionPaid, t.ExitReason,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert result trade: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves a stored run with its trades and equity curve.
// Returns ErrNotFound if the run does not exist.
func (s *BacktestResultStore) GetByRunID(ctx context.Context, runID string) (*domain.BacktestResult, error) {
	query := `
		SELECT run_id, strategy_id, symbols,
		       starting_cash, ending_cash, ending_equity,
		       signals_rejected, equity_curve, metadata
		FROM backtest_results
		WHERE run_id = $1
	`

	var r domain.BacktestResult
	var curve, meta []byte
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&r.RunID, &r.StrategyID, &r.Symbols,
		&r.StartingCash, &r.EndingCash, &r.EndingEquity,
		&r.SignalsRejected, &curve, &meta,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get result by run id: %w", err)
	}

	if err := decodeResultJSON(&r, curve, meta); err != nil {
		return nil, err
	}

	trades, err := NewTradeStore(s.pool).GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	r.Trades = trades

	return &r, nil
}

// GetByStrategyID retrieves runs for a strategy, newest first.
func (s *BacktestResultStore) GetByStrategyID(ctx context.Context, strategyID string) ([]*domain.BacktestResult, error) {
	query := `
		SELECT run_id, strategy_id, symbols,
		       starting_cash, ending_cash, ending_equity,
		       signals_rejected, equity_curve, metadata
		FROM backtest_results
		WHERE strategy_id = $1
		ORDER BY created_at DESC, run_id DESC
	`

	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get results by strategy id: %w", err)
	}
	defer rows.Close()

	var results []*domain.BacktestResult
	for rows.Next() {
		var r domain.BacktestResult
		var curve, meta []byte
		err := rows.Scan(
			&r.RunID, &r.StrategyID, &r.Symbols,
			&r.StartingCash, &r.EndingCash, &r.EndingEquity,
			&r.SignalsRejected, &curve, &meta,
		)
		if err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		if err := decodeResultJSON(&r, curve, meta); err != nil {
			return nil, err
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}

	tradeStore := NewTradeStore(s.pool)
	for _, r := range results {
		trades, err := tradeStore.GetByRunID(ctx, r.RunID)
		if err != nil {
			return nil, err
		}
		r.Trades = trades
	}

	return results, nil
}

func decodeResultJSON(r *domain.BacktestResult, curve, meta []byte) error {
	if len(curve) > 0 {
		if err := json.Unmarshal(curve, &r.EquityCurve); err != nil {
			return fmt.Errorf("unmarshal equity curve: %w", err)
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			return fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return nil
}
