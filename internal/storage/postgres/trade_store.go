package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"drummond-lab/internal/domain"
	"drummond-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const insertTradeQuery = `
	INSERT INTO backtest_trades (
		run_id, symbol, side, quantity,
		entry_price, entry_time_ms, exit_price, exit_time_ms,
		gross_profit, net_profit, commission_paid, exit_reason
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8,
		$9, $10, $11, $12
	)
`

const selectTradeColumns = `
	run_id, symbol, side, quantity,
	entry_price, entry_time_ms, exit_price, exit_time_ms,
	gross_profit, net_profit, commission_paid, exit_reason
`

// Insert adds a new trade. Returns ErrDuplicateKey if the
// (run_id, symbol, entry_time_ms) key exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.RunID == "" || t.Symbol == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTradeQuery,
		t.RunID, t.Symbol, string(t.Side), t.Quantity,
		t.EntryPrice, t.EntryTimeMs, t.ExitPrice, t.ExitTimeMs,
		t.GrossProfit, t.NetProfit, t.CommissionPaid, t.ExitReason,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if t == nil || t.RunID == "" || t.Symbol == "" {
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
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves all trades for a run, ordered by entry time ASC.
func (s *TradeStore) GetByRunID(ctx context.Context, runID string) ([]*domain.Trade, error) {
	query := `
		SELECT ` + selectTradeColumns + `
		FROM backtest_trades
		WHERE run_id = $1
		ORDER BY entry_time_ms ASC, symbol ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trades by run id: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var t domain.Trade
		var side string
		err := rows.Scan(
			&t.RunID, &t.Symbol, &side, &t.Quantity,
			&t.EntryPrice, &t.EntryTimeMs, &t.ExitPrice, &t.ExitTimeMs,
			&t.GrossProfit, &t.NetProfit, &t.CommissionPaid, &t.ExitReason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		t.Side = domain.Side(side)
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}
