package clickhouse

import (
	"context"
	"fmt"

	"drummond-lab/internal/domain"
	"drummond-lab/internal/storage"
)

// StateStore implements storage.StateStore using ClickHouse.
type StateStore struct {
	conn *Conn
}

// NewStateStore creates a new StateStore.
func NewStateStore(conn *Conn) *StateStore {
	return &StateStore{conn: conn}
}

// Compile-time interface check.
var _ storage.StateStore = (*StateStore)(nil)

// InsertBulk adds multiple state records. Fails entire batch on duplicate
// (symbol, interval, timestamp_ms).
func (s *StateStore) InsertBulk(ctx context.Context, states []*domain.MarketStateRecord) error {
	if len(states) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol      string
		interval    string
		timestampMs int64
	}
	seen := make(map[key]struct{})
	for _, st := range states {
		if st == nil || st.Symbol == "" || st.Interval == "" {
			return storage.ErrInvalidInput
		}
		k := key{st.Symbol, st.Interval, st.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, st := range states {
		exists, err := s.exists(ctx, st.Symbol, st.Interval, st.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_states (
			symbol, "interval", timestamp_ms,
			regime, direction, confidence, bars_in_state, slope_trend, reason
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, st := range states {
		err = batch.Append(
			st.Symbol, st.Interval, st.TimestampMs,
			string(st.Regime), string(st.Direction), st.Confidence,
			int32(st.BarsInState), string(st.SlopeTrend), st.Reason,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves states within [start, end] (inclusive), ordered by timestamp ASC.
func (s *StateStore) GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]*domain.MarketStateRecord, error) {
	query := `
		SELECT symbol, "interval", timestamp_ms,
		       regime, direction, confidence, bars_in_state, slope_trend, reason
		FROM market_states
		WHERE symbol = ? AND "interval" = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, interval, start, end)
	if err != nil {
		return nil, fmt.Errorf("query states by time range: %w", err)
	}
	defer rows.Close()

	return scanStates(rows)
}

// GetLatest retrieves the newest state for a symbol/interval.
// Returns ErrNotFound if none exists.
func (s *StateStore) GetLatest(ctx context.Context, symbol, interval string) (*domain.MarketStateRecord, error) {
	query := `
		SELECT symbol, "interval", timestamp_ms,
		       regime, direction, confidence, bars_in_state, slope_trend, reason
		FROM market_states
		WHERE symbol = ? AND "interval" = ?
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("query latest state: %w", err)
	}
	defer rows.Close()

	states, err := scanStates(rows)
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, storage.ErrNotFound
	}
	return states[0], nil
}

// exists checks if a state with the given key exists.
func (s *StateStore) exists(ctx context.Context, symbol, interval string, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM market_states
		WHERE symbol = ? AND "interval" = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, interval, timestampMs).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanStates scans multiple rows.
func scanStates(rows chRows) ([]*domain.MarketStateRecord, error) {
	var states []*domain.MarketStateRecord

	for rows.Next() {
		var st domain.MarketStateRecord
		var regime, direction, slopeTrend string
		var barsInState int32

		err := rows.Scan(
			&st.Symbol, &st.Interval, &st.TimestampMs,
			&regime, &direction, &st.Confidence, &barsInState, &slopeTrend, &st.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan state row: %w", err)
		}

		st.Regime = domain.Regime(regime)
		st.Direction = domain.TrendDirection(direction)
		st.SlopeTrend = domain.SlopeTrend(slopeTrend)
		st.BarsInState = int(barsInState)
		states = append(states, &st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state rows: %w", err)
	}

	return states, nil
}
