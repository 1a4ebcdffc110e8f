// Package postgres implements the trade and backtest-result stores on
// PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig tunes the connection pool. Backtest runs are bursty: a batch
// sweep persists many results back to back, then the pool sits idle.
type PoolConfig struct {
	// MaxConns caps concurrent connections. Zero keeps the pgxpool default.
	MaxConns int32
	// MinConns is the number of idle connections kept warm.
	MinConns int32
	// MaxConnIdleTime releases idle connections between runs.
	MaxConnIdleTime time.Duration
	// PingTimeout bounds the startup health check.
	PingTimeout time.Duration
}

// DefaultPoolConfig returns the defaults used by the result stores.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        8,
		MinConns:        1,
		MaxConnIdleTime: 5 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a connection pool with DefaultPoolConfig and verifies it.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	return NewPoolWithConfig(ctx, dsn, DefaultPoolConfig())
}

// NewPoolWithConfig creates a connection pool with explicit sizing. Pool
// parameters carried in the dsn (pool_max_conns and friends) win over cfg.
func NewPoolWithConfig(ctx context.Context, dsn string, cfg PoolConfig) (*Pool, error) {
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	applyPoolConfig(pc, dsn, cfg)

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	pingCtx := ctx
	if cfg.PingTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.PingTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// applyPoolConfig overlays cfg onto a parsed pgxpool config, leaving any
// value the dsn set explicitly alone.
func applyPoolConfig(pc *pgxpool.Config, dsn string, cfg PoolConfig) {
	if cfg.MaxConns > 0 && !strings.Contains(dsn, "pool_max_conns") {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 && !strings.Contains(dsn, "pool_min_conns") {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnIdleTime > 0 && !strings.Contains(dsn, "pool_max_conn_idle_time") {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// unique_violation, raised when a run id or a (run, sequence) trade key is
// inserted twice.
const pgErrUniqueViolation = "23505"

// isDuplicateKeyError reports whether err is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

// isNotFoundError reports whether err indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
