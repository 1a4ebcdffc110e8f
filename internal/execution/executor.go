// Package execution implements the stateless trade executor: slippage and
// commission models, position open/close, and quantity normalization.
package execution

import (
	"errors"
	"math"

	"drummond-lab/internal/domain"
)

// Executor errors.
var (
	ErrNilPosition  = errors.New("cannot close a nil position")
	ErrInvalidPrice = errors.New("price must be positive")
)

// Config holds execution cost parameters.
type Config struct {
	SlippageBps      float64 // basis points, always adverse to the trader
	CommissionRate   float64 // fraction of notional per fill
	QuantityDecimals int     // decimal places quantities are rounded to
}

// DefaultConfig returns frictionless execution with whole-unit rounding
// to 4 decimal places.
func DefaultConfig() Config {
	return Config{
		SlippageBps:      0,
		CommissionRate:   0,
		QuantityDecimals: 4,
	}
}

// Executor applies execution costs. It is stateless: every method operates
// on explicit inputs only.
type Executor struct {
	cfg Config
}

// New creates an Executor.
func New(cfg Config) *Executor {
	if cfg.QuantityDecimals < 0 {
		cfg.QuantityDecimals = DefaultConfig().QuantityDecimals
	}
	return &Executor{cfg: cfg}
}

// ApplySlippage moves price against the trader: long entries and short
// exits pay up, long exits and short entries receive less.
func (e *Executor) ApplySlippage(price float64, side domain.Side, isEntry bool) float64 {
	adj := price * e.cfg.SlippageBps / 10_000
	payUp := (side == domain.SideLong) == isEntry
	if payUp {
		return price + adj
	}
	return price - adj
}

// Commission computes the commission for a fill.
func (e *Executor) Commission(quantity, price float64) float64 {
	return quantity * price * e.cfg.CommissionRate
}

// NormalizeQuantity rounds to the configured decimal places and floors
// negative or zero results to zero. A zero quantity is a no-op signal,
// not an error.
func (e *Executor) NormalizeQuantity(quantity float64) float64 {
	scale := math.Pow10(e.cfg.QuantityDecimals)
	q := math.Round(quantity*scale) / scale
	if q <= 0 {
		return 0
	}
	return q
}

// OpenPosition applies entry slippage and commission and returns the open
// position plus the commission charged. Returns (nil, 0, nil) when the
// normalized quantity is zero.
func (e *Executor) OpenPosition(symbol string, side domain.Side, quantity, price float64, timestampMs int64, stopPrice float64) (*domain.Position, float64, error) {
	if price <= 0 {
		return nil, 0, ErrInvalidPrice
	}
	qty := e.NormalizeQuantity(quantity)
	if qty == 0 {
		return nil, 0, nil
	}

	fillPrice := e.ApplySlippage(price, side, true)
	commission := e.Commission(qty, fillPrice)

	pos := &domain.Position{
		Symbol:          symbol,
		Side:            side,
		Quantity:        qty,
		EntryPrice:      fillPrice,
		EntryTimeMs:     timestampMs,
		EntryCommission: commission,
		StopPrice:       stopPrice,
	}
	return pos, commission, nil
}

// ClosePosition applies exit slippage, computes gross and net profit and
// returns the immutable trade record. Gross profit is quantity times the
// favorable price move; net subtracts entry and exit commission.
func (e *Executor) ClosePosition(pos *domain.Position, price float64, timestampMs int64, reason string) (*domain.Trade, error) {
	if pos == nil {
		return nil, ErrNilPosition
	}
	if price <= 0 {
		return nil, ErrInvalidPrice
	}

	fillPrice := e.ApplySlippage(price, pos.Side, false)
	exitCommission := e.Commission(pos.Quantity, fillPrice)

	gross := pos.Quantity * (fillPrice - pos.EntryPrice)
	if pos.Side == domain.SideShort {
		gross = -gross
	}
	totalCommission := pos.EntryCommission + exitCommission

	return &domain.Trade{
		Symbol:         pos.Symbol,
		Side:           pos.Side,
		Quantity:       pos.Quantity,
		EntryPrice:     pos.EntryPrice,
		EntryTimeMs:    pos.EntryTimeMs,
		ExitPrice:      fillPrice,
		ExitTimeMs:     timestampMs,
		GrossProfit:    gross,
		NetProfit:      gross - totalCommission,
		CommissionPaid: totalCommission,
		ExitReason:     reason,
	}, nil
}
