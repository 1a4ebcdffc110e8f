// Package engine runs single-symbol backtests: it replays a bar series
// through a strategy, validates signals against position state, settles
// fills through the executor and produces a BacktestResult.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"drummond-lab/internal/domain"
	"drummond-lab/internal/execution"
	"drummond-lab/internal/strategy"
)

// Engine errors
var (
	ErrNoBars          = errors.New("bar series is empty")
	ErrNonMonotonic    = errors.New("bar timestamps must be strictly increasing")
	ErrSymbolMismatch  = errors.New("all bars must share one symbol")
	ErrNegativeEquity  = errors.New("equity went negative")
	ErrInvalidStarting = errors.New("starting cash must be positive")
)

// Config controls a backtest run.
type Config struct {
	StartingCash  float64
	DefaultSize   float64 // used when a signal carries no size; 0 means 1 unit
	HistoryWindow int     // bars of history handed to the strategy; 0 means 100
}

// DefaultConfig returns a run with 10000 starting cash, unit sizing and a
// 100-bar history window.
func DefaultConfig() Config {
	return Config{StartingCash: 10_000, DefaultSize: 1, HistoryWindow: 100}
}

// Input is one backtest request. Analyses are keyed by bar timestamp and
// may be sparse; bars without a snapshot reach the strategy with a nil
// Analysis field.
type Input struct {
	Bars     []*domain.Bar
	Analyses map[int64]*domain.MultiTimeframeAnalysis
}

// Engine replays bars through one strategy instance. Not safe for
// concurrent use; create one Engine per run.
type Engine struct {
	cfg  Config
	exec *execution.Executor
}

// New creates an Engine.
func New(cfg Config, exec *execution.Executor) *Engine {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultConfig().HistoryWindow
	}
	if cfg.DefaultSize <= 0 {
		cfg.DefaultSize = 1
	}
	return &Engine{cfg: cfg, exec: exec}
}

// Run replays the bar series through the strategy and returns the finished
// result. The position is force-closed on the last bar if still open, and
// every bar contributes exactly one equity snapshot.
func (e *Engine) Run(ctx context.Context, strat strategy.Strategy, in Input) (*domain.BacktestResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if e.cfg.StartingCash <= 0 {
		return nil, ErrInvalidStarting
	}

	if err := strat.Prepare(in.Bars); err != nil {
		return nil, fmt.Errorf("prepare strategy: %w", err)
	}

	symbol := in.Bars[0].Symbol
	runID := uuid.NewString()

	cash := e.cfg.StartingCash
	var pos *domain.Position
	var trades []*domain.Trade
	curve := make([]*domain.PortfolioSnapshot, 0, len(in.Bars))
	rejected := 0

	for i, bar := range in.Bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bc := &strategy.BarContext{
			Bar:      bar,
			Position: pos,
			Cash:     cash,
			Equity:   markToMarket(cash, pos, bar.Close),
			Analysis: in.Analyses[bar.TimestampMs],
			History:  historyWindow(in.Bars, i, e.cfg.HistoryWindow),
		}

		signals, err := strat.OnBar(ctx, bc)
		if err != nil {
			return nil, fmt.Errorf("strategy on bar %d: %w", bar.TimestampMs, err)
		}

		for _, sig := range signals {
			applied, err := e.apply(sig, &pos, &cash, symbol, bar, runID, &trades)
			if err != nil {
				return nil, err
			}
			if !applied {
				rejected++
			}
		}

		// force-close at end of data so the result carries no open risk
		if i == len(in.Bars)-1 && pos != nil {
			trade, err := e.settleClose(pos, bar, domain.ExitReasonEndOfData, runID, &cash)
			if err != nil {
				return nil, err
			}
			trades = append(trades, trade)
			pos = nil
		}

		equity := markToMarket(cash, pos, bar.Close)
		if equity < 0 {
			return nil, fmt.Errorf("%w at bar %d: equity=%f", ErrNegativeEquity, bar.TimestampMs, equity)
		}
		curve = append(curve, &domain.PortfolioSnapshot{
			TimestampMs: bar.TimestampMs,
			Equity:      equity,
			Cash:        cash,
		})
	}

	return &domain.BacktestResult{
		RunID:           runID,
		StrategyID:      strat.ID(),
		Symbols:         []string{symbol},
		StartingCash:    e.cfg.StartingCash,
		EndingCash:      cash,
		EndingEquity:    curve[len(curve)-1].Equity,
		Trades:          trades,
		EquityCurve:     curve,
		SignalsRejected: rejected,
	}, nil
}

// apply validates one signal against position state and settles it. It
// reports false when the signal is rejected without error: entries while
// a position is open, exits while flat, and zero-quantity entries.
func (e *Engine) apply(sig *strategy.Signal, pos **domain.Position, cash *float64, symbol string, bar *domain.Bar, runID string, trades *[]*domain.Trade) (bool, error) {
	switch sig.Action {
	case strategy.SignalEnterLong, strategy.SignalEnterShort:
		if *pos != nil {
			return false, nil
		}
		side := domain.SideLong
		if sig.Action == strategy.SignalEnterShort {
			side = domain.SideShort
		}
		size := sig.Size
		if size <= 0 {
			size = e.cfg.DefaultSize
		}
		opened, commission, err := e.exec.OpenPosition(symbol, side, size, bar.Close, bar.TimestampMs, sig.StopPrice)
		if err != nil {
			return false, err
		}
		if opened == nil {
			return false, nil
		}
		if side == domain.SideLong {
			*cash -= opened.Quantity*opened.EntryPrice + commission
		} else {
			*cash += opened.Quantity*opened.EntryPrice - commission
		}
		*pos = opened
		return true, nil

	case strategy.SignalExitLong, strategy.SignalExitShort:
		p := *pos
		if p == nil {
			return false, nil
		}
		wantSide := domain.SideLong
		if sig.Action == strategy.SignalExitShort {
			wantSide = domain.SideShort
		}
		if p.Side != wantSide {
			return false, nil
		}
		reason := sig.Reason
		if reason == "" {
			reason = domain.ExitReasonSignal
		}
		trade, err := e.settleClose(p, bar, reason, runID, cash)
		if err != nil {
			return false, err
		}
		*trades = append(*trades, trade)
		*pos = nil
		return true, nil

	default:
		return false, nil
	}
}

// settleClose closes the position at the bar close and settles cash.
func (e *Engine) settleClose(pos *domain.Position, bar *domain.Bar, reason, runID string, cash *float64) (*domain.Trade, error) {
	trade, err := e.exec.ClosePosition(pos, bar.Close, bar.TimestampMs, reason)
	if err != nil {
		return nil, err
	}
	trade.RunID = runID

	exitCommission := trade.CommissionPaid - pos.EntryCommission
	if pos.Side == domain.SideLong {
		*cash += trade.Quantity*trade.ExitPrice - exitCommission
	} else {
		*cash -= trade.Quantity*trade.ExitPrice + exitCommission
	}
	return trade, nil
}

// markToMarket values open positions at the given price.
func markToMarket(cash float64, pos *domain.Position, price float64) float64 {
	if pos == nil {
		return cash
	}
	if pos.Side == domain.SideLong {
		return cash + pos.Quantity*price
	}
	return cash - pos.Quantity*price
}

// historyWindow returns the bounded slice of bars up to and including i.
func historyWindow(bars []*domain.Bar, i, window int) []*domain.Bar {
	start := i + 1 - window
	if start < 0 {
		start = 0
	}
	return bars[start : i+1]
}

func validateInput(in Input) error {
	if len(in.Bars) == 0 {
		return ErrNoBars
	}
	symbol := in.Bars[0].Symbol
	for i, b := range in.Bars {
		if b.Symbol != symbol {
			return ErrSymbolMismatch
		}
		if i > 0 && b.TimestampMs <= in.Bars[i-1].TimestampMs {
			return ErrNonMonotonic
		}
	}
	return nil
}
