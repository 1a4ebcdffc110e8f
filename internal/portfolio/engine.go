package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"drummond-lab/internal/domain"
	"drummond-lab/internal/execution"
	"drummond-lab/internal/strategy"
)

// Engine errors
var (
	ErrNoSeries        = errors.New("no bar series provided")
	ErrNonMonotonic    = errors.New("bar timestamps must be strictly increasing per symbol")
	ErrNegativeEquity  = errors.New("portfolio equity went negative")
	ErrInvalidStarting = errors.New("starting cash must be positive")
)

// Config controls a portfolio run. Risk and cap percentages are fractions,
// e.g. RiskPerTradePct 0.01 risks 1% of equity per entry.
type Config struct {
	StartingCash        float64
	RiskPerTradePct     float64
	MaxPositions        int
	MaxPortfolioRiskPct float64
	MaxSignalsPerBar    int
	HistoryWindow       int
	Session             *Session // nil disables the regular-hours filter
}

// DefaultConfig returns 100k starting cash, 1% risk per trade, at most 10
// open positions, 10% total at-risk capital and 5 new entries per timestep.
func DefaultConfig() Config {
	return Config{
		StartingCash:        100_000,
		RiskPerTradePct:     0.01,
		MaxPositions:        10,
		MaxPortfolioRiskPct: 0.10,
		MaxSignalsPerBar:    5,
		HistoryWindow:       100,
	}
}

// Input is one portfolio backtest request. Analyses are keyed by symbol,
// then bar timestamp, and may be sparse.
type Input struct {
	Series   map[string][]*domain.Bar
	Analyses map[string]map[int64]*domain.MultiTimeframeAnalysis
}

// Engine replays a synchronized multi-symbol timeline through one strategy
// instance with shared cash. Logically single-threaded per run; concurrency
// belongs across runs, not inside one.
type Engine struct {
	cfg  Config
	exec *execution.Executor
}

// New creates a portfolio Engine.
func New(cfg Config, exec *execution.Executor) *Engine {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultConfig().HistoryWindow
	}
	return &Engine{cfg: cfg, exec: exec}
}

// runState is the mutable state of one run.
type runState struct {
	cash      float64
	positions map[string]*domain.Position
	lastClose map[string]float64
	cursor    map[string]int // per-symbol index into its bar series
	trades    []*domain.Trade
	rejected  int
	runID     string
}

// pendingEntry is an accepted-for-consideration entry signal, held until
// caps are applied at the end of the timestep.
type pendingEntry struct {
	symbol string
	bar    *domain.Bar
	sig    *strategy.Signal
}

// Run replays every symbol's bars in one synchronized timestamp order and
// returns a unified result. Within a timestep exits settle immediately;
// new entries queue and are admitted in symbol order under the caps.
func (e *Engine) Run(ctx context.Context, strat strategy.Strategy, in Input) (*domain.BacktestResult, error) {
	if err := e.validate(in); err != nil {
		return nil, err
	}

	if err := strat.Prepare(nil); err != nil {
		return nil, fmt.Errorf("prepare strategy: %w", err)
	}

	timeline := BuildTimeline(in.Series)
	st := &runState{
		cash:      e.cfg.StartingCash,
		positions: make(map[string]*domain.Position),
		lastClose: make(map[string]float64),
		cursor:    make(map[string]int),
		runID:     uuid.NewString(),
	}

	curve := make([]*domain.PortfolioSnapshot, 0, len(timeline))

	for _, step := range timeline {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var entries []pendingEntry

		for _, symbol := range step.Symbols {
			bar := in.Series[symbol][st.cursor[symbol]]
			st.cursor[symbol]++
			st.lastClose[symbol] = bar.Close

			if e.cfg.Session != nil && !e.cfg.Session.Contains(bar.TimestampMs) {
				continue
			}

			bc := &strategy.BarContext{
				Bar:      bar,
				Position: st.positions[symbol],
				Cash:     st.cash,
				Equity:   e.equity(st),
				Analysis: analysisFor(in.Analyses, symbol, bar.TimestampMs),
				History:  e.history(in.Series[symbol], st.cursor[symbol]-1),
			}

			signals, err := strat.OnBar(ctx, bc)
			if err != nil {
				return nil, fmt.Errorf("strategy on %s bar %d: %w", symbol, bar.TimestampMs, err)
			}

			for _, sig := range signals {
				switch sig.Action {
				case strategy.SignalEnterLong, strategy.SignalEnterShort:
					if st.positions[symbol] != nil {
						st.rejected++
						continue
					}
					entries = append(entries, pendingEntry{symbol: symbol, bar: bar, sig: sig})
				case strategy.SignalExitLong, strategy.SignalExitShort:
					if err := e.applyExit(st, symbol, bar, sig); err != nil {
						return nil, err
					}
				default:
					st.rejected++
				}
			}
		}

		if err := e.admitEntries(st, entries); err != nil {
			return nil, err
		}

		equity := e.equity(st)
		if equity < 0 {
			return nil, fmt.Errorf("%w at %d: equity=%f", ErrNegativeEquity, step.TimestampMs, equity)
		}
		curve = append(curve, &domain.PortfolioSnapshot{
			TimestampMs: step.TimestampMs,
			Equity:      equity,
			Cash:        st.cash,
		})
	}

	if err := e.closeAll(st, timeline); err != nil {
		return nil, err
	}
	if len(curve) > 0 {
		last := curve[len(curve)-1]
		last.Equity = e.equity(st)
		last.Cash = st.cash
	}

	symbols := make([]string, 0, len(in.Series))
	for s := range in.Series {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	result := &domain.BacktestResult{
		RunID:           st.runID,
		StrategyID:      strat.ID(),
		Symbols:         symbols,
		StartingCash:    e.cfg.StartingCash,
		EndingCash:      st.cash,
		Trades:          st.trades,
		EquityCurve:     curve,
		SignalsRejected: st.rejected,
	}
	if len(curve) > 0 {
		result.EndingEquity = curve[len(curve)-1].Equity
	} else {
		result.EndingEquity = st.cash
	}
	return result, nil
}

// admitEntries applies the portfolio caps to queued entries in symbol
// order: max new signals per timestep, max open positions and max total
// at-risk capital. Dropped entries count as rejected.
func (e *Engine) admitEntries(st *runState, entries []pendingEntry) error {
	admitted := 0
	for _, pe := range entries {
		if e.cfg.MaxSignalsPerBar > 0 && admitted >= e.cfg.MaxSignalsPerBar {
			st.rejected++
			continue
		}
		if e.cfg.MaxPositions > 0 && len(st.positions) >= e.cfg.MaxPositions {
			st.rejected++
			continue
		}

		equity := e.equity(st)
		qty := pe.sig.Size
		if qty <= 0 {
			qty = e.riskQuantity(equity, pe.bar.Close, pe.sig.StopPrice)
		}

		side := domain.SideLong
		if pe.sig.Action == strategy.SignalEnterShort {
			side = domain.SideShort
		}
		pos, commission, err := e.exec.OpenPosition(pe.symbol, side, qty, pe.bar.Close, pe.bar.TimestampMs, pe.sig.StopPrice)
		if err != nil {
			return err
		}
		if pos == nil {
			st.rejected++
			continue
		}

		if e.cfg.MaxPortfolioRiskPct > 0 {
			total := pos.AtRisk()
			for _, p := range st.positions {
				total += p.AtRisk()
			}
			if total > e.cfg.MaxPortfolioRiskPct*equity {
				st.rejected++
				continue
			}
		}

		if side == domain.SideLong {
			st.cash -= pos.Quantity*pos.EntryPrice + commission
		} else {
			st.cash += pos.Quantity*pos.EntryPrice - commission
		}
		st.positions[pe.symbol] = pos
		admitted++
	}
	return nil
}

// applyExit settles an exit signal against the symbol's open position.
// Flat symbols and wrong-side exits are rejections, not errors.
func (e *Engine) applyExit(st *runState, symbol string, bar *domain.Bar, sig *strategy.Signal) error {
	pos := st.positions[symbol]
	if pos == nil {
		st.rejected++
		return nil
	}
	wantSide := domain.SideLong
	if sig.Action == strategy.SignalExitShort {
		wantSide = domain.SideShort
	}
	if pos.Side != wantSide {
		st.rejected++
		return nil
	}
	reason := sig.Reason
	if reason == "" {
		reason = domain.ExitReasonSignal
	}
	return e.settleClose(st, pos, bar.Close, bar.TimestampMs, reason)
}

// closeAll force-closes every remaining position at its symbol's last
// observed close.
func (e *Engine) closeAll(st *runState, timeline []Timestep) error {
	if len(st.positions) == 0 || len(timeline) == 0 {
		return nil
	}
	endMs := timeline[len(timeline)-1].TimestampMs

	symbols := make([]string, 0, len(st.positions))
	for s := range st.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		pos := st.positions[symbol]
		if err := e.settleClose(st, pos, st.lastClose[symbol], endMs, domain.ExitReasonEndOfData); err != nil {
			return err
		}
	}
	return nil
}

// settleClose closes a position through the executor and settles cash.
func (e *Engine) settleClose(st *runState, pos *domain.Position, price float64, timestampMs int64, reason string) error {
	trade, err := e.exec.ClosePosition(pos, price, timestampMs, reason)
	if err != nil {
		return err
	}
	trade.RunID = st.runID

	exitCommission := trade.CommissionPaid - pos.EntryCommission
	if pos.Side == domain.SideLong {
		st.cash += trade.Quantity*trade.ExitPrice - exitCommission
	} else {
		st.cash -= trade.Quantity*trade.ExitPrice + exitCommission
	}
	st.trades = append(st.trades, trade)
	delete(st.positions, pos.Symbol)
	return nil
}

// riskQuantity converts the per-trade risk budget into a quantity using
// the stop distance. Without a usable stop the full entry price is the
// risk unit, matching Position.AtRisk.
func (e *Engine) riskQuantity(equity, price, stopPrice float64) float64 {
	riskAmount := e.cfg.RiskPerTradePct * equity
	if riskAmount <= 0 {
		return 0
	}
	dist := price - stopPrice
	if dist < 0 {
		dist = -dist
	}
	if stopPrice <= 0 || dist == 0 {
		dist = price
	}
	return riskAmount / dist
}

// equity marks every open position at its symbol's latest close.
func (e *Engine) equity(st *runState) float64 {
	eq := st.cash
	for symbol, pos := range st.positions {
		price, ok := st.lastClose[symbol]
		if !ok {
			price = pos.EntryPrice
		}
		if pos.Side == domain.SideLong {
			eq += pos.Quantity * price
		} else {
			eq -= pos.Quantity * price
		}
	}
	return eq
}

func (e *Engine) history(bars []*domain.Bar, i int) []*domain.Bar {
	start := i + 1 - e.cfg.HistoryWindow
	if start < 0 {
		start = 0
	}
	return bars[start : i+1]
}

func (e *Engine) validate(in Input) error {
	if len(in.Series) == 0 {
		return ErrNoSeries
	}
	if e.cfg.StartingCash <= 0 {
		return ErrInvalidStarting
	}
	for symbol, bars := range in.Series {
		for i := 1; i < len(bars); i++ {
			if bars[i].TimestampMs <= bars[i-1].TimestampMs {
				return fmt.Errorf("%w: %s", ErrNonMonotonic, symbol)
			}
		}
	}
	return nil
}

func analysisFor(m map[string]map[int64]*domain.MultiTimeframeAnalysis, symbol string, ts int64) *domain.MultiTimeframeAnalysis {
	if m == nil {
		return nil
	}
	return m[symbol][ts]
}

