package domain

// Side is the direction of a position or trade.
type Side string

// Side constants.
const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position is an open position. Mutable only while open, owned by exactly
// one simulation loop; converted to an immutable Trade on close.
// At most one open position per symbol in this model.
type Position struct {
	Symbol          string
	Side            Side
	Quantity        float64 // non-negative after normalization
	EntryPrice      float64
	EntryTimeMs     int64
	EntryCommission float64
	StopPrice       float64 // risk anchor for portfolio sizing; 0 when unset
	Metadata        map[string]string
}

// AtRisk returns the capital at risk implied by the stop distance.
// Falls back to the full position value when no stop is set.
func (p *Position) AtRisk() float64 {
	if p.StopPrice <= 0 {
		return p.Quantity * p.EntryPrice
	}
	dist := p.EntryPrice - p.StopPrice
	if dist < 0 {
		dist = -dist
	}
	return p.Quantity * dist
}

// Trade is a closed-position record. Immutable once created.
type Trade struct {
	RunID          string // backtest run that produced this trade
	Symbol         string
	Side           Side
	Quantity       float64
	EntryPrice     float64
	EntryTimeMs    int64
	ExitPrice      float64
	ExitTimeMs     int64
	GrossProfit    float64
	NetProfit      float64 // gross minus entry+exit commission
	CommissionPaid float64
	ExitReason     string
}

// Exit reason codes.
const (
	ExitReasonSignal       = "SIGNAL"
	ExitReasonTrailingStop = "TRAILING_STOP"
	ExitReasonInitialStop  = "INITIAL_STOP"
	ExitReasonEndOfData    = "END_OF_DATA"
)

// PortfolioSnapshot is one mark-to-market point of the equity curve.
// Appended once per simulated timestep and never revised.
type PortfolioSnapshot struct {
	TimestampMs int64
	Equity      float64
	Cash        float64
}

// BacktestResult is the finished output of a single- or multi-symbol run,
// handed to the persistence boundary.
type BacktestResult struct {
	RunID           string
	StrategyID      string
	Symbols         []string
	StartingCash    float64
	EndingCash      float64
	EndingEquity    float64
	Trades          []*Trade
	EquityCurve     []*PortfolioSnapshot
	SignalsRejected int
	Metadata        map[string]string
}
