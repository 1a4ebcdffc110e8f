package engine

import (
	"context"
	"errors"
	"testing"

	"drummond-lab/internal/domain"
	"drummond-lab/internal/execution"
	"drummond-lab/internal/strategy"
)

// scriptedStrategy emits preprogrammed signals keyed by bar timestamp.
type scriptedStrategy struct {
	signals map[int64][]*strategy.Signal
}

func (s *scriptedStrategy) Prepare(_ []*domain.Bar) error { return nil }
func (s *scriptedStrategy) ID() string                    { return "SCRIPTED" }
func (s *scriptedStrategy) OnBar(_ context.Context, bc *strategy.BarContext) ([]*strategy.Signal, error) {
	return s.signals[bc.Bar.TimestampMs], nil
}

func makeBars(closes []float64) []*domain.Bar {
	bars := make([]*domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = &domain.Bar{
			Symbol:      "AAPL",
			Interval:    domain.Interval5Min,
			TimestampMs: 1_000_000 + int64(i)*300_000,
			Open:        c,
			High:        c,
			Low:         c,
			Close:       c,
			Volume:      1000,
		}
	}
	return bars
}

func frictionlessEngine() *Engine {
	return New(DefaultConfig(), execution.New(execution.DefaultConfig()))
}

func TestEngine_LongRoundTrip(t *testing.T) {
	bars := makeBars([]float64{100, 101, 103, 102})
	strat := &scriptedStrategy{signals: map[int64][]*strategy.Signal{
		1_000_000: {{Action: strategy.SignalEnterLong, Size: 10}},
		1_600_000: {{Action: strategy.SignalExitLong}},
	}}

	result, err := frictionlessEngine().Run(context.Background(), strat, Input{Bars: bars})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
	trade := result.Trades[0]
	if trade.Side != domain.SideLong {
		t.Errorf("expected LONG, got %s", trade.Side)
	}
	if trade.NetProfit != 30 {
		t.Errorf("expected net profit 30, got %f", trade.NetProfit)
	}
	if trade.ExitReason != domain.ExitReasonSignal {
		t.Errorf("expected SIGNAL exit, got %s", trade.ExitReason)
	}
	if trade.RunID != result.RunID {
		t.Errorf("trade RunID %q does not match result %q", trade.RunID, result.RunID)
	}

	if result.EndingCash != 10_030 {
		t.Errorf("expected ending cash 10030, got %f", result.EndingCash)
	}
	if result.EndingEquity != 10_030 {
		t.Errorf("expected ending equity 10030, got %f", result.EndingEquity)
	}
	if result.SignalsRejected != 0 {
		t.Errorf("expected no rejected signals, got %d", result.SignalsRejected)
	}
}

func TestEngine_EquityCurvePerBar(t *testing.T) {
	bars := makeBars([]float64{100, 110, 105})
	strat := &scriptedStrategy{signals: map[int64][]*strategy.Signal{
		1_000_000: {{Action: strategy.SignalEnterLong, Size: 10}},
	}}

	result, err := frictionlessEngine().Run(context.Background(), strat, Input{Bars: bars})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.EquityCurve) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(result.EquityCurve))
	}
	want := []float64{10_000, 10_100, 10_050}
	for i, snap := range result.EquityCurve {
		if snap.Equity != want[i] {
			t.Errorf("snapshot %d: expected equity %f, got %f", i, want[i], snap.Equity)
		}
	}
}

func TestEngine_ShortRoundTrip(t *testing.T) {
	bars := makeBars([]float64{100, 95, 90, 92})
	strat := &scriptedStrategy{signals: map[int64][]*strategy.Signal{
		1_000_000: {{Action: strategy.SignalEnterShort, Size: 10}},
		1_600_000: {{Action: strategy.SignalExitShort}},
	}}

	result, err := frictionlessEngine().Run(context.Background(), strat, Input{Bars: bars})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
	if result.Trades[0].NetProfit != 100 {
		t.Errorf("expected net profit 100, got %f", result.Trades[0].NetProfit)
	}
	if result.EndingCash != 10_100 {
		t.Errorf("expected ending cash 10100, got %f", result.EndingCash)
	}
}

func TestEngine_ForceCloseAtEnd(t *testing.T) {
	bars := makeBars([]float64{100, 102, 104})
	strat := &scriptedStrategy{signals: map[int64][]*strategy.Signal{
		1_000_000: {{Action: strategy.SignalEnterLong, Size: 5}},
	}}

	result, err := frictionlessEngine().Run(context.Background(), strat, Input{Bars: bars})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("expected forced close, got %d trades", len(result.Trades))
	}
	if result.Trades[0].ExitReason != domain.ExitReasonEndOfData {
		t.Errorf("expected END_OF_DATA, got %s", result.Trades[0].ExitReason)
	}
	if result.EndingEquity != 10_020 {
		t.Errorf("expected ending equity 10020, got %f", result.EndingEquity)
	}
}

func TestEngine_RejectsInvalidSignals(t *testing.T) {
	bars := makeBars([]float64{100, 101, 102, 103})
	strat := &scriptedStrategy{signals: map[int64][]*strategy.Signal{
		// exit while flat
		1_000_000: {{Action: strategy.SignalExitLong}},
		// double entry on one bar
		1_300_000: {
			{Action: strategy.SignalEnterLong, Size: 1},
			{Action: strategy.SignalEnterLong, Size: 1},
		},
		// wrong-side exit for an open long
		1_600_000: {{Action: strategy.SignalExitShort}},
	}}

	result, err := frictionlessEngine().Run(context.Background(), strat, Input{Bars: bars})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.SignalsRejected != 3 {
		t.Errorf("expected 3 rejected signals, got %d", result.SignalsRejected)
	}
	// the surviving long is force-closed at end of data
	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
}

func TestEngine_DefaultSizeWhenUnset(t *testing.T) {
	bars := makeBars([]float64{100, 105})
	strat := &scriptedStrategy{signals: map[int64][]*strategy.Signal{
		1_000_000: {{Action: strategy.SignalEnterLong}},
	}}

	result, err := frictionlessEngine().Run(context.Background(), strat, Input{Bars: bars})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
	if result.Trades[0].Quantity != 1 {
		t.Errorf("expected default quantity 1, got %f", result.Trades[0].Quantity)
	}
}

func TestEngine_CommissionAccounting(t *testing.T) {
	exec := execution.New(execution.Config{CommissionRate: 0.001, QuantityDecimals: 4})
	eng := New(DefaultConfig(), exec)

	bars := makeBars([]float64{100, 103})
	strat := &scriptedStrategy{signals: map[int64][]*strategy.Signal{
		1_000_000: {{Action: strategy.SignalEnterLong, Size: 1}},
		1_300_000: {{Action: strategy.SignalExitLong}},
	}}

	result, err := eng.Run(context.Background(), strat, Input{Bars: bars})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	trade := result.Trades[0]
	if diff := trade.NetProfit - 2.797; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected net profit 2.797, got %f", trade.NetProfit)
	}
	if diff := result.EndingCash - 10_002.797; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected ending cash 10002.797, got %f", result.EndingCash)
	}
}

func TestEngine_InputValidation(t *testing.T) {
	eng := frictionlessEngine()
	strat := &scriptedStrategy{}

	if _, err := eng.Run(context.Background(), strat, Input{}); !errors.Is(err, ErrNoBars) {
		t.Errorf("expected ErrNoBars, got %v", err)
	}

	bars := makeBars([]float64{100, 101})
	bars[1].TimestampMs = bars[0].TimestampMs
	if _, err := eng.Run(context.Background(), strat, Input{Bars: bars}); !errors.Is(err, ErrNonMonotonic) {
		t.Errorf("expected ErrNonMonotonic, got %v", err)
	}

	bars = makeBars([]float64{100, 101})
	bars[1].Symbol = "MSFT"
	if _, err := eng.Run(context.Background(), strat, Input{Bars: bars}); !errors.Is(err, ErrSymbolMismatch) {
		t.Errorf("expected ErrSymbolMismatch, got %v", err)
	}
}

func TestEngine_HistoryWindowBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistoryWindow = 3
	eng := New(cfg, execution.New(execution.DefaultConfig()))

	var seen []int
	strat := &historyProbe{lengths: &seen}

	bars := makeBars([]float64{100, 101, 102, 103, 104})
	if _, err := eng.Run(context.Background(), strat, Input{Bars: bars}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []int{1, 2, 3, 3, 3}
	for i, n := range seen {
		if n != want[i] {
			t.Errorf("bar %d: expected history length %d, got %d", i, want[i], n)
		}
	}
}

type historyProbe struct {
	lengths *[]int
}

func (h *historyProbe) Prepare(_ []*domain.Bar) error { return nil }
func (h *historyProbe) ID() string                    { return "PROBE" }
func (h *historyProbe) OnBar(_ context.Context, bc *strategy.BarContext) ([]*strategy.Signal, error) {
	*h.lengths = append(*h.lengths, len(bc.History))
	return nil, nil
}
