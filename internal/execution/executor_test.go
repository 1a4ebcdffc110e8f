package execution

import (
	"math"
	"testing"

	"drummond-lab/internal/domain"
)

func TestApplySlippage_ZeroBpsIsIdentity(t *testing.T) {
	exec := New(Config{SlippageBps: 0})

	for _, side := range []domain.Side{domain.SideLong, domain.SideShort} {
		for _, isEntry := range []bool{true, false} {
			if got := exec.ApplySlippage(123.45, side, isEntry); got != 123.45 {
				t.Errorf("side=%s entry=%v: expected 123.45, got %f", side, isEntry, got)
			}
		}
	}
}

func TestApplySlippage_AlwaysAdverse(t *testing.T) {
	exec := New(Config{SlippageBps: 10}) // 0.1%
	price := 100.0

	cases := []struct {
		side    domain.Side
		isEntry bool
		worse   bool // true when the fill should be above the quote
	}{
		{domain.SideLong, true, true},    // long entry pays up
		{domain.SideLong, false, false},  // long exit receives less
		{domain.SideShort, true, false},  // short entry receives less
		{domain.SideShort, false, true},  // short exit pays up
	}
	for _, c := range cases {
		got := exec.ApplySlippage(price, c.side, c.isEntry)
		if c.worse && got <= price {
			t.Errorf("side=%s entry=%v: expected price above %f, got %f", c.side, c.isEntry, price, got)
		}
		if !c.worse && got >= price {
			t.Errorf("side=%s entry=%v: expected price below %f, got %f", c.side, c.isEntry, price, got)
		}
	}
}

func TestRoundTrip_ZeroCostIsZeroProfit(t *testing.T) {
	exec := New(Config{SlippageBps: 0, CommissionRate: 0, QuantityDecimals: 4})

	pos, commission, err := exec.OpenPosition("TEST", domain.SideLong, 2.5, 100.0, 1_000, 0)
	if err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}
	if commission != 0 {
		t.Errorf("expected zero entry commission, got %f", commission)
	}

	trade, err := exec.ClosePosition(pos, 100.0, 2_000, domain.ExitReasonSignal)
	if err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}
	if trade.GrossProfit != 0 {
		t.Errorf("expected zero gross profit, got %f", trade.GrossProfit)
	}
	if trade.NetProfit != 0 {
		t.Errorf("expected zero net profit, got %f", trade.NetProfit)
	}
}

func TestClosePosition_CommissionBothLegs(t *testing.T) {
	// Long 1 unit at 100, exit at 103, commission 0.1%, no slippage:
	// net = 3 - (100*0.001 + 103*0.001) = 2.797
	exec := New(Config{SlippageBps: 0, CommissionRate: 0.001, QuantityDecimals: 4})

	pos, _, err := exec.OpenPosition("TEST", domain.SideLong, 1, 100.0, 1_000, 0)
	if err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}

	trade, err := exec.ClosePosition(pos, 103.0, 2_000, domain.ExitReasonSignal)
	if err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}

	if math.Abs(trade.GrossProfit-3.0) > 1e-9 {
		t.Errorf("expected gross 3.0, got %f", trade.GrossProfit)
	}
	if math.Abs(trade.NetProfit-2.797) > 1e-9 {
		t.Errorf("expected net 2.797, got %f", trade.NetProfit)
	}
}

func TestClosePosition_ShortProfitSign(t *testing.T) {
	exec := New(Config{QuantityDecimals: 4})

	pos, _, err := exec.OpenPosition("TEST", domain.SideShort, 2, 100.0, 1_000, 0)
	if err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}

	trade, err := exec.ClosePosition(pos, 95.0, 2_000, domain.ExitReasonSignal)
	if err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}
	if math.Abs(trade.GrossProfit-10.0) > 1e-9 {
		t.Errorf("short falling 5 on 2 units should gross 10, got %f", trade.GrossProfit)
	}
}

func TestNormalizeQuantity(t *testing.T) {
	exec := New(Config{QuantityDecimals: 2})

	cases := []struct {
		in, want float64
	}{
		{1.23456, 1.23},
		{1.237, 1.24},
		{0.001, 0},  // rounds to zero
		{-5, 0},     // negative floors to zero
		{0, 0},
	}
	for _, c := range cases {
		if got := exec.NormalizeQuantity(c.in); got != c.want {
			t.Errorf("NormalizeQuantity(%f): expected %f, got %f", c.in, c.want, got)
		}
	}
}

func TestOpenPosition_ZeroQuantityIsNoOp(t *testing.T) {
	exec := New(Config{QuantityDecimals: 2})

	pos, commission, err := exec.OpenPosition("TEST", domain.SideLong, 0.001, 100, 1_000, 0)
	if err != nil {
		t.Fatalf("expected no error for zero-quantity signal, got %v", err)
	}
	if pos != nil || commission != 0 {
		t.Errorf("expected no-op, got pos=%v commission=%f", pos, commission)
	}
}
