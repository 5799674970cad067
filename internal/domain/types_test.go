package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTypesExist(t *testing.T) {
	bar := Bar{}
	if bar.Symbol != "" {
		t.Error("expected empty Symbol for zero-value Bar")
	}
	if !bar.Timestamp.IsZero() {
		t.Error("expected zero Timestamp for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 {
		t.Error("expected zero OHLC values for zero-value Bar")
	}

	if MarketUS != "us" {
		t.Errorf("MarketUS = %q, want %q", MarketUS, "us")
	}
	if PositionOpen != "open" || PositionClosed != "closed" {
		t.Errorf("unexpected position status values %q/%q", PositionOpen, PositionClosed)
	}
}

func newTestPosition(t *testing.T) *Position {
	t.Helper()
	sz := Sizing{Shares: 50, StopPrice: 99, TargetPrice: 105, RiskPerShare: 2}
	p, err := NewPosition("AAA", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 101, sz, decimal.RequireFromString("1.5"))
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	return p
}

func TestNewPositionTotalCost(t *testing.T) {
	p := newTestPosition(t)

	if !p.TotalCost.Equal(decimal.RequireFromString("5051.5")) {
		t.Errorf("TotalCost = %s, want 5051.5", p.TotalCost)
	}
	if !p.MarketValue.Equal(decimal.NewFromInt(5050)) {
		t.Errorf("MarketValue = %s, want 5050", p.MarketValue)
	}
	if !p.IsOpen() {
		t.Error("new position should be open")
	}
}

func TestNewPositionRejectsZeroShares(t *testing.T) {
	_, err := NewPosition("AAA", time.Now(), 10, Sizing{Shares: 0}, decimal.Zero)
	if !errors.Is(err, ErrInvalidShares) {
		t.Errorf("NewPosition error = %v, want ErrInvalidShares", err)
	}
}

func TestPositionCloseConservation(t *testing.T) {
	p := newTestPosition(t)
	closeDate := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	if err := p.Close(99, closeDate, CloseStop); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if p.Status != PositionClosed {
		t.Errorf("Status = %q, want %q", p.Status, PositionClosed)
	}
	if p.CloseReason != CloseStop {
		t.Errorf("CloseReason = %q, want %q", p.CloseReason, CloseStop)
	}
	if !p.TotalReturn.Equal(decimal.RequireFromString("4948.5")) {
		t.Errorf("TotalReturn = %s, want 4948.5", p.TotalReturn)
	}
	if !p.RealizedPnL.Equal(decimal.NewFromInt(-103)) {
		t.Errorf("RealizedPnL = %s, want -103", p.RealizedPnL)
	}
	// Cash effect of the round trip equals the realized P&L.
	if !p.TotalReturn.Sub(p.TotalCost).Equal(p.RealizedPnL) {
		t.Error("cash effect of open+close does not equal RealizedPnL")
	}
	if got := p.HoldingDays(time.Time{}); got != 3 {
		t.Errorf("HoldingDays = %d, want 3", got)
	}
}

func TestPositionCloseTwice(t *testing.T) {
	p := newTestPosition(t)
	if err := p.Close(105, time.Now(), CloseTarget); err != nil {
		t.Fatalf("first Close: %v", err)
	}

	pnl := p.RealizedPnL
	err := p.Close(90, time.Now(), CloseStop)
	if !errors.Is(err, ErrClosedPositionReentry) {
		t.Fatalf("second Close error = %v, want ErrClosedPositionReentry", err)
	}
	if !p.RealizedPnL.Equal(pnl) || p.ClosePrice != 105 {
		t.Error("second Close mutated a closed position")
	}
	if err := p.MarkToMarket(100); !errors.Is(err, ErrClosedPositionReentry) {
		t.Errorf("MarkToMarket on closed position error = %v, want ErrClosedPositionReentry", err)
	}
}

func TestPositionRatchetOnlyRaises(t *testing.T) {
	p := newTestPosition(t)

	p.Ratchet(98, 104)
	if p.StopPrice != 99 || p.TargetPrice != 105 {
		t.Errorf("Ratchet lowered levels to %v/%v", p.StopPrice, p.TargetPrice)
	}

	p.Ratchet(100, 107)
	if p.StopPrice != 100 || p.TargetPrice != 107 {
		t.Errorf("Ratchet = %v/%v, want 100/107", p.StopPrice, p.TargetPrice)
	}
}
