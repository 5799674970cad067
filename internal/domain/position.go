package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrClosedPositionReentry is returned when a closed position is closed
	// or marked again.
	ErrClosedPositionReentry = errors.New("position already closed")

	// ErrInvalidShares is returned when a position would hold no shares.
	ErrInvalidShares = errors.New("position shares must be positive")
)

// PositionStatus is the lifecycle state of a Position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// CloseReason records which exit level closed a position.
type CloseReason string

const (
	CloseNone   CloseReason = ""
	CloseStop   CloseReason = "stop"
	CloseTarget CloseReason = "target"
)

// Position is a single long holding. It moves from Open to Closed exactly
// once; money fields are decimal so that cash accounting is exact.
type Position struct {
	Ticker       string
	Shares       int64
	OpenDate     time.Time
	CloseDate    time.Time
	OpenPrice    float64
	StopPrice    float64
	TargetPrice  float64
	RiskPerShare float64
	ClosePrice   float64
	Status       PositionStatus
	CloseReason  CloseReason

	Fee         decimal.Decimal
	TotalCost   decimal.Decimal
	MarketValue decimal.Decimal
	TotalReturn decimal.Decimal
	RealizedPnL decimal.Decimal
}

// NewPosition opens a position of sz.Shares at openPrice on date. TotalCost
// is fixed here as openPrice*shares + fee.
func NewPosition(ticker string, date time.Time, openPrice float64, sz Sizing, fee decimal.Decimal) (*Position, error) {
	if sz.Shares <= 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrInvalidShares)
	}

	shares := decimal.NewFromInt(sz.Shares)
	value := decimal.NewFromFloat(openPrice).Mul(shares)

	return &Position{
		Ticker:       ticker,
		Shares:       sz.Shares,
		OpenDate:     date,
		OpenPrice:    openPrice,
		StopPrice:    sz.StopPrice,
		TargetPrice:  sz.TargetPrice,
		RiskPerShare: sz.RiskPerShare,
		Status:       PositionOpen,
		Fee:          fee,
		TotalCost:    value.Add(fee),
		MarketValue:  value,
	}, nil
}

// IsOpen reports whether the position is still held.
func (p *Position) IsOpen() bool { return p.Status == PositionOpen }

// MarkToMarket revalues an open position at the given close price.
func (p *Position) MarkToMarket(closePrice float64) error {
	if !p.IsOpen() {
		return fmt.Errorf("mark %s: %w", p.Ticker, ErrClosedPositionReentry)
	}
	p.MarketValue = decimal.NewFromFloat(closePrice).Mul(decimal.NewFromInt(p.Shares))
	return nil
}

// Close exits the whole position at price. After Close the position is
// immutable: TotalReturn = price*shares - fee and
// RealizedPnL = TotalReturn - TotalCost.
func (p *Position) Close(price float64, date time.Time, reason CloseReason) error {
	if !p.IsOpen() {
		return fmt.Errorf("close %s: %w", p.Ticker, ErrClosedPositionReentry)
	}

	p.ClosePrice = price
	p.CloseDate = date
	p.CloseReason = reason
	p.Status = PositionClosed
	p.MarketValue = decimal.NewFromFloat(price).Mul(decimal.NewFromInt(p.Shares))
	p.TotalReturn = p.MarketValue.Sub(p.Fee)
	p.RealizedPnL = p.TotalReturn.Sub(p.TotalCost)
	return nil
}

// Ratchet raises the stop and target levels. Levels never move down.
func (p *Position) Ratchet(stop, target float64) {
	if stop > p.StopPrice {
		p.StopPrice = stop
	}
	if target > p.TargetPrice {
		p.TargetPrice = target
	}
}

// HoldingDays returns the number of calendar days between open and close, or
// until asOf for open positions.
func (p *Position) HoldingDays(asOf time.Time) int {
	end := p.CloseDate
	if p.IsOpen() {
		end = asOf
	}
	return int(end.Sub(p.OpenDate).Hours() / 24)
}
