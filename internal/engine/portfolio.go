package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"swingtrader/internal/domain"
)

// ErrDuplicateOpenPosition is returned when a second open position is
// requested for a ticker that already has one.
var ErrDuplicateOpenPosition = errors.New("ticker already has an open position")

// Portfolio is the cash and position ledger for one run. Positions keep their
// insertion order; at most one position per ticker is open at a time.
type Portfolio struct {
	Cash   decimal.Decimal
	Market decimal.Decimal
	Total  decimal.Decimal

	positions []*domain.Position
	open      map[string]*domain.Position
}

// NewPortfolio starts a ledger holding only cash.
func NewPortfolio(cash decimal.Decimal) *Portfolio {
	return &Portfolio{
		Cash:   cash,
		Market: decimal.Zero,
		Total:  cash,
		open:   make(map[string]*domain.Position),
	}
}

// Open records p and debits its total cost from cash.
func (pf *Portfolio) Open(p *domain.Position) error {
	if _, ok := pf.open[p.Ticker]; ok {
		return fmt.Errorf("%s: %w", p.Ticker, ErrDuplicateOpenPosition)
	}
	pf.positions = append(pf.positions, p)
	pf.open[p.Ticker] = p
	pf.Cash = pf.Cash.Sub(p.TotalCost)
	return nil
}

// Close exits p at price and credits its total return to cash.
func (pf *Portfolio) Close(p *domain.Position, price float64, date time.Time, reason domain.CloseReason) error {
	if err := p.Close(price, date, reason); err != nil {
		return err
	}
	delete(pf.open, p.Ticker)
	pf.Cash = pf.Cash.Add(p.TotalReturn)
	return nil
}

// Revalue recomputes Market from the open positions and sets Total.
func (pf *Portfolio) Revalue() {
	market := decimal.Zero
	for _, p := range pf.positions {
		if p.IsOpen() {
			market = market.Add(p.MarketValue)
		}
	}
	pf.Market = market
	pf.Total = pf.Cash.Add(pf.Market)
}

// HasOpen reports whether ticker has an open position.
func (pf *Portfolio) HasOpen(ticker string) bool {
	_, ok := pf.open[ticker]
	return ok
}

// OpenPositions returns the open positions in the order they were opened.
func (pf *Portfolio) OpenPositions() []*domain.Position {
	out := make([]*domain.Position, 0, len(pf.open))
	for _, p := range pf.positions {
		if p.IsOpen() {
			out = append(out, p)
		}
	}
	return out
}

// Positions returns every position ever opened, in order.
func (pf *Portfolio) Positions() []*domain.Position { return pf.positions }

// Point snapshots the ledger as an equity row for date.
func (pf *Portfolio) Point(date time.Time) domain.EquityPoint {
	return domain.EquityPoint{Date: date, Cash: pf.Cash, Market: pf.Market, Total: pf.Total}
}
