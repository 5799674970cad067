package perf

import (
	"github.com/shopspring/decimal"

	"swingtrader/internal/domain"
)

// TradeStats summarizes closed positions.
type TradeStats struct {
	Total        int
	Closed       int
	Open         int
	Wins         int
	Losses       int
	StopExits    int
	TargetExits  int
	WinRate      float64
	ProfitFactor float64
	GrossProfit  decimal.Decimal
	GrossLoss    decimal.Decimal
	NetPnL       decimal.Decimal
	AvgPnL       decimal.Decimal
}

// Trades computes TradeStats. WinRate and ProfitFactor stay zero when there
// is nothing to divide by.
func Trades(positions []*domain.Position) TradeStats {
	ts := TradeStats{
		Total:       len(positions),
		GrossProfit: decimal.Zero,
		GrossLoss:   decimal.Zero,
		NetPnL:      decimal.Zero,
		AvgPnL:      decimal.Zero,
	}
	for _, p := range positions {
		if p.IsOpen() {
			ts.Open++
			continue
		}
		ts.Closed++
		switch p.CloseReason {
		case domain.CloseStop:
			ts.StopExits++
		case domain.CloseTarget:
			ts.TargetExits++
		}
		if p.RealizedPnL.IsPositive() {
			ts.Wins++
			ts.GrossProfit = ts.GrossProfit.Add(p.RealizedPnL)
		} else {
			ts.Losses++
			ts.GrossLoss = ts.GrossLoss.Add(p.RealizedPnL.Neg())
		}
		ts.NetPnL = ts.NetPnL.Add(p.RealizedPnL)
	}

	if ts.Closed > 0 {
		ts.WinRate = float64(ts.Wins) / float64(ts.Closed)
		ts.AvgPnL = ts.NetPnL.Div(decimal.NewFromInt(int64(ts.Closed)))
	}
	if ts.GrossLoss.IsPositive() {
		ts.ProfitFactor = ts.GrossProfit.Div(ts.GrossLoss).InexactFloat64()
	}
	return ts
}
