package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"swingtrader/internal/domain"
	"swingtrader/internal/indicator"
)

// ErrNoShares is returned when the risk budget buys less than one share.
var ErrNoShares = errors.New("sizing yields no shares")

// RiskManager sizes new positions from volatility and enforces the minimum
// cash fraction the portfolio must keep.
type RiskManager struct {
	riskPerTrade float64
	riskRatio    float64
	stopMargin   float64
	cashRatio    decimal.Decimal
}

// NewRiskManager creates a RiskManager.
//
//   - riskPerTrade: fraction of total portfolio value risked per position
//     (e.g. 0.01 for 1%).
//   - riskRatio: reward multiple of the per-share risk used for the target.
//   - stopMargin: ATR multiple between entry and stop.
//   - cashRatio: cash/total must stay strictly above this fraction for new
//     positions to be opened.
func NewRiskManager(riskPerTrade, riskRatio, stopMargin, cashRatio float64) *RiskManager {
	return &RiskManager{
		riskPerTrade: riskPerTrade,
		riskRatio:    riskRatio,
		stopMargin:   stopMargin,
		cashRatio:    decimal.NewFromFloat(cashRatio),
	}
}

// Size computes shares, stop and target for an entry at entryPrice.
func (rm *RiskManager) Size(totalValue, entryPrice, atr float64) (domain.Sizing, error) {
	return SizePosition(totalValue, entryPrice, atr, rm.riskPerTrade, rm.riskRatio, rm.stopMargin)
}

// RiskRatio returns the configured reward multiple.
func (rm *RiskManager) RiskRatio() float64 { return rm.riskRatio }

// CashRatioOK reports whether cash/total is strictly above the configured
// cash ratio. A non-positive total never passes.
func (rm *RiskManager) CashRatioOK(cash, total decimal.Decimal) bool {
	if !total.IsPositive() {
		return false
	}
	return cash.Div(total).GreaterThan(rm.cashRatio)
}

// SizePosition risks totalValue*riskPerTrade across a stop placed
// stopMargin*atr below entry. Share counts round half to even.
func SizePosition(totalValue, entryPrice, atr, riskPerTrade, riskRatio, stopMargin float64) (domain.Sizing, error) {
	riskPerShare := stopMargin * atr
	if riskPerShare <= 0 || math.IsNaN(riskPerShare) {
		return domain.Sizing{}, fmt.Errorf("risk per share %v: %w", riskPerShare, indicator.ErrDegenerateVolatility)
	}

	shares := int64(math.RoundToEven(totalValue * riskPerTrade / riskPerShare))
	if shares < 1 {
		return domain.Sizing{}, fmt.Errorf("budget %.2f over risk %.4f: %w", totalValue*riskPerTrade, riskPerShare, ErrNoShares)
	}

	return domain.Sizing{
		Shares:       shares,
		StopPrice:    entryPrice - riskPerShare,
		TargetPrice:  entryPrice + riskRatio*riskPerShare,
		RiskPerShare: riskPerShare,
	}, nil
}
