// Package domain holds the core value types shared across the backtester:
// bars, positions, sizing results, equity points and persisted run records.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market identifies the exchange group a series belongs to.
type Market string

const (
	MarketUS Market = "us"
)

// Bar is a single daily OHLCV bar.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// Sizing is the result of risk-based position sizing for one candidate.
type Sizing struct {
	Shares       int64
	StopPrice    float64
	TargetPrice  float64
	RiskPerShare float64
}

// EquityPoint is one row of the equity curve, appended once per simulated day.
type EquityPoint struct {
	Date   time.Time
	Cash   decimal.Decimal
	Market decimal.Decimal
	Total  decimal.Decimal
}

// RunRecord is the persisted summary of a single backtest run.
type RunRecord struct {
	ID          string
	Strategy    string
	StartDate   time.Time
	EndDate     time.Time
	InitialCash decimal.Decimal
	FinalTotal  decimal.Decimal
	// Nil ratios were undefined for the run's curve.
	CAGR        *float64
	Volatility  *float64
	Sharpe      *float64
	Sortino     *float64
	MaxDrawdown float64
	TotalTrades int
	CreatedAt   time.Time

	Positions []*Position
	Equity    []EquityPoint
}
