package builtins

import "swingtrader/internal/strategy"

// Params carries the tunables of every builtin rule.
type Params struct {
	// Breakout
	Window       int
	VolumeMargin float64
	TrendWindow  int
	StochWindow  int
	StochCeiling float64

	// MACD trend
	MACDShort  int
	MACDLong   int
	MACDSignal int

	// SMA cross
	SMAShort int
	SMALong  int
}

// DefaultParams returns the stock parameter set.
func DefaultParams() Params {
	return Params{
		Window:       40,
		VolumeMargin: 1.5,
		TrendWindow:  50,
		StochWindow:  14,
		StochCeiling: 80,
		MACDShort:    12,
		MACDLong:     26,
		MACDSignal:   9,
		SMAShort:     10,
		SMALong:      30,
	}
}

// Register adds every builtin rule, configured from p, to r.
func Register(r *strategy.Registry, p Params) {
	r.Register(NewBreakout(p))
	r.Register(NewMACDTrend(p.MACDShort, p.MACDLong, p.MACDSignal, p.TrendWindow))
	r.Register(NewSMACross(p.SMAShort, p.SMALong))
}
