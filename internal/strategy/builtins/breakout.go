// Package builtins provides the entry rules that ship with swingtrader.
package builtins

import (
	"log/slog"
	"time"

	"swingtrader/internal/indicator"
	"swingtrader/internal/series"
	"swingtrader/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*Breakout)(nil)

// nearHigh loosens the breakout and volume thresholds by one percent.
const nearHigh = 0.99

// Breakout fires when a bar trades near its prior-window high on a volume
// surge while above trend and not yet overbought.
type Breakout struct {
	window       int
	volumeMargin float64
	trendWindow  int
	stochWindow  int
	stochCeiling float64
	log          *slog.Logger
}

// NewBreakout creates a Breakout rule from p.
func NewBreakout(p Params) *Breakout {
	return &Breakout{
		window:       p.Window,
		volumeMargin: p.VolumeMargin,
		trendWindow:  p.TrendWindow,
		stochWindow:  p.StochWindow,
		stochCeiling: p.StochCeiling,
		log:          slog.Default().With("strategy", "breakout"),
	}
}

// Name returns "breakout".
func (b *Breakout) Name() string { return "breakout" }

// Lookback returns the longest window the rule reads.
func (b *Breakout) Lookback() int {
	return max(b.window+1, b.trendWindow, b.stochWindow)
}

// Signal evaluates the four entry conditions on date.
func (b *Breakout) Signal(s *series.PriceSeries, date time.Time) bool {
	bar, err := s.Bar(date)
	if err != nil {
		return b.skip(s, date, err)
	}

	hi, err := indicator.MaxHighBefore(s, date, b.window)
	if err != nil {
		return b.skip(s, date, err)
	}
	if bar.High < nearHigh*hi {
		return false
	}

	vol, err := indicator.MaxVolumeBefore(s, date, b.window)
	if err != nil {
		return b.skip(s, date, err)
	}
	if float64(bar.Volume) <= nearHigh*b.volumeMargin*float64(vol) {
		return false
	}

	trend, err := indicator.SMA(s, date, b.trendWindow)
	if err != nil {
		return b.skip(s, date, err)
	}
	if bar.Close <= trend {
		return false
	}

	k, err := indicator.Stochastic(s, date, b.stochWindow)
	if err != nil {
		return b.skip(s, date, err)
	}
	return k < b.stochCeiling
}

func (b *Breakout) skip(s *series.PriceSeries, date time.Time, err error) bool {
	b.log.Debug("no signal", "ticker", s.Ticker(), "date", date.Format(time.DateOnly), "error", err)
	return false
}
