package builtins

import (
	"log/slog"
	"time"

	"swingtrader/internal/indicator"
	"swingtrader/internal/series"
	"swingtrader/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MACDTrend)(nil)

// MACDTrend fires while MACD is above its signal line and close is above the
// trend SMA.
type MACDTrend struct {
	short, long, signal int
	trendWindow         int
	log                 *slog.Logger
}

// NewMACDTrend creates a MACDTrend rule.
func NewMACDTrend(short, long, signal, trendWindow int) *MACDTrend {
	return &MACDTrend{
		short:       short,
		long:        long,
		signal:      signal,
		trendWindow: trendWindow,
		log:         slog.Default().With("strategy", "macd-trend"),
	}
}

// Name returns "macd-trend".
func (m *MACDTrend) Name() string { return "macd-trend" }

// Lookback returns the MACD warm-up or the trend window, whichever is longer.
func (m *MACDTrend) Lookback() int {
	return max(indicator.MACDWarmup(m.long, m.signal), m.trendWindow)
}

// Signal evaluates the MACD and trend conditions on date.
func (m *MACDTrend) Signal(s *series.PriceSeries, date time.Time) bool {
	v, err := indicator.MACD(s, date, m.short, m.long, m.signal)
	if err != nil {
		m.log.Debug("no signal", "ticker", s.Ticker(), "date", date.Format(time.DateOnly), "error", err)
		return false
	}
	if !v.Bullish() {
		return false
	}

	bar, err := s.Bar(date)
	if err != nil {
		return false
	}
	trend, err := indicator.SMA(s, date, m.trendWindow)
	if err != nil {
		m.log.Debug("no signal", "ticker", s.Ticker(), "date", date.Format(time.DateOnly), "error", err)
		return false
	}
	return bar.Close > trend
}
