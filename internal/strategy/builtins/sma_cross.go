package builtins

import (
	"log/slog"
	"time"

	"swingtrader/internal/indicator"
	"swingtrader/internal/series"
	"swingtrader/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross fires on the day the short-period SMA crosses above the
// long-period SMA.
type SMACross struct {
	shortPeriod int
	longPeriod  int
	log         *slog.Logger
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods.
func NewSMACross(short, long int) *SMACross {
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
		log:         slog.Default().With("strategy", "sma-cross"),
	}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string { return "sma-cross" }

// Lookback needs one extra bar to see yesterday's relationship.
func (s *SMACross) Lookback() int { return s.longPeriod + 1 }

// Signal reports a fresh upward crossover on date.
func (s *SMACross) Signal(ps *series.PriceSeries, date time.Time) bool {
	i, err := ps.IndexOf(date)
	if err != nil || i == 0 {
		return false
	}
	prev := ps.At(i - 1).Timestamp

	shortNow, err1 := indicator.SMA(ps, date, s.shortPeriod)
	longNow, err2 := indicator.SMA(ps, date, s.longPeriod)
	shortPrev, err3 := indicator.SMA(ps, prev, s.shortPeriod)
	longPrev, err4 := indicator.SMA(ps, prev, s.longPeriod)
	for _, err := range []error{err1, err2, err3, err4} {
		if err != nil {
			s.log.Debug("no signal", "ticker", ps.Ticker(), "date", date.Format(time.DateOnly), "error", err)
			return false
		}
	}
	return shortPrev <= longPrev && shortNow > longNow
}
