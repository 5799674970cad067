// Package indicator computes technical indicators over a PriceSeries at a
// reference date. Every function looks only at bars on or before that date.
package indicator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/thrasher-corp/gct-ta/indicators"

	"swingtrader/internal/domain"
	"swingtrader/internal/series"
)

var (
	// ErrInsufficientHistory is returned when fewer bars are available than
	// the window requires.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrDegenerateVolatility is returned when a range or ATR collapses to
	// zero, making the result meaningless.
	ErrDegenerateVolatility = errors.New("degenerate volatility")

	// ErrInvalidWindow is returned for non-positive window lengths.
	ErrInvalidWindow = errors.New("window must be positive")
)

// MACDValue is the latest MACD reading.
type MACDValue struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// Bullish reports whether the MACD line is above its signal line.
func (m MACDValue) Bullish() bool { return m.MACD > m.Signal }

func checkWindow(windows ...int) error {
	for _, w := range windows {
		if w <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidWindow, w)
		}
	}
	return nil
}

// window returns the n bars ending at date or ErrInsufficientHistory.
func window(s *series.PriceSeries, date time.Time, n int) ([]domain.Bar, error) {
	bars, ok, err := s.Window(date, n)
	if err != nil {
		return nil, err
	}
	if !ok {
		have, _ := s.Available(date)
		return nil, fmt.Errorf("%s at %s: need %d bars, have %d: %w",
			s.Ticker(), date.Format(time.DateOnly), n, have, ErrInsufficientHistory)
	}
	return bars, nil
}

// ATR returns the average true range over the window bars ending at date.
// Each true-range day needs the previous close, so window+1 bars must be
// available.
func ATR(s *series.PriceSeries, date time.Time, n int) (float64, error) {
	if err := checkWindow(n); err != nil {
		return 0, err
	}
	bars, err := window(s, date, n+1)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 1; i < len(bars); i++ {
		sum += TrueRange(bars[i], bars[i-1].Close)
	}
	atr := sum / float64(n)
	if atr <= 0 {
		return 0, fmt.Errorf("%s ATR(%d) at %s: %w", s.Ticker(), n, date.Format(time.DateOnly), ErrDegenerateVolatility)
	}
	return atr, nil
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(b domain.Bar, prevClose float64) float64 {
	return math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
}

// SMA returns the mean close of the n bars ending at date.
func SMA(s *series.PriceSeries, date time.Time, n int) (float64, error) {
	if err := checkWindow(n); err != nil {
		return 0, err
	}
	bars, err := window(s, date, n)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, b := range bars {
		sum += b.Close
	}
	return sum / float64(n), nil
}

// EMA returns the exponential moving average of close with span n, computed
// over every bar up to date. At least n bars must be available.
func EMA(s *series.PriceSeries, date time.Time, n int) (float64, error) {
	if err := checkWindow(n); err != nil {
		return 0, err
	}
	if _, err := window(s, date, n); err != nil {
		return 0, err
	}
	prefix, err := s.Prefix(date)
	if err != nil {
		return 0, err
	}
	ema := indicators.EMA(series.Closes(prefix), n)
	return ema[len(ema)-1], nil
}

// MACDWarmup is the number of bars MACD reads before date.
func MACDWarmup(long, signal int) int {
	return max(2*long, long+signal)
}

// MACD returns the latest MACD, signal and histogram values computed over the
// MACDWarmup bars ending at date. The MACD line starts once the slow EMA is
// seeded; the signal line is the EMA of that line.
func MACD(s *series.PriceSeries, date time.Time, short, long, signal int) (MACDValue, error) {
	if err := checkWindow(short, long, signal); err != nil {
		return MACDValue{}, err
	}
	if short >= long {
		return MACDValue{}, fmt.Errorf("%w: short %d must be below long %d", ErrInvalidWindow, short, long)
	}
	bars, err := window(s, date, MACDWarmup(long, signal))
	if err != nil {
		return MACDValue{}, err
	}

	closes := series.Closes(bars)
	fast := indicators.EMA(closes, short)
	slow := indicators.EMA(closes, long)

	// Align on the tail: only the last n-long+1 slow values are seeded.
	n := min(len(closes)-long+1, len(fast), len(slow))
	line := make([]float64, n)
	for i := range line {
		line[i] = fast[len(fast)-n+i] - slow[len(slow)-n+i]
	}
	if n < signal {
		return MACDValue{}, fmt.Errorf("%s MACD at %s: %w", s.Ticker(), date.Format(time.DateOnly), ErrInsufficientHistory)
	}
	sig := indicators.EMA(line, signal)

	m := MACDValue{MACD: line[len(line)-1], Signal: sig[len(sig)-1]}
	m.Histogram = m.MACD - m.Signal
	return m, nil
}

// Stochastic returns %K: where close sits within the high-low range of the n
// bars ending at date, scaled to 0..100.
func Stochastic(s *series.PriceSeries, date time.Time, n int) (float64, error) {
	if err := checkWindow(n); err != nil {
		return 0, err
	}
	bars, err := window(s, date, n)
	if err != nil {
		return 0, err
	}

	lo, hi := bars[0].Low, bars[0].High
	for _, b := range bars[1:] {
		lo = math.Min(lo, b.Low)
		hi = math.Max(hi, b.High)
	}
	if hi-lo <= 0 {
		return 0, fmt.Errorf("%s stochastic(%d) at %s: %w", s.Ticker(), n, date.Format(time.DateOnly), ErrDegenerateVolatility)
	}
	return (bars[len(bars)-1].Close - lo) / (hi - lo) * 100, nil
}

// MaxHighBefore returns the highest high of the n bars strictly before date.
func MaxHighBefore(s *series.PriceSeries, date time.Time, n int) (float64, error) {
	bars, err := before(s, date, n)
	if err != nil {
		return 0, err
	}
	hi := bars[0].High
	for _, b := range bars[1:] {
		hi = math.Max(hi, b.High)
	}
	return hi, nil
}

// MaxVolumeBefore returns the largest volume of the n bars strictly before
// date.
func MaxVolumeBefore(s *series.PriceSeries, date time.Time, n int) (int64, error) {
	bars, err := before(s, date, n)
	if err != nil {
		return 0, err
	}
	v := bars[0].Volume
	for _, b := range bars[1:] {
		v = max(v, b.Volume)
	}
	return v, nil
}

func before(s *series.PriceSeries, date time.Time, n int) ([]domain.Bar, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	bars, ok, err := s.Before(date, n)
	if err != nil {
		return nil, err
	}
	if !ok {
		have, _ := s.Available(date)
		return nil, fmt.Errorf("%s before %s: need %d prior bars, have %d: %w",
			s.Ticker(), date.Format(time.DateOnly), n, have-1, ErrInsufficientHistory)
	}
	return bars, nil
}
