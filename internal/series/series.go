// Package series provides PriceSeries, an immutable date-indexed view over the
// daily bars of one instrument.
package series

import (
	"errors"
	"fmt"
	"time"

	"swingtrader/internal/domain"
)

var (
	// ErrDateNotFound is returned when a date has no bar in the series.
	ErrDateNotFound = errors.New("date not in series")

	// ErrUnsorted is returned when bars are not strictly increasing by date.
	ErrUnsorted = errors.New("bars not strictly ordered by date")

	// ErrEmpty is returned when a series is built from no bars.
	ErrEmpty = errors.New("empty series")
)

// PriceSeries is an ordered run of daily bars for one ticker with O(1)
// date lookup. It is never mutated after construction.
type PriceSeries struct {
	ticker string
	bars   []domain.Bar
	index  map[time.Time]int
}

// Day truncates t to its UTC calendar date, the key used for lookups.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// New builds a PriceSeries. Bars must be strictly ascending by calendar date.
func New(ticker string, bars []domain.Bar) (*PriceSeries, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrEmpty)
	}

	s := &PriceSeries{
		ticker: ticker,
		bars:   make([]domain.Bar, len(bars)),
		index:  make(map[time.Time]int, len(bars)),
	}
	copy(s.bars, bars)

	var prev time.Time
	for i := range s.bars {
		day := Day(s.bars[i].Timestamp)
		if i > 0 && !day.After(prev) {
			return nil, fmt.Errorf("%s at %s: %w", ticker, day.Format(time.DateOnly), ErrUnsorted)
		}
		s.bars[i].Timestamp = day
		s.index[day] = i
		prev = day
	}
	return s, nil
}

// Ticker returns the instrument symbol.
func (s *PriceSeries) Ticker() string { return s.ticker }

// Len returns the number of bars.
func (s *PriceSeries) Len() int { return len(s.bars) }

// At returns the bar at row i.
func (s *PriceSeries) At(i int) domain.Bar { return s.bars[i] }

// Dates returns the calendar dates of all bars in order.
func (s *PriceSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.bars))
	for i, b := range s.bars {
		dates[i] = b.Timestamp
	}
	return dates
}

// IndexOf returns the row of date.
func (s *PriceSeries) IndexOf(date time.Time) (int, error) {
	i, ok := s.index[Day(date)]
	if !ok {
		return -1, fmt.Errorf("%s %s: %w", s.ticker, date.Format(time.DateOnly), ErrDateNotFound)
	}
	return i, nil
}

// Bar returns the bar for date.
func (s *PriceSeries) Bar(date time.Time) (domain.Bar, error) {
	i, err := s.IndexOf(date)
	if err != nil {
		return domain.Bar{}, err
	}
	return s.bars[i], nil
}

// Has reports whether date has a bar.
func (s *PriceSeries) Has(date time.Time) bool {
	_, ok := s.index[Day(date)]
	return ok
}

// Available returns how many bars exist at or before date, which must be in
// the series.
func (s *PriceSeries) Available(date time.Time) (int, error) {
	i, err := s.IndexOf(date)
	if err != nil {
		return 0, err
	}
	return i + 1, nil
}

// Window returns the n bars ending at date inclusive. ok is false when fewer
// than n bars are available. The returned slice must not be modified.
func (s *PriceSeries) Window(date time.Time, n int) (bars []domain.Bar, ok bool, err error) {
	i, err := s.IndexOf(date)
	if err != nil {
		return nil, false, err
	}
	if n <= 0 || i+1 < n {
		return nil, false, nil
	}
	return s.bars[i+1-n : i+1], true, nil
}

// Before returns the n bars strictly before date.
func (s *PriceSeries) Before(date time.Time, n int) (bars []domain.Bar, ok bool, err error) {
	i, err := s.IndexOf(date)
	if err != nil {
		return nil, false, err
	}
	if n <= 0 || i < n {
		return nil, false, nil
	}
	return s.bars[i-n : i], true, nil
}

// Prefix returns all bars up to and including date.
func (s *PriceSeries) Prefix(date time.Time) ([]domain.Bar, error) {
	i, err := s.IndexOf(date)
	if err != nil {
		return nil, err
	}
	return s.bars[:i+1], nil
}

// Closes extracts close prices from bars.
func Closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
