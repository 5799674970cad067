package util

import (
	"sort"
	"time"
)

// TradingCalendar is the ordered list of trading days taken from a reference
// instrument's bars.
type TradingCalendar struct {
	days []time.Time
}

// NewTradingCalendar creates a TradingCalendar from ascending dates.
func NewTradingCalendar(days []time.Time) *TradingCalendar {
	return &TradingCalendar{days: days}
}

// Len returns the number of trading days.
func (tc *TradingCalendar) Len() int { return len(tc.days) }

// Day returns the trading day at index i.
func (tc *TradingCalendar) Day(i int) time.Time { return tc.days[i] }

// IndexFrom returns the index of the first trading day at or after t, or
// Len() when t is past the last day.
func (tc *TradingCalendar) IndexFrom(t time.Time) int {
	return sort.Search(len(tc.days), func(i int) bool {
		return !tc.days[i].Before(t)
	})
}

// Previous returns the trading day before t.
func (tc *TradingCalendar) Previous(t time.Time) (time.Time, bool) {
	i := tc.IndexFrom(t)
	if i == 0 {
		return time.Time{}, false
	}
	return tc.days[i-1], true
}

// Between returns the trading days in [start, end]. A zero end means through
// the last day.
func (tc *TradingCalendar) Between(start, end time.Time) []time.Time {
	i := tc.IndexFrom(start)
	j := len(tc.days)
	if !end.IsZero() {
		j = sort.Search(len(tc.days), func(k int) bool {
			return tc.days[k].After(end)
		})
	}
	if i >= j {
		return nil
	}
	return tc.days[i:j]
}
