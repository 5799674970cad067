package us

import (
	"errors"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

var _ CalendarSource = (*alpaca.Client)(nil)

// CalendarSource is the part of the Alpaca trading client that serves the
// market calendar.
type CalendarSource interface {
	GetCalendar(req alpaca.GetCalendarRequest) ([]alpaca.CalendarDay, error)
}

// LatestFinishedTradingDay returns the most recent trading day, as a UTC
// date, whose session has ended as of now. Today counts only after 20:05 ET
// so that extended-hours bars have settled.
func LatestFinishedTradingDay(cal CalendarSource, now time.Time) (time.Time, error) {
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Time{}, fmt.Errorf("loading ET timezone: %w", err)
	}
	now = now.In(et)

	days, err := cal.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("GetCalendar: %w", err)
	}

	today := now.Format(time.DateOnly)
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 20, 5, 0, 0, et)

	for i := len(days) - 1; i >= 0; i-- {
		if days[i].Date > today || (days[i].Date == today && !now.After(cutoff)) {
			continue
		}
		d, err := time.Parse(time.DateOnly, days[i].Date)
		if err != nil {
			continue
		}
		return d, nil
	}
	return time.Time{}, errors.New("no finished trading day in the last week")
}
