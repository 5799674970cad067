// Package seriestest builds synthetic price series for tests.
package seriestest

import (
	"time"

	"swingtrader/internal/domain"
	"swingtrader/internal/series"
)

// Start is the first date used by the builders.
var Start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// Builder accumulates consecutive weekday bars for one ticker.
type Builder struct {
	ticker string
	next   time.Time
	bars   []domain.Bar
}

// NewBuilder starts a series at Start.
func NewBuilder(ticker string) *Builder {
	return &Builder{ticker: ticker, next: Start}
}

// Add appends one bar on the next weekday.
func (b *Builder) Add(open, high, low, closePrice float64, volume int64) *Builder {
	b.bars = append(b.bars, domain.Bar{
		Symbol:    b.ticker,
		Timestamp: b.next,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	})
	b.next = b.next.AddDate(0, 0, 1)
	for b.next.Weekday() == time.Saturday || b.next.Weekday() == time.Sunday {
		b.next = b.next.AddDate(0, 0, 1)
	}
	return b
}

// Repeat appends n copies of the same bar on consecutive weekdays.
func (b *Builder) Repeat(n int, open, high, low, closePrice float64, volume int64) *Builder {
	for i := 0; i < n; i++ {
		b.Add(open, high, low, closePrice, volume)
	}
	return b
}

// Closes appends one bar per close with high/low one point either side.
func (b *Builder) Closes(volume int64, closes ...float64) *Builder {
	for _, c := range closes {
		b.Add(c, c+1, c-1, c, volume)
	}
	return b
}

// Bars returns the bars built so far.
func (b *Builder) Bars() []domain.Bar { return b.bars }

// Date returns the date of row i.
func (b *Builder) Date(i int) time.Time { return b.bars[i].Timestamp }

// Build returns the PriceSeries and panics on invalid input.
func (b *Builder) Build() *series.PriceSeries {
	s, err := series.New(b.ticker, b.bars)
	if err != nil {
		panic(err)
	}
	return s
}
