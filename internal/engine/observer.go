package engine

import (
	"context"

	"swingtrader/internal/domain"
)

// DayReport describes one completed simulation day.
type DayReport struct {
	Point     domain.EquityPoint
	Opened    []*domain.Position
	Closed    []*domain.Position
	OpenCount int
	Day       int
	Days      int
}

// Observer is notified after each simulated day. Observers must not mutate
// the positions they receive.
type Observer interface {
	OnDay(ctx context.Context, r DayReport)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, r DayReport)

// OnDay calls f.
func (f ObserverFunc) OnDay(ctx context.Context, r DayReport) { f(ctx, r) }

// Observers fans a report out to several observers in order.
type Observers []Observer

// OnDay notifies each non-nil observer.
func (os Observers) OnDay(ctx context.Context, r DayReport) {
	for _, o := range os {
		if o != nil {
			o.OnDay(ctx, r)
		}
	}
}
