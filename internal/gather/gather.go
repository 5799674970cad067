// Package gather defines the contract shared by market data gatherers.
package gather

import (
	"context"
	"time"
)

// Gatherer is a one-shot data gathering job.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run gathers until done or until ctx is cancelled.
	Run(ctx context.Context) error
}

// DateRange is a closed range of trading days to fetch.
type DateRange struct {
	Start time.Time
	End   time.Time
}
