// Package store defines storage interfaces for daily bars and backtest runs
// and provides file, SQL and Postgres implementations.
package store

import (
	"context"
	"errors"
	"time"

	"swingtrader/internal/domain"
)

// ErrRunNotFound is returned when a run ID has no stored record.
var ErrRunNotFound = errors.New("run not found")

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// RunStore persists backtest runs with their positions and equity curves.
type RunStore interface {
	// SaveRun stores the run summary, its positions and its equity curve.
	SaveRun(ctx context.Context, run *domain.RunRecord) error

	// GetRun loads one run including positions and equity.
	GetRun(ctx context.Context, id string) (*domain.RunRecord, error)

	// ListRuns returns the most recent run summaries, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}
