package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"swingtrader/internal/domain"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%q) returned error: %v", dbPath, err)
	}
	t.Cleanup(func() {
		if cerr := s.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	})
	return s
}

func ptr(v float64) *float64 { return &v }

func sampleRun(t *testing.T, id string, created time.Time) *domain.RunRecord {
	t.Helper()
	p, err := domain.NewPosition("AAA", day(2024, 3, 1), 101,
		domain.Sizing{Shares: 50, StopPrice: 99, TargetPrice: 105, RiskPerShare: 2}, decimal.RequireFromString("3.81"))
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	if err := p.Close(105, day(2024, 3, 5), domain.CloseTarget); err != nil {
		t.Fatalf("Close: %v", err)
	}

	return &domain.RunRecord{
		ID:          id,
		Strategy:    "breakout",
		StartDate:   day(2024, 1, 2),
		EndDate:     day(2024, 6, 28),
		InitialCash: decimal.NewFromInt(4000),
		FinalTotal:  decimal.RequireFromString("4196.19"),
		CAGR:        ptr(0.1),
		Volatility:  ptr(0.2),
		Sharpe:      ptr(1.2),
		TotalTrades: 1,
		CreatedAt:   created,
		Positions:   []*domain.Position{p},
		Equity: []domain.EquityPoint{
			{Date: day(2024, 3, 1), Cash: decimal.NewFromInt(100), Market: decimal.NewFromInt(3900), Total: decimal.NewFromInt(4000)},
			{Date: day(2024, 3, 4), Cash: decimal.NewFromInt(100), Market: decimal.NewFromInt(4000), Total: decimal.NewFromInt(4100)},
		},
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	run := sampleRun(t, "run-1", time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC))

	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	// Saving again replaces rather than duplicating.
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun (again): %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Strategy != "breakout" || !got.FinalTotal.Equal(run.FinalTotal) {
		t.Errorf("GetRun summary = %+v", got)
	}
	if !got.StartDate.Equal(run.StartDate) || !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("dates = %v / %v", got.StartDate, got.CreatedAt)
	}
	if len(got.Positions) != 1 {
		t.Fatalf("GetRun returned %d positions, want 1", len(got.Positions))
	}
	p := got.Positions[0]
	if p.Status != domain.PositionClosed || p.CloseReason != domain.CloseTarget {
		t.Errorf("position state = %s/%s", p.Status, p.CloseReason)
	}
	if !p.RealizedPnL.Equal(run.Positions[0].RealizedPnL) || !p.Fee.Equal(decimal.RequireFromString("3.81")) {
		t.Errorf("position money = pnl %s fee %s", p.RealizedPnL, p.Fee)
	}
	if len(got.Equity) != 2 || !got.Equity[1].Total.Equal(decimal.NewFromInt(4100)) {
		t.Errorf("equity = %+v", got.Equity)
	}
}

func TestSQLiteStoreUndefinedRatiosStayNull(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	run := sampleRun(t, "run-1", time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC))

	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	var sortino, sharpe sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT sortino, sharpe FROM runs WHERE id = ?`, "run-1").Scan(&sortino, &sharpe)
	if err != nil {
		t.Fatalf("querying run row: %v", err)
	}
	if sortino.Valid {
		t.Errorf("sortino = %v, want NULL", sortino.Float64)
	}
	if !sharpe.Valid || sharpe.Float64 != 1.2 {
		t.Errorf("sharpe = %+v, want 1.2", sharpe)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Sortino != nil {
		t.Errorf("Sortino = %v, want nil", *got.Sortino)
	}
	if got.CAGR == nil || *got.CAGR != 0.1 {
		t.Errorf("CAGR = %v, want 0.1", got.CAGR)
	}
}

func TestSQLiteStoreListRunsNewestFirst(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := s.SaveRun(ctx, sampleRun(t, id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("SaveRun(%s): %v", id, err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("ListRuns = %v", runs)
	}
	if runs[0].Positions != nil {
		t.Error("ListRuns should not load positions")
	}
}

func TestSQLiteStoreGetRunNotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrRunNotFound", err)
	}
}
