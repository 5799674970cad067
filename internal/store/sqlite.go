package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"swingtrader/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	strategy     TEXT NOT NULL,
	start_date   TEXT NOT NULL,
	end_date     TEXT NOT NULL,
	initial_cash TEXT NOT NULL,
	final_total  TEXT NOT NULL,
	cagr         REAL,
	volatility   REAL,
	sharpe       REAL,
	sortino      REAL,
	max_drawdown REAL NOT NULL,
	total_trades INTEGER NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS positions (
	run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq            INTEGER NOT NULL,
	ticker         TEXT NOT NULL,
	shares         INTEGER NOT NULL,
	open_date      TEXT NOT NULL,
	close_date     TEXT NOT NULL,
	open_price     REAL NOT NULL,
	stop_price     REAL NOT NULL,
	target_price   REAL NOT NULL,
	risk_per_share REAL NOT NULL,
	close_price    REAL NOT NULL,
	status         TEXT NOT NULL,
	close_reason   TEXT NOT NULL,
	fee            TEXT NOT NULL,
	total_cost     TEXT NOT NULL,
	market_value   TEXT NOT NULL,
	total_return   TEXT NOT NULL,
	realized_pnl   TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	date   TEXT NOT NULL,
	cash   TEXT NOT NULL,
	market TEXT NOT NULL,
	total  TEXT NOT NULL,
	PRIMARY KEY (run_id, date)
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema if needed, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection also keeps :memory:
	// databases consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts or replaces a run with its positions and equity curve in a
// single transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"positions", "equity", "runs"} {
		col := "run_id"
		if table == "runs" {
			col = "id"
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+col+" = ?", run.ID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, strategy, start_date, end_date, initial_cash, final_total, cagr, volatility, sharpe, sortino, max_drawdown, total_trades, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Strategy, formatDate(run.StartDate), formatDate(run.EndDate),
		run.InitialCash.String(), run.FinalTotal.String(),
		nullFloat(run.CAGR), nullFloat(run.Volatility), nullFloat(run.Sharpe), nullFloat(run.Sortino),
		run.MaxDrawdown, run.TotalTrades,
		run.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	posStmt, err := tx.PrepareContext(ctx, `INSERT INTO positions
		(run_id, seq, ticker, shares, open_date, close_date, open_price, stop_price, target_price, risk_per_share,
		 close_price, status, close_reason, fee, total_cost, market_value, total_return, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer posStmt.Close()

	for i, p := range run.Positions {
		_, err := posStmt.ExecContext(ctx,
			run.ID, i, p.Ticker, p.Shares, formatDate(p.OpenDate), formatDate(p.CloseDate),
			p.OpenPrice, p.StopPrice, p.TargetPrice, p.RiskPerShare, p.ClosePrice,
			string(p.Status), string(p.CloseReason),
			p.Fee.String(), p.TotalCost.String(), p.MarketValue.String(), p.TotalReturn.String(), p.RealizedPnL.String(),
		)
		if err != nil {
			return fmt.Errorf("inserting position %d (%s): %w", i, p.Ticker, err)
		}
	}

	eqStmt, err := tx.PrepareContext(ctx, `INSERT INTO equity (run_id, date, cash, market, total) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer eqStmt.Close()

	for _, pt := range run.Equity {
		if _, err := eqStmt.ExecContext(ctx, run.ID, formatDate(pt.Date), pt.Cash.String(), pt.Market.String(), pt.Total.String()); err != nil {
			return fmt.Errorf("inserting equity %s: %w", formatDate(pt.Date), err)
		}
	}

	return tx.Commit()
}

// GetRun loads one run with its positions and equity curve.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}

	if run.Positions, err = s.loadPositions(ctx, id); err != nil {
		return nil, err
	}
	if run.Equity, err = s.loadEquity(ctx, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent run summaries, newest first. Positions
// and equity are not loaded.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ---------------------------------------------------------------------------
// Row helpers
// ---------------------------------------------------------------------------

// timestampLayout is fixed width so that created_at sorts as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

const runColumns = `id, strategy, start_date, end_date, initial_cash, final_total, cagr, volatility, sharpe, sortino, max_drawdown, total_trades, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (domain.RunRecord, error) {
	var (
		run                        domain.RunRecord
		start, end, createdAt      string
		cagr, vol, sharpe, sortino sql.NullFloat64
	)
	err := sc.Scan(&run.ID, &run.Strategy, &start, &end, &run.InitialCash, &run.FinalTotal,
		&cagr, &vol, &sharpe, &sortino, &run.MaxDrawdown, &run.TotalTrades, &createdAt)
	if err != nil {
		return run, err
	}
	run.CAGR = floatPtr(cagr)
	run.Volatility = floatPtr(vol)
	run.Sharpe = floatPtr(sharpe)
	run.Sortino = floatPtr(sortino)
	run.StartDate = parseDate(start)
	run.EndDate = parseDate(end)
	run.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
	return run, nil
}

func (s *SQLiteStore) loadPositions(ctx context.Context, id string) ([]*domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ticker, shares, open_date, close_date, open_price, stop_price,
		target_price, risk_per_share, close_price, status, close_reason, fee, total_cost, market_value,
		total_return, realized_pnl FROM positions WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Position
	for rows.Next() {
		var (
			p              domain.Position
			openD, closeD  string
			status, reason string
		)
		err := rows.Scan(&p.Ticker, &p.Shares, &openD, &closeD, &p.OpenPrice, &p.StopPrice,
			&p.TargetPrice, &p.RiskPerShare, &p.ClosePrice, &status, &reason,
			&p.Fee, &p.TotalCost, &p.MarketValue, &p.TotalReturn, &p.RealizedPnL)
		if err != nil {
			return nil, err
		}
		p.OpenDate = parseDate(openD)
		p.CloseDate = parseDate(closeD)
		p.Status = domain.PositionStatus(status)
		p.CloseReason = domain.CloseReason(reason)
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadEquity(ctx context.Context, id string) ([]domain.EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, cash, market, total FROM equity WHERE run_id = ? ORDER BY date`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EquityPoint
	for rows.Next() {
		var (
			pt domain.EquityPoint
			d  string
		)
		if err := rows.Scan(&d, &pt.Cash, &pt.Market, &pt.Total); err != nil {
			return nil, err
		}
		pt.Date = parseDate(d)
		out = append(out, pt)
	}
	return out, rows.Err()
}

// nullFloat stores an undefined ratio as NULL.
func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.DateOnly, s)
	return t
}
