package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"swingtrader/internal/domain"
)

// Compile-time interface check.
var _ BarStore = (*PostgresStore)(nil)

// PostgresStore implements BarStore on a daily_bars table with NUMERIC
// prices.
type PostgresStore struct {
	pool   *pgxpool.Pool
	market string
}

const barsDDL = `
CREATE TABLE IF NOT EXISTS daily_bars (
	market      TEXT    NOT NULL,
	symbol      TEXT    NOT NULL,
	ts          DATE    NOT NULL,
	open        NUMERIC NOT NULL,
	high        NUMERIC NOT NULL,
	low         NUMERIC NOT NULL,
	close       NUMERIC NOT NULL,
	volume      BIGINT  NOT NULL,
	trade_count BIGINT  NOT NULL DEFAULT 0,
	vwap        NUMERIC NOT NULL DEFAULT 0,
	PRIMARY KEY (market, symbol, ts)
)`

const upsertBar = `
INSERT INTO daily_bars (market, symbol, ts, open, high, low, close, volume, trade_count, vwap)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (market, symbol, ts) DO UPDATE SET
	open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low, close = EXCLUDED.close,
	volume = EXCLUDED.volume, trade_count = EXCLUDED.trade_count, vwap = EXCLUDED.vwap`

// NewPostgresStore connects to dbURL, registers decimal support on every
// connection, and creates the bars table if needed.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	config.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, barsDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating daily_bars: %w", err)
	}
	return &PostgresStore{pool: pool, market: string(domain.MarketUS)}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() { s.pool.Close() }

// WriteBars upserts bars in one batch.
func (s *PostgresStore) WriteBars(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(upsertBar,
			s.market, strings.ToUpper(b.Symbol), b.Timestamp.UTC(),
			decimal.NewFromFloat(b.Open), decimal.NewFromFloat(b.High),
			decimal.NewFromFloat(b.Low), decimal.NewFromFloat(b.Close),
			b.Volume, b.TradeCount, decimal.NewFromFloat(b.VWAP),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	for range bars {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upserting bars: %w", err)
		}
	}
	return br.Close()
}

// ReadBars returns bars for symbol in [start, end], ascending by date.
func (s *PostgresStore) ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts, open, high, low, close, volume, trade_count, vwap
		FROM daily_bars
		WHERE market = $1 AND symbol = $2 AND ts BETWEEN $3 AND $4
		ORDER BY ts`,
		market, strings.ToUpper(symbol), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query bars %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var (
			ts                             time.Time
			open, high, low, closePx, vwap decimal.Decimal
			volume, trades                 int64
		)
		if err := rows.Scan(&ts, &open, &high, &low, &closePx, &volume, &trades, &vwap); err != nil {
			return nil, fmt.Errorf("scan bar %s: %w", symbol, err)
		}
		bars = append(bars, domain.Bar{
			Symbol:     strings.ToUpper(symbol),
			Timestamp:  ts.UTC(),
			Open:       open.InexactFloat64(),
			High:       high.InexactFloat64(),
			Low:        low.InexactFloat64(),
			Close:      closePx.InexactFloat64(),
			Volume:     volume,
			TradeCount: trades,
			VWAP:       vwap.InexactFloat64(),
		})
	}
	return bars, rows.Err()
}

// ListSymbols returns the distinct symbols stored for market.
func (s *PostgresStore) ListSymbols(ctx context.Context, market string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT symbol FROM daily_bars WHERE market = $1 ORDER BY symbol`, market)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
