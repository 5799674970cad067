// Package report writes backtest results as CSV files and text summaries and
// publishes per-day progress to a terminal bar or InfluxDB.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"swingtrader/internal/domain"
	"swingtrader/internal/strategy"
)

// EquityRow is one line of equity.csv.
type EquityRow struct {
	Date   string `csv:"date"`
	Cash   string `csv:"cash"`
	Market string `csv:"market"`
	Total  string `csv:"total"`
}

// PositionRow is one line of positions.csv.
type PositionRow struct {
	Ticker      string  `csv:"ticker"`
	Shares      int64   `csv:"shares"`
	Status      string  `csv:"status"`
	OpenDate    string  `csv:"open_date"`
	OpenPrice   float64 `csv:"open_price"`
	StopPrice   float64 `csv:"stop_price"`
	TargetPrice float64 `csv:"target_price"`
	CloseDate   string  `csv:"close_date"`
	ClosePrice  float64 `csv:"close_price"`
	CloseReason string  `csv:"close_reason"`
	Fee         string  `csv:"fee"`
	TotalCost   string  `csv:"total_cost"`
	MarketValue string  `csv:"market_value"`
	RealizedPnL string  `csv:"realized_pnl"`
}

// WriteEquityCSV writes the equity curve as CSV.
func WriteEquityCSV(w io.Writer, curve []domain.EquityPoint) error {
	rows := make([]*EquityRow, len(curve))
	for i, pt := range curve {
		rows[i] = &EquityRow{
			Date:   pt.Date.Format(time.DateOnly),
			Cash:   pt.Cash.StringFixed(2),
			Market: pt.Market.StringFixed(2),
			Total:  pt.Total.StringFixed(2),
		}
	}
	return gocsv.Marshal(&rows, w)
}

// WritePositionsCSV writes every position, open or closed, as CSV.
func WritePositionsCSV(w io.Writer, positions []*domain.Position) error {
	rows := make([]*PositionRow, len(positions))
	for i, p := range positions {
		row := &PositionRow{
			Ticker:      p.Ticker,
			Shares:      p.Shares,
			Status:      string(p.Status),
			OpenDate:    p.OpenDate.Format(time.DateOnly),
			OpenPrice:   p.OpenPrice,
			StopPrice:   p.StopPrice,
			TargetPrice: p.TargetPrice,
			ClosePrice:  p.ClosePrice,
			CloseReason: string(p.CloseReason),
			Fee:         p.Fee.StringFixed(2),
			TotalCost:   p.TotalCost.StringFixed(2),
			MarketValue: p.MarketValue.StringFixed(2),
			RealizedPnL: p.RealizedPnL.StringFixed(2),
		}
		if !p.CloseDate.IsZero() {
			row.CloseDate = p.CloseDate.Format(time.DateOnly)
		}
		rows[i] = row
	}
	return gocsv.Marshal(&rows, w)
}

// WriteFiles writes equity.csv, positions.csv and summary.txt under
// dir/<run id> and returns that directory.
func WriteFiles(dir string, res *strategy.BacktestResult) (string, error) {
	out := filepath.Join(dir, res.RunID)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", err
	}

	writers := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"equity.csv", func(w io.Writer) error { return WriteEquityCSV(w, res.Curve) }},
		{"positions.csv", func(w io.Writer) error { return WritePositionsCSV(w, res.Positions) }},
		{"summary.txt", func(w io.Writer) error { return WriteSummary(w, res) }},
	}
	for _, wr := range writers {
		path := filepath.Join(out, wr.name)
		f, err := os.Create(path)
		if err != nil {
			return "", err
		}
		if err := wr.write(f); err != nil {
			f.Close()
			return "", fmt.Errorf("writing %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", err
		}
	}
	return out, nil
}
