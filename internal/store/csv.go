package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"swingtrader/internal/domain"
)

// Compile-time interface check.
var _ BarStore = (*CSVStore)(nil)

// CSVStore implements BarStore over one CSV file per symbol at
// <Dir>/<SYMBOL>.csv. The market argument is ignored; a directory holds one
// market.
type CSVStore struct {
	Dir string
}

// NewCSVStore creates a CSVStore rooted at dir.
func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{Dir: dir}
}

// CSVBar is the CSV row layout. trade_count and vwap are optional on read.
type CSVBar struct {
	Date       string  `csv:"date"`
	Open       float64 `csv:"open"`
	High       float64 `csv:"high"`
	Low        float64 `csv:"low"`
	Close      float64 `csv:"close"`
	Volume     int64   `csv:"volume"`
	TradeCount int64   `csv:"trade_count"`
	VWAP       float64 `csv:"vwap"`
}

// WriteBars merges bars into each symbol's file, replacing rows with the
// same date.
func (s *CSVStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	bySymbol := make(map[string][]domain.Bar)
	for _, b := range bars {
		sym := strings.ToUpper(b.Symbol)
		bySymbol[sym] = append(bySymbol[sym], b)
	}

	for sym, incoming := range bySymbol {
		rows, err := s.load(sym)
		if err != nil && !os.IsNotExist(err) {
			return err
		}

		merged := make(map[string]*CSVBar, len(rows)+len(incoming))
		for _, r := range rows {
			merged[r.Date] = r
		}
		for _, b := range incoming {
			day := b.Timestamp.UTC().Format(time.DateOnly)
			merged[day] = &CSVBar{
				Date: day, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close,
				Volume: b.Volume, TradeCount: b.TradeCount, VWAP: b.VWAP,
			}
		}

		out := make([]*CSVBar, 0, len(merged))
		for _, r := range merged {
			out = append(out, r)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })

		if err := s.save(sym, out); err != nil {
			return err
		}
	}
	return nil
}

// ReadBars returns the rows of symbol's file within [start, end].
func (s *CSVStore) ReadBars(_ context.Context, symbol string, _ string, start, end time.Time) ([]domain.Bar, error) {
	rows, err := s.load(symbol)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	bars := make([]domain.Bar, 0, len(rows))
	for _, r := range rows {
		ts, err := time.Parse(time.DateOnly, r.Date)
		if err != nil {
			return nil, fmt.Errorf("%s: bad date %q: %w", symbol, r.Date, err)
		}
		if ts.Before(start) || ts.After(end) {
			continue
		}
		bars = append(bars, domain.Bar{
			Symbol:     strings.ToUpper(symbol),
			Timestamp:  ts,
			Open:       r.Open,
			High:       r.High,
			Low:        r.Low,
			Close:      r.Close,
			Volume:     r.Volume,
			TradeCount: r.TradeCount,
			VWAP:       r.VWAP,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

// ListSymbols returns the symbols with a CSV file in Dir.
func (s *CSVStore) ListSymbols(_ context.Context, _ string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(matches))
	for _, m := range matches {
		symbols = append(symbols, strings.TrimSuffix(filepath.Base(m), ".csv"))
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *CSVStore) path(symbol string) string {
	return filepath.Join(s.Dir, strings.ToUpper(symbol)+".csv")
}

func (s *CSVStore) load(symbol string) ([]*CSVBar, error) {
	f, err := os.Open(s.path(symbol))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []*CSVBar
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path(symbol), err)
	}
	return rows, nil
}

func (s *CSVStore) save(symbol string, rows []*CSVBar) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(s.path(symbol))
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", s.path(symbol), err)
	}
	return f.Close()
}
