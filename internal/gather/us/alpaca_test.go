package us

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingtrader/internal/domain"
	"swingtrader/internal/gather"
)

type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]marketdata.Bar
	calls [][]string
	fail  int
}

func (f *fakeFetcher) GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), symbols...))
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("503 service unavailable")
	}
	out := make(map[string][]marketdata.Bar)
	for _, s := range symbols {
		for _, b := range f.data[s] {
			if !b.Timestamp.Before(req.Start) && !b.Timestamp.After(req.End) {
				out[s] = append(out[s], b)
			}
		}
	}
	return out, nil
}

type memStore struct {
	bars []domain.Bar
}

func (m *memStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	m.bars = append(m.bars, bars...)
	return nil
}

func (m *memStore) ReadBars(context.Context, string, string, time.Time, time.Time) ([]domain.Bar, error) {
	return nil, nil
}

func (m *memStore) ListSymbols(context.Context, string) ([]string, error) { return nil, nil }

func utcDay(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func barsFor(days ...int) []marketdata.Bar {
	var out []marketdata.Bar
	for _, d := range days {
		out = append(out, marketdata.Bar{
			Timestamp: utcDay(d).Add(5 * time.Hour), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1000,
		})
	}
	return out
}

func newFetcher() *fakeFetcher {
	return &fakeFetcher{data: map[string][]marketdata.Bar{
		"AAPL": barsFor(2, 3, 4),
		"MSFT": barsFor(2, 3, 4),
		"SPY":  barsFor(2, 3),
	}}
}

func TestDailyBarGathererRun(t *testing.T) {
	f := newFetcher()
	s := &memStore{}
	stateDir := t.TempDir()

	g := NewDailyBarGatherer(f, nil, s, DailyBarConfig{
		Symbols:   []string{"aapl", "MSFT", "SPY", "GONE", "AAPL"},
		Range:     gather.DateRange{Start: utcDay(1), End: utcDay(3)},
		BatchSize: 2,
		StateDir:  stateDir,
	})
	assert.Equal(t, "us-daily", g.Name())
	require.NoError(t, g.Run(context.Background()))

	assert.Equal(t, [][]string{{"AAPL", "MSFT"}, {"SPY", "GONE"}}, f.calls)
	assert.Len(t, s.bars, 6)
	for _, b := range s.bars {
		assert.Equal(t, time.UTC, b.Timestamp.Location())
	}

	st, err := loadGatherState(stateDir)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-03", st.LastCompleted)
	assert.Equal(t, []string{"GONE"}, st.Empty)

	// A second run for the same end date is a no-op.
	require.NoError(t, g.Run(context.Background()))
	assert.Len(t, f.calls, 2)
}

func TestDailyBarGathererSkipsKnownEmpty(t *testing.T) {
	f := newFetcher()
	stateDir := t.TempDir()
	cfg := DailyBarConfig{
		Symbols:  []string{"GONE"},
		Range:    gather.DateRange{Start: utcDay(1), End: utcDay(3)},
		StateDir: stateDir,
	}
	require.NoError(t, NewDailyBarGatherer(f, nil, &memStore{}, cfg).Run(context.Background()))

	cfg.Symbols = []string{"GONE", "AAPL"}
	require.NoError(t, NewDailyBarGatherer(f, nil, &memStore{}, cfg).Run(context.Background()))

	require.Len(t, f.calls, 2)
	assert.Equal(t, []string{"AAPL"}, f.calls[1])
}

func TestDailyBarGathererRetries(t *testing.T) {
	f := newFetcher()
	f.fail = 1
	s := &memStore{}

	g := NewDailyBarGatherer(f, nil, s, DailyBarConfig{
		Symbols:     []string{"AAPL"},
		Range:       gather.DateRange{Start: utcDay(1), End: utcDay(4)},
		MaxAttempts: 2,
	})
	require.NoError(t, g.Run(context.Background()))
	assert.Len(t, f.calls, 2)
	assert.Len(t, s.bars, 3)
}

func TestDailyBarGathererBatchFailure(t *testing.T) {
	f := newFetcher()
	f.fail = 1
	stateDir := t.TempDir()

	g := NewDailyBarGatherer(f, nil, &memStore{}, DailyBarConfig{
		Symbols:     []string{"AAPL"},
		Range:       gather.DateRange{Start: utcDay(1), End: utcDay(4)},
		MaxAttempts: 1,
		StateDir:    stateDir,
	})
	require.Error(t, g.Run(context.Background()))

	st, err := loadGatherState(stateDir)
	require.NoError(t, err)
	assert.Empty(t, st.LastCompleted)
}

func TestDailyBarGathererNeedsEnd(t *testing.T) {
	g := NewDailyBarGatherer(newFetcher(), nil, &memStore{}, DailyBarConfig{Symbols: []string{"AAPL"}})
	assert.Error(t, g.Run(context.Background()))
}

type fakeCalendar []alpaca.CalendarDay

func (c fakeCalendar) GetCalendar(alpaca.GetCalendarRequest) ([]alpaca.CalendarDay, error) {
	return c, nil
}

func TestLatestFinishedTradingDay(t *testing.T) {
	et, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	cal := fakeCalendar{{Date: "2024-01-04"}, {Date: "2024-01-05"}, {Date: "2024-01-08"}}

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"during session", time.Date(2024, 1, 8, 11, 0, 0, 0, et), "2024-01-05"},
		{"after cutoff", time.Date(2024, 1, 8, 21, 0, 0, 0, et), "2024-01-08"},
		{"weekend", time.Date(2024, 1, 7, 12, 0, 0, 0, et), "2024-01-05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LatestFinishedTradingDay(cal, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format(time.DateOnly))
		})
	}

	_, err = LatestFinishedTradingDay(fakeCalendar{}, time.Now())
	assert.Error(t, err)
}

func TestLoadCSVSymbols(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.csv")
	csv := "symbol,description,exchange\nmsft,Microsoft,NASDAQ\n AAPL ,Apple,NASDAQ\n,blank,NYSE\nMSFT,dup,NASDAQ\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	got, err := LoadCSVSymbols(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT", "AAPL"}, got)

	_, err = LoadCSVSymbols(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestGatherStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st, err := loadGatherState(dir)
	require.NoError(t, err)

	st.reset("2024-01-05")
	st.markEmpty("ZZZZ")
	st.markEmpty("ZZZZ")
	st.LastCompleted = "2024-01-05"
	st.Symbols = []string{"MSFT", "AAPL"}
	require.NoError(t, st.save(dir))

	again, err := loadGatherState(dir)
	require.NoError(t, err)
	assert.True(t, again.isEmpty("ZZZZ"))
	assert.Equal(t, []string{"ZZZZ"}, again.Empty)
	assert.True(t, again.covers([]string{"AAPL"}))
	assert.False(t, again.covers([]string{"AAPL", "IBM"}))

	syms := again.Symbols
	sort.Strings(syms)
	assert.Equal(t, []string{"AAPL", "MSFT"}, syms)
}
