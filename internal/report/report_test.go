package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingtrader/internal/domain"
	"swingtrader/internal/engine"
	"swingtrader/internal/perf"
	"swingtrader/internal/strategy"
)

func day(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

func sampleResult(t *testing.T) *strategy.BacktestResult {
	t.Helper()
	won, err := domain.NewPosition("AAA", day(4), 101,
		domain.Sizing{Shares: 50, StopPrice: 99, TargetPrice: 105, RiskPerShare: 2}, decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, won.Close(105, day(6), domain.CloseTarget))

	open, err := domain.NewPosition("BBB", day(5), 20,
		domain.Sizing{Shares: 10, StopPrice: 19, TargetPrice: 25, RiskPerShare: 1}, decimal.Zero)
	require.NoError(t, err)

	curve := []domain.EquityPoint{
		{Date: day(4), Cash: decimal.NewFromInt(4950), Market: decimal.NewFromInt(5100), Total: decimal.NewFromInt(10050)},
		{Date: day(5), Cash: decimal.NewFromInt(4750), Market: decimal.NewFromInt(5350), Total: decimal.NewFromInt(10100)},
		{Date: day(6), Cash: decimal.NewFromInt(9750), Market: decimal.NewFromInt(200), Total: decimal.NewFromInt(9950)},
	}
	positions := []*domain.Position{won, open}
	return &strategy.BacktestResult{
		RunID:     "run-1",
		Strategy:  "breakout",
		Params:    strategy.RunParams{InitialCash: decimal.NewFromInt(10000)},
		Curve:     curve,
		Positions: positions,
		KPIs:      perf.KPIs{TotalReturn: -0.005, CAGR: 0.12, Volatility: 0.2, Sharpe: 0.6},
		Benchmark: &strategy.BenchmarkStats{Symbol: "SPY", Beta: 0.8},
		Trades:    perf.Trades(positions),
		Skipped:   []string{"ZZZ"},
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "999", FormatInt(999))
	assert.Equal(t, "1,234,567", FormatInt(1234567))
	assert.Equal(t, "-1,000", FormatInt(-1000))

	assert.Equal(t, "4,196.19", FormatMoney(decimal.RequireFromString("4196.19")))
	assert.Equal(t, "1.00", FormatMoney(decimal.RequireFromString("0.999")))
	assert.Equal(t, "-12,000.50", FormatMoney(decimal.RequireFromString("-12000.5")))

	assert.Equal(t, "+4.90%", FormatPct(0.049))
	assert.Equal(t, "-3.20%", FormatPct(-0.032))
	assert.Equal(t, "+150%", FormatPct(1.5))

	assert.Equal(t, "-", FormatRatio(0))
	assert.Equal(t, "1.23", FormatRatio(1.234))
}

func TestWriteEquityCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEquityCSV(&buf, sampleResult(t).Curve))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "date,cash,market,total", lines[0])
	assert.Equal(t, "2024-03-04,4950.00,5100.00,10050.00", lines[1])
}

func TestWritePositionsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePositionsCSV(&buf, sampleResult(t).Positions))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ticker,shares,status,open_date"))
	assert.Contains(t, lines[1], "AAA,50,closed,2024-03-04")
	assert.Contains(t, lines[1], "target")
	assert.Contains(t, lines[1], "200.00")
	assert.Contains(t, lines[2], "BBB,10,open")
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, sampleResult(t)))
	out := buf.String()

	assert.Contains(t, out, "breakout")
	assert.Contains(t, out, "2024-03-04 .. 2024-03-06 (3 days)")
	assert.Contains(t, out, "10,000.00 -> 9,950.00 (-0.50%)")
	assert.Contains(t, out, "1 closed, 1 open (0 stop, 1 target)")
	assert.Contains(t, out, "SPY")
	assert.Contains(t, out, "beta 0.80")
	assert.Contains(t, out, "ZZZ")
}

func TestWriteSummaryUndefinedMetrics(t *testing.T) {
	res := sampleResult(t)
	res.KPIs.Undefined = []perf.Metric{perf.MetricSharpe, perf.MetricSortino}
	res.KPIErr = perf.ErrUndefinedMetric
	res.Benchmark.KPIs.Undefined = []perf.Metric{perf.MetricBeta}

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, res))
	out := buf.String()

	assert.Contains(t, out, "Sharpe      undefined")
	assert.Contains(t, out, "Sortino     undefined")
	assert.Contains(t, out, "CAGR        +12.00%")
	assert.Contains(t, out, "beta undefined")
}

func TestWriteSummaryMissingBenchmark(t *testing.T) {
	res := sampleResult(t)
	res.Benchmark = nil
	res.Params.Benchmark = "SPY"
	res.BenchmarkErr = errors.New("no bar data")

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, res))
	assert.Contains(t, buf.String(), "SPY unavailable: no bar data")
}

func TestWriteFilesAbortedRun(t *testing.T) {
	res := sampleResult(t)
	res.Curve = res.Curve[:1]
	res.Aborted = errors.New("2024-03-05 closing: BBB: missing bar")

	dir, err := WriteFiles(t.TempDir(), res)
	require.NoError(t, err)

	summary, err := os.ReadFile(filepath.Join(dir, "summary.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "stopped early: 2024-03-05 closing")

	equity, err := os.ReadFile(filepath.Join(dir, "equity.csv"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(equity)), "\n"), 2)
}

func TestFormatOptional(t *testing.T) {
	v := 0.25
	assert.Equal(t, "+25.00%", FormatPctPtr(&v))
	assert.Equal(t, Undefined, FormatPctPtr(nil))
	assert.Equal(t, "0.25", FormatRatioPtr(&v))
	assert.Equal(t, Undefined, FormatRatioPtr(nil))
}

func TestWriteFiles(t *testing.T) {
	dir, err := WriteFiles(t.TempDir(), sampleResult(t))
	require.NoError(t, err)
	assert.Equal(t, "run-1", filepath.Base(dir))

	for _, name := range []string{"equity.csv", "positions.csv", "summary.txt"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}
}

type fakeInflux struct {
	batches []client.BatchPoints
	err     error
}

func (f *fakeInflux) Write(bp client.BatchPoints) error {
	f.batches = append(f.batches, bp)
	return f.err
}

func TestInfluxObserver(t *testing.T) {
	res := sampleResult(t)
	w := &fakeInflux{}
	obs := NewInfluxObserver(w, "backtests", map[string]string{"run_id": "run-1"})

	obs.OnDay(context.Background(), engine.DayReport{
		Point:     res.Curve[2],
		Closed:    res.Positions[:1],
		OpenCount: 1,
		Day:       3,
		Days:      3,
	})

	require.Len(t, w.batches, 1)
	bp := w.batches[0]
	assert.Equal(t, "backtests", bp.Database())

	points := bp.Points()
	require.Len(t, points, 2)
	assert.Equal(t, "equity", points[0].Name())
	assert.Equal(t, "run-1", points[0].Tags()["run_id"])
	fields, err := points[0].Fields()
	require.NoError(t, err)
	assert.Equal(t, 9950.0, fields["total"])

	assert.Equal(t, "trades", points[1].Name())
	assert.Equal(t, "AAA", points[1].Tags()["ticker"])
	assert.Equal(t, "close", points[1].Tags()["side"])
}

func TestInfluxObserverWriteErrorIsNotFatal(t *testing.T) {
	w := &fakeInflux{err: errors.New("connection refused")}
	obs := NewInfluxObserver(w, "backtests", nil)

	assert.NotPanics(t, func() {
		obs.OnDay(context.Background(), engine.DayReport{Point: sampleResult(t).Curve[0], Day: 1, Days: 1})
	})
	assert.Len(t, w.batches, 1)
}

func TestProgressObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := NewProgressObserver(&buf)

	for i := 1; i <= 3; i++ {
		obs.OnDay(context.Background(), engine.DayReport{Day: i, Days: 3})
	}
	assert.NotZero(t, buf.Len())
	assert.True(t, obs.bar.IsFinished())
}
