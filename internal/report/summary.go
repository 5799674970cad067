package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"swingtrader/internal/perf"
	"swingtrader/internal/strategy"
)

// WriteSummary writes a plain-text summary of res.
func WriteSummary(w io.Writer, res *strategy.BacktestResult) error {
	var b strings.Builder
	line := func(label, format string, args ...any) {
		fmt.Fprintf(&b, "%-12s"+format+"\n", append([]any{label}, args...)...)
	}

	rec := res.Record(time.Time{})
	line("Run", "%s", res.RunID)
	line("Strategy", "%s", res.Strategy)
	line("Period", "%s .. %s (%d days)",
		rec.StartDate.Format(time.DateOnly), rec.EndDate.Format(time.DateOnly), len(res.Curve))
	line("Capital", "%s -> %s (%s)",
		FormatMoney(rec.InitialCash), FormatMoney(rec.FinalTotal), FormatPct(res.KPIs.TotalReturn))
	if res.Aborted != nil {
		line("Status", "stopped early: %v", res.Aborted)
	}
	line("CAGR", "%s", FormatPctPtr(rec.CAGR))
	line("Volatility", "%s", FormatPctPtr(rec.Volatility))
	line("Sharpe", "%s", FormatRatioPtr(rec.Sharpe))
	line("Sortino", "%s", FormatRatioPtr(rec.Sortino))
	line("Max DD", "%s", FormatPct(-res.KPIs.MaxDrawdown))

	t := res.Trades
	line("Trades", "%s closed, %s open (%d stop, %d target)",
		FormatInt(int64(t.Closed)), FormatInt(int64(t.Open)), t.StopExits, t.TargetExits)
	line("Win rate", "%s", FormatPct(t.WinRate))
	line("Profit fac.", "%s", FormatRatio(t.ProfitFactor))
	line("Net P&L", "%s (avg %s)", FormatMoney(t.NetPnL), FormatMoney(t.AvgPnL))

	if bm := res.Benchmark; bm != nil {
		beta := Undefined
		if bm.KPIs.Defined(perf.MetricBeta) {
			beta = FormatRatio(bm.Beta)
		}
		line("Benchmark", "%s CAGR %s, vol %s, beta %s", bm.Symbol,
			metric(bm.KPIs, perf.MetricCAGR, FormatPct), metric(bm.KPIs, perf.MetricVolatility, FormatPct), beta)
	} else if res.BenchmarkErr != nil {
		line("Benchmark", "%s unavailable: %v", res.Params.Benchmark, res.BenchmarkErr)
	}
	if len(res.Skipped) > 0 {
		line("Skipped", "%s", strings.Join(res.Skipped, " "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func metric(k perf.KPIs, m perf.Metric, format func(float64) string) string {
	v, ok := k.Value(m)
	if !ok {
		return Undefined
	}
	return format(v)
}
