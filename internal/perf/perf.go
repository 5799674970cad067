// Package perf derives performance statistics from an equity curve and the
// positions of a run.
package perf

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"swingtrader/internal/domain"
)

// TradingDays annualizes daily statistics.
const TradingDays = 252

// ErrUndefinedMetric is returned when a statistic cannot be computed from the
// available data.
var ErrUndefinedMetric = errors.New("metric undefined")

// Metric names a statistic that can be undefined for a given curve.
type Metric string

const (
	MetricCAGR       Metric = "cagr"
	MetricVolatility Metric = "volatility"
	MetricSharpe     Metric = "sharpe"
	MetricSortino    Metric = "sortino"
	MetricBeta       Metric = "beta"
)

// KPIs are the headline statistics of an equity curve.
type KPIs struct {
	Days        int
	TotalReturn float64
	CAGR        float64
	Volatility  float64
	Sharpe      float64
	Sortino     float64
	MaxDrawdown float64

	// Undefined lists the metrics that could not be computed. Their fields
	// hold zero and must not be read as values.
	Undefined []Metric
}

// Defined reports whether m was computed.
func (k KPIs) Defined(m Metric) bool {
	return !slices.Contains(k.Undefined, m)
}

// Value returns the metric and whether it is defined.
func (k KPIs) Value(m Metric) (float64, bool) {
	var v float64
	switch m {
	case MetricCAGR:
		v = k.CAGR
	case MetricVolatility:
		v = k.Volatility
	case MetricSharpe:
		v = k.Sharpe
	case MetricSortino:
		v = k.Sortino
	default:
		return 0, false
	}
	return v, k.Defined(m)
}

// Returns computes simple period returns v[t]/v[t-1]-1.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i]/values[i-1] - 1
	}
	return out
}

// Totals extracts the total column of a curve as floats.
func Totals(curve []domain.EquityPoint) []float64 {
	out := make([]float64, len(curve))
	for i, p := range curve {
		out[i] = p.Total.InexactFloat64()
	}
	return out
}

// CAGR compounds returns and annualizes over their count.
func CAGR(returns []float64) (float64, error) {
	if len(returns) == 0 {
		return 0, fmt.Errorf("cagr: no returns: %w", ErrUndefinedMetric)
	}
	growth := 1.0
	for _, r := range returns {
		growth *= 1 + r
	}
	if growth <= 0 {
		return 0, fmt.Errorf("cagr: non-positive growth %v: %w", growth, ErrUndefinedMetric)
	}
	return math.Pow(growth, float64(TradingDays)/float64(len(returns))) - 1, nil
}

// Volatility is the annualized sample standard deviation of returns.
func Volatility(returns []float64) (float64, error) {
	if len(returns) < 2 {
		return 0, fmt.Errorf("volatility: %d returns: %w", len(returns), ErrUndefinedMetric)
	}
	return stat.StdDev(returns, nil) * math.Sqrt(TradingDays), nil
}

// Sharpe is (cagr-riskFree)/volatility.
func Sharpe(cagr, volatility, riskFree float64) (float64, error) {
	if volatility <= 0 || math.IsNaN(volatility) {
		return 0, fmt.Errorf("sharpe: volatility %v: %w", volatility, ErrUndefinedMetric)
	}
	return (cagr - riskFree) / volatility, nil
}

// DownsideVolatility is the annualized sample standard deviation of the
// negative returns. At least two negative returns are needed.
func DownsideVolatility(returns []float64) (float64, error) {
	var neg []float64
	for _, r := range returns {
		if r < 0 {
			neg = append(neg, r)
		}
	}
	if len(neg) < 2 {
		return 0, fmt.Errorf("downside volatility: %d negative returns: %w", len(neg), ErrUndefinedMetric)
	}
	sd := stat.StdDev(neg, nil) * math.Sqrt(TradingDays)
	if sd <= 0 {
		return 0, fmt.Errorf("downside volatility: zero dispersion: %w", ErrUndefinedMetric)
	}
	return sd, nil
}

// Sortino is (cagr-riskFree)/downside volatility.
func Sortino(returns []float64, cagr, riskFree float64) (float64, error) {
	dv, err := DownsideVolatility(returns)
	if err != nil {
		return 0, fmt.Errorf("sortino: %w", err)
	}
	return (cagr - riskFree) / dv, nil
}

// MaxDrawdown is the largest peak-to-trough decline as a positive fraction.
func MaxDrawdown(values []float64) float64 {
	var peak, dd float64
	for _, v := range values {
		peak = math.Max(peak, v)
		if peak > 0 {
			dd = math.Max(dd, (peak-v)/peak)
		}
	}
	return dd
}

// Beta is cov(returns, benchmark)/var(benchmark) over aligned returns.
func Beta(returns, benchmark []float64) (float64, error) {
	if len(returns) != len(benchmark) {
		return 0, fmt.Errorf("beta: %d returns vs %d benchmark returns: %w", len(returns), len(benchmark), ErrUndefinedMetric)
	}
	if len(returns) < 2 {
		return 0, fmt.Errorf("beta: %d returns: %w", len(returns), ErrUndefinedMetric)
	}
	v := stat.Variance(benchmark, nil)
	if v <= 0 {
		return 0, fmt.Errorf("beta: flat benchmark: %w", ErrUndefinedMetric)
	}
	return stat.Covariance(returns, benchmark, nil) / v, nil
}

// Analyze computes KPIs for values. Metrics that cannot be computed are
// listed in KPIs.Undefined and their errors are joined into the returned
// error.
func Analyze(values []float64, riskFree float64) (KPIs, error) {
	k := KPIs{Days: len(values)}
	ratios := []Metric{MetricCAGR, MetricVolatility, MetricSharpe, MetricSortino}
	if len(values) < 2 {
		k.Undefined = ratios
		return k, fmt.Errorf("%d equity points: %w", len(values), ErrUndefinedMetric)
	}
	k.TotalReturn = values[len(values)-1]/values[0] - 1
	k.MaxDrawdown = MaxDrawdown(values)

	returns := Returns(values)
	var errs []error

	cagr, err := CAGR(returns)
	if err != nil {
		// Without CAGR none of the ratios are meaningful.
		k.Undefined = ratios
		return k, err
	}
	k.CAGR = cagr

	if k.Volatility, err = Volatility(returns); err != nil {
		k.Volatility = 0
		k.Undefined = append(k.Undefined, MetricVolatility, MetricSharpe)
		errs = append(errs, err)
	} else if k.Sharpe, err = Sharpe(cagr, k.Volatility, riskFree); err != nil {
		k.Sharpe = 0
		k.Undefined = append(k.Undefined, MetricSharpe)
		errs = append(errs, err)
	}

	if k.Sortino, err = Sortino(returns, cagr, riskFree); err != nil {
		k.Sortino = 0
		k.Undefined = append(k.Undefined, MetricSortino)
		errs = append(errs, err)
	}
	return k, errors.Join(errs...)
}
