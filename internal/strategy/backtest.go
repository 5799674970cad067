package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"swingtrader/internal/domain"
	"swingtrader/internal/engine"
	"swingtrader/internal/perf"
	"swingtrader/internal/series"
	"swingtrader/internal/store"
)

var (
	// ErrUnknownStrategy is returned when the requested rule is not registered.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrNoData is returned when no universe symbol has usable bars.
	ErrNoData = errors.New("no bar data")
)

// RunParams describes one backtest.
type RunParams struct {
	// RunID identifies the run. Run assigns a new UUID when it is empty.
	RunID string

	Strategy  string
	Universe  []string
	Benchmark string
	Market    string

	// DataStart is the first bar loaded; bars before Start feed indicators.
	DataStart time.Time
	Start     time.Time
	End       time.Time

	InitialCash decimal.Decimal
	Fee         decimal.Decimal

	RiskPerTrade float64
	RiskRatio    float64
	CashRatio    float64
	StopMargin   float64
	ATRWindow    int

	Trailing    bool
	TrailWindow int

	RiskFreeRate float64

	// MinHistory is the number of bars each instrument should have before
	// Start. Shorter histories are logged and still simulated.
	MinHistory int
}

// BenchmarkStats compares the run to a buy-and-hold benchmark over the same
// days.
type BenchmarkStats struct {
	Symbol string
	KPIs   perf.KPIs
	Beta   float64
}

// BacktestResult holds everything produced by a backtest run.
type BacktestResult struct {
	RunID     string
	Strategy  string
	Params    RunParams
	Curve     []domain.EquityPoint
	Positions []*domain.Position
	KPIs      perf.KPIs
	Benchmark *BenchmarkStats
	Trades    perf.TradeStats

	// KPIErr joins the reasons behind KPIs.Undefined. BenchmarkErr is set
	// when the benchmark could not be loaded or some of its statistics are
	// undefined.
	KPIErr       error
	BenchmarkErr error

	// Aborted is the engine error that stopped the run early. Curve and
	// Positions then stop at the last completed day.
	Aborted error

	// Skipped lists universe symbols that had no usable bars.
	Skipped []string
}

// Backtester loads stored bars, runs a registered strategy through the
// engine and analyzes the outcome.
type Backtester struct {
	store    store.BarStore
	registry *Registry
	runs     store.RunStore
	observer engine.Observer
	log      *slog.Logger
}

// Option configures a Backtester.
type Option func(*Backtester)

// WithRunStore persists every successful run to rs.
func WithRunStore(rs store.RunStore) Option {
	return func(bt *Backtester) { bt.runs = rs }
}

// WithObserver passes o to the engine of every run.
func WithObserver(o engine.Observer) Option {
	return func(bt *Backtester) { bt.observer = o }
}

// NewBacktester creates a Backtester that reads bars from the given store and
// looks up strategies in the provided registry.
func NewBacktester(barStore store.BarStore, registry *Registry, opts ...Option) *Backtester {
	bt := &Backtester{
		store:    barStore,
		registry: registry,
		log:      slog.Default().With("component", "backtester"),
	}
	for _, opt := range opts {
		opt(bt)
	}
	return bt
}

// Run executes a backtest. When the engine fails part way the partial result
// is analyzed and returned together with the error, and nothing is
// persisted. Undefined statistics do not fail the run; they are reported in
// KPIErr and BenchmarkErr.
func (bt *Backtester) Run(ctx context.Context, p RunParams) (*BacktestResult, error) {
	strat, ok := bt.registry.Get(p.Strategy)
	if !ok {
		return nil, fmt.Errorf("%q (have %s): %w", p.Strategy, strings.Join(bt.registry.List(), ", "), ErrUnknownStrategy)
	}
	if p.Market == "" {
		p.Market = string(domain.MarketUS)
	}
	if p.RunID == "" {
		p.RunID = uuid.NewString()
	}
	log := bt.log.With("strategy", strat.Name(), "run_id", p.RunID)

	universe, skipped, err := bt.loadUniverse(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(universe) == 0 {
		return nil, fmt.Errorf("%d symbols in [%s, %s]: %w", len(p.Universe),
			p.DataStart.Format(time.DateOnly), readEnd(p.End).Format(time.DateOnly), ErrNoData)
	}

	need := max(p.MinHistory, strat.Lookback())
	for _, s := range universe {
		if have := barsBefore(s, p.Start); have < need {
			log.Warn("short history before start", "ticker", s.Ticker(), "bars", have, "want", need)
		}
	}

	risk := engine.NewRiskManager(p.RiskPerTrade, p.RiskRatio, p.StopMargin, p.CashRatio)
	eng := engine.NewEngine(strat, risk, engine.Config{
		InitialCash: p.InitialCash,
		Fee:         p.Fee,
		ATRWindow:   p.ATRWindow,
		Trailing:    p.Trailing,
		TrailWindow: p.TrailWindow,
		End:         p.End,
	}, bt.observer)

	out, runErr := eng.Run(ctx, universe, p.Start)
	res := &BacktestResult{
		RunID:    p.RunID,
		Strategy: strat.Name(),
		Params:   p,
		Skipped:  skipped,
		Aborted:  runErr,
	}
	if out != nil {
		res.Curve = out.Curve
		res.Positions = out.Positions
	}
	res.Trades = perf.Trades(res.Positions)

	totals := perf.Totals(res.Curve)
	if res.KPIs, res.KPIErr = perf.Analyze(totals, p.RiskFreeRate); res.KPIErr != nil {
		log.Warn("some metrics are undefined", "undefined", res.KPIs.Undefined, "error", res.KPIErr)
	}
	if p.Benchmark != "" {
		if res.Benchmark, res.BenchmarkErr = bt.benchmark(ctx, p, res.Curve, totals); res.BenchmarkErr != nil {
			log.Warn("benchmark comparison incomplete", "benchmark", p.Benchmark, "error", res.BenchmarkErr)
		}
	}
	if runErr != nil {
		return res, runErr
	}

	if bt.runs != nil {
		if err := bt.runs.SaveRun(ctx, res.Record(time.Now().UTC())); err != nil {
			return res, fmt.Errorf("saving run %s: %w", res.RunID, err)
		}
		log.Info("run saved")
	}
	return res, nil
}

// Record converts the result into its persisted form.
func (r *BacktestResult) Record(createdAt time.Time) *domain.RunRecord {
	rec := &domain.RunRecord{
		ID:          r.RunID,
		Strategy:    r.Strategy,
		StartDate:   series.Day(r.Params.Start),
		EndDate:     series.Day(r.Params.End),
		InitialCash: r.Params.InitialCash,
		FinalTotal:  r.Params.InitialCash,
		CAGR:        definedOrNil(r.KPIs, perf.MetricCAGR),
		Volatility:  definedOrNil(r.KPIs, perf.MetricVolatility),
		Sharpe:      definedOrNil(r.KPIs, perf.MetricSharpe),
		Sortino:     definedOrNil(r.KPIs, perf.MetricSortino),
		MaxDrawdown: r.KPIs.MaxDrawdown,
		TotalTrades: r.Trades.Total,
		CreatedAt:   createdAt,
		Positions:   r.Positions,
		Equity:      r.Curve,
	}
	if n := len(r.Curve); n > 0 {
		rec.StartDate = r.Curve[0].Date
		rec.EndDate = r.Curve[n-1].Date
		rec.FinalTotal = r.Curve[n-1].Total
	}
	return rec
}

func definedOrNil(k perf.KPIs, m perf.Metric) *float64 {
	v, ok := k.Value(m)
	if !ok {
		return nil
	}
	return &v
}

func (bt *Backtester) loadUniverse(ctx context.Context, p RunParams) ([]*series.PriceSeries, []string, error) {
	var (
		universe []*series.PriceSeries
		skipped  []string
	)
	for _, sym := range p.Universe {
		s, err := bt.load(ctx, sym, p)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		if err != nil {
			bt.log.Warn("symbol skipped", "ticker", sym, "error", err)
			skipped = append(skipped, sym)
			continue
		}
		universe = append(universe, s)
	}
	return universe, skipped, nil
}

func (bt *Backtester) load(ctx context.Context, sym string, p RunParams) (*series.PriceSeries, error) {
	bars, err := bt.store.ReadBars(ctx, sym, p.Market, p.DataStart, readEnd(p.End))
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return series.New(strings.ToUpper(sym), bars)
}

// benchmark aligns the benchmark's closes to the curve dates.
func (bt *Backtester) benchmark(ctx context.Context, p RunParams, curve []domain.EquityPoint, totals []float64) (*BenchmarkStats, error) {
	s, err := bt.load(ctx, p.Benchmark, p)
	if err != nil {
		return nil, err
	}

	closes := make([]float64, len(curve))
	for i, pt := range curve {
		bar, err := s.Bar(pt.Date)
		if err != nil {
			return nil, err
		}
		closes[i] = bar.Close
	}

	stats := &BenchmarkStats{Symbol: s.Ticker()}
	var errs []error
	if stats.KPIs, err = perf.Analyze(closes, p.RiskFreeRate); err != nil {
		errs = append(errs, err)
	}
	if stats.Beta, err = perf.Beta(perf.Returns(totals), perf.Returns(closes)); err != nil {
		stats.KPIs.Undefined = append(stats.KPIs.Undefined, perf.MetricBeta)
		errs = append(errs, err)
	}
	return stats, errors.Join(errs...)
}

func barsBefore(s *series.PriceSeries, date time.Time) int {
	day := series.Day(date)
	n := 0
	for _, d := range s.Dates() {
		if !d.Before(day) {
			break
		}
		n++
	}
	return n
}

func readEnd(end time.Time) time.Time {
	if end.IsZero() {
		return series.Day(time.Now().UTC())
	}
	return end
}
