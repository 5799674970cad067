// Package engine runs the daily swing-trading simulation: it opens positions
// on prior-day signals, closes them on stop or target breaches, and records
// the equity curve.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"swingtrader/internal/domain"
	"swingtrader/internal/indicator"
	"swingtrader/internal/series"
	"swingtrader/internal/util"
)

var (
	// ErrMissingBar is returned when an open position's instrument has no
	// bar on a simulated day.
	ErrMissingBar = errors.New("missing bar for open position")

	// ErrAllocationExhausted ends the opening scan for the day once the next
	// candidate would push cash to or below the cash ratio.
	ErrAllocationExhausted = errors.New("allocation exhausted")

	// ErrNoCalendar is returned when there is no trading day to simulate.
	ErrNoCalendar = errors.New("no trading days to simulate")

	errGap = errors.New("open outside entry range")
)

// EntryRule decides whether an instrument shows an entry setup on a date.
type EntryRule interface {
	Signal(s *series.PriceSeries, date time.Time) bool
}

// Config holds the simulation parameters that are not part of sizing.
type Config struct {
	InitialCash decimal.Decimal
	Fee         decimal.Decimal
	ATRWindow   int

	// Trailing raises stop and target of surviving positions while close is
	// above SMA(TrailWindow).
	Trailing    bool
	TrailWindow int

	// End is the last day simulated; zero runs through the calendar.
	End time.Time
}

// Result is the outcome of a run. On a fatal error it holds the state
// reached before the failing day.
type Result struct {
	Curve     []domain.EquityPoint
	Positions []*domain.Position
	Portfolio *Portfolio
}

// Engine is a single-threaded daily backtest loop.
type Engine struct {
	rule     EntryRule
	risk     *RiskManager
	cfg      Config
	observer Observer
	log      *slog.Logger
}

// NewEngine creates an Engine. observer may be nil.
func NewEngine(rule EntryRule, risk *RiskManager, cfg Config, observer Observer) *Engine {
	return &Engine{
		rule:     rule,
		risk:     risk,
		cfg:      cfg,
		observer: observer,
		log:      slog.Default().With("component", "engine"),
	}
}

// Run simulates every trading day of the first universe series from the first
// day at or after start. Cancellation is checked between days.
func (e *Engine) Run(ctx context.Context, universe []*series.PriceSeries, start time.Time) (*Result, error) {
	if len(universe) == 0 {
		return nil, fmt.Errorf("empty universe: %w", ErrNoCalendar)
	}

	cal := util.NewTradingCalendar(universe[0].Dates())
	days := cal.Between(series.Day(start), e.cfg.End)
	if len(days) > 0 && days[0].Equal(cal.Day(0)) {
		// The first day has no prior day to signal on.
		days = days[1:]
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("%s from %s: %w", universe[0].Ticker(), start.Format(time.DateOnly), ErrNoCalendar)
	}

	universe, bySymbol := e.index(universe)
	pf := NewPortfolio(e.cfg.InitialCash)
	res := &Result{Portfolio: pf}

	e.log.Info("backtest starting",
		"instruments", len(universe),
		"from", days[0].Format(time.DateOnly),
		"to", days[len(days)-1].Format(time.DateOnly),
		"cash", pf.Cash.String(),
	)

	for i, day := range days {
		if err := ctx.Err(); err != nil {
			res.Positions = pf.Positions()
			return res, err
		}

		prev, _ := cal.Previous(day)
		opened, err := e.open(pf, universe, prev, day)
		if err != nil {
			res.Positions = pf.Positions()
			return res, fmt.Errorf("%s opening: %w", day.Format(time.DateOnly), err)
		}

		closed, err := e.settle(pf, bySymbol, day)
		if err != nil {
			res.Positions = pf.Positions()
			return res, fmt.Errorf("%s closing: %w", day.Format(time.DateOnly), err)
		}

		pf.Revalue()
		point := pf.Point(day)
		res.Curve = append(res.Curve, point)

		if e.observer != nil {
			e.observer.OnDay(ctx, DayReport{
				Point:     point,
				Opened:    opened,
				Closed:    closed,
				OpenCount: len(pf.open),
				Day:       i + 1,
				Days:      len(days),
			})
		}
	}

	res.Positions = pf.Positions()
	e.log.Info("backtest finished",
		"days", len(res.Curve),
		"positions", len(res.Positions),
		"total", pf.Total.StringFixed(2),
	)
	return res, nil
}

// index drops repeated tickers, keeping the first, and maps ticker to series.
func (e *Engine) index(universe []*series.PriceSeries) ([]*series.PriceSeries, map[string]*series.PriceSeries) {
	bySymbol := make(map[string]*series.PriceSeries, len(universe))
	out := make([]*series.PriceSeries, 0, len(universe))
	for _, s := range universe {
		if _, dup := bySymbol[s.Ticker()]; dup {
			e.log.Warn("duplicate ticker in universe ignored", "ticker", s.Ticker())
			continue
		}
		bySymbol[s.Ticker()] = s
		out = append(out, s)
	}
	return out, bySymbol
}

type candidate struct {
	s   *series.PriceSeries
	ref domain.Bar
}

// open runs the opening phase: signals on prev, fills at day's open.
func (e *Engine) open(pf *Portfolio, universe []*series.PriceSeries, prev, day time.Time) ([]*domain.Position, error) {
	if !e.risk.CashRatioOK(pf.Cash, pf.Total) {
		return nil, nil
	}

	var cands []candidate
	for _, s := range universe {
		if pf.HasOpen(s.Ticker()) || !e.rule.Signal(s, prev) {
			continue
		}
		ref, err := s.Bar(prev)
		if err != nil {
			continue
		}
		cands = append(cands, candidate{s: s, ref: ref})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].ref.Volume > cands[j].ref.Volume
	})

	var opened []*domain.Position
	for _, c := range cands {
		p, err := e.fill(pf, c, prev, day)
		if errors.Is(err, ErrAllocationExhausted) {
			e.log.Debug("opening scan stopped", "date", day.Format(time.DateOnly), "ticker", c.s.Ticker())
			break
		}
		if err != nil {
			e.log.Debug("candidate skipped", "date", day.Format(time.DateOnly), "ticker", c.s.Ticker(), "error", err)
			continue
		}
		if err := pf.Open(p); err != nil {
			return opened, err
		}
		opened = append(opened, p)
		e.log.Debug("position opened",
			"date", day.Format(time.DateOnly),
			"ticker", p.Ticker,
			"shares", p.Shares,
			"open", p.OpenPrice,
			"stop", p.StopPrice,
			"target", p.TargetPrice,
		)
	}
	return opened, nil
}

// fill sizes one candidate off the prior close and builds its position at
// day's open.
func (e *Engine) fill(pf *Portfolio, c candidate, prev, day time.Time) (*domain.Position, error) {
	atr, err := indicator.ATR(c.s, prev, e.cfg.ATRWindow)
	if err != nil {
		return nil, err
	}
	sz, err := e.risk.Size(pf.Total.InexactFloat64(), c.ref.Close, atr)
	if err != nil {
		return nil, err
	}

	cost := decimal.NewFromFloat(c.ref.Close).Mul(decimal.NewFromInt(sz.Shares)).Add(e.cfg.Fee)
	if !e.risk.CashRatioOK(pf.Cash.Sub(cost), pf.Total) {
		return nil, ErrAllocationExhausted
	}

	bar, err := c.s.Bar(day)
	if err != nil {
		return nil, err
	}
	if bar.Open < c.ref.Close || bar.Open > sz.TargetPrice {
		return nil, fmt.Errorf("open %.4f vs [%.4f, %.4f]: %w", bar.Open, c.ref.Close, sz.TargetPrice, errGap)
	}
	return domain.NewPosition(c.s.Ticker(), day, bar.Open, sz, e.cfg.Fee)
}

// settle runs the closing phase over open positions in insertion order. The
// stop is checked before the target.
func (e *Engine) settle(pf *Portfolio, bySymbol map[string]*series.PriceSeries, day time.Time) ([]*domain.Position, error) {
	var closed []*domain.Position
	for _, p := range pf.OpenPositions() {
		s := bySymbol[p.Ticker]
		bar, err := s.Bar(day)
		if err != nil {
			return closed, fmt.Errorf("%s: %w", p.Ticker, ErrMissingBar)
		}

		switch {
		case p.StopPrice > bar.Low:
			if err := pf.Close(p, p.StopPrice, day, domain.CloseStop); err != nil {
				return closed, err
			}
			closed = append(closed, p)
		case p.TargetPrice < bar.High:
			if err := pf.Close(p, p.TargetPrice, day, domain.CloseTarget); err != nil {
				return closed, err
			}
			closed = append(closed, p)
		default:
			if e.cfg.Trailing {
				e.trail(p, s, day, bar.Close)
			}
			if err := p.MarkToMarket(bar.Close); err != nil {
				return closed, err
			}
		}
	}

	for _, p := range closed {
		e.log.Debug("position closed",
			"date", day.Format(time.DateOnly),
			"ticker", p.Ticker,
			"reason", p.CloseReason,
			"pnl", p.RealizedPnL.StringFixed(2),
		)
	}
	return closed, nil
}

// trail ratchets stop and target up while close holds above trend.
func (e *Engine) trail(p *domain.Position, s *series.PriceSeries, day time.Time, closePrice float64) {
	trend, err := indicator.SMA(s, day, e.cfg.TrailWindow)
	if err != nil || closePrice <= trend {
		return
	}
	p.Ratchet(closePrice-p.RiskPerShare, closePrice+e.risk.RiskRatio()*p.RiskPerShare)
}
