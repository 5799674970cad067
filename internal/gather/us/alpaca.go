package us

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"swingtrader/internal/domain"
	"swingtrader/internal/gather"
	"swingtrader/internal/series"
	"swingtrader/internal/store"
	"swingtrader/internal/util"
)

// ---------------------------------------------------------------------------
// Compile-time interface checks
// ---------------------------------------------------------------------------

var _ gather.Gatherer = (*DailyBarGatherer)(nil)
var _ BarFetcher = (*marketdata.Client)(nil)

// BarFetcher is the part of the Alpaca market-data client the gatherer uses.
type BarFetcher interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// NewAlpacaClients builds the market-data client and the trading client used
// for the calendar. Empty URLs select the SDK defaults.
func NewAlpacaClients(apiKey, apiSecret, dataURL, baseURL string) (*marketdata.Client, *alpaca.Client) {
	mopts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		mopts.BaseURL = dataURL
	}
	topts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		topts.BaseURL = baseURL
	}
	return marketdata.NewClient(mopts), alpaca.NewClient(topts)
}

// ---------------------------------------------------------------------------
// DailyBarGatherer: daily OHLCV bars for a fixed universe.
// ---------------------------------------------------------------------------

// DailyBarConfig parameterizes a DailyBarGatherer.
type DailyBarConfig struct {
	Symbols []string

	// Range.End zero means the latest finished trading day.
	Range gather.DateRange

	BatchSize       int
	RateLimitPerMin int
	MaxAttempts     int

	// StateDir holds the resume state; empty disables resuming.
	StateDir string
}

// DailyBarGatherer downloads daily bars for the backtest universe and its
// benchmark from Alpaca in batches and writes them to a BarStore.
type DailyBarGatherer struct {
	fetcher  BarFetcher
	calendar CalendarSource
	store    store.BarStore
	cfg      DailyBarConfig
	limiter  *util.RateLimiter
	log      *slog.Logger
}

// NewDailyBarGatherer creates a DailyBarGatherer. calendar is only consulted
// when cfg.Range.End is zero.
func NewDailyBarGatherer(fetcher BarFetcher, calendar CalendarSource, s store.BarStore, cfg DailyBarConfig) *DailyBarGatherer {
	cfg.Symbols = NormalizeSymbols(cfg.Symbols)
	cfg.BatchSize = max(cfg.BatchSize, 1)
	cfg.MaxAttempts = max(cfg.MaxAttempts, 1)
	return &DailyBarGatherer{
		fetcher:  fetcher,
		calendar: calendar,
		store:    s,
		cfg:      cfg,
		limiter:  util.NewRateLimiter(cfg.RateLimitPerMin),
		log:      slog.Default().With("gatherer", "us-daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "us-daily" }

// Run fetches the configured range for every symbol. A run that already
// completed for the same end date returns immediately; symbols that returned
// no data for that end date are not asked for again.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	end := g.cfg.Range.End
	if end.IsZero() {
		if g.calendar == nil {
			return errors.New("no end date and no trading calendar")
		}
		var err error
		if end, err = LatestFinishedTradingDay(g.calendar, time.Now()); err != nil {
			return fmt.Errorf("determining end date: %w", err)
		}
	}
	endStr := end.Format(time.DateOnly)

	state, err := loadGatherState(g.cfg.StateDir)
	if err != nil {
		return fmt.Errorf("loading gather state: %w", err)
	}
	if state.LastCompleted == endStr && state.covers(g.cfg.Symbols) {
		g.log.Info("already completed", "endDate", endStr)
		return nil
	}
	if state.EndDate != endStr {
		state.reset(endStr)
	}

	var remaining []string
	for _, sym := range g.cfg.Symbols {
		if !state.isEmpty(sym) {
			remaining = append(remaining, sym)
		}
	}

	var batches [][]string
	for i := 0; i < len(remaining); i += g.cfg.BatchSize {
		batches = append(batches, remaining[i:min(i+g.cfg.BatchSize, len(remaining))])
	}

	g.log.Info("starting us-daily",
		"start", g.cfg.Range.Start.Format(time.DateOnly),
		"endDate", endStr,
		"symbols", len(g.cfg.Symbols),
		"remaining", len(remaining),
		"batches", len(batches),
	)

	var (
		totalBars int
		failed    int
		runStart  = time.Now()
	)
	for i, batch := range batches {
		bars, err := g.fetch(ctx, batch, g.cfg.Range.Start, end)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			failed++
			g.log.Error("batch fetch failed", "batch", fmt.Sprintf("%d/%d", i+1, len(batches)), "err", err)
			continue
		}

		if len(bars) > 0 {
			if err := g.store.WriteBars(ctx, bars); err != nil {
				return fmt.Errorf("writing bars: %w", err)
			}
		}

		hit := make(map[string]bool, len(batch))
		for _, b := range bars {
			hit[b.Symbol] = true
		}
		for _, sym := range batch {
			if !hit[sym] {
				state.markEmpty(sym)
				g.log.Warn("no bars returned", "symbol", sym)
			}
		}
		totalBars += len(bars)

		g.log.Info("batch done",
			"batch", fmt.Sprintf("%d/%d", i+1, len(batches)),
			"bars", len(bars),
			"elapsed", time.Since(runStart).Round(time.Second),
		)
	}

	if failed == 0 {
		state.LastCompleted = endStr
		state.Symbols = g.cfg.Symbols
	}
	if err := state.save(g.cfg.StateDir); err != nil {
		return fmt.Errorf("saving gather state: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d batches failed", failed, len(batches))
	}

	g.log.Info("complete", "bars", totalBars, "empty", len(state.Empty), "elapsed", time.Since(runStart).Round(time.Second))
	return nil
}

// fetch fetches daily bars for multiple symbols in a single paced and
// retried API call. end is inclusive; bars are keyed by their UTC date.
func (g *DailyBarGatherer) fetch(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
	var multiBars map[string][]marketdata.Bar
	err := util.Retry(ctx, g.cfg.MaxAttempts, time.Second, func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		multiBars, err = g.fetcher.GetMultiBars(symbols, marketdata.GetBarsRequest{
			TimeFrame:  marketdata.OneDay,
			Start:      start,
			End:        end.AddDate(0, 0, 1).Add(-time.Second),
			Adjustment: "all",
			Feed:       "sip",
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  series.Day(ab.Timestamp),
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars, nil
}
