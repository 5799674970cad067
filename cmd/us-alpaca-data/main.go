package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"swingtrader/internal/config"
	"swingtrader/internal/gather"
	"swingtrader/internal/gather/us"
	"swingtrader/internal/store"
	"swingtrader/internal/util"
)

func main() {
	endFlag := flag.String("end", "", "last day to fetch (YYYY-MM-DD); default is the latest finished trading day")
	flag.Parse()

	cfgPath := "config/swingtrader.yaml"
	if p := os.Getenv("SWINGTRADER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Dual logger: stdout + /tmp log file.
	logFileName := filepath.Join(os.TempDir(), fmt.Sprintf("us-alpaca-data-%s.log", time.Now().Format(time.DateOnly)))
	logFile, err := os.Create(logFileName)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()
	util.SetDefault(util.NewLoggerTo(io.MultiWriter(os.Stdout, logFile), cfg.Logging.Level, cfg.Logging.Format))

	start, err := time.Parse(time.DateOnly, cfg.Gather.USDaily.StartDate)
	if err != nil {
		log.Fatalf("gather.us_daily.start_date: %v", err)
	}
	var end time.Time
	if *endFlag != "" {
		if end, err = time.Parse(time.DateOnly, *endFlag); err != nil {
			log.Fatalf("-end: %v", err)
		}
	}

	symbols, err := us.ResolveUniverse(cfg.Backtest.Universe, cfg.Backtest.UniverseCSV)
	if err != nil {
		log.Fatalf("resolving universe: %v", err)
	}
	if cfg.Backtest.Benchmark != "" {
		symbols = append(symbols, cfg.Backtest.Benchmark)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bars, closeBars, err := store.OpenBarStore(ctx, cfg.Storage.Source, cfg.Storage.DataDir, cfg.Storage.CSVDir, cfg.Storage.PostgresURL)
	if err != nil {
		log.Fatalf("opening bar store: %v", err)
	}
	defer closeBars()

	marketData, trading := us.NewAlpacaClients(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Alpaca.BaseURL)
	gatherer := us.NewDailyBarGatherer(marketData, trading, bars, us.DailyBarConfig{
		Symbols:         symbols,
		Range:           gather.DateRange{Start: start, End: end},
		BatchSize:       cfg.Gather.USDaily.BatchSize,
		RateLimitPerMin: cfg.Gather.USDaily.RateLimitPerMin,
		MaxAttempts:     cfg.Gather.USDaily.MaxAttempts,
		StateDir:        filepath.Join(cfg.Storage.DataDir, "us", "daily"),
	})

	slog.Info("starting us-alpaca-data", "logFile", logFileName, "symbols", len(symbols), "source", cfg.Storage.Source)
	if err := gatherer.Run(ctx); err != nil {
		log.Fatalf("gather error: %v", err)
	}
}
