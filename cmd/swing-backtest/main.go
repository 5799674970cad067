package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"swingtrader/internal/config"
	"swingtrader/internal/engine"
	"swingtrader/internal/gather/us"
	"swingtrader/internal/report"
	"swingtrader/internal/store"
	"swingtrader/internal/strategy"
	"swingtrader/internal/strategy/builtins"
	"swingtrader/internal/util"
)

var (
	configPath string
	logLevel   string
)

func main() {
	app := cli.NewApp()
	app.Name = "swing-backtest"
	app.Usage = "backtest daily swing-trading rules over stored bars"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Value:       "config/swingtrader.yaml",
			Usage:       "path to the YAML configuration",
			EnvVars:     []string{"SWINGTRADER_CONFIG"},
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "override logging.level (debug, info, warn, error)",
			Destination: &logLevel,
		},
	}
	app.Commands = []*cli.Command{
		runCommand,
		strategiesCommand,
		runsCommand,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup loads the configuration and installs the default logger. Logs go to
// stderr so that stdout carries only the report.
func setup() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	util.SetDefault(util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))
	return cfg, nil
}

func registry(cfg *config.Config) *strategy.Registry {
	b := cfg.Backtest
	p := builtins.DefaultParams()
	p.Window = b.Signal.Window
	p.VolumeMargin = b.Signal.VolumeMargin
	p.TrendWindow = b.Signal.TrendWindow
	p.StochWindow = b.Signal.StochWindow
	p.StochCeiling = b.Signal.StochCeiling
	p.MACDShort = b.MACD.Short
	p.MACDLong = b.MACD.Long
	p.MACDSignal = b.MACD.Signal

	r := strategy.NewRegistry()
	builtins.Register(r, p)
	return r
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "run a backtest and write its report",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "strategy", Usage: "override backtest.strategy"},
		&cli.StringFlag{Name: "output", Usage: "override report.output_dir"},
		&cli.StringFlag{Name: "start", Usage: "override backtest.start_trading_date (YYYY-MM-DD)"},
		&cli.StringFlag{Name: "end", Usage: "override backtest.end_date (YYYY-MM-DD)"},
		&cli.BoolFlag{Name: "no-progress", Usage: "do not draw the progress bar"},
		&cli.BoolFlag{Name: "no-save", Usage: "do not persist the run to SQLite"},
	},
	Action: runBacktest,
}

func runBacktest(c *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	b := &cfg.Backtest
	if v := c.String("strategy"); v != "" {
		b.Strategy = v
	}
	if v := c.String("start"); v != "" {
		b.StartTradingDate = v
	}
	if v := c.String("end"); v != "" {
		b.EndDate = v
	}
	if v := c.String("output"); v != "" {
		cfg.Report.OutputDir = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dataStart, start, end, err := b.Dates()
	if err != nil {
		return err
	}
	universe, err := us.ResolveUniverse(b.Universe, b.UniverseCSV)
	if err != nil {
		return err
	}

	bars, closeBars, err := store.OpenBarStore(c.Context, cfg.Storage.Source, cfg.Storage.DataDir, cfg.Storage.CSVDir, cfg.Storage.PostgresURL)
	if err != nil {
		return err
	}
	defer closeBars()

	var opts []strategy.Option
	if !c.Bool("no-save") {
		runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("opening run store: %w", err)
		}
		defer runs.Close()
		opts = append(opts, strategy.WithRunStore(runs))
	}

	// Assigned up front so live observers can tag points with it.
	runID := uuid.NewString()

	var observers engine.Observers
	if !c.Bool("no-progress") {
		observers = append(observers, report.NewProgressObserver(os.Stderr))
	}
	if cfg.Influx.URL != "" {
		ic, err := report.DialInflux(cfg.Influx.URL, cfg.Influx.Username, cfg.Influx.Password)
		if err != nil {
			return fmt.Errorf("connecting to influx: %w", err)
		}
		defer ic.Close()
		observers = append(observers, report.NewInfluxObserver(ic, cfg.Influx.Database, map[string]string{
			"run_id":   runID,
			"strategy": b.Strategy,
		}))
	}
	if len(observers) > 0 {
		opts = append(opts, strategy.WithObserver(observers))
	}

	bt := strategy.NewBacktester(bars, registry(cfg), opts...)
	res, err := bt.Run(c.Context, strategy.RunParams{
		RunID:        runID,
		Strategy:     b.Strategy,
		Universe:     universe,
		Benchmark:    b.Benchmark,
		DataStart:    dataStart,
		Start:        start,
		End:          end,
		InitialCash:  b.Cash(),
		Fee:          b.Risk.Fee(),
		RiskPerTrade: b.Risk.RiskPerTrade,
		RiskRatio:    b.Risk.RiskRatio,
		CashRatio:    b.Risk.CashRatio,
		StopMargin:   b.Risk.StopMargin,
		ATRWindow:    b.Risk.ATRWindow,
		Trailing:     b.Trailing.Enabled,
		TrailWindow:  b.Trailing.Window,
		RiskFreeRate: b.RiskFreeRate,
		MinHistory:   b.MinHistory(),
	})
	if err != nil {
		if res != nil && res.Aborted != nil {
			slog.Error("backtest stopped early", "days", len(res.Curve), "positions", len(res.Positions))
			if dir, werr := report.WriteFiles(cfg.Report.OutputDir, res); werr != nil {
				slog.Error("writing partial report", "error", werr)
			} else {
				slog.Info("partial report written", "dir", dir)
			}
		}
		return err
	}

	dir, err := report.WriteFiles(cfg.Report.OutputDir, res)
	if err != nil {
		return err
	}
	slog.Info("report written", "dir", dir)
	return report.WriteSummary(os.Stdout, res)
}

var strategiesCommand = &cli.Command{
	Name:  "strategies",
	Usage: "list the registered entry rules",
	Action: func(c *cli.Context) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		r := registry(cfg)
		for _, name := range r.List() {
			s, _ := r.Get(name)
			fmt.Printf("%-12s lookback %d bars\n", name, s.Lookback())
		}
		return nil
	},
}

var runsCommand = &cli.Command{
	Name:  "runs",
	Usage: "inspect persisted runs",
	Subcommands: []*cli.Command{
		{
			Name:  "list",
			Usage: "list recent runs, newest first",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Value: 20, Usage: "maximum runs to list"},
			},
			Action: listRuns,
		},
		{
			Name:      "show",
			Usage:     "print the positions of one run",
			ArgsUsage: "<run-id>",
			Action:    showRun,
		},
	},
}

func openRuns() (*store.SQLiteStore, error) {
	cfg, err := setup()
	if err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(cfg.Storage.SQLitePath)
}

func listRuns(c *cli.Context) error {
	runs, err := openRuns()
	if err != nil {
		return err
	}
	defer runs.Close()

	list, err := runs.ListRuns(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTRATEGY\tPERIOD\tFINAL\tCAGR\tSHARPE\tTRADES\tCREATED")
	for _, r := range list {
		fmt.Fprintf(w, "%s\t%s\t%s..%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Strategy,
			r.StartDate.Format(time.DateOnly), r.EndDate.Format(time.DateOnly),
			report.FormatMoney(r.FinalTotal), report.FormatPctPtr(r.CAGR), report.FormatRatioPtr(r.Sharpe),
			r.TotalTrades, r.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func showRun(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: runs show <run-id>", 2)
	}
	runs, err := openRuns()
	if err != nil {
		return err
	}
	defer runs.Close()

	run, err := runs.GetRun(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	return report.WritePositionsCSV(os.Stdout, run.Positions)
}
