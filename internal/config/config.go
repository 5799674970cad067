package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the swing-trading backtester.
type Config struct {
	Storage  Storage      `yaml:"storage"`
	Alpaca   Alpaca       `yaml:"alpaca"`
	Logging  Logging      `yaml:"logging"`
	Gather   GatherConfig `yaml:"gather"`
	Backtest Backtest     `yaml:"backtest"`
	Report   Report       `yaml:"report"`
	Influx   Influx       `yaml:"influx"`
}

// Bar sources accepted in Storage.Source.
const (
	SourceParquet  = "parquet"
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Storage holds paths for data persistence.
type Storage struct {
	DataDir     string `yaml:"data_dir"`
	SQLitePath  string `yaml:"sqlite_path"`
	CSVDir      string `yaml:"csv_dir"`
	PostgresURL string `yaml:"postgres_url"`

	// Source selects the bar store: parquet, csv or postgres.
	Source string `yaml:"source"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GatherConfig controls data gathering.
type GatherConfig struct {
	USDaily GatherJobConfig `yaml:"us_daily"`
}

// GatherJobConfig holds parameters for a single data gathering job.
type GatherJobConfig struct {
	StartDate       string `yaml:"start_date"`
	BatchSize       int    `yaml:"batch_size"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	MaxAttempts     int    `yaml:"max_attempts"`
}

// Backtest describes the simulated period, the universe and the rule
// parameters.
type Backtest struct {
	StartDataDate    string   `yaml:"start_data_date"`
	StartTradingDate string   `yaml:"start_trading_date"`
	EndDate          string   `yaml:"end_date"`
	InitialCash      float64  `yaml:"initial_cash"`
	Universe         []string `yaml:"universe"`
	UniverseCSV      string   `yaml:"universe_csv"`
	Benchmark        string   `yaml:"benchmark"`
	Strategy         string   `yaml:"strategy"`
	RiskFreeRate     float64  `yaml:"risk_free_rate"`

	Signal   Signal   `yaml:"signal"`
	Risk     Risk     `yaml:"risk"`
	Trailing Trailing `yaml:"trailing"`
	MACD     MACD     `yaml:"macd"`
}

// Signal holds the breakout rule parameters.
type Signal struct {
	Window       int     `yaml:"window"`
	VolumeMargin float64 `yaml:"volume_margin"`
	TrendWindow  int     `yaml:"trend_window"`
	StochWindow  int     `yaml:"stoch_window"`
	StochCeiling float64 `yaml:"stoch_ceiling"`
}

// Risk holds sizing and cash management parameters.
type Risk struct {
	RiskPerTrade float64 `yaml:"risk_per_trade"`
	RiskRatio    float64 `yaml:"risk_ratio"`
	CashRatio    float64 `yaml:"cash_ratio"`
	StopMargin   float64 `yaml:"stop_margin"`
	ATRWindow    int     `yaml:"atr_window"`
	Commission   float64 `yaml:"commission"`
}

// Trailing enables the trailing stop/target ratchet.
type Trailing struct {
	Enabled bool `yaml:"enabled"`
	Window  int  `yaml:"window"`
}

// MACD holds the MACD trend rule parameters. Long also sets the history
// required before the first trading day (two long windows).
type MACD struct {
	Short  int `yaml:"short"`
	Long   int `yaml:"long"`
	Signal int `yaml:"signal"`
}

// Report controls where run artifacts are written.
type Report struct {
	OutputDir string `yaml:"output_dir"`
}

// Influx enables per-day equity telemetry when URL is set.
type Influx struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DefaultUniverse is used when neither universe nor universe_csv is set.
var DefaultUniverse = []string{"MSFT", "AAPL", "META", "AMZN", "INTC", "CSCO", "VZ", "IBM", "QCOM"}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := newConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a configuration with every default applied and
// environment overrides honored.
func Default() *Config {
	cfg := newConfig()
	applyEnvOverrides(cfg)
	cfg.applyDefaults()
	return cfg
}

const (
	defaultCommission = 4.95 / 1.3 // USD equivalent of a 4.95 CAD commission.
	defaultCashRatio  = 0.01
)

// newConfig seeds the fields for which zero is a valid setting. YAML only
// replaces them when the key is present, so an explicit 0 survives
// applyDefaults.
func newConfig() *Config {
	cfg := &Config{}
	cfg.Backtest.Risk.CashRatio = defaultCashRatio
	cfg.Backtest.Risk.Commission = defaultCommission
	return cfg
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Storage.PostgresURL = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("INFLUX_URL"); v != "" {
		cfg.Influx.URL = v
	}

	// Standard Alpaca env vars take precedence; they are the names the SDK uses.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

func (cfg *Config) applyDefaults() {
	setString(&cfg.Storage.DataDir, "data")
	setString(&cfg.Storage.SQLitePath, "swingtrader.db")
	setString(&cfg.Storage.Source, SourceParquet)
	setString(&cfg.Logging.Level, "info")
	setString(&cfg.Logging.Format, "text")
	setString(&cfg.Report.OutputDir, "reports")
	setString(&cfg.Influx.Database, "backtests")

	g := &cfg.Gather.USDaily
	setString(&g.StartDate, "2009-03-02")
	setInt(&g.BatchSize, 100)
	setInt(&g.RateLimitPerMin, 200)
	setInt(&g.MaxAttempts, 3)

	b := &cfg.Backtest
	setString(&b.StartDataDate, "2009-03-02")
	setString(&b.StartTradingDate, "2010-03-02")
	setFloat(&b.InitialCash, 4000)
	setString(&b.Benchmark, "SPY")
	setString(&b.Strategy, "breakout")
	if len(b.Universe) == 0 && b.UniverseCSV == "" {
		b.Universe = append([]string(nil), DefaultUniverse...)
	}

	setInt(&b.Signal.Window, 40)
	setFloat(&b.Signal.VolumeMargin, 1.5)
	setInt(&b.Signal.TrendWindow, 50)
	setInt(&b.Signal.StochWindow, 14)
	setFloat(&b.Signal.StochCeiling, 80)

	setFloat(&b.Risk.RiskPerTrade, 0.01)
	setFloat(&b.Risk.RiskRatio, 5)
	setFloat(&b.Risk.StopMargin, 3)
	setInt(&b.Risk.ATRWindow, 20)

	setInt(&b.Trailing.Window, 20)

	setInt(&b.MACD.Short, 12)
	setInt(&b.MACD.Long, 26)
	setInt(&b.MACD.Signal, 9)
}

func setString(p *string, v string) {
	if *p == "" {
		*p = v
	}
}

func setInt(p *int, v int) {
	if *p == 0 {
		*p = v
	}
}

func setFloat(p *float64, v float64) {
	if *p == 0 {
		*p = v
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks dates, sources and risk parameters.
func (cfg *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	switch cfg.Storage.Source {
	case SourceParquet, SourceCSV:
	case SourcePostgres:
		if cfg.Storage.PostgresURL == "" {
			bad("storage.source postgres needs storage.postgres_url")
		}
	default:
		bad("storage.source %q", cfg.Storage.Source)
	}
	if cfg.Storage.Source == SourceCSV && cfg.Storage.CSVDir == "" {
		bad("storage.source csv needs storage.csv_dir")
	}

	dataStart, start, end, err := cfg.Backtest.Dates()
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	} else {
		if start.Before(dataStart) {
			bad("start_trading_date %s before start_data_date %s", cfg.Backtest.StartTradingDate, cfg.Backtest.StartDataDate)
		}
		if !end.IsZero() && !end.After(start) {
			bad("end_date %s not after start_trading_date %s", cfg.Backtest.EndDate, cfg.Backtest.StartTradingDate)
		}
	}

	b := cfg.Backtest
	if b.InitialCash <= 0 {
		bad("initial_cash %v", b.InitialCash)
	}
	r := b.Risk
	if r.RiskPerTrade <= 0 || r.RiskPerTrade >= 1 {
		bad("risk.risk_per_trade %v not in (0, 1)", r.RiskPerTrade)
	}
	if r.RiskRatio <= 0 {
		bad("risk.risk_ratio %v", r.RiskRatio)
	}
	if r.CashRatio < 0 || r.CashRatio >= 1 {
		bad("risk.cash_ratio %v not in [0, 1)", r.CashRatio)
	}
	if r.StopMargin <= 0 {
		bad("risk.stop_margin %v", r.StopMargin)
	}
	if r.ATRWindow <= 0 {
		bad("risk.atr_window %d", r.ATRWindow)
	}
	if r.Commission < 0 {
		bad("risk.commission %v", r.Commission)
	}
	if b.Signal.Window <= 0 || b.Signal.VolumeMargin <= 0 {
		bad("signal window %d, volume_margin %v", b.Signal.Window, b.Signal.VolumeMargin)
	}
	if b.MACD.Short >= b.MACD.Long {
		bad("macd.short %d must be below macd.long %d", b.MACD.Short, b.MACD.Long)
	}
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Derived values
// ---------------------------------------------------------------------------

// Dates parses the backtest dates. An empty end date yields a zero end,
// meaning through the latest stored bar.
func (b Backtest) Dates() (dataStart, start, end time.Time, err error) {
	if dataStart, err = time.Parse(time.DateOnly, b.StartDataDate); err != nil {
		return dataStart, start, end, fmt.Errorf("start_data_date: %w", err)
	}
	if start, err = time.Parse(time.DateOnly, b.StartTradingDate); err != nil {
		return dataStart, start, end, fmt.Errorf("start_trading_date: %w", err)
	}
	if b.EndDate != "" {
		if end, err = time.Parse(time.DateOnly, b.EndDate); err != nil {
			return dataStart, start, end, fmt.Errorf("end_date: %w", err)
		}
	}
	return dataStart, start, end, nil
}

// Fee is the per-trade commission rounded to cents.
func (r Risk) Fee() decimal.Decimal {
	return decimal.NewFromFloat(r.Commission).Round(2)
}

// Cash is the starting cash.
func (b Backtest) Cash() decimal.Decimal {
	return decimal.NewFromFloat(b.InitialCash)
}

// MinHistory is the number of bars wanted before the first trading day.
func (b Backtest) MinHistory() int {
	return 2 * b.MACD.Long
}
