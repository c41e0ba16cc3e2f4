// Package config loads the YAML run configuration with .env and
// FORMULA_LAB_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"formula-lab/internal/backtest"
	"formula-lab/internal/formula"
	"formula-lab/internal/search"
	"formula-lab/internal/simulation"
)

// Data source kinds.
const (
	SourceSynthetic  = "synthetic"
	SourceSQLite     = "sqlite"
	SourceClickHouse = "clickhouse"
	SourceCSV        = "csv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FORMULA_LAB_"

// Config holds all run configuration.
type Config struct {
	Experiment struct {
		Name string `yaml:"name"`
	} `yaml:"experiment"`
	Reproducibility struct {
		Seed int64 `yaml:"seed"`
	} `yaml:"reproducibility"`
	Data       DataConfig       `yaml:"data"`
	Search     SearchConfig     `yaml:"search"`
	Backtest   BacktestConfig   `yaml:"backtest"`
	Evaluator  EvaluatorConfig  `yaml:"evaluator"`
	Results    ResultsConfig    `yaml:"results"`
	Validation ValidationConfig `yaml:"validation"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DataConfig selects and bounds the historical data source.
type DataConfig struct {
	Source        string `yaml:"source"` // synthetic, sqlite, clickhouse, csv
	Symbol        string `yaml:"symbol"`
	Start         string `yaml:"start"` // YYYY-MM-DD or RFC 3339, UTC
	End           string `yaml:"end"`
	SQLitePath    string `yaml:"sqlite_path"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	CSVPath       string `yaml:"csv_path"`
	ChunkSize     int    `yaml:"chunk_size"` // days per source query
	SyntheticBars int    `yaml:"synthetic_bars"`
}

// SearchConfig controls coarse search and fine-tune.
type SearchConfig struct {
	CoarseSearch struct {
		SamplesPerFormula int `yaml:"n_samples_per_formula"`
		TopCandidates     int `yaml:"n_top_candidates"`
	} `yaml:"coarse_search"`
	FineTune struct {
		GridStep      float64 `yaml:"grid_step"`
		TopCandidates int     `yaml:"top_candidates"`
	} `yaml:"fine_tune"`
	LeaderboardSize int      `yaml:"leaderboard_size"`
	FineTuneTopSize int      `yaml:"fine_tune_top_size"`
	Workers         int      `yaml:"workers"`
	Formulas        []string `yaml:"formulas"` // empty means all
}

// BacktestConfig holds search-phase backtest settings.
type BacktestConfig struct {
	Fees struct {
		TakerBps float64 `yaml:"taker_bps"`
	} `yaml:"fees"`
	Thresholds struct {
		Long  float64 `yaml:"long"`
		Short float64 `yaml:"short"`
	} `yaml:"thresholds"`
}

// EvaluatorConfig bounds the formula evaluator.
type EvaluatorConfig struct {
	CacheSize   int `yaml:"cache_size"`
	MaxFrameLen int `yaml:"max_frame_len"`
}

// ResultsConfig selects where search results and reports go.
// A non-empty PostgresDSN stores result tables in PostgreSQL instead of Dir.
type ResultsConfig struct {
	Dir         string `yaml:"dir"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ValidationConfig mirrors simulation.Config.
type ValidationConfig struct {
	InitialCapital   float64       `yaml:"initial_capital"`
	PositionSize     float64       `yaml:"position_size"`
	MaxPositions     int           `yaml:"max_positions"`
	Commission       float64       `yaml:"commission"`
	Slippage         float64       `yaml:"slippage"`
	StopLoss         float64       `yaml:"stop_loss"`
	TakeProfit       float64       `yaml:"take_profit"`
	MaxHold          time.Duration `yaml:"max_hold"`
	MaxDrawdown      float64       `yaml:"max_drawdown"`
	VolatilityFilter bool          `yaml:"volatility_filter"`
	IVCeiling        float64       `yaml:"iv_ceiling"`
	ProximityWindow  time.Duration `yaml:"proximity_window"`
	SessionFilter    bool          `yaml:"session_filter"`
	AsianHours       [2]int        `yaml:"asian_hours"`
	TickInterval     time.Duration `yaml:"tick_interval"`
	SignalsPath      string        `yaml:"signals_path"` // derive from best strategy when empty
}

// ServerConfig holds cmd/server settings.
type ServerConfig struct {
	Listen     string `yaml:"listen"`
	SearchCron string `yaml:"search_cron"` // six fields, seconds first
}

// LoggingConfig holds zap settings.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ConfigurationError reports a malformed or missing setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	sim := simulation.DefaultConfig()

	cfg := &Config{}
	cfg.Experiment.Name = "formula-search"
	cfg.Reproducibility.Seed = search.DefaultSeed

	cfg.Data = DataConfig{
		Source:        SourceSynthetic,
		Symbol:        "BTC",
		Start:         "2024-01-01",
		End:           "2024-03-01",
		SQLitePath:    "data/market.db",
		ChunkSize:     7,
		SyntheticBars: 60 * 24 * 30,
	}

	cfg.Search.CoarseSearch.SamplesPerFormula = search.DefaultSamplesPerFormula
	cfg.Search.CoarseSearch.TopCandidates = search.DefaultTopK
	cfg.Search.FineTune.GridStep = search.DefaultGridStep
	cfg.Search.FineTune.TopCandidates = search.DefaultFineTuneCandidates
	cfg.Search.LeaderboardSize = search.DefaultLeaderboardSize
	cfg.Search.FineTuneTopSize = search.DefaultFineTuneTopSize
	cfg.Search.Workers = runtime.NumCPU()

	cfg.Backtest.Fees.TakerBps = backtest.DefaultFeeBps
	cfg.Backtest.Thresholds.Long = formula.DefaultThresholdLong
	cfg.Backtest.Thresholds.Short = formula.DefaultThresholdShort

	cfg.Evaluator.CacheSize = formula.DefaultCacheSize
	cfg.Evaluator.MaxFrameLen = formula.DefaultMaxFrameLen

	cfg.Results.Dir = "results"

	cfg.Validation = ValidationConfig{
		InitialCapital:   sim.InitialCapital,
		PositionSize:     sim.PositionSize,
		MaxPositions:     sim.MaxPositions,
		Commission:       sim.Commission,
		Slippage:         sim.Slippage,
		StopLoss:         sim.StopLoss,
		TakeProfit:       sim.TakeProfit,
		MaxHold:          sim.MaxHold,
		MaxDrawdown:      sim.MaxDrawdown,
		VolatilityFilter: sim.VolatilityFilter,
		IVCeiling:        sim.IVCeiling,
		ProximityWindow:  sim.ProximityWindow,
		SessionFilter:    sim.SessionFilter,
		AsianHours:       [2]int{sim.AsianHourStart, sim.AsianHourEnd},
		TickInterval:     sim.TickInterval,
	}

	cfg.Server.Listen = ":8080"
	cfg.Server.SearchCron = "0 0 2 * * *"

	cfg.Logging.Level = "info"
	return cfg
}

// Load reads .env (if present), then the YAML file at path over the defaults,
// then FORMULA_LAB_* environment overrides, and validates the result.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides settings from FORMULA_LAB_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return invalid(EnvPrefix+name, "not an integer: %q", v)
		}
		*dst = n
		return nil
	}

	str("EXPERIMENT", &c.Experiment.Name)
	str("DATA_SOURCE", &c.Data.Source)
	str("SYMBOL", &c.Data.Symbol)
	str("START", &c.Data.Start)
	str("END", &c.Data.End)
	str("SQLITE_PATH", &c.Data.SQLitePath)
	str("CLICKHOUSE_DSN", &c.Data.ClickhouseDSN)
	str("CSV_PATH", &c.Data.CSVPath)
	str("RESULTS_DIR", &c.Results.Dir)
	str("POSTGRES_DSN", &c.Results.PostgresDSN)
	str("SIGNALS_PATH", &c.Validation.SignalsPath)
	str("LISTEN", &c.Server.Listen)
	str("SEARCH_CRON", &c.Server.SearchCron)
	str("LOG_LEVEL", &c.Logging.Level)

	if v, ok := lookup(EnvPrefix + "SEED"); ok && v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return invalid(EnvPrefix+"SEED", "not an integer: %q", v)
		}
		c.Reproducibility.Seed = seed
	}
	if v, ok := lookup(EnvPrefix + "FORMULAS"); ok && v != "" {
		c.Search.Formulas = splitList(v)
	}
	if err := integer("WORKERS", &c.Search.Workers); err != nil {
		return err
	}
	return integer("SAMPLES", &c.Search.CoarseSearch.SamplesPerFormula)
}

// Validate reports the first malformed setting as a *ConfigurationError.
func (c *Config) Validate() error {
	s := c.Search
	switch {
	case s.CoarseSearch.SamplesPerFormula <= 0:
		return invalid("search.coarse_search.n_samples_per_formula", "must be positive")
	case s.CoarseSearch.TopCandidates <= 0:
		return invalid("search.coarse_search.n_top_candidates", "must be positive")
	case s.FineTune.GridStep <= 0:
		return invalid("search.fine_tune.grid_step", "must be positive")
	case s.FineTune.TopCandidates <= 0:
		return invalid("search.fine_tune.top_candidates", "must be positive")
	case s.LeaderboardSize <= 0:
		return invalid("search.leaderboard_size", "must be positive")
	case s.FineTuneTopSize <= 0:
		return invalid("search.fine_tune_top_size", "must be positive")
	case s.Workers < 1:
		return invalid("search.workers", "must be at least 1")
	}

	if c.Backtest.Thresholds.Long <= c.Backtest.Thresholds.Short {
		return invalid("backtest.thresholds", "long %v must exceed short %v",
			c.Backtest.Thresholds.Long, c.Backtest.Thresholds.Short)
	}
	if c.Backtest.Fees.TakerBps < 0 {
		return invalid("backtest.fees.taker_bps", "must not be negative")
	}
	if c.Evaluator.CacheSize < 0 || c.Evaluator.MaxFrameLen < 0 {
		return invalid("evaluator", "sizes must not be negative")
	}

	d := c.Data
	switch d.Source {
	case SourceSynthetic:
		if d.SyntheticBars < 2 {
			return invalid("data.synthetic_bars", "need at least 2 bars")
		}
	case SourceSQLite:
		if d.SQLitePath == "" {
			return invalid("data.sqlite_path", "required for sqlite source")
		}
	case SourceClickHouse:
		if d.ClickhouseDSN == "" {
			return invalid("data.clickhouse_dsn", "required for clickhouse source")
		}
	case SourceCSV:
		if d.CSVPath == "" {
			return invalid("data.csv_path", "required for csv source")
		}
	default:
		return invalid("data.source", "unknown source %q", d.Source)
	}
	if d.Symbol == "" {
		return invalid("data.symbol", "required")
	}
	if d.ChunkSize <= 0 {
		return invalid("data.chunk_size", "must be positive")
	}
	start, end, err := c.Range()
	if err != nil {
		return err
	}
	if end <= start {
		return invalid("data.end", "must be after data.start")
	}

	if err := c.SimulationConfig().Validate(); err != nil {
		return invalid("validation", "%v", err)
	}
	if c.Results.Dir == "" {
		return invalid("results.dir", "required")
	}
	return nil
}

// Range returns the data range as Unix milliseconds, end exclusive.
func (c *Config) Range() (start, end int64, err error) {
	s, err := parseTime(c.Data.Start)
	if err != nil {
		return 0, 0, invalid("data.start", "%v", err)
	}
	e, err := parseTime(c.Data.End)
	if err != nil {
		return 0, 0, invalid("data.end", "%v", err)
	}
	return s.UnixMilli(), e.UnixMilli(), nil
}

// Chunk returns the source query span.
func (c *Config) Chunk() time.Duration {
	return time.Duration(c.Data.ChunkSize) * 24 * time.Hour
}

// SearchOptions maps the search section onto search.Options.
// Logger and Progress are left for the caller.
func (c *Config) SearchOptions() search.Options {
	return search.Options{
		SamplesPerFormula:  c.Search.CoarseSearch.SamplesPerFormula,
		TopK:               c.Search.CoarseSearch.TopCandidates,
		LeaderboardSize:    c.Search.LeaderboardSize,
		FineTuneCandidates: c.Search.FineTune.TopCandidates,
		FineTuneTopSize:    c.Search.FineTuneTopSize,
		GridStep:           c.Search.FineTune.GridStep,
		Workers:            c.Search.Workers,
		Seed:               c.Reproducibility.Seed,
		FormulaIDs:         c.Search.Formulas,
	}
}

// EvaluatorOptions maps the evaluator section onto formula.Options.
func (c *Config) EvaluatorOptions() formula.Options {
	return formula.Options{
		CacheSize:   c.Evaluator.CacheSize,
		MaxFrameLen: c.Evaluator.MaxFrameLen,
	}
}

// BacktestOptions maps the backtest section onto backtest.Options.
func (c *Config) BacktestOptions() backtest.Options {
	return backtest.Options{
		FeeBps:  c.Backtest.Fees.TakerBps,
		ThLong:  c.Backtest.Thresholds.Long,
		ThShort: c.Backtest.Thresholds.Short,
	}
}

// SimulationConfig maps the validation section onto simulation.Config.
func (c *Config) SimulationConfig() simulation.Config {
	v := c.Validation
	return simulation.Config{
		InitialCapital:   v.InitialCapital,
		PositionSize:     v.PositionSize,
		MaxPositions:     v.MaxPositions,
		Commission:       v.Commission,
		Slippage:         v.Slippage,
		StopLoss:         v.StopLoss,
		TakeProfit:       v.TakeProfit,
		MaxHold:          v.MaxHold,
		MaxDrawdown:      v.MaxDrawdown,
		VolatilityFilter: v.VolatilityFilter,
		IVCeiling:        v.IVCeiling,
		ProximityWindow:  v.ProximityWindow,
		SessionFilter:    v.SessionFilter,
		AsianHourStart:   v.AsianHours[0],
		AsianHourEnd:     v.AsianHours[1],
		TickInterval:     v.TickInterval,
		Seed:             c.Reproducibility.Seed,
	}
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
