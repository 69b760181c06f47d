package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"dip-trigger/internal/logging"
	"dip-trigger/internal/trigger"
)

// EnvPrefix namespaces environment overrides, e.g. DIPTRIGGER_TRIGGER_WINDOW.
const EnvPrefix = "DIPTRIGGER"

// DefaultSymbols is the built-in index list evaluated when none is configured.
var DefaultSymbols = []string{"^GSPC", "^IXIC", "^NSEI", "0P0001IAU9.BO", "0P0001Q0UH.BO", "BTC-USD"}

// DefaultLabels names the built-in symbols in the table view.
var DefaultLabels = []SymbolLabel{
	{Symbol: "^GSPC", Name: "S&P 500"},
	{Symbol: "^IXIC", Name: "NASDAQ"},
	{Symbol: "^NSEI", Name: "Nifty 50"},
	{Symbol: "0P0001IAU9.BO", Name: "Nifty Midcap 150"},
	{Symbol: "0P0001Q0UH.BO", Name: "Nifty Smallcap 250"},
	{Symbol: "BTC-USD", Name: "BTC"},
}

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Trigger    TriggerConfig    `mapstructure:"trigger"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Allocation AllocationConfig `mapstructure:"allocation"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// TriggerConfig selects the evaluated symbols and the dip tiers. Its fields
// are checked by SymbolList and Params so every failure wraps
// trigger.ErrInvalidConfig.
type TriggerConfig struct {
	Symbols         []string      `mapstructure:"symbols"`
	Window          int           `mapstructure:"window"`
	MildThreshold   float64       `mapstructure:"mild_threshold"`
	StrongThreshold float64       `mapstructure:"strong_threshold"`
	Labels          []SymbolLabel `mapstructure:"labels"`
}

// Params converts the thresholds into validated evaluator parameters.
func (t TriggerConfig) Params() (trigger.Params, error) {
	return trigger.NewParams(t.Window, t.MildThreshold, t.StrongThreshold)
}

// SymbolLabel gives a symbol a display name. Labels are a list rather than a
// map because viper splits map keys on dots.
type SymbolLabel struct {
	Symbol string `mapstructure:"symbol"`
	Name   string `mapstructure:"name"`
}

// LabelMap indexes the labels by normalised symbol. Blank entries are skipped.
func (t TriggerConfig) LabelMap() map[trigger.Symbol]string {
	labels := make(map[trigger.Symbol]string, len(t.Labels))
	for _, l := range t.Labels {
		sym, err := trigger.ParseSymbol(l.Symbol)
		if err != nil || strings.TrimSpace(l.Name) == "" {
			continue
		}
		labels[sym] = strings.TrimSpace(l.Name)
	}
	return labels
}

// SymbolList returns the configured symbols, normalised, in configured order.
func (t TriggerConfig) SymbolList() ([]trigger.Symbol, error) {
	return trigger.ParseSymbols(t.Symbols)
}

// ProviderConfig covers the Yahoo Finance chart API.
type ProviderConfig struct {
	BaseURL           string            `mapstructure:"base_url" validate:"required,url"`
	Range             string            `mapstructure:"range" validate:"required"`
	Timeout           time.Duration     `mapstructure:"timeout" validate:"gt=0"`
	Retries           int               `mapstructure:"retries" validate:"gte=0"`
	UserAgent         string            `mapstructure:"user_agent"`
	RequestsPerMinute int               `mapstructure:"requests_per_minute" validate:"gt=0"`
	Concurrency       int               `mapstructure:"concurrency" validate:"gt=0"`
	Aliases           map[string]string `mapstructure:"aliases"`
}

// CacheConfig tunes the in-memory history cache.
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TTL             time.Duration `mapstructure:"ttl" validate:"gte=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gte=0"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// StorageConfig governs the persisted history read-through.
type StorageConfig struct {
	MaxStaleness time.Duration `mapstructure:"max_staleness" validate:"gt=0"`
}

// SchedulerConfig governs evaluation cadence. Cron, when set, replaces Interval.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval" validate:"gt=0"`
	Cron            string        `mapstructure:"cron"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay" validate:"gte=0"`
}

// AllocationConfig maps signals to a deploy amount in the table view.
type AllocationConfig struct {
	Amount            float64 `mapstructure:"amount" validate:"gte=0"`
	StrongDipFraction float64 `mapstructure:"strong_dip_fraction" validate:"gte=0,lte=1"`
	DipFraction       float64 `mapstructure:"dip_fraction" validate:"gte=0,lte=1"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points" validate:"gt=1"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "diptrigger")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("trigger.symbols", DefaultSymbols)
	v.SetDefault("trigger.window", trigger.DefaultWindow)
	v.SetDefault("trigger.mild_threshold", trigger.DefaultMildThreshold)
	v.SetDefault("trigger.strong_threshold", trigger.DefaultStrongThreshold)
	v.SetDefault("trigger.labels", DefaultLabels)

	v.SetDefault("provider.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("provider.range", "2y")
	v.SetDefault("provider.timeout", "15s")
	v.SetDefault("provider.retries", 2)
	v.SetDefault("provider.user_agent", "Mozilla/5.0 (compatible; diptrigger/1.0)")
	v.SetDefault("provider.requests_per_minute", 60)
	v.SetDefault("provider.concurrency", 4)
	v.SetDefault("provider.aliases", map[string]string{
		"SPX":  "^GSPC",
		"NDX":  "^NDX",
		"IXIC": "^IXIC",
		"NSEI": "^NSEI",
		"BTC":  "BTC-USD",
	})

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "15m")
	v.SetDefault("cache.cleanup_interval", "30m")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("storage.max_staleness", "24h")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.cron", "")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x64697074))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("allocation.amount", 100.0)
	v.SetDefault("allocation.strong_dip_fraction", 1.0)
	v.SetDefault("allocation.dip_fraction", 0.5)

	v.SetDefault("export.max_data_points", 1000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate checks the trigger section, then the remaining struct
// constraints. Trigger failures wrap trigger.ErrInvalidConfig.
func (c *Config) Validate() error {
	if _, err := c.Trigger.SymbolList(); err != nil {
		return fmt.Errorf("trigger.symbols: %w", err)
	}
	if _, err := c.Trigger.Params(); err != nil {
		return fmt.Errorf("trigger: %w", err)
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 1 {
		return override
	}
	return c.Export.MaxDataPoints
}
