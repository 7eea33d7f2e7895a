package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"superengulfing/pkg/pattern"

	"github.com/spf13/viper"
)

type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Scenario ScenarioConfig `mapstructure:"scenario"`
	Server   ServerConfig   `mapstructure:"server"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// EngineConfig holds classifier parameters shared by every entrypoint.
type EngineConfig struct {
	SweepDepth int `mapstructure:"sweep_depth"` // X-factor threshold, typical UI range 2..10
}

// ScenarioConfig shapes synthesized sequences and quiz generation.
type ScenarioConfig struct {
	BasePrice   float64       `mapstructure:"base_price"`
	Volatility  float64       `mapstructure:"volatility"`   // 0 means 0.5% of base_price
	Interval    time.Duration `mapstructure:"interval"`     // bar interval
	StartTime   int64         `mapstructure:"start_time"`   // first open time (ms since epoch)
	Seed        uint64        `mapstructure:"seed"`         // 0 means seed from the clock
	MaxAttempts int           `mapstructure:"max_attempts"` // regenerations before a quiz question fails
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	BarDelay     time.Duration `mapstructure:"bar_delay"` // pause between streamed bars
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ScanConfig drives the stored-kline scanner.
type ScanConfig struct {
	Symbols     []string      `mapstructure:"symbols"`
	Interval    string        `mapstructure:"interval"`    // kline_record interval, e.g. "1m"
	Lookback    time.Duration `mapstructure:"lookback"`    // how far back each run loads bars
	Window      int           `mapstructure:"window"`      // bars kept per symbol in memory
	Concurrency int           `mapstructure:"concurrency"` // symbols scanned in parallel
	Timeout     time.Duration `mapstructure:"timeout"`     // per-symbol load timeout
	Cron        string        `mapstructure:"cron"`        // empty runs once
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.sweep_depth", 3)

	v.SetDefault("scenario.base_price", 100.0)
	v.SetDefault("scenario.volatility", 0.0)
	v.SetDefault("scenario.interval", time.Minute)
	v.SetDefault("scenario.start_time", int64(1_700_000_000_000))
	v.SetDefault("scenario.seed", uint64(0))
	v.SetDefault("scenario.max_attempts", 5)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.bar_delay", 250*time.Millisecond)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("scan.symbols", []string{})
	v.SetDefault("scan.interval", "1m")
	v.SetDefault("scan.lookback", 4*time.Hour)
	v.SetDefault("scan.window", 64)
	v.SetDefault("scan.concurrency", 5)
	v.SetDefault("scan.timeout", 10*time.Second)
	v.SetDefault("scan.cron", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.environment", "dev")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.compress", true)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "klines")
	v.SetDefault("postgres.create_db", false)
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.ssm.host_param", "SE_DB_HOST")
	v.SetDefault("postgres.ssm.user_param", "SE_DB_USER")
	v.SetDefault("postgres.ssm.password_param", "SE_DB_PASSWORD")
}

// Load loads application configuration using Viper.
// It reads config.yaml (or the file named by CONFIG_PATH) and overrides it
// with environment variables. A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")

		ex, _ := os.Executable()
		if strings.Contains(ex, "go-build") {
			pwd, _ := os.Getwd()
			v.AddConfigPath(filepath.Join(pwd, "../../config"))
		} else {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
		v.AddConfigPath("config")
	}

	// Support environment variables with dot notation (e.g., ENGINE_SWEEP_DEPTH)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges the engine relies on.
func (c *Config) Validate() error {
	if c.Engine.SweepDepth < 1 || c.Engine.SweepDepth > pattern.MaxSweepLookback {
		return fmt.Errorf("engine.sweep_depth must be within 1..%d, got %d", pattern.MaxSweepLookback, c.Engine.SweepDepth)
	}
	if c.Scenario.BasePrice <= 0 {
		return fmt.Errorf("scenario.base_price must be positive")
	}
	if c.Scenario.Volatility < 0 {
		return fmt.Errorf("scenario.volatility must not be negative")
	}
	if c.Scenario.MaxAttempts < 1 {
		return fmt.Errorf("scenario.max_attempts must be at least 1")
	}
	if c.Scan.Window <= pattern.MaxSweepLookback {
		return fmt.Errorf("scan.window must exceed %d bars", pattern.MaxSweepLookback)
	}
	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("scan.concurrency must be at least 1")
	}
	return nil
}
