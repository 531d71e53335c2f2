package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"marketlens/internal/forecast"
	"marketlens/internal/model"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Values come from defaults, then
// an optional YAML file, then environment variables.
type Config struct {
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`

	HTTP      HTTPConfig      `yaml:"http"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Predictor PredictorConfig `yaml:"predictor"`
	Forecast  ForecastConfig  `yaml:"forecast"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

type HTTPConfig struct {
	Addr           string          `yaml:"addr"`
	ReadTimeout    time.Duration   `yaml:"read_timeout"`
	WriteTimeout   time.Duration   `yaml:"write_timeout"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
}

// RateLimitConfig is a per-client token bucket. RPS <= 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"` // sqlite | postgres | redis
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// RedisConfig is optional: an empty Addr disables the Redis cache and
// cross-process sweep broadcast.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Breaker  BreakerConfig `yaml:"breaker"`
}

type PredictorConfig struct {
	Kind     string        `yaml:"kind"` // file | http
	ModelDir string        `yaml:"model_dir"`
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
	Breaker  BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

type ForecastConfig struct {
	Window   int                `yaml:"window"`
	Horizons []forecast.Horizon `yaml:"horizons"`
}

type SweepConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Cron           string   `yaml:"cron"`
	Symbols        []string `yaml:"symbols"`
	AlertThreshold float64  `yaml:"alert_threshold"`
	WebhookURL     string   `yaml:"webhook_url"`
	TelegramToken  string   `yaml:"telegram_token"`
	TelegramChatID string   `yaml:"telegram_chat_id"`
	Holidays       []string `yaml:"holidays"` // "2006-01-02", exchange-local
}

type DefaultsConfig struct {
	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:    "info",
		MetricsAddr: ":9090",
		HTTP: HTTPConfig{
			Addr:           ":8000",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			RateLimit:      RateLimitConfig{RPS: 20, Burst: 40},
			AllowedOrigins: []string{"*"},
		},
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "data/stocks.db",
		},
		Redis: RedisConfig{
			Breaker: BreakerConfig{MaxFailures: 5, ResetTimeout: 30 * time.Second},
		},
		Predictor: PredictorConfig{
			Kind:     "file",
			ModelDir: "models",
			Timeout:  5 * time.Second,
			Breaker:  BreakerConfig{MaxFailures: 5, ResetTimeout: 30 * time.Second},
		},
		Forecast: ForecastConfig{
			Window:   forecast.DefaultWindow,
			Horizons: forecast.DefaultHorizons(),
		},
		Sweep: SweepConfig{
			Cron:           "0 30 15 * * 0-4",
			AlertThreshold: 5,
		},
		Defaults: DefaultsConfig{
			Symbol:    "NEPSE",
			Timeframe: string(model.TF1Y),
		},
	}
}

// Load reads the YAML file at path (missing file is fine), then applies
// environment overrides. An empty path falls back to $MARKETLENS_CONFIG.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("MARKETLENS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.SQLitePath = getEnv("SQLITE_PATH", c.Store.SQLitePath)
	c.Store.PostgresDSN = getEnv("POSTGRES_DSN", c.Store.PostgresDSN)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)

	c.Predictor.Kind = getEnv("PREDICTOR_KIND", c.Predictor.Kind)
	c.Predictor.ModelDir = getEnv("MODEL_DIR", c.Predictor.ModelDir)
	c.Predictor.Endpoint = getEnv("PREDICTOR_URL", c.Predictor.Endpoint)

	c.Sweep.Cron = getEnv("SWEEP_CRON", c.Sweep.Cron)
	c.Sweep.Enabled = getEnvBool("SWEEP_ENABLED", c.Sweep.Enabled)
	c.Sweep.WebhookURL = getEnv("WEBHOOK_URL", c.Sweep.WebhookURL)
	c.Sweep.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.Sweep.TelegramToken)
	c.Sweep.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", c.Sweep.TelegramChatID)
}

// Validate checks field combinations that would fail later at startup.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required for the postgres driver")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("store.driver must be sqlite, postgres or redis, got %q", c.Store.Driver)
	}

	switch c.Predictor.Kind {
	case "file":
		if c.Predictor.ModelDir == "" {
			return fmt.Errorf("predictor.model_dir is required for the file predictor")
		}
	case "http":
		if c.Predictor.Endpoint == "" {
			return fmt.Errorf("predictor.endpoint is required for the http predictor")
		}
	default:
		return fmt.Errorf("predictor.kind must be file or http, got %q", c.Predictor.Kind)
	}

	if c.Forecast.Window <= 0 {
		return fmt.Errorf("forecast.window must be positive")
	}
	if len(c.Forecast.Horizons) == 0 {
		return fmt.Errorf("forecast.horizons must not be empty")
	}
	for _, h := range c.Forecast.Horizons {
		if h.Name == "" || h.Days <= 0 {
			return fmt.Errorf("forecast horizon %q: name and positive days required", h.Name)
		}
	}

	if _, err := model.ParseTimeframe(c.Defaults.Timeframe); err != nil {
		return fmt.Errorf("defaults.timeframe: %w", err)
	}
	if c.Sweep.Enabled && strings.TrimSpace(c.Sweep.Cron) == "" {
		return fmt.Errorf("sweep.cron is required when sweeps are enabled")
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return b
}
