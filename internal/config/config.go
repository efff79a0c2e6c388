// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	URL          string        `yaml:"url"`
	MaxConns     int32         `yaml:"max_conns"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PaymentConfig struct {
	Gateway struct {
		KeyID     string        `yaml:"key_id"`
		KeySecret string        `yaml:"key_secret"`
		BaseURL   string        `yaml:"base_url"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"gateway"`
	FreeCurrency   string        `yaml:"free_currency"`   // currency recorded on bypass grants
	InFlightTTL    time.Duration `yaml:"in_flight_ttl"`   // lock lifetime per gateway payment id
	FreeRateLimit  int           `yaml:"free_rate_limit"` // bypass activations per user per window
	FreeRateWindow time.Duration `yaml:"free_rate_window"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"` // identity provider's HS256 secret; empty disables the check
	Issuer    string `yaml:"issuer"`
}

type AlertsConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
	Workers        int    `yaml:"workers"`
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"` // 0 disables the reconciler
	ReconcileStale    time.Duration `yaml:"reconcile_stale"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Auth      AuthConfig      `yaml:"auth"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, then applies overrides from the
// environment (a .env file next to the binary is loaded first when present).
func LoadConfig(path string, dev bool) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && dev:
		// dev may run from env only
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setStr := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setStr(&cfg.Database.URL, "DATABASE_URL")
	setStr(&cfg.Redis.URL, "REDIS_URL")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setStr(&cfg.Payment.Gateway.KeyID, "GATEWAY_KEY_ID")
	setStr(&cfg.Payment.Gateway.KeySecret, "GATEWAY_KEY_SECRET")
	setStr(&cfg.Auth.JWTSecret, "AUTH_JWT_SECRET")
	setStr(&cfg.Admin.APIKey, "ADMIN_API_KEY")
	setStr(&cfg.Alerts.TelegramToken, "ALERTS_TELEGRAM_TOKEN")
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = p
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.QueryTimeout <= 0 {
		cfg.Database.QueryTimeout = 5 * time.Second
	}

	if cfg.Payment.Gateway.BaseURL == "" {
		cfg.Payment.Gateway.BaseURL = "https://api.razorpay.com/v1"
	}
	if cfg.Payment.Gateway.Timeout <= 0 {
		cfg.Payment.Gateway.Timeout = 15 * time.Second
	}
	if cfg.Payment.FreeCurrency == "" {
		cfg.Payment.FreeCurrency = "INR"
	}
	if cfg.Payment.InFlightTTL <= 0 {
		cfg.Payment.InFlightTTL = 30 * time.Second
	}
	if cfg.Payment.FreeRateLimit <= 0 {
		cfg.Payment.FreeRateLimit = 5
	}
	if cfg.Payment.FreeRateWindow <= 0 {
		cfg.Payment.FreeRateWindow = time.Hour
	}
	if cfg.Alerts.Workers <= 0 {
		cfg.Alerts.Workers = 2
	}
	if cfg.Scheduler.ReconcileStale <= 0 {
		cfg.Scheduler.ReconcileStale = 10 * time.Minute
	}
}

// Validate performs minimal validation. Gateway credentials may be empty in dev,
// where the noop gateway is used.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if !c.Runtime.Dev {
		if c.Payment.Gateway.KeyID == "" || c.Payment.Gateway.KeySecret == "" {
			return errors.New("payment.gateway.key_id and payment.gateway.key_secret are required")
		}
	}
	return nil
}
