package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// EnvPrefix is empty: every field carries its full EBILL_* name as the envconfig
// alt key so nested structs resolve without a struct-name segment.
const EnvPrefix = ""

type Config struct {
	App          AppConfig
	DB           DBConfig
	Billing      BillingConfig
	Guard        GuardConfig
	BulkOps      BulkOpsConfig
	Digest       DigestConfig
	Alert        AlertConfig
	Notification NotificationConfig

	defaultRate decimal.Decimal
}

type AppConfig struct {
	Port         string `envconfig:"EBILL_PORT" default:"8000"`
	LogLevel     string `envconfig:"EBILL_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"EBILL_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"EBILL_LOG_WARN_STACK" default:"false"`
}

type DBConfig struct {
	Driver      string `envconfig:"EBILL_DB_DRIVER" default:"sqlite"`
	DSN         string `envconfig:"EBILL_DB_DSN" default:"ebillmanager.db"`
	AutoMigrate bool   `envconfig:"EBILL_AUTO_MIGRATE" default:"false"`
}

type BillingConfig struct {
	// DefaultRate is the per-CCF rate applied when neither a custom nor a zip rate matches.
	DefaultRate    string `envconfig:"EBILL_DEFAULT_RATE" default:"5.72"`
	IssuerName     string `envconfig:"EBILL_ISSUER_NAME" default:"HYDROSPARK WATER CO."`
	FilenamePrefix string `envconfig:"EBILL_FILENAME_PREFIX" default:"HydroSpark"`
	Parallelism    int    `envconfig:"EBILL_AGGREGATION_PARALLELISM" default:"8"`
}

type GuardConfig struct {
	Backend  string        `envconfig:"EBILL_GUARD_BACKEND" default:"local"` // "local" or "redis"
	RedisURL string        `envconfig:"EBILL_REDIS_URL"`
	TTL      time.Duration `envconfig:"EBILL_GUARD_TTL" default:"2m"`
}

type BulkOpsConfig struct {
	BaseURL string        `envconfig:"EBILL_BULKOPS_BASE_URL"`
	Timeout time.Duration `envconfig:"EBILL_BULKOPS_TIMEOUT" default:"10m"`
}

type DigestConfig struct {
	// Schedule is either integer seconds or a standard cron expression.
	Schedule string `envconfig:"EBILL_DIGEST_SCHEDULE" default:"0 6 * * *"`
}

type AlertConfig struct {
	WebhookURL  string `envconfig:"EBILL_ALERT_WEBHOOK_URL"`
	WebhookType string `envconfig:"EBILL_ALERT_WEBHOOK_TYPE"`
	MinFailures int    `envconfig:"EBILL_ALERT_MIN_FAILURES" default:"1"`
}

type NotificationConfig struct {
	SendgridAPIKey string `envconfig:"EBILL_SENDGRID_API_KEY"`
	FromAddress    string `envconfig:"EBILL_MAIL_FROM_ADDRESS" default:"billing@hydrospark.example"`
	FromName       string `envconfig:"EBILL_MAIL_FROM_NAME" default:"HydroSpark Billing"`
}

// Load reads the configuration from EBILL_* environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.Billing.DefaultRate))
	if err != nil {
		return fmt.Errorf("EBILL_DEFAULT_RATE %q: %w", c.Billing.DefaultRate, err)
	}
	if rate.IsNegative() {
		return fmt.Errorf("EBILL_DEFAULT_RATE must not be negative (got %s)", rate)
	}
	c.defaultRate = rate

	switch c.Guard.Backend {
	case "local":
	case "redis":
		if c.Guard.RedisURL == "" {
			return fmt.Errorf("EBILL_REDIS_URL is required when EBILL_GUARD_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unsupported guard backend %q", c.Guard.Backend)
	}

	switch c.DB.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported EBILL_DB_DRIVER %q", c.DB.Driver)
	}

	if _, err := strconv.Atoi(c.Digest.Schedule); err != nil {
		if _, err := cron.ParseStandard(c.Digest.Schedule); err != nil {
			return fmt.Errorf("EBILL_DIGEST_SCHEDULE %q: %w", c.Digest.Schedule, err)
		}
	}

	if c.Billing.Parallelism <= 0 {
		c.Billing.Parallelism = 1
	}
	return nil
}

// DefaultRate returns the parsed system-wide default rate per CCF.
func (c *Config) DefaultRate() decimal.Decimal {
	return c.defaultRate
}
