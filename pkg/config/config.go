package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Platform     PlatformConfig
	Delivery     DeliveryConfig
	Retry        RetryConfig
	Retention    RetentionConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LEADRELAY_APP_ENV" required:"true"`
	Port         string `envconfig:"LEADRELAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LEADRELAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEADRELAY_LOG_WARN_STACK" default:"false"`
	ServiceToken string `envconfig:"LEADRELAY_SERVICE_TOKEN"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LEADRELAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LEADRELAY_DB_DSN"`
	Driver string `envconfig:"LEADRELAY_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"LEADRELAY_DB_HOST"`
	Port     int    `envconfig:"LEADRELAY_DB_PORT" default:"5432"`
	User     string `envconfig:"LEADRELAY_DB_USER"`
	Password string `envconfig:"LEADRELAY_DB_PASSWORD"`
	Name     string `envconfig:"LEADRELAY_DB_NAME"`
	SSLMode  string `envconfig:"LEADRELAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEADRELAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEADRELAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEADRELAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEADRELAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("database DSN or host/user/name settings are required")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"LEADRELAY_REDIS_URL"`
	Address      string        `envconfig:"LEADRELAY_REDIS_ADDR"`
	Password     string        `envconfig:"LEADRELAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEADRELAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEADRELAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEADRELAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEADRELAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEADRELAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEADRELAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PlatformConfig holds the ad platform webhook and Graph API settings.
type PlatformConfig struct {
	AppSecret    string        `envconfig:"LEADRELAY_PLATFORM_APP_SECRET" required:"true"`
	VerifyToken  string        `envconfig:"LEADRELAY_PLATFORM_VERIFY_TOKEN" required:"true"`
	GraphBaseURL string        `envconfig:"LEADRELAY_PLATFORM_GRAPH_URL" default:"https://graph.facebook.com/v19.0"`
	HTTPTimeout  time.Duration `envconfig:"LEADRELAY_PLATFORM_HTTP_TIMEOUT" default:"10s"`
}

// DeliveryConfig holds defaults applied to outbound destination deliveries.
type DeliveryConfig struct {
	UserAgent         string        `envconfig:"LEADRELAY_DELIVERY_USER_AGENT" default:"LeadRelay/1.0"`
	DefaultTimeout    time.Duration `envconfig:"LEADRELAY_DELIVERY_DEFAULT_TIMEOUT" default:"30s"`
	DefaultRetryCount int           `envconfig:"LEADRELAY_DELIVERY_DEFAULT_RETRY_COUNT" default:"3"`
	MaxResponseBytes  int           `envconfig:"LEADRELAY_DELIVERY_MAX_RESPONSE_BYTES" default:"5000"`
}

// RetryConfig tunes the retry-worker recovery scan.
type RetryConfig struct {
	BatchSize      int           `envconfig:"LEADRELAY_RETRY_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"LEADRELAY_RETRY_POLL_INTERVAL_MS" default:"1000"`
	ClaimTimeout   time.Duration `envconfig:"LEADRELAY_RETRY_CLAIM_TIMEOUT" default:"5s"`
}

// RetentionConfig bounds how long terminal rows are kept.
type RetentionConfig struct {
	LeadWindow    time.Duration `envconfig:"LEADRELAY_RETENTION_LEAD_WINDOW" default:"2160h"`
	AttemptWindow time.Duration `envconfig:"LEADRELAY_RETENTION_ATTEMPT_WINDOW" default:"2160h"`
	CronInterval  time.Duration `envconfig:"LEADRELAY_RETENTION_CRON_INTERVAL" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LEADRELAY_AUTO_MIGRATE" default:"false"`
}
