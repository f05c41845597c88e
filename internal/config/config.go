// Package config loads and validates client configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinTokenLength is the shortest token accepted as plausibly valid.
const MinTokenLength = 10

// TokenEnvVars lists the environment variables consulted for the API token, in
// priority order.
var TokenEnvVars = []string{
	"BRIGHTDATA_API_TOKEN",
	"BRIGHTDATA_API_KEY",
	"BRIGHTDATA_TOKEN",
	"BD_API_TOKEN",
}

// Storage providers.
const (
	StorageNone  = "none"
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Zones   ZonesConfig   `mapstructure:"zones"`
	Poll    PollConfig    `mapstructure:"poll"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// APIConfig controls access to the remote API.
type APIConfig struct {
	Token          string  `mapstructure:"token"`
	BaseURL        string  `mapstructure:"base_url"`
	CustomerID     string  `mapstructure:"customer_id"`
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	MaxRetries     int     `mapstructure:"max_retries"`
	BackoffMs      int     `mapstructure:"backoff_initial_ms"`
}

// ZonesConfig names the zones used per role.
type ZonesConfig struct {
	WebUnlocker string `mapstructure:"web_unlocker"`
	SERP        string `mapstructure:"serp"`
	Browser     string `mapstructure:"browser"`
	AutoCreate  bool   `mapstructure:"auto_create"`
}

// PollConfig bounds the job polling loop.
type PollConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	TimeoutSeconds  int `mapstructure:"timeout_seconds"`
}

// CrawlConfig selects the crawl dataset.
type CrawlConfig struct {
	DatasetID string `mapstructure:"dataset_id"`
}

// ServerConfig controls the operations server.
type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// StorageConfig selects where finished results are archived.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the Postgres run ledger. An empty DSN disables it.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig holds metadata for completion events. An empty topic disables them.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TracingConfig toggles the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BRIGHTDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	args := append([]string{"api.token"}, TokenEnvVars...)
	if err := v.BindEnv(args...); err != nil {
		return Config{}, fmt.Errorf("bind token env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.API.Token = strings.TrimSpace(cfg.API.Token)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://api.brightdata.com")
	v.SetDefault("api.user_agent", "brightdata-go/1.0")
	v.SetDefault("api.timeout_seconds", 30)
	v.SetDefault("api.rate_limit_rps", 10)
	v.SetDefault("api.rate_limit_burst", 5)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.backoff_initial_ms", 1000)
	v.SetDefault("zones.web_unlocker", "sdk_unlocker")
	v.SetDefault("zones.serp", "sdk_serp")
	v.SetDefault("zones.browser", "sdk_browser")
	v.SetDefault("zones.auto_create", false)
	v.SetDefault("poll.interval_seconds", 10)
	v.SetDefault("poll.timeout_seconds", 600)
	v.SetDefault("crawl.dataset_id", "gd_m6gjtfmeh43we6cqc")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.provider", StorageNone)
	v.SetDefault("storage.base_dir", "data/results")
	v.SetDefault("storage.prefix", "results")
	v.SetDefault("db.table", "brightdata_runs")
	v.SetDefault("logging.development", true)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "brightdata-go")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.API.Token) < MinTokenLength {
		return fmt.Errorf("api.token must be at least %d characters (set %s)", MinTokenLength, TokenEnvVars[0])
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be > 0")
	}
	if c.Poll.IntervalSeconds <= 0 {
		return fmt.Errorf("poll.interval_seconds must be > 0")
	}
	if c.Poll.TimeoutSeconds < c.Poll.IntervalSeconds {
		return fmt.Errorf("poll.timeout_seconds must be >= poll.interval_seconds")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Storage.Provider {
	case "", StorageNone:
	case StorageLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local provider")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("storage.provider %q is not one of none, local, gcs", c.Storage.Provider)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.DB.DSN != "" && c.DB.Table == "" {
		return fmt.Errorf("db.table must be set when db.dsn is set")
	}
	return nil
}

// APITimeout returns the per-request timeout.
func (c Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// PollInterval returns the delay between status checks.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

// PollTimeout returns the overall polling budget.
func (c Config) PollTimeout() time.Duration {
	return time.Duration(c.Poll.TimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the initial retry backoff.
func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.API.BackoffMs) * time.Millisecond
}
