// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage provider names.
const (
	StorageMemory   = "memory"
	StorageLocal    = "local"
	StorageGCS      = "gcs"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	ReadTimeoutSeconds     int `mapstructure:"read_timeout_seconds"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// BackendConfig locates the discovery/crawl backend.
type BackendConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	DiscoverPath   string  `mapstructure:"discover_path"`
	CrawlPath      string  `mapstructure:"crawl_path"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	MaxBodyBytes   int64   `mapstructure:"max_body_bytes"`
	MaxRPS         float64 `mapstructure:"max_rps"`
	Burst          int     `mapstructure:"burst"`
}

// StorageConfig selects where aggregated documents are persisted.
type StorageConfig struct {
	Provider              string                `mapstructure:"provider"`
	Prefix                string                `mapstructure:"prefix"`
	PersistTimeoutSeconds int                   `mapstructure:"persist_timeout_seconds"`
	Local                 LocalStorageConfig    `mapstructure:"local"`
	GCS                   GCSStorageConfig      `mapstructure:"gcs"`
	Postgres              PostgresStorageConfig `mapstructure:"postgres"`
	Redis                 RedisStorageConfig    `mapstructure:"redis"`
}

// LocalStorageConfig configures the filesystem provider.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// GCSStorageConfig configures the Cloud Storage provider.
type GCSStorageConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// PostgresStorageConfig configures the Postgres provider.
type PostgresStorageConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// RedisStorageConfig configures the Redis provider.
type RedisStorageConfig struct {
	Address    string `mapstructure:"address"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	KeyPrefix  string `mapstructure:"key_prefix"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// NotifyConfig tunes the notification hub and its built-in sinks.
type NotifyConfig struct {
	BufferSize         int  `mapstructure:"buffer_size"`
	MaxBatch           int  `mapstructure:"max_batch"`
	MaxWaitMs          int  `mapstructure:"max_wait_ms"`
	SinkTimeoutSeconds int  `mapstructure:"sink_timeout_seconds"`
	RecentLimit        int  `mapstructure:"recent_limit"`
	LogSink            bool `mapstructure:"log_sink"`
	PrometheusSink     bool `mapstructure:"prometheus_sink"`
}

// PubSubConfig holds the topic notifications are published to.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.request_timeout_seconds", 180)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.discover_path", "/api/discover")
	v.SetDefault("backend.crawl_path", "/api/crawl")
	v.SetDefault("backend.timeout_seconds", 120)
	v.SetDefault("backend.user_agent", "docs-discovery-console/0.1")
	v.SetDefault("backend.max_body_bytes", 32<<20)
	v.SetDefault("backend.max_rps", 0)
	v.SetDefault("backend.burst", 1)
	v.SetDefault("storage.provider", StorageMemory)
	v.SetDefault("storage.prefix", "documents")
	v.SetDefault("storage.persist_timeout_seconds", 30)
	v.SetDefault("storage.local.base_dir", "./data")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.table", "crawl_documents")
	v.SetDefault("storage.postgres.max_conns", 4)
	v.SetDefault("storage.postgres.min_conns", 0)
	v.SetDefault("storage.postgres.max_conn_lifetime_minutes", 30)
	v.SetDefault("storage.redis.address", "")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.key_prefix", "docs:")
	v.SetDefault("storage.redis.ttl_seconds", 0)
	v.SetDefault("notify.buffer_size", 256)
	v.SetDefault("notify.max_batch", 32)
	v.SetDefault("notify.max_wait_ms", 100)
	v.SetDefault("notify.sink_timeout_seconds", 5)
	v.SetDefault("notify.recent_limit", 100)
	v.SetDefault("notify.log_sink", true)
	v.SetDefault("notify.prometheus_sink", true)
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "docs-discovery-console")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute http(s) url")
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return fmt.Errorf("backend.timeout_seconds must be > 0")
	}
	if c.Backend.MaxRPS < 0 {
		return fmt.Errorf("backend.max_rps must be >= 0")
	}
	if c.Notify.BufferSize <= 0 || c.Notify.MaxBatch <= 0 {
		return fmt.Errorf("notify.buffer_size and notify.max_batch must be > 0")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0,1]")
	}
	return c.Storage.validate()
}

func (s StorageConfig) validate() error {
	switch s.Provider {
	case StorageMemory:
	case StorageLocal:
		if s.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir is required for the local provider")
		}
	case StorageGCS:
		if s.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket is required for the gcs provider")
		}
	case StoragePostgres:
		if s.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres provider")
		}
	case StorageRedis:
		if s.Redis.Address == "" {
			return fmt.Errorf("storage.redis.address is required for the redis provider")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", s.Provider)
	}
	return nil
}

// BackendTimeout is the per-call deadline for backend requests.
func (c Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// RequestTimeout bounds one inbound HTTP request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// PersistTimeout bounds each document save.
func (c Config) PersistTimeout() time.Duration {
	return time.Duration(c.Storage.PersistTimeoutSeconds) * time.Second
}

// NotifyMaxWait is the longest a notification waits for its batch.
func (c Config) NotifyMaxWait() time.Duration {
	return time.Duration(c.Notify.MaxWaitMs) * time.Millisecond
}
