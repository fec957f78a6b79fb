package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
	require.Equal(t, 120*time.Second, cfg.BackendTimeout())
	require.Zero(t, cfg.Backend.MaxRPS)
	require.Equal(t, 1, cfg.Backend.Burst)
	require.Equal(t, StorageMemory, cfg.Storage.Provider)
	require.Equal(t, "documents", cfg.Storage.Prefix)
	require.Equal(t, 30*time.Second, cfg.PersistTimeout())
	require.Equal(t, 100*time.Millisecond, cfg.NotifyMaxWait())
	require.True(t, cfg.Notify.LogSink)
	require.True(t, cfg.Logging.Development)
	require.InDelta(t, 1.0, cfg.Telemetry.SampleRatio, 0.0001)
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  request_timeout_seconds: 60
auth:
  enabled: true
  api_key: secret
backend:
  base_url: https://backend.internal:8443
  timeout_seconds: 45
storage:
  provider: redis
  prefix: runs
  redis:
    address: localhost:6379
    ttl_seconds: 3600
notify:
  max_batch: 4
pubsub:
  enabled: true
  project_id: docs-project
  topic_name: docs-notifications
logging:
  development: false
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, time.Minute, cfg.RequestTimeout())
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "secret", cfg.Auth.APIKey)
	require.Equal(t, "https://backend.internal:8443", cfg.Backend.BaseURL)
	require.Equal(t, 45*time.Second, cfg.BackendTimeout())
	require.Equal(t, StorageRedis, cfg.Storage.Provider)
	require.Equal(t, "runs", cfg.Storage.Prefix)
	require.Equal(t, "localhost:6379", cfg.Storage.Redis.Address)
	require.Equal(t, 3600, cfg.Storage.Redis.TTLSeconds)
	require.Equal(t, "docs:", cfg.Storage.Redis.KeyPrefix)
	require.Equal(t, 4, cfg.Notify.MaxBatch)
	require.True(t, cfg.PubSub.Enabled)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DOCS_SERVER_PORT", "7070")
	t.Setenv("DOCS_BACKEND_BASE_URL", "http://backend:9000")
	t.Setenv("DOCS_STORAGE_PROVIDER", "gcs")
	t.Setenv("DOCS_STORAGE_GCS_BUCKET", "docs-bucket")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "http://backend:9000", cfg.Backend.BaseURL)
	require.Equal(t, StorageGCS, cfg.Storage.Provider)
	require.Equal(t, "docs-bucket", cfg.Storage.GCS.Bucket)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:    ServerConfig{Port: 8080},
		Backend:   BackendConfig{BaseURL: "http://backend:8000", TimeoutSeconds: 10},
		Storage:   StorageConfig{Provider: StorageMemory},
		Notify:    NotifyConfig{BufferSize: 1, MaxBatch: 1},
		Telemetry: TelemetryConfig{SampleRatio: 1},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "auth missing api key", mutate: func(c *Config) { c.Auth.Enabled = true }, want: "auth.api_key"},
		{name: "relative backend url", mutate: func(c *Config) { c.Backend.BaseURL = "/api" }, want: "backend.base_url"},
		{name: "zero backend timeout", mutate: func(c *Config) { c.Backend.TimeoutSeconds = 0 }, want: "backend.timeout_seconds"},
		{name: "negative rps", mutate: func(c *Config) { c.Backend.MaxRPS = -1 }, want: "backend.max_rps"},
		{name: "zero notify buffer", mutate: func(c *Config) { c.Notify.BufferSize = 0 }, want: "notify.buffer_size"},
		{name: "pubsub without topic", mutate: func(c *Config) { c.PubSub.Enabled = true }, want: "pubsub.project_id"},
		{name: "sample ratio", mutate: func(c *Config) { c.Telemetry.SampleRatio = 2 }, want: "telemetry.sample_ratio"},
		{name: "unknown provider", mutate: func(c *Config) { c.Storage.Provider = "s3" }, want: "storage.provider"},
		{name: "local without dir", mutate: func(c *Config) { c.Storage.Provider = StorageLocal }, want: "storage.local.base_dir"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Provider = StorageGCS }, want: "storage.gcs.bucket"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Provider = StoragePostgres }, want: "storage.postgres.dsn"},
		{name: "redis without address", mutate: func(c *Config) { c.Storage.Provider = StorageRedis }, want: "storage.redis.address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.mutate(&c)
			require.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}
