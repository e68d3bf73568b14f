package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
app:
  name: invoices
log:
  level: debug
lazyload:
  flushinterval: 30s
  logduringlazyload: true
database:
  type: postgresql
  host: localhost
  port: 5432
  database: invoices
  username: app
`

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "lazyload-demo", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Env)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.True(t, cfg.LazyLoad.Enabled)
	assert.Equal(t, DefaultFlushInterval, cfg.LazyLoad.FlushInterval)
	assert.False(t, cfg.LazyLoad.LogDuringLazyLoad)
	assert.Equal(t, DefaultProxyPackage, cfg.LazyLoad.ProxyPackage)
	assert.Equal(t, DefaultGetterPrefix, cfg.LazyLoad.GetterPrefix)

	assert.False(t, IsDatabaseConfigured(&cfg.Database))
	assert.Equal(t, DefaultSlowQueryThreshold, cfg.Database.Query.Slow.Threshold)
	assert.Equal(t, DefaultMaxQueryLength, cfg.Database.Query.Log.MaxLength)
	assert.NotNil(t, cfg.Koanf())
}

func TestObservabilityAndSinkDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.False(t, cfg.Observability.Enabled)
	assert.Equal(t, "http", cfg.Observability.Protocol)
	assert.Equal(t, "stdout", cfg.Observability.Trace.Endpoint)
	assert.InDelta(t, 1.0, cfg.Observability.Trace.SampleRate, 0.0001)
	assert.Equal(t, time.Minute, cfg.Observability.Metrics.Interval)

	assert.Empty(t, cfg.Sinks.AMQP.URL)
	assert.Equal(t, "lazyload.report", cfg.Sinks.AMQP.RoutingKey)
	assert.Empty(t, cfg.Sinks.Mongo.URI)
	assert.Equal(t, "lazyload_reports", cfg.Sinks.Mongo.Collection)
	assert.Empty(t, cfg.Sinks.Redis.Address)
	assert.Equal(t, "lazyload:reports", cfg.Sinks.Redis.Stream)
	assert.Equal(t, int64(1000), cfg.Sinks.Redis.MaxLen)
	assert.Equal(t, "dev", cfg.App.Version)
}

func TestLoadBytes(t *testing.T) {
	cfg, err := LoadBytes([]byte(testYAML))
	require.NoError(t, err)

	assert.Equal(t, "invoices", cfg.App.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.LazyLoad.FlushInterval)
	assert.True(t, cfg.LazyLoad.LogDuringLazyLoad)
	assert.True(t, IsDatabaseConfigured(&cfg.Database))
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "invoices", cfg.App.Name)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "lazyload-demo", cfg.App.Name)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("LAZYLOAD_LAZYLOAD__FLUSHINTERVAL", "0s")
	t.Setenv("LAZYLOAD_LOG__LEVEL", "warn")

	cfg, err := LoadBytes([]byte(testYAML))
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), cfg.LazyLoad.FlushInterval)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad_log_level", yaml: "log:\n  level: loud\n"},
		{name: "bad_env", yaml: "app:\n  env: qa\n"},
		{name: "unsupported_vendor", yaml: "database:\n  type: mongodb\n  connectionstring: x\n"},
		{name: "missing_getter_prefix", yaml: "lazyload:\n  getterprefix: \"\"\n"},
		{name: "missing_host", yaml: "database:\n  type: oracle\n  port: 1521\n"},
		{name: "debug_without_address", yaml: "debug:\n  enabled: true\n  address: \"\"\n"},
		{name: "negative_rate_limit", yaml: "debug:\n  ratelimit: -1\n"},
		{name: "bad_otel_protocol", yaml: "observability:\n  protocol: udp\n"},
		{name: "sample_rate_above_one", yaml: "observability:\n  trace:\n    samplerate: 1.5\n"},
		{name: "amqp_without_routing_key", yaml: "sinks:\n  amqp:\n    url: amqp://localhost\n    routingkey: \"\"\n"},
		{name: "mongo_without_collection", yaml: "sinks:\n  mongo:\n    uri: mongodb://localhost\n    collection: \"\"\n"},
		{name: "redis_without_stream", yaml: "sinks:\n  redis:\n    address: localhost:6379\n    stream: \"\"\n"},
		{name: "redis_bad_address", yaml: "sinks:\n  redis:\n    address: localhost\n"},
		{name: "redis_negative_maxlen", yaml: "sinks:\n  redis:\n    maxlen: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestDisabledLazyLoadSkipsPredicateFields(t *testing.T) {
	cfg, err := LoadBytes([]byte("lazyload:\n  enabled: false\n  getterprefix: \"\"\n  proxypackage: \"\"\n"))
	require.NoError(t, err)
	assert.False(t, cfg.LazyLoad.Enabled)
}

func TestValidateDatabase(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DatabaseConfig
		wantErr bool
	}{
		{name: "not_configured", cfg: DatabaseConfig{}},
		{name: "connection_string", cfg: DatabaseConfig{Type: "postgresql", ConnectionString: "postgres://x"}},
		{name: "connection_string_without_type", cfg: DatabaseConfig{ConnectionString: "postgres://x"}, wantErr: true},
		{name: "complete", cfg: DatabaseConfig{Type: "oracle", Host: "db", Port: 1521, Database: "XE", Username: "u"}},
		{name: "missing_port", cfg: DatabaseConfig{Type: "oracle", Host: "db", Database: "XE", Username: "u"}, wantErr: true},
		{name: "missing_name", cfg: DatabaseConfig{Type: "oracle", Host: "db", Port: 1521, Username: "u"}, wantErr: true},
		{name: "missing_user", cfg: DatabaseConfig{Type: "oracle", Host: "db", Port: 1521, Database: "XE"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDatabase(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
