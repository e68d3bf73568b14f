// Package config loads configuration from defaults, an optional YAML file and
// environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is stripped from environment variables before mapping.
	// LAZYLOAD_LAZYLOAD__FLUSHINTERVAL maps to lazyload.flushinterval.
	EnvPrefix = "LAZYLOAD_"

	DefaultFlushInterval      = 5 * time.Minute
	DefaultSlowQueryThreshold = 200 * time.Millisecond
	DefaultMaxQueryLength     = 1000
	DefaultProxyPackage       = "proxies"
	DefaultGetterPrefix       = "Get"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Load reads configuration with priority:
// 1. Environment variables (highest priority)
// 2. The YAML file at path, when path is non-empty and the file exists
// 3. Default values (lowest priority)
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	return finish(k)
}

// LoadBytes is Load for YAML held in memory.
func LoadBytes(data []byte) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	}

	return finish(k)
}

func finish(k *koanf.Koanf) (*Config, error) {
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, EnvPrefix)
			return strings.ReplaceAll(strings.ToLower(key), "__", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "lazyload-demo",
		"app.env":     EnvDevelopment,
		"app.version": "dev",

		"log.level":  "info",
		"log.pretty": false,

		// No connection target by default; the database is only opened when configured.
		"database.pool.maxconns":        25,
		"database.pool.maxidleconns":    5,
		"database.pool.connmaxlifetime": "30m",
		"database.pool.connmaxidletime": "5m",
		"database.query.slow.threshold": DefaultSlowQueryThreshold.String(),
		"database.query.log.maxlength":  DefaultMaxQueryLength,
		"database.query.log.parameters": false,

		"lazyload.enabled":           true,
		"lazyload.flushinterval":     DefaultFlushInterval.String(),
		"lazyload.logduringlazyload": false,
		"lazyload.proxypackage":      DefaultProxyPackage,
		"lazyload.getterprefix":      DefaultGetterPrefix,

		"debug.enabled":   false,
		"debug.address":   "127.0.0.1:6061",
		"debug.ratelimit": 0,

		"observability.enabled":          false,
		"observability.protocol":         "http",
		"observability.insecure":         false,
		"observability.trace.enabled":    true,
		"observability.trace.endpoint":   "stdout",
		"observability.trace.samplerate": 1.0,
		"observability.metrics.enabled":  true,
		"observability.metrics.endpoint": "stdout",
		"observability.metrics.interval": "1m",

		"sinks.amqp.exchange":    "lazyload",
		"sinks.amqp.routingkey":  "lazyload.report",
		"sinks.mongo.database":   "diagnostics",
		"sinks.mongo.collection": "lazyload_reports",
		"sinks.redis.stream":     "lazyload:reports",
		"sinks.redis.maxlen":     1000,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
