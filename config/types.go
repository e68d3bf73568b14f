package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the root configuration. The embedded koanf instance keeps raw
// access to keys that are not mapped onto the struct.
type Config struct {
	App      AppConfig      `koanf:"app" json:"app" yaml:"app"`
	Log      LogConfig      `koanf:"log" json:"log" yaml:"log"`
	Database DatabaseConfig `koanf:"database" json:"database" yaml:"database"`
	LazyLoad LazyLoadConfig `koanf:"lazyload" json:"lazyload" yaml:"lazyload"`
	Debug    DebugConfig    `koanf:"debug" json:"debug" yaml:"debug"`

	Observability ObservabilityConfig `koanf:"observability" json:"observability" yaml:"observability"`
	Sinks         SinksConfig         `koanf:"sinks" json:"sinks" yaml:"sinks"`

	k *koanf.Koanf `json:"-" yaml:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" validate:"required"`
	Env     string `koanf:"env" json:"env" yaml:"env" validate:"oneof=development staging production"`
	Version string `koanf:"version" json:"version" yaml:"version"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// DatabaseConfig holds database connection settings. The database is only
// opened when Type, Host or ConnectionString is set.
type DatabaseConfig struct {
	Type     string `koanf:"type" json:"type" yaml:"type" validate:"omitempty,oneof=postgresql oracle"`
	Host     string `koanf:"host" json:"host" yaml:"host"`
	Port     int    `koanf:"port" json:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Database string `koanf:"database" json:"database" yaml:"database"`
	Username string `koanf:"username" json:"username" yaml:"username"`
	Password string `koanf:"password" json:"-" yaml:"password"`

	ConnectionString string `koanf:"connectionstring" json:"-" yaml:"connectionstring"`

	// SSLMode is passed through to PostgreSQL; ServiceName and SID select the
	// Oracle target when Database is empty.
	SSLMode     string `koanf:"sslmode" json:"sslmode" yaml:"sslmode"`
	ServiceName string `koanf:"servicename" json:"servicename" yaml:"servicename"`
	SID         string `koanf:"sid" json:"sid" yaml:"sid"`

	Pool  PoolConfig  `koanf:"pool" json:"pool" yaml:"pool"`
	Query QueryConfig `koanf:"query" json:"query" yaml:"query"`
}

// PoolConfig holds database/sql pool settings.
type PoolConfig struct {
	MaxConns        int           `koanf:"maxconns" json:"maxconns" yaml:"maxconns" validate:"gte=0"`
	MaxIdleConns    int           `koanf:"maxidleconns" json:"maxidleconns" yaml:"maxidleconns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"connmaxlifetime" json:"connmaxlifetime" yaml:"connmaxlifetime"`
	ConnMaxIdleTime time.Duration `koanf:"connmaxidletime" json:"connmaxidletime" yaml:"connmaxidletime"`
}

// QueryConfig holds statement tracking settings.
type QueryConfig struct {
	Slow SlowQueryConfig `koanf:"slow" json:"slow" yaml:"slow"`
	Log  QueryLogConfig  `koanf:"log" json:"log" yaml:"log"`
}

// SlowQueryConfig holds the slow statement threshold.
type SlowQueryConfig struct {
	Threshold time.Duration `koanf:"threshold" json:"threshold" yaml:"threshold" validate:"gte=0"`
}

// QueryLogConfig controls how statements are written to the log.
type QueryLogConfig struct {
	MaxLength  int  `koanf:"maxlength" json:"maxlength" yaml:"maxlength" validate:"gte=0"`
	Parameters bool `koanf:"parameters" json:"parameters" yaml:"parameters"`
}

// LazyLoadConfig drives construction of the lazy-load interceptor.
//
// A FlushInterval of zero or less disables the periodic report; the final
// report on termination is still written.
type LazyLoadConfig struct {
	Enabled           bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	FlushInterval     time.Duration `koanf:"flushinterval" json:"flushinterval" yaml:"flushinterval"`
	LogDuringLazyLoad bool          `koanf:"logduringlazyload" json:"logduringlazyload" yaml:"logduringlazyload"`
	ProxyPackage      string        `koanf:"proxypackage" json:"proxypackage" yaml:"proxypackage" validate:"required_if=Enabled true"`
	GetterPrefix      string        `koanf:"getterprefix" json:"getterprefix" yaml:"getterprefix" validate:"required_if=Enabled true"`
}

// DebugConfig controls the debug HTTP endpoints. RateLimit is in requests
// per second across all clients; zero disables limiting.
type DebugConfig struct {
	Enabled   bool    `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Address   string  `koanf:"address" json:"address" yaml:"address" validate:"required_if=Enabled true"`
	RateLimit float64 `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit" validate:"gte=0"`
}

// ObservabilityConfig controls OpenTelemetry export. An endpoint of "stdout"
// pretty-prints to standard output instead of dialing a collector.
type ObservabilityConfig struct {
	Enabled  bool              `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Protocol string            `koanf:"protocol" json:"protocol" yaml:"protocol" validate:"oneof=http grpc"`
	Insecure bool              `koanf:"insecure" json:"insecure" yaml:"insecure"`
	Headers  map[string]string `koanf:"headers" json:"-" yaml:"headers"`

	Trace   TraceConfig   `koanf:"trace" json:"trace" yaml:"trace"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// TraceConfig holds span export settings.
type TraceConfig struct {
	Enabled    bool    `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Endpoint   string  `koanf:"endpoint" json:"endpoint" yaml:"endpoint" validate:"required_if=Enabled true"`
	SampleRate float64 `koanf:"samplerate" json:"samplerate" yaml:"samplerate" validate:"gte=0,lte=1"`
}

// MetricsConfig holds metric export settings.
type MetricsConfig struct {
	Enabled  bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Endpoint string        `koanf:"endpoint" json:"endpoint" yaml:"endpoint" validate:"required_if=Enabled true"`
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval" validate:"gte=0"`
}

// SinksConfig lists where flushed lazy-load reports are published in addition
// to the log. Each sink is enabled by setting its URL, URI or address.
type SinksConfig struct {
	AMQP  AMQPSinkConfig  `koanf:"amqp" json:"amqp" yaml:"amqp"`
	Mongo MongoSinkConfig `koanf:"mongo" json:"mongo" yaml:"mongo"`
	Redis RedisSinkConfig `koanf:"redis" json:"redis" yaml:"redis"`
}

// AMQPSinkConfig publishes reports to a RabbitMQ exchange.
type AMQPSinkConfig struct {
	URL        string `koanf:"url" json:"-" yaml:"url"`
	Exchange   string `koanf:"exchange" json:"exchange" yaml:"exchange"`
	RoutingKey string `koanf:"routingkey" json:"routingkey" yaml:"routingkey" validate:"required_with=URL"`
}

// MongoSinkConfig stores reports as documents in a MongoDB collection.
type MongoSinkConfig struct {
	URI        string `koanf:"uri" json:"-" yaml:"uri"`
	Database   string `koanf:"database" json:"database" yaml:"database" validate:"required_with=URI"`
	Collection string `koanf:"collection" json:"collection" yaml:"collection" validate:"required_with=URI"`
}

// RedisSinkConfig appends reports to a Redis stream.
type RedisSinkConfig struct {
	Address  string `koanf:"address" json:"address" yaml:"address" validate:"omitempty,hostname_port"`
	Password string `koanf:"password" json:"-" yaml:"password"`
	Database int    `koanf:"database" json:"database" yaml:"database" validate:"gte=0"`
	Stream   string `koanf:"stream" json:"stream" yaml:"stream" validate:"required_with=Address"`
	// MaxLen caps the stream length; 0 keeps every entry.
	MaxLen int64 `koanf:"maxlen" json:"maxlen" yaml:"maxlen" validate:"gte=0"`
}

// Koanf returns the underlying koanf instance, or nil for hand-built configs.
func (c *Config) Koanf() *koanf.Koanf {
	return c.k
}
