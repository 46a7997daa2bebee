package config

import "time"

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config holds server configuration values.
type Config struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat          string        `mapstructure:"log_format" yaml:"log_format"`
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	OutboxSize         int           `mapstructure:"outbox_size" yaml:"outbox_size"`
	FanoutConcurrency  int           `mapstructure:"fanout_concurrency" yaml:"fanout_concurrency"`
	Store              StoreConfig   `mapstructure:"store" yaml:"store"`
}

// StoreConfig selects and configures the persistent store.
type StoreConfig struct {
	Driver        string `mapstructure:"driver" yaml:"driver"`
	SQLitePath    string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix" yaml:"redis_prefix"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		MaxMessageBytes:    1 << 20,
		RateLimitPerMinute: 600,
		OutboxSize:         64,
		FanoutConcurrency:  1,
		Store: StoreConfig{
			Driver:      DriverSQLite,
			SQLitePath:  "wirechat.db",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "wirechat:",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.RateLimitPerMinute != 0 {
		c.RateLimitPerMinute = other.RateLimitPerMinute
	}
	if other.OutboxSize != 0 {
		c.OutboxSize = other.OutboxSize
	}
	if other.FanoutConcurrency != 0 {
		c.FanoutConcurrency = other.FanoutConcurrency
	}
	c.Store.updateFrom(other.Store)
}

func (s *StoreConfig) updateFrom(other StoreConfig) {
	if other.Driver != "" {
		s.Driver = other.Driver
	}
	if other.SQLitePath != "" {
		s.SQLitePath = other.SQLitePath
	}
	if other.RedisAddr != "" {
		s.RedisAddr = other.RedisAddr
	}
	if other.RedisPassword != "" {
		s.RedisPassword = other.RedisPassword
	}
	if other.RedisDB != 0 {
		s.RedisDB = other.RedisDB
	}
	if other.RedisPrefix != "" {
		s.RedisPrefix = other.RedisPrefix
	}
}
