// Package config loads the imgcache-proxy configuration from a file and
// IMGCACHE_* environment variables.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration accepts Go duration strings ("30s"), plain seconds ("30")
// and whole days ("14d").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DurationValue returns the underlying time.Duration.
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func parseDuration(value string) (Duration, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		return Duration(parsed), nil
	}

	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration value: %s", raw)
		}
		return Duration(time.Duration(n * float64(24*time.Hour))), nil
	}

	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		return Duration(time.Duration(seconds * float64(time.Second))), nil
	}

	return 0, fmt.Errorf("invalid duration value: %s", raw)
}

// Config is the complete proxy configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Fetch  FetchConfig  `mapstructure:"fetch"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	ShutdownTimeout Duration `mapstructure:"shutdown_timeout"`
}

// CacheConfig sizes the memory tier and locates the durable tier.
type CacheConfig struct {
	Dir                string   `mapstructure:"dir"`
	TTL                Duration `mapstructure:"ttl"`
	MemoryEntryLimit   int      `mapstructure:"memory_entry_limit"`
	MemoryByteLimit    int64    `mapstructure:"memory_byte_limit"`
	PreheatConcurrency int      `mapstructure:"preheat_concurrency"`
}

// FetchConfig controls requests to image origins.
type FetchConfig struct {
	UserAgent      string   `mapstructure:"user_agent"`
	Timeout        Duration `mapstructure:"timeout"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`
	MaxRetries     int      `mapstructure:"max_retries"`
	InitialBackoff Duration `mapstructure:"initial_backoff"`
}

// RedisConfig selects Redis as the durable tier when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Pretty     bool   `mapstructure:"pretty"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}
