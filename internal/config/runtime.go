package config

import (
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/image-cache/pkg/cache"
	"github.com/Sternrassler/image-cache/pkg/client"
	"github.com/Sternrassler/image-cache/pkg/logging"
)

// LoggingConfig converts the log section into a logging.Config.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	cfg.File = c.Log.File
	cfg.MaxSizeMB = c.Log.MaxSizeMB
	cfg.MaxBackups = c.Log.MaxBackups
	cfg.Compress = c.Log.Compress
	return cfg
}

// RedisOptions returns connection options, or nil when Redis is not configured.
func (c *Config) RedisOptions() *redis.Options {
	if c.Redis.Addr == "" {
		return nil
	}
	return &redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}

// ClientConfig converts the cache and fetch sections into a client.Config.
// store overrides the disk store when non-nil.
func (c *Config) ClientConfig(store cache.Store, logger zerolog.Logger) client.Config {
	cfg := client.DefaultConfig()
	cfg.TTL = c.Cache.TTL.DurationValue()
	cfg.MemoryEntryLimit = c.Cache.MemoryEntryLimit
	cfg.MemoryByteLimit = c.Cache.MemoryByteLimit
	cfg.CacheDir = c.Cache.Dir
	cfg.Store = store
	cfg.PreheatConcurrency = c.Cache.PreheatConcurrency
	cfg.UserAgent = c.Fetch.UserAgent
	cfg.FetchTimeout = c.Fetch.Timeout.DurationValue()
	cfg.MaxBodyBytes = c.Fetch.MaxBodyBytes
	cfg.MaxRetries = c.Fetch.MaxRetries
	if backoff := c.Fetch.InitialBackoff.DurationValue(); backoff > 0 {
		cfg.InitialBackoff = backoff
	}
	cfg.Logger = logger
	return cfg
}
