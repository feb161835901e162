package config

import (
	"errors"
	"strings"
)

var supportedLogLevels = map[string]struct{}{
	"debug":   {},
	"info":    {},
	"warn":    {},
	"warning": {},
	"error":   {},
}

// Validate rejects configurations the proxy cannot start with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return newFieldError("server.port", "must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout.DurationValue() <= 0 {
		return newFieldError("server.shutdown_timeout", "must be > 0")
	}

	if c.Redis.Addr == "" && strings.TrimSpace(c.Cache.Dir) == "" {
		return newFieldError("cache.dir", "must not be empty without redis.addr")
	}
	if c.Cache.TTL.DurationValue() <= 0 {
		return newFieldError("cache.ttl", "must be > 0")
	}
	if c.Cache.MemoryEntryLimit <= 0 {
		return newFieldError("cache.memory_entry_limit", "must be > 0")
	}
	if c.Cache.MemoryByteLimit <= 0 {
		return newFieldError("cache.memory_byte_limit", "must be > 0")
	}
	if c.Cache.PreheatConcurrency <= 0 {
		return newFieldError("cache.preheat_concurrency", "must be > 0")
	}

	if c.Fetch.Timeout.DurationValue() <= 0 {
		return newFieldError("fetch.timeout", "must be > 0")
	}
	if c.Fetch.MaxBodyBytes < 0 {
		return newFieldError("fetch.max_body_bytes", "must not be negative")
	}
	if c.Fetch.MaxRetries < 0 {
		return newFieldError("fetch.max_retries", "must not be negative")
	}
	if c.Fetch.MaxRetries > 0 && c.Fetch.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("fetch.initial_backoff", "must be > 0 when retries are enabled")
	}

	if c.Redis.DB < 0 {
		return newFieldError("redis.db", "must not be negative")
	}

	if _, ok := supportedLogLevels[strings.ToLower(c.Log.Level)]; !ok {
		return newFieldError("log.level", "must be one of debug|info|warn|error")
	}

	return nil
}
