package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/image-cache/pkg/cache"
	"github.com/Sternrassler/image-cache/pkg/logging"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if got := cfg.Cache.TTL.DurationValue(); got != 14*24*time.Hour {
		t.Errorf("Cache.TTL = %s, want 336h", got)
	}
	if cfg.Cache.MemoryEntryLimit != cache.DefaultMemoryEntryLimit {
		t.Errorf("Cache.MemoryEntryLimit = %d, want %d", cfg.Cache.MemoryEntryLimit, cache.DefaultMemoryEntryLimit)
	}
	if cfg.Cache.MemoryByteLimit != cache.DefaultMemoryByteLimit {
		t.Errorf("Cache.MemoryByteLimit = %d, want %d", cfg.Cache.MemoryByteLimit, cache.DefaultMemoryByteLimit)
	}
	if cfg.Fetch.MaxRetries != 0 {
		t.Errorf("Fetch.MaxRetries = %d, want 0", cfg.Fetch.MaxRetries)
	}
	if !filepath.IsAbs(cfg.Cache.Dir) {
		t.Errorf("Cache.Dir = %q, want absolute path", cfg.Cache.Dir)
	}
	if cfg.RedisOptions() != nil {
		t.Error("RedisOptions() should be nil without redis.addr")
	}
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "valid.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if got := cfg.Server.ShutdownTimeout.DurationValue(); got != 10*time.Second {
		t.Errorf("Server.ShutdownTimeout = %s, want 10s", got)
	}
	if got := cfg.Cache.TTL.DurationValue(); got != 7*24*time.Hour {
		t.Errorf("Cache.TTL = %s, want 168h", got)
	}
	if got := cfg.Fetch.Timeout.DurationValue(); got != 15*time.Second {
		t.Errorf("Fetch.Timeout = %s, want 15s (plain seconds)", got)
	}
	if got := cfg.Fetch.InitialBackoff.DurationValue(); got != 250*time.Millisecond {
		t.Errorf("Fetch.InitialBackoff = %s, want 250ms", got)
	}
	if cfg.Cache.PreheatConcurrency != 8 {
		t.Errorf("Cache.PreheatConcurrency = %d, want 8", cfg.Cache.PreheatConcurrency)
	}
	if cfg.Fetch.UserAgent != "gallery/2.0" {
		t.Errorf("Fetch.UserAgent = %q, want %q", cfg.Fetch.UserAgent, "gallery/2.0")
	}
	if filepath.Base(cfg.Cache.Dir) != "testdata-cache" || !filepath.IsAbs(cfg.Cache.Dir) {
		t.Errorf("Cache.Dir = %q, want absolute path ending in testdata-cache", cfg.Cache.Dir)
	}
}

func TestLoadTOMLWithRedis(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "redis.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	opts := cfg.RedisOptions()
	if opts == nil {
		t.Fatal("RedisOptions() = nil, want options")
	}
	if opts.Addr != "localhost:6379" || opts.DB != 2 {
		t.Errorf("RedisOptions() = %+v, want localhost:6379 db 2", opts)
	}

	logCfg := cfg.LoggingConfig()
	if logCfg.Level != logging.LevelWarn {
		t.Errorf("LoggingConfig().Level = %q, want warn", logCfg.Level)
	}
	if logCfg.File != "/var/log/imgcache/proxy.log" || logCfg.MaxSizeMB != 50 || logCfg.MaxBackups != 5 || !logCfg.Compress {
		t.Errorf("LoggingConfig() = %+v, want file rotation settings from file", logCfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("IMGCACHE_SERVER_PORT", "9191")
	t.Setenv("IMGCACHE_CACHE_TTL", "3d")
	t.Setenv("IMGCACHE_FETCH_MAX_RETRIES", "1")
	t.Setenv("IMGCACHE_REDIS_ADDR", "redis:6379")

	cfg, err := Load(testConfigPath(t, "valid.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191", cfg.Server.Port)
	}
	if got := cfg.Cache.TTL.DurationValue(); got != 72*time.Hour {
		t.Errorf("Cache.TTL = %s, want 72h", got)
	}
	if cfg.Fetch.MaxRetries != 1 {
		t.Errorf("Fetch.MaxRetries = %d, want 1", cfg.Fetch.MaxRetries)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis.Addr = %q, want redis:6379", cfg.Redis.Addr)
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	path := writeTempConfig(t, "config.toml", `
[cache]
ttl = "boom"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("invalid duration should fail")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing config file should fail")
	}
}

func TestLoadInvalidLogLevel(t *testing.T) {
	_, err := Load(testConfigPath(t, "invalid_level.json"))

	var fieldErr FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("Load() error = %v, want FieldError", err)
	}
	if fieldErr.Field != "log.level" {
		t.Errorf("FieldError.Field = %q, want log.level", fieldErr.Field)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"no shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "server.shutdown_timeout"},
		{"no cache dir", func(c *Config) { c.Cache.Dir = " " }, "cache.dir"},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }, "cache.ttl"},
		{"zero entry limit", func(c *Config) { c.Cache.MemoryEntryLimit = 0 }, "cache.memory_entry_limit"},
		{"zero byte limit", func(c *Config) { c.Cache.MemoryByteLimit = 0 }, "cache.memory_byte_limit"},
		{"zero preheat concurrency", func(c *Config) { c.Cache.PreheatConcurrency = 0 }, "cache.preheat_concurrency"},
		{"zero fetch timeout", func(c *Config) { c.Fetch.Timeout = 0 }, "fetch.timeout"},
		{"negative body limit", func(c *Config) { c.Fetch.MaxBodyBytes = -1 }, "fetch.max_body_bytes"},
		{"negative retries", func(c *Config) { c.Fetch.MaxRetries = -1 }, "fetch.max_retries"},
		{"retries without backoff", func(c *Config) {
			c.Fetch.MaxRetries = 2
			c.Fetch.InitialBackoff = 0
		}, "fetch.initial_backoff"},
		{"negative redis db", func(c *Config) { c.Redis.DB = -1 }, "redis.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			var fieldErr FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("Validate() error = %v, want FieldError", err)
			}
			if fieldErr.Field != tt.field {
				t.Errorf("FieldError.Field = %q, want %q", fieldErr.Field, tt.field)
			}
		})
	}

	t.Run("redis without cache dir", func(t *testing.T) {
		cfg := valid()
		cfg.Cache.Dir = ""
		cfg.Redis.Addr = "localhost:6379"
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"30s", 30 * time.Second, false},
		{"1h30m", 90 * time.Minute, false},
		{"45", 45 * time.Second, false},
		{"0.5", 500 * time.Millisecond, false},
		{"14d", 14 * 24 * time.Hour, false},
		{" 2d ", 48 * time.Hour, false},
		{"xd", 0, true},
		{"boom", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDuration(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got.DurationValue() != tt.want {
				t.Errorf("parseDuration(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("2d")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if d.DurationValue() != 48*time.Hour {
		t.Errorf("UnmarshalText(2d) = %s, want 48h", d)
	}
}

func TestClientConfig(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "valid.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	store, err := cache.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}

	cc := cfg.ClientConfig(store, zerolog.Nop())
	if cc.TTL != 7*24*time.Hour {
		t.Errorf("TTL = %s, want 168h", cc.TTL)
	}
	if cc.MemoryEntryLimit != 50 || cc.MemoryByteLimit != 1048576 {
		t.Errorf("memory limits = %d/%d, want 50/1048576", cc.MemoryEntryLimit, cc.MemoryByteLimit)
	}
	if cc.Store != store {
		t.Error("Store should be passed through")
	}
	if cc.MaxRetries != 2 || cc.InitialBackoff != 250*time.Millisecond {
		t.Errorf("retry = %d/%s, want 2/250ms", cc.MaxRetries, cc.InitialBackoff)
	}
	if cc.UserAgent != "gallery/2.0" || cc.FetchTimeout != 15*time.Second || cc.MaxBodyBytes != 2097152 {
		t.Errorf("fetch settings = %q/%s/%d", cc.UserAgent, cc.FetchTimeout, cc.MaxBodyBytes)
	}
	if cc.PreheatConcurrency != 8 {
		t.Errorf("PreheatConcurrency = %d, want 8", cc.PreheatConcurrency)
	}
}
