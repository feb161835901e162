package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/Sternrassler/image-cache/pkg/cache"
	"github.com/Sternrassler/image-cache/pkg/client"
)

// EnvPrefix prefixes environment overrides, e.g. IMGCACHE_CACHE_TTL.
const EnvPrefix = "IMGCACHE"

// Load reads the configuration file at path (TOML, YAML or JSON, by
// extension), applies IMGCACHE_* environment overrides and defaults,
// and validates the result. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absDir, err := filepath.Abs(cfg.Cache.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	cfg.Cache.Dir = absDir

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	clientDefaults := client.DefaultConfig()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("cache.dir", cache.DefaultDir())
	v.SetDefault("cache.ttl", clientDefaults.TTL.String())
	v.SetDefault("cache.memory_entry_limit", clientDefaults.MemoryEntryLimit)
	v.SetDefault("cache.memory_byte_limit", clientDefaults.MemoryByteLimit)
	v.SetDefault("cache.preheat_concurrency", clientDefaults.PreheatConcurrency)

	v.SetDefault("fetch.user_agent", "image-cache/0.1.0")
	v.SetDefault("fetch.timeout", clientDefaults.FetchTimeout.String())
	v.SetDefault("fetch.max_body_bytes", clientDefaults.MaxBodyBytes)
	v.SetDefault("fetch.max_retries", clientDefaults.MaxRetries)
	v.SetDefault("fetch.initial_backoff", clientDefaults.InitialBackoff.String())

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.compress", false)
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return parseDuration(v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("unsupported duration type: %T", v)
		}
	}
}
