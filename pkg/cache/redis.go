package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// RedisKeyPrefix namespaces cache entries in Redis
	RedisKeyPrefix = "imgcache:"

	redisFieldData      = "data"
	redisFieldFetchedAt = "fetched_at"
)

// RedisStore is a durable tier backed by Redis, for deployments where several
// processes share one cache. Each key is a hash with the payload and the
// fetch timestamp, written by a single HSET. No Redis expiry is set.
type RedisStore struct {
	redis *redis.Client
	now   func() time.Time
}

// NewRedisStore creates a new store with Redis backend.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
		now:   time.Now,
	}
}

// Read retrieves the payload and its fetch timestamp.
// Returns ErrCacheMiss if the key doesn't exist.
func (s *RedisStore) Read(ctx context.Context, key CacheKey) (*Entry, error) {
	fields, err := s.redis.HGetAll(ctx, redisKey(key)).Result()
	if err != nil {
		CacheErrors.WithLabelValues("redis_read").Inc()
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrCacheMiss
	}

	data, ok := fields[redisFieldData]
	if !ok {
		CacheErrors.WithLabelValues("redis_read").Inc()
		return nil, fmt.Errorf("%w: missing %s field", ErrInvalidEntry, redisFieldData)
	}

	entry := &Entry{Data: []byte(data)}
	if raw, ok := fields[redisFieldFetchedAt]; ok {
		nanos, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			CacheErrors.WithLabelValues("redis_read").Inc()
			return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
		entry.FetchedAt = time.Unix(0, nanos)
	}

	return entry, nil
}

// Write stores the payload and the current time in one command.
func (s *RedisStore) Write(ctx context.Context, key CacheKey, data []byte) error {
	now := s.now()
	err := s.redis.HSet(ctx, redisKey(key),
		redisFieldData, data,
		redisFieldFetchedAt, now.UnixNano(),
	).Err()
	if err != nil {
		CacheErrors.WithLabelValues("redis_write").Inc()
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// IsStale reports true when the entry is missing, has no timestamp, or is older than ttl.
func (s *RedisStore) IsStale(ctx context.Context, key CacheKey, ttl time.Duration) bool {
	nanos, err := s.redis.HGet(ctx, redisKey(key), redisFieldFetchedAt).Int64()
	if err != nil {
		return true
	}
	entry := Entry{FetchedAt: time.Unix(0, nanos)}
	return entry.IsStale(s.now(), ttl)
}

// Ping checks connectivity to the backing Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func redisKey(key CacheKey) string {
	return RedisKeyPrefix + key.String()
}
