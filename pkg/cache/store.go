package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the store
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the durable tier below the memory accelerator.
//
// Implementations must make a Write visible as a unit: a reader either sees
// the previous bytes with the previous timestamp or the new bytes with the
// new timestamp. Stores never expire entries on their own; staleness is
// decided lazily by the caller on each access.
type Store interface {
	// Read returns the stored entry. Returns ErrCacheMiss if the key is absent.
	Read(ctx context.Context, key CacheKey) (*Entry, error)

	// Write stores data under key and stamps it with the current time.
	Write(ctx context.Context, key CacheKey, data []byte) error

	// IsStale reports whether the entry's timestamp is missing or older than ttl.
	IsStale(ctx context.Context, key CacheKey, ttl time.Duration) bool
}

// Compile-time interface assertions.
var (
	_ Store = (*DiskStore)(nil)
	_ Store = (*RedisStore)(nil)
)
