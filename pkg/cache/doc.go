// Package cache provides the storage tiers of the image cache.
//
// The package contains the leaves of the tiered fetch cache:
//
// - DeriveKey: URL -> SHA-256 hex key, stable and filesystem safe
// - Memory: bounded LRU accelerator with an entry limit and a byte limit
// - DiskStore: one file per key, file mtime is the staleness clock
// - RedisStore: optional shared durable tier with the same contract
// - Prometheus metrics for observability
//
// Orchestration (memory -> durable -> coalesced network fetch) lives in
// package client.
//
// # Basic Usage
//
//	store, err := cache.NewDiskStore(cache.DefaultDir())
//	if err != nil {
//		return err
//	}
//
//	key := cache.DeriveKey("https://images.example.org/w500/poster.png")
//
//	entry, err := store.Read(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Not cached - fetch from origin
//	}
//
//	if entry.IsStale(time.Now(), 14*24*time.Hour) {
//		// Serve it anyway, refresh in the background
//	}
//
// # Memory Tier
//
//	mem := cache.NewMemory(200, 64<<20)
//	mem.Set(key, data, int64(len(data)))
//	if data, ok := mem.Get(key); ok {
//		// accelerated
//	}
//
// A memory miss never means "not cached", only "not currently accelerated".
//
// # Durability
//
// DiskStore writes through a temp file whose mtime is set before it is
// renamed over the final path, so readers never observe new bytes with an
// old timestamp. Entries are never deleted by this package; stale entries
// remain usable as a fallback until they are refreshed.
//
// # Metrics
//
//   - imgcache_cache_hits_total{layer} - Cache hits by layer (memory, disk)
//   - imgcache_cache_misses_total - Lookups that missed every tier
//   - imgcache_stale_hits_total - Durable hits older than the TTL
//   - imgcache_memory_bytes - Memory tier size in bytes
//   - imgcache_memory_entries - Memory tier entry count
//   - imgcache_cache_errors_total{operation} - Store operation errors
package cache
