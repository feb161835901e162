package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgcache_cache_hits_total",
			Help: "Total number of image cache hits",
		},
		[]string{"layer"}, // "memory", "disk"
	)

	// CacheMisses tracks lookups that found nothing in any tier
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imgcache_cache_misses_total",
			Help: "Total number of image cache misses",
		},
	)

	// StaleHits tracks durable hits served while older than the TTL
	StaleHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imgcache_stale_hits_total",
			Help: "Total number of stale durable hits served",
		},
	)

	// MemoryBytes tracks the total cost held by the memory tier
	MemoryBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgcache_memory_bytes",
			Help: "Current size of the memory tier in bytes",
		},
	)

	// MemoryEntries tracks the number of entries held by the memory tier
	MemoryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgcache_memory_entries",
			Help: "Current number of entries in the memory tier",
		},
	)

	// CacheErrors tracks store operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgcache_cache_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"operation"}, // "disk_read", "disk_write", "redis_read", "redis_write"
	)
)
