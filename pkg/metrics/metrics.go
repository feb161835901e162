// Package metrics provides the centralized Prometheus registry for the image cache.
// All metrics are defined in their respective packages (cache, client)
// to maintain modularity and avoid circular dependencies.
//
// This package provides the exposition handler and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the image cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// Names lists every metric family exported by the image cache.
var Names = []string{
	// pkg/cache
	"imgcache_cache_hits_total",
	"imgcache_cache_misses_total",
	"imgcache_stale_hits_total",
	"imgcache_cache_errors_total",
	"imgcache_memory_bytes",
	"imgcache_memory_entries",

	// pkg/client
	"imgcache_fetches_total",
	"imgcache_fetch_duration_seconds",
	"imgcache_inflight_fetches",
	"imgcache_coalesced_requests_total",
	"imgcache_background_refreshes_total",
	"imgcache_preheat_items_total",
	"imgcache_fetch_retries_total",
	"imgcache_fetch_retry_backoff_seconds",
}

// Handler returns the HTTP handler serving Gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - imgcache_cache_hits_total{layer="memory|disk"} (Counter): Fresh hits by tier
//   - imgcache_cache_misses_total (Counter): Lookups that reached the origin
//   - imgcache_stale_hits_total (Counter): Durable hits served past their TTL
//   - imgcache_cache_errors_total{operation} (Counter): Store errors (disk_read, disk_write, redis_read, redis_write)
//   - imgcache_memory_bytes (Gauge): Bytes held by the memory tier
//   - imgcache_memory_entries (Gauge): Entries held by the memory tier
//
// Fetch Metrics (pkg/client):
//   - imgcache_fetches_total{outcome} (Counter): Origin fetches by outcome (success or error class)
//   - imgcache_fetch_duration_seconds (Histogram): Origin fetch duration including retries
//   - imgcache_inflight_fetches (Gauge): Fetches currently registered
//   - imgcache_coalesced_requests_total (Counter): Lookups that joined a running fetch
//   - imgcache_background_refreshes_total (Counter): Refreshes started for stale entries
//   - imgcache_preheat_items_total{result} (Counter): Preheat items (warm, inflight, fetched, failed)
//
// Retry Metrics (pkg/client, only with MaxRetries > 0):
//   - imgcache_fetch_retries_total{error_class} (Counter): Retry attempts by error class
//   - imgcache_fetch_retry_backoff_seconds (Histogram): Backoff before each retry
//
// Example Prometheus Queries:
//
//   # Memory Hit Rate
//   sum(rate(imgcache_cache_hits_total{layer="memory"}[5m])) /
//   (sum(rate(imgcache_cache_hits_total[5m])) + sum(rate(imgcache_stale_hits_total[5m])) + sum(rate(imgcache_cache_misses_total[5m])))
//
//   # Coalescing Ratio
//   rate(imgcache_coalesced_requests_total[5m]) / rate(imgcache_cache_misses_total[5m])
//
//   # Origin Rejection Rate
//   sum(rate(imgcache_fetches_total{outcome!="success"}[5m])) / sum(rate(imgcache_fetches_total[5m]))
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(imgcache_fetch_duration_seconds_bucket[5m]))
