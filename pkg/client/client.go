// Package client provides the tiered image cache: memory over a durable
// store over the network origin, with single-flight fetches per key.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Sternrassler/image-cache/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for coordinator operations.
var (
	inflightFetches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "imgcache_inflight_fetches",
		Help: "Number of origin fetches currently in flight",
	})

	coalescedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imgcache_coalesced_requests_total",
		Help: "Total lookups that joined an already running fetch",
	})

	backgroundRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imgcache_background_refreshes_total",
		Help: "Total background refreshes started for stale entries",
	})
)

const (
	// DefaultTTL is how long a durable entry stays fresh.
	DefaultTTL = 14 * 24 * time.Hour

	// DefaultFetchTimeout bounds a single detached fetch including retries.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultPreheatConcurrency is the number of parallel preheat fetches.
	DefaultPreheatConcurrency = 4

	// storeWriteTimeout bounds the durable write after a successful fetch.
	storeWriteTimeout = 10 * time.Second
)

// Config holds the client configuration.
type Config struct {
	// Freshness
	TTL time.Duration // Age after which a durable entry is refreshed in the background

	// Memory tier
	MemoryEntryLimit int   // Max number of entries held in memory
	MemoryByteLimit  int64 // Max total bytes held in memory

	// Durable tier
	CacheDir string      // Directory for the disk store, ignored when Store is set
	Store    cache.Store // Optional durable store override (e.g. cache.RedisStore)

	// Origin
	HTTPClient   *http.Client
	UserAgent    string
	FetchTimeout time.Duration
	MaxBodyBytes int64
	Fetcher      Fetcher // Optional fetcher override, HTTPFetcher otherwise

	// Retry (MaxRetries 0 means a single attempt)
	MaxRetries     int
	InitialBackoff time.Duration

	// Preheat
	PreheatConcurrency int

	Logger zerolog.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		TTL:                DefaultTTL,
		MemoryEntryLimit:   cache.DefaultMemoryEntryLimit,
		MemoryByteLimit:    cache.DefaultMemoryByteLimit,
		CacheDir:           cache.DefaultDir(),
		FetchTimeout:       DefaultFetchTimeout,
		MaxBodyBytes:       DefaultMaxBodyBytes,
		MaxRetries:         0,
		InitialBackoff:     1 * time.Second,
		PreheatConcurrency: DefaultPreheatConcurrency,
		Logger:             log.Logger,
	}
}

// Client is the tiered image cache.
//
// mu serializes memory admission with the inflight registry so that
// "check memory, check registry, register" is a single step per key.
// Disk and network I/O never run under mu.
type Client struct {
	mu       sync.Mutex
	memory   *cache.Memory
	store    cache.Store
	fetcher  Fetcher
	inflight *inflightRegistry

	wg     sync.WaitGroup
	config Config
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a new image cache client.
func New(cfg Config) (*Client, error) {
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("ttl must be > 0 (got %s)", cfg.TTL)
	}

	if cfg.MemoryEntryLimit < 1 {
		return nil, fmt.Errorf("memory_entry_limit must be >= 1 (got %d)", cfg.MemoryEntryLimit)
	}

	if cfg.MemoryByteLimit < 1 {
		return nil, fmt.Errorf("memory_byte_limit must be >= 1 (got %d)", cfg.MemoryByteLimit)
	}

	if cfg.FetchTimeout <= 0 {
		return nil, fmt.Errorf("fetch_timeout must be > 0 (got %s)", cfg.FetchTimeout)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.PreheatConcurrency < 1 {
		return nil, fmt.Errorf("preheat_concurrency must be >= 1 (got %d)", cfg.PreheatConcurrency)
	}

	store := cfg.Store
	if store == nil {
		diskStore, err := cache.NewDiskStore(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk store: %w", err)
		}
		store = diskStore
	}

	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(cfg)
	}

	return &Client{
		memory:   cache.NewMemory(cfg.MemoryEntryLimit, cfg.MemoryByteLimit),
		store:    store,
		fetcher:  fetcher,
		inflight: newInflightRegistry(),
		config:   cfg,
		logger:   cfg.Logger.With().Str("component", "image-cache").Logger(),
		now:      time.Now,
	}, nil
}

// Get returns the image bytes for rawURL, consulting memory, then the
// durable store, then the origin. A stale durable entry is returned at
// once and refreshed in the background. ok is false when no tier could
// produce bytes or ctx ended first; failures are logged, never returned.
// The returned slice is shared with the memory tier and must not be modified.
func (c *Client) Get(ctx context.Context, rawURL string) (data []byte, ok bool) {
	key := cache.DeriveKey(rawURL)

	// Step 1: Memory
	if data, ok := c.memory.Get(key); ok {
		cache.CacheHits.WithLabelValues("memory").Inc()
		c.logger.Debug().Str("key", key.String()).Str("layer", "memory").Msg("Cache hit")
		return data, true
	}

	// Step 2: Durable store
	entry, err := c.store.Read(ctx, key)
	if ctx.Err() != nil {
		// An abandoned caller must not turn a failed read into an origin fetch
		c.logger.Debug().Err(ctx.Err()).Str("key", key.String()).Msg("Caller stopped before lookup finished")
		return nil, false
	}
	switch {
	case err == nil:
		return c.serveStored(ctx, key, rawURL, entry), true
	case !errors.Is(err, cache.ErrCacheMiss):
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Durable read failed, treating as miss")
	}

	// Step 3: Origin, joining a running fetch when there is one
	c.mu.Lock()
	if data, ok := c.memory.Get(key); ok {
		c.mu.Unlock()
		cache.CacheHits.WithLabelValues("memory").Inc()
		return data, true
	}
	pending, joined := c.inflight.lookup(key)
	if !joined {
		pending = c.startFetchLocked(ctx, key, rawURL)
	}
	c.mu.Unlock()

	cache.CacheMisses.Inc()
	if joined {
		coalescedRequests.Inc()
		c.logger.Debug().Str("key", key.String()).Msg("Joined in-flight fetch")
	}

	select {
	case <-pending.done:
		return pending.data, pending.data != nil
	case <-ctx.Done():
		c.logger.Debug().Err(ctx.Err()).Str("key", key.String()).Msg("Caller stopped waiting for fetch")
		return nil, false
	}
}

// serveStored promotes a durable hit into memory and schedules a
// refresh when it is stale.
func (c *Client) serveStored(ctx context.Context, key cache.CacheKey, rawURL string, entry *cache.Entry) []byte {
	stale := entry.IsStale(c.now(), c.config.TTL)

	c.mu.Lock()
	// A completed fetch may already have put newer bytes in memory
	if !c.memory.Contains(key) {
		c.memory.Set(key, entry.Data, entry.Size())
	}
	refreshing := false
	if stale {
		if _, running := c.inflight.lookup(key); !running {
			c.startFetchLocked(ctx, key, rawURL)
			refreshing = true
		}
	}
	c.mu.Unlock()

	if stale {
		cache.StaleHits.Inc()
		if refreshing {
			backgroundRefreshes.Inc()
		}
	} else {
		cache.CacheHits.WithLabelValues("disk").Inc()
	}

	c.logger.Debug().
		Str("key", key.String()).
		Str("layer", "disk").
		Bool("stale", stale).
		Dur("age", entry.Age(c.now())).
		Msg("Cache hit")

	return entry.Data
}

// startFetchLocked registers a pending fetch for key and runs it in its
// own goroutine, detached from ctx cancellation. c.mu must be held.
func (c *Client) startFetchLocked(ctx context.Context, key cache.CacheKey, rawURL string) *pendingFetch {
	pending := c.inflight.register(key)
	inflightFetches.Inc()

	c.wg.Add(1)
	go c.runFetch(context.WithoutCancel(ctx), key, rawURL, pending)

	return pending
}

func (c *Client) runFetch(ctx context.Context, key cache.CacheKey, rawURL string, pending *pendingFetch) {
	defer c.wg.Done()
	defer inflightFetches.Dec()

	ctx, cancel := context.WithTimeout(ctx, c.config.FetchTimeout)
	defer cancel()

	logger := c.logger.With().Str("key", key.String()).Str("url", rawURL).Logger()
	startTime := time.Now()

	data, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		c.mu.Lock()
		c.inflight.remove(key, pending)
		c.mu.Unlock()
		close(pending.done)

		event := logger.Info()
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			event = event.Str("error_class", string(fetchErr.ErrorClass))
			if fetchErr.StatusCode != 0 {
				event = event.Int("status_code", fetchErr.StatusCode)
			}
		}
		event.Err(err).Dur("duration", time.Since(startTime)).Msg("Fetch failed")
		return
	}

	// Durable write first; a failure still serves the bytes from memory.
	// The fetch deadline does not apply to the write.
	writeCtx, writeCancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
	defer writeCancel()
	if err := c.store.Write(writeCtx, key, data); err != nil {
		logger.Warn().Err(err).Msg("Durable write failed")
	}

	c.mu.Lock()
	c.memory.Set(key, data, int64(len(data)))
	c.inflight.remove(key, pending)
	c.mu.Unlock()

	pending.data = data
	close(pending.done)

	logger.Debug().
		Int("bytes", len(data)).
		Dur("duration", time.Since(startTime)).
		Msg("Fetched from origin")
}

// Wait blocks until every fetch and refresh started so far has finished.
func (c *Client) Wait() {
	c.wg.Wait()
}

// InFlight returns the number of fetches currently registered.
func (c *Client) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight.len()
}

// Store returns the durable store in use.
func (c *Client) Store() cache.Store {
	return c.store
}

// Close waits for detached work to finish.
func (c *Client) Close() error {
	c.Wait()
	return nil
}
