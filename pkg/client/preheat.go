package client

import (
	"context"
	"sync/atomic"

	"github.com/Sternrassler/image-cache/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

var preheatItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "imgcache_preheat_items_total",
	Help: "Total preheat items by result",
}, []string{"result"})

// PreheatStats summarizes what a Preheat call did with each URL.
type PreheatStats struct {
	Warm     int // already in memory or fresh in the durable store
	InFlight int // a fetch for the key was already running
	Fetched  int // fetched and written through
	Failed   int // fetch started by this call failed
}

// Preheat warms the cache for urls. Each URL is skipped when it is
// already warm or being fetched, otherwise it is fetched exactly like a
// full miss in Get. At most PreheatConcurrency fetches started by this
// call run at once. Preheat returns once those fetches have finished or
// ctx is done; fetches already started keep running after cancellation.
func (c *Client) Preheat(ctx context.Context, urls []string) PreheatStats {
	var warm, inFlight, fetched, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(c.config.PreheatConcurrency)

	for _, rawURL := range urls {
		rawURL := rawURL
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			switch c.preheatOne(ctx, rawURL) {
			case "warm":
				warm.Add(1)
			case "inflight":
				inFlight.Add(1)
			case "fetched":
				fetched.Add(1)
			case "failed":
				failed.Add(1)
			}
			return nil
		})
	}

	// Workers never return errors
	_ = g.Wait()

	stats := PreheatStats{
		Warm:     int(warm.Load()),
		InFlight: int(inFlight.Load()),
		Fetched:  int(fetched.Load()),
		Failed:   int(failed.Load()),
	}

	c.logger.Debug().
		Int("urls", len(urls)).
		Int("warm", stats.Warm).
		Int("in_flight", stats.InFlight).
		Int("fetched", stats.Fetched).
		Int("failed", stats.Failed).
		Msg("Preheat finished")

	return stats
}

// preheatOne handles a single URL and returns its result label,
// or "" when ctx ended before the result was known.
func (c *Client) preheatOne(ctx context.Context, rawURL string) string {
	key := cache.DeriveKey(rawURL)

	if c.memory.Contains(key) {
		return c.preheatResult("warm")
	}

	stale := c.store.IsStale(ctx, key, c.config.TTL)
	if ctx.Err() != nil {
		return ""
	}
	if !stale {
		return c.preheatResult("warm")
	}

	c.mu.Lock()
	if c.memory.Contains(key) {
		c.mu.Unlock()
		return c.preheatResult("warm")
	}
	if _, running := c.inflight.lookup(key); running {
		c.mu.Unlock()
		return c.preheatResult("inflight")
	}
	pending := c.startFetchLocked(ctx, key, rawURL)
	c.mu.Unlock()

	select {
	case <-pending.done:
	case <-ctx.Done():
		return ""
	}

	if pending.data == nil {
		return c.preheatResult("failed")
	}
	return c.preheatResult("fetched")
}

func (c *Client) preheatResult(result string) string {
	preheatItemsTotal.WithLabelValues(result).Inc()
	return result
}
