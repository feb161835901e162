package client

import (
	"github.com/Sternrassler/image-cache/pkg/cache"
)

// pendingFetch is one in-progress origin fetch shared by every caller
// that asked for the same key while it was running.
type pendingFetch struct {
	done chan struct{}

	// data is written once before done is closed; nil means the fetch failed.
	data []byte
}

func newPendingFetch() *pendingFetch {
	return &pendingFetch{done: make(chan struct{})}
}

// inflightRegistry maps keys to their pending fetch.
// It is not safe for concurrent use; Client.mu guards it.
type inflightRegistry struct {
	pending map[cache.CacheKey]*pendingFetch
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{pending: make(map[cache.CacheKey]*pendingFetch)}
}

func (r *inflightRegistry) lookup(key cache.CacheKey) (*pendingFetch, bool) {
	p, ok := r.pending[key]
	return p, ok
}

// register inserts a new pending fetch. The caller must have checked lookup first.
func (r *inflightRegistry) register(key cache.CacheKey) *pendingFetch {
	p := newPendingFetch()
	r.pending[key] = p
	return p
}

// remove deletes key only if it still maps to p.
func (r *inflightRegistry) remove(key cache.CacheKey, p *pendingFetch) {
	if r.pending[key] == p {
		delete(r.pending, key)
	}
}

func (r *inflightRegistry) len() int {
	return len(r.pending)
}
