package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultMemoryEntryLimit is the default maximum number of entries held in memory
	DefaultMemoryEntryLimit = 200

	// DefaultMemoryByteLimit is the default maximum total cost (bytes) held in memory
	DefaultMemoryByteLimit int64 = 64 * 1024 * 1024
)

// Memory is a bounded LRU accelerator in front of a Store. It enforces two
// bounds at once: an entry count and a total cost. Exact eviction order
// beyond "least recently used goes first" is not guaranteed.
//
// A miss in Memory only means the key is not currently accelerated.
// Returned slices are shared and must not be modified.
type Memory struct {
	mu        sync.Mutex
	lru       *lru.Cache[CacheKey, memoryItem]
	byteLimit int64
	cost      int64
}

type memoryItem struct {
	data []byte
	cost int64
}

// NewMemory creates a memory tier. Non-positive limits fall back to the defaults.
func NewMemory(entryLimit int, byteLimit int64) *Memory {
	if entryLimit <= 0 {
		entryLimit = DefaultMemoryEntryLimit
	}
	if byteLimit <= 0 {
		byteLimit = DefaultMemoryByteLimit
	}

	m := &Memory{byteLimit: byteLimit}
	l, err := lru.NewWithEvict[CacheKey, memoryItem](entryLimit, m.onEvict)
	if err != nil {
		panic("memory tier: " + err.Error())
	}
	m.lru = l
	return m
}

// Get returns the payload for key and marks it as recently used.
func (m *Memory) Get(key CacheKey) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.lru.Get(key)
	if !ok {
		return nil, false
	}
	return item.data, true
}

// Contains reports whether key is held without touching its recency.
func (m *Memory) Contains(key CacheKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Contains(key)
}

// Set stores data under key with the given cost, evicting least recently
// used entries until both bounds hold. A payload whose cost alone exceeds
// the byte limit is not admitted.
func (m *Memory) Set(key CacheKey, data []byte, cost int64) {
	if cost < 0 {
		cost = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cost > m.byteLimit {
		m.lru.Remove(key)
		m.updateGauges()
		return
	}

	// Replacing a key does not fire the eviction callback.
	if old, ok := m.lru.Peek(key); ok {
		m.cost -= old.cost
	}
	m.lru.Add(key, memoryItem{data: data, cost: cost})
	m.cost += cost

	for m.cost > m.byteLimit {
		if _, _, ok := m.lru.RemoveOldest(); !ok {
			break
		}
	}
	m.updateGauges()
}

// Len returns the number of entries held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Cost returns the total cost of the entries held.
func (m *Memory) Cost() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cost
}

// onEvict runs synchronously inside Add/Remove/RemoveOldest, with m.mu held.
func (m *Memory) onEvict(_ CacheKey, item memoryItem) {
	m.cost -= item.cost
}

func (m *Memory) updateGauges() {
	MemoryBytes.Set(float64(m.cost))
	MemoryEntries.Set(float64(m.lru.Len()))
}
