package cache

import (
	"time"
)

// Entry represents a payload read from a durable store.
type Entry struct {
	// Data is the payload as it was fetched from the origin
	Data []byte

	// FetchedAt is when the payload was last successfully fetched.
	// For the DiskStore this is the file's modification time.
	FetchedAt time.Time
}

// Size returns the payload size in bytes, used as the memory eviction cost.
func (e *Entry) Size() int64 {
	return int64(len(e.Data))
}

// IsStale returns true if the entry was fetched more than ttl before now.
// An entry without a timestamp is always stale.
func (e *Entry) IsStale(now time.Time, ttl time.Duration) bool {
	if e.FetchedAt.IsZero() {
		return true
	}
	return now.Sub(e.FetchedAt) > ttl
}

// Age returns how long ago the entry was fetched.
// Returns 0 for entries stamped in the future.
func (e *Entry) Age(now time.Time) time.Duration {
	age := now.Sub(e.FetchedAt)
	if age < 0 {
		return 0
	}
	return age
}
