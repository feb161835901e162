package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// FileExtension is appended to a CacheKey to form the on-disk filename.
const FileExtension = ".img"

// CacheKey identifies a cached payload. It is derived from the request URL,
// not from the payload, so it is known before anything has been fetched.
type CacheKey string

// DeriveKey generates a deterministic cache key for a URL.
// Format: lowercase hex SHA-256 of the URL string as given (no normalization).
//
// Example:
//
//	DeriveKey("https://x/a.png") // 64 hex characters, safe as a filename
func DeriveKey(rawURL string) CacheKey {
	sum := sha256.Sum256([]byte(rawURL))
	return CacheKey(hex.EncodeToString(sum[:]))
}

// String returns the key as a plain string.
func (k CacheKey) String() string {
	return string(k)
}

// Filename returns the name of the file backing this key in a DiskStore.
func (k CacheKey) Filename() string {
	return string(k) + FileExtension
}
