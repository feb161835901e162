package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// DefaultDirName is the subdirectory of the platform cache directory used
// when no explicit directory is configured.
const DefaultDirName = "ImageCache"

// DiskStore keeps one file per key under a dedicated directory. The file's
// modification time is the "last successfully fetched at" marker.
//
// On-disk layout:
//
//	<dir>/<sha256(url)>.img
//
// There is no index file and stale files are never removed.
type DiskStore struct {
	dir string
	now func() time.Time
}

// DefaultDir returns <user cache dir>/ImageCache, falling back to the
// system temp directory when the platform has no cache directory.
func DefaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, DefaultDirName)
}

// NewDiskStore creates the cache directory if needed and returns a store rooted there.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("cache directory required")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache directory: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	return &DiskStore{
		dir: abs,
		now: time.Now,
	}, nil
}

// Dir returns the absolute cache directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Path returns the file path backing key.
func (s *DiskStore) Path(key CacheKey) string {
	return filepath.Join(s.dir, key.Filename())
}

// Read returns the file contents and its modification time.
// The timestamp is taken from the same open file as the bytes.
func (s *DiskStore) Read(ctx context.Context, key CacheKey) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("disk_read").Inc()
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		CacheErrors.WithLabelValues("disk_read").Inc()
		return nil, fmt.Errorf("stat cache file: %w", err)
	}
	if info.IsDir() {
		return nil, ErrCacheMiss
	}

	data, err := io.ReadAll(f)
	if err != nil {
		CacheErrors.WithLabelValues("disk_read").Inc()
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	return &Entry{
		Data:      data,
		FetchedAt: info.ModTime(),
	}, nil
}

// Write stores data via a temp file in the cache directory. The temp file's
// modification time is set before the rename, so the final path always
// carries bytes and timestamp from the same write.
func (s *DiskStore) Write(ctx context.Context, key CacheKey, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(s.dir, ".cache-*")
	if err != nil {
		CacheErrors.WithLabelValues("disk_write").Inc()
		return fmt.Errorf("create temp file: %w", err)
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		CacheErrors.WithLabelValues("disk_write").Inc()
		return fmt.Errorf("write temp file: %w", err)
	}

	modTime := s.now()
	if err := os.Chtimes(tempName, modTime, modTime); err != nil {
		os.Remove(tempName)
		CacheErrors.WithLabelValues("disk_write").Inc()
		return fmt.Errorf("set modification time: %w", err)
	}

	if err := os.Rename(tempName, s.Path(key)); err != nil {
		os.Remove(tempName)
		CacheErrors.WithLabelValues("disk_write").Inc()
		return fmt.Errorf("rename cache file: %w", err)
	}

	return nil
}

// IsStale reports true when the file is missing, unreadable or older than ttl.
func (s *DiskStore) IsStale(ctx context.Context, key CacheKey, ttl time.Duration) bool {
	info, err := os.Stat(s.Path(key))
	if err != nil || info.IsDir() {
		return true
	}
	entry := Entry{FetchedAt: info.ModTime()}
	return entry.IsStale(s.now(), ttl)
}
