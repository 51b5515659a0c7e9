package archive

import (
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/asar/internal/asartype"
)

// Cache memoizes opened archives by path.
//
// Concurrent first accesses to the same path share one decode. Successful
// loads and corrupt archives are remembered until Close; other failures,
// such as a missing file, are retried on the next Get.
type Cache struct {
	maxSymlinks int
	logger      *slog.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry
	closed  bool
	group   singleflight.Group // zero value is valid
}

type cacheEntry struct {
	archive *Archive
	err     error
}

// NewCache creates an empty Cache. logger may be nil.
func NewCache(maxSymlinks int, logger *slog.Logger) *Cache {
	return &Cache{
		maxSymlinks: maxSymlinks,
		logger:      logger,
		entries:     make(map[string]cacheEntry),
	}
}

func (c *Cache) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

func (c *Cache) lookup(path string) (cacheEntry, bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	return e, ok, c.closed
}

// Cached reports whether path has a remembered result, successful or corrupt.
func (c *Cache) Cached(path string) bool {
	_, ok, _ := c.lookup(path)
	return ok
}

// Get returns the archive at path, opening and decoding it on first use.
func (c *Cache) Get(path string) (*Archive, error) {
	e, ok, closed := c.lookup(path)
	switch {
	case closed:
		return nil, asartype.ErrBadFD
	case ok:
		c.log().Debug("archive cache hit", "path", path, "corrupt", e.err != nil)
		return e.archive, e.err
	}

	v, err, shared := c.group.Do(path, func() (any, error) {
		if e, ok, _ := c.lookup(path); ok {
			if e.err != nil {
				return nil, e.err
			}
			return e.archive, nil
		}
		a, err := Open(path, c.maxSymlinks)
		if err != nil && !errors.Is(err, asartype.ErrArchiveCorrupt) {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			if a != nil {
				a.Close()
			}
			return nil, asartype.ErrBadFD
		}
		c.entries[path] = cacheEntry{archive: a, err: err}
		if err != nil {
			c.log().Warn("archive corrupt", "path", path, "error", err)
			return nil, err
		}
		c.log().Debug("archive loaded",
			"path", path,
			"entries", a.Index().Root().Len(),
			"header_bytes", len(a.Header().JSON),
			"data_bytes", a.Header().DataSize)
		return a, nil
	})
	if shared {
		c.log().Debug("archive load shared", "path", path)
	}
	if err != nil {
		return nil, err
	}
	return v.(*Archive), nil //nolint:errcheck // type guaranteed by singleflight func
}

// Close closes every cached archive. Later Gets fail with ErrBadFD.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.log().Debug("closing archive cache", "archives", len(c.entries))
	var errs []error
	for path, e := range c.entries {
		if e.archive != nil {
			if n := e.archive.Handles(); n > 0 {
				c.log().Warn("closing archive with open entry readers", "path", path, "readers", n)
			}
			if err := e.archive.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		delete(c.entries, path)
	}
	return errors.Join(errs...)
}
