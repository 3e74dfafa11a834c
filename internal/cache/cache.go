// Package cache persists recognition output as plain text files keyed by a
// content hash of the image and the recognition method that produced it.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ErrWriteFailed is returned when an entry cannot be persisted.
var ErrWriteFailed = errors.New("cache write failed")

const (
	// DefaultMaxEntries bounds the number of files kept on disk.
	DefaultMaxEntries = 15

	sampleSize = 2048
	fileExt    = ".txt"
)

// Key derives the cache key for data recognized with method. It hashes the
// first and last 2 KiB of the encoded bytes, which is enough to tell camera
// captures apart without reading large uploads twice.
func Key(data []byte, method string) string {
	h := xxhash.New()
	if len(data) <= 2*sampleSize {
		_, _ = h.Write(data)
	} else {
		_, _ = h.Write(data[:sampleSize])
		_, _ = h.Write(data[len(data)-sampleSize:])
	}
	return strconv.FormatUint(h.Sum64(), 16) + "_" + method
}

// Stats describes the on-disk state of the cache.
type Stats struct {
	Dir        string `json:"dir" yaml:"dir"`
	Entries    int    `json:"entries" yaml:"entries"`
	MaxEntries int    `json:"max_entries" yaml:"max_entries"`
	Bytes      int64  `json:"bytes" yaml:"bytes"`
}

// Cache is a bounded directory of text files. It is safe for concurrent use.
type Cache struct {
	dir        string
	maxEntries int
	now        func() time.Time

	mu sync.RWMutex
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock overrides the clock used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New opens (and creates if needed) a cache rooted at dir.
func New(dir string, maxEntries int, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	c := &Cache{dir: dir, maxEntries: maxEntries, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+fileExt)
}

// Get returns the stored text for key.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Put stores text under key and trims the directory back to its bound.
// Writes go through a temporary file and a rename so readers never observe
// a partial entry.
func (c *Cache) Put(key, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	stamp := c.now()
	if err := os.Chtimes(tmpName, stamp, stamp); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := os.Rename(tmpName, c.path(key)); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if _, err := c.trimLocked(); err != nil {
		return fmt.Errorf("%w: trim: %w", ErrWriteFailed, err)
	}
	return nil
}

// Trim removes the oldest entries until at most the configured number
// remain. It returns how many entries were removed.
func (c *Cache) Trim() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trimLocked()
}

type entry struct {
	name  string
	mtime time.Time
	size  int64
}

func (c *Cache) list() ([]entry, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}
	entries := make([]entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileExt) || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, entry{name: de.Name(), mtime: info.ModTime(), size: info.Size()})
	}
	return entries, nil
}

func (c *Cache) trimLocked() (int, error) {
	entries, err := c.list()
	if err != nil {
		return 0, err
	}
	if len(entries) <= c.maxEntries {
		return 0, nil
	}

	// Newest first; name breaks ties so eviction is deterministic.
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].mtime.Equal(entries[j].mtime) {
			return entries[i].mtime.After(entries[j].mtime)
		}
		return entries[i].name < entries[j].name
	})

	removed := 0
	for _, e := range entries[c.maxEntries:] {
		if err := os.Remove(filepath.Join(c.dir, e.name)); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Stats reports the number and total size of entries.
func (c *Cache) Stats() (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries, err := c.list()
	if err != nil {
		return Stats{}, err
	}
	s := Stats{Dir: c.dir, Entries: len(entries), MaxEntries: c.maxEntries}
	for _, e := range entries {
		s.Bytes += e.size
	}
	return s, nil
}

// Clear removes every entry and returns how many were deleted.
func (c *Cache) Clear() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.list()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if err := os.Remove(filepath.Join(c.dir, e.name)); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
