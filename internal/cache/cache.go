// Package cache keeps one-shot scan results on disk so repeated CLI scans of
// the same listing do not refetch it.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bidscanner/internal/models"
)

const (
	DefaultFile   = "data/scan_cache.json"
	DefaultExpiry = 24 * time.Hour
)

// Entry is one cached scan
type Entry struct {
	Result    models.ExtractionResult `json:"result"`
	Timestamp time.Time               `json:"timestamp"`
}

// ScanCache is a JSON file of scan results keyed by URL
type ScanCache struct {
	path   string
	expiry time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
	loaded  bool
}

// New creates a cache backed by path. A zero expiry uses DefaultExpiry.
func New(path string, expiry time.Duration) *ScanCache {
	if path == "" {
		path = DefaultFile
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &ScanCache{path: path, expiry: expiry, now: time.Now, entries: make(map[string]Entry)}
}

// load reads the file once. A missing or corrupt file starts empty.
func (c *ScanCache) load() {
	if c.loaded {
		return
	}
	c.loaded = true

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		logrus.WithField("file", c.path).Debug("No scan cache found")
		return
	}
	if err != nil {
		logrus.WithError(err).Warn("Failed to read scan cache")
		return
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		logrus.WithError(err).Warn("Ignoring corrupt scan cache")
		c.entries = make(map[string]Entry)
	}
}

// Get returns a fresh cached result for pageURL
func (c *ScanCache) Get(pageURL string) (models.ExtractionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()

	e, ok := c.entries[pageURL]
	if !ok {
		return models.ExtractionResult{}, false
	}
	if age := c.now().Sub(e.Timestamp); age > c.expiry {
		logrus.WithFields(logrus.Fields{"url": pageURL, "age": age.Round(time.Minute)}).Debug("Cached scan expired")
		return models.ExtractionResult{}, false
	}
	return e.Result, true
}

// Put stores a result and rewrites the file, dropping expired entries
func (c *ScanCache) Put(pageURL string, result models.ExtractionResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()

	now := c.now()
	for u, e := range c.entries {
		if now.Sub(e.Timestamp) > c.expiry {
			delete(c.entries, u)
		}
	}
	c.entries[pageURL] = Entry{Result: result, Timestamp: now}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Age reports how long ago pageURL was cached
func (c *ScanCache) Age(pageURL string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()

	e, ok := c.entries[pageURL]
	if !ok {
		return 0, false
	}
	return c.now().Sub(e.Timestamp), true
}
