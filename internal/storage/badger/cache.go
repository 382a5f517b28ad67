package badger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/leadforge/internal/common"
)

// cacheEntry is a stored cache record. Expiry is checked on read and
// stale entries are deleted lazily.
type cacheEntry struct {
	Key       string `badgerhold:"key"`
	Value     []byte
	CreatedAt time.Time
	ExpiresAt time.Time // zero means no expiry
}

func (e *cacheEntry) expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// Cache is a Badger-backed key-value cache with per-entry TTL, used
// for fetched website bodies and research briefs. Implements
// interfaces.KVCache.
type Cache struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig
}

// NewCache opens (or creates) the cache database at the configured path
func NewCache(config *common.BadgerConfig, logger arbor.ILogger) (*Cache, error) {
	// If reset_on_startup is enabled, delete the existing database
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Debug().Str("path", config.Path).Msg("Deleting existing cache (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete cache directory")
			}
		}
	}

	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Cache database initialized")

	return &Cache{
		store:  store,
		logger: logger,
		config: config,
	}, nil
}

// Get loads and unmarshals a cached value. Returns false when the key
// is absent or expired.
func (c *Cache) Get(key string, value interface{}) (bool, error) {
	var entry cacheEntry
	err := c.store.Get(key, &entry)
	if err == badgerhold.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	if entry.expired() {
		if err := c.store.Delete(key, &cacheEntry{}); err != nil && err != badgerhold.ErrNotFound {
			c.logger.Debug().Str("key", key).Err(err).Msg("Failed to drop expired cache entry")
		}
		return false, nil
	}

	if err := json.Unmarshal(entry.Value, value); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Set stores a value with a TTL. A non-positive TTL stores the entry
// without expiry.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for cache: %w", err)
	}

	entry := cacheEntry{
		Key:       key,
		Value:     data,
		CreatedAt: time.Now().UTC(),
	}
	if ttl > 0 {
		entry.ExpiresAt = entry.CreatedAt.Add(ttl)
	}

	if err := c.store.Upsert(key, &entry); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (c *Cache) Delete(key string) error {
	err := c.store.Delete(key, &cacheEntry{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}

// Close closes the cache database
func (c *Cache) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}
