package incremental

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"git.home.luguber.info/inful/sitebuilder/internal/storage"
)

// OptimizedCache remembers optimizer output keyed by Fingerprint. It never evicts.
type OptimizedCache struct {
	store  storage.ObjectStore
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewOptimizedCache wraps an object store.
func NewOptimizedCache(store storage.ObjectStore) *OptimizedCache {
	return &OptimizedCache{store: store, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (c *OptimizedCache) WithLogger(logger *slog.Logger) *OptimizedCache {
	c.logger = logger
	return c
}

// Lookup returns the cached bytes for key.
func (c *OptimizedCache) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	obj, err := c.store.Get(ctx, key)
	if err != nil {
		if storage.IsNotFound(err) {
			c.misses.Add(1)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache lookup %s: %w", key, err)
	}
	c.hits.Add(1)
	return obj.Data, true, nil
}

// Store records the optimizer output for key. source and originalSize are kept as metadata.
func (c *OptimizedCache) Store(ctx context.Context, key string, data []byte, source string, originalSize int) error {
	_, err := c.store.Put(ctx, &storage.Object{
		Hash: key,
		Type: storage.ObjectTypeOptimizedImage,
		Data: data,
		Metadata: storage.Metadata{Custom: map[string]string{
			storage.MetaSource:       source,
			storage.MetaOriginalSize: strconv.Itoa(originalSize),
		}},
	})
	if err != nil {
		return fmt.Errorf("cache store %s: %w", key, err)
	}
	c.logger.Debug("Cached optimized object", "key", key[:12], "source", source, "bytes", len(data))
	return nil
}

// Hits returns the number of successful lookups since creation.
func (c *OptimizedCache) Hits() int64 { return c.hits.Load() }

// Misses returns the number of lookups that found nothing.
func (c *OptimizedCache) Misses() int64 { return c.misses.Load() }
