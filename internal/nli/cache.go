package nli

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/todmy/doc-checker/pkg/models"
)

// Cache memoizes classification results per canonical pair key for the
// lifetime of one analysis run. Concurrent requests for the same key share
// a single in-flight computation; distinct keys do not contend beyond the
// map lock. Failed computations are not cached.
type Cache struct {
	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]models.ClassificationResult
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]models.ClassificationResult)}
}

// GetOrCompute returns the cached result for key or runs compute exactly
// once across concurrent callers and caches its result.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func() (models.ClassificationResult, error)) (models.ClassificationResult, error) {
	c.mu.RLock()
	if r, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return r, nil
	}
	c.mu.RUnlock()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		c.mu.RLock()
		if r, ok := c.entries[key]; ok {
			c.mu.RUnlock()
			return r, nil
		}
		c.mu.RUnlock()

		r, err := compute()
		if err != nil {
			return models.ClassificationResult{}, err
		}

		c.mu.Lock()
		c.entries[key] = r
		c.mu.Unlock()
		return r, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.ClassificationResult{}, res.Err
		}
		return res.Val.(models.ClassificationResult), nil
	case <-ctx.Done():
		return models.ClassificationResult{}, ctx.Err()
	}
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
