package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kirinyoku/busdesk/internal/observability"
)

// Cache is a session scoped store of loaded collections keyed by entity id.
// Entries have no TTL; they leave only through Invalidate.
type Cache[K comparable, V any] struct {
	name string

	mu      sync.RWMutex
	entries map[K]V
	gen     map[K]uint64

	sf singleflight.Group
}

func New[K comparable, V any](name string) *Cache[K, V] {
	return &Cache[K, V]{
		name:    name,
		entries: make(map[K]V),
		gen:     make(map[K]uint64),
	}
}

// Get never fetches.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()

	result := "miss"
	if ok {
		result = "hit"
	}
	observability.CacheLookupsTotal.WithLabelValues(c.name, result).Inc()

	return v, ok
}

func (c *Cache[K, V]) Set(key K, v V) {
	c.mu.Lock()
	c.entries[key] = v
	c.mu.Unlock()
}

// Invalidate drops the entry. A load that started before the call will not
// store its result.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.gen[key]++
	c.mu.Unlock()
}

func (c *Cache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]K, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Load returns the cached value for key or runs loader once for all
// concurrent callers of the same key and stores a successful result.
func (c *Cache[K, V]) Load(ctx context.Context, key K, loader func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.mu.RLock()
	gen := c.gen[key]
	c.mu.RUnlock()

	vAny, err, _ := c.sf.Do(fmt.Sprintf("%v#%d", key, gen), func() (any, error) {
		c.mu.RLock()
		v, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}

		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gen[key] == gen {
			c.entries[key] = v
		}
		c.mu.Unlock()

		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	v, ok := vAny.(V)
	if !ok {
		var zero V
		return zero, errors.New("type assertion failed")
	}

	return v, nil
}
