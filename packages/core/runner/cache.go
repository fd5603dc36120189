package runner

import (
	"fmt"
	"sync"
)

// Cache holds values computed once per run and shared by every feature.
// Entries live until the suite is discarded.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	once  sync.Once
	value any
	err   error
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

// GetOrCompute returns the value stored under key, calling fn to produce it
// on first use. Concurrent first callers wait for a single fn call and all see
// its result. Errors are memoized like values.
func (c *Cache) GetOrCompute(key string, fn func() (any, error)) (any, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				e.err = fmt.Errorf("computing %q: panic: %v", key, r)
			}
		}()
		e.value, e.err = fn()
	})
	return e.value, e.err
}

// Len is the number of keys that have been requested
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CacheValue is GetOrCompute with a typed result
func CacheValue[T any](c *Cache, key string, fn func() (T, error)) (T, error) {
	v, err := c.GetOrCompute(key, func() (any, error) {
		return fn()
	})
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok && v != nil {
		return zero, fmt.Errorf("cache entry %q holds %T", key, v)
	}
	return typed, nil
}
