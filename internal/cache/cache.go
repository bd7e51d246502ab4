// Package cache holds the bounded, concurrency-safe caches used by the
// request pipeline: parsed documents and prepared operations.
package cache

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/hanpama/graphcore/internal/language"
)

// Cache is a best-effort bounded cache keyed by string. A Cache created with
// a non-positive size is disabled: every lookup misses and every add is refused.
type Cache[V any] struct {
	// inner is nil when the cache is disabled
	inner *ristretto.Cache[string, V]
}

// New creates a cache holding at most size entries.
func New[V any](size int64) (*Cache[V], error) {
	if size <= 0 {
		return &Cache[V]{}, nil
	}
	inner, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters:        size * 10,
		MaxCost:            size,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing cache: %w", err)
	}
	return &Cache[V]{inner: inner}, nil
}

// Enabled reports whether the cache stores anything.
func (c *Cache[V]) Enabled() bool { return c != nil && c.inner != nil }

// TryGet returns the cached value for key.
func (c *Cache[V]) TryGet(key string) (V, bool) {
	if !c.Enabled() || key == "" {
		var zero V
		return zero, false
	}
	return c.inner.Get(key)
}

// TryAdd stores value under key unless an entry already exists. It reports
// whether the value was admitted. The write is visible to TryGet once TryAdd
// returns.
func (c *Cache[V]) TryAdd(key string, value V) bool {
	if !c.Enabled() || key == "" {
		return false
	}
	if _, ok := c.inner.Get(key); ok {
		return false
	}
	return c.store(key, value)
}

// Set stores value under key, replacing an existing entry. It reports
// whether the value was admitted.
func (c *Cache[V]) Set(key string, value V) bool {
	if !c.Enabled() || key == "" {
		return false
	}
	return c.store(key, value)
}

// store reports admission by reading the key back: the admission policy may
// still reject a write the set buffer accepted.
func (c *Cache[V]) store(key string, value V) bool {
	if !c.inner.Set(key, value, 1) {
		return false
	}
	c.inner.Wait()
	_, ok := c.inner.Get(key)
	return ok
}

// Clear drops every entry. Used on schema reload.
func (c *Cache[V]) Clear() {
	if c.Enabled() {
		c.inner.Clear()
	}
}

// Close stops the cache's background goroutines.
func (c *Cache[V]) Close() {
	if c.Enabled() {
		c.inner.Close()
	}
}

// Document is an immutable parsed document shared by every request that
// hits the same cache key.
type Document struct {
	Document    *language.QueryDocument
	Hash        string
	IsPersisted bool
}

// Documents caches parsed documents by client id or content hash.
type Documents = Cache[*Document]

// NewDocuments creates a document cache.
func NewDocuments(size int64) (*Documents, error) { return New[*Document](size) }

// OperationKey builds the operation cache key. A new schema version yields
// new keys, so operations prepared against an older schema are never served.
func OperationKey(schemaName, version, operationID string) string {
	return schemaName + "-" + version + "-" + operationID
}
