// Package cache memoizes analysis results by bytecode content hash.
package cache

import (
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultSize is the entry limit used when none is configured.
const DefaultSize = 4096

// Key identifies the result of analysing code under one normalizer
// configuration and vector schema.
func Key(code []byte, fingerprint string, schema int) string {
	return fmt.Sprintf("%s/%s/v%d", hexutil.Encode(crypto.Keccak256(code)), fingerprint, schema)
}

// Stats counts cache lookups.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Computes uint64 `json:"computes"`
}

// Cache is a bounded LRU where each missing key is computed at most once
// at a time. It is safe for concurrent use.
type Cache[V any] struct {
	store *lru.Cache[string, V]
	group singleflight.Group

	hits, misses, computes atomic.Uint64
}

// New creates a cache holding up to size entries. size <= 0 uses DefaultSize.
func New[V any](size int) (*Cache[V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	store, err := lru.New[string, V](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache[V]{store: store}, nil
}

// Get returns the cached value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.store.Get(key)
}

// GetOrCompute returns the cached value for key, or runs fn and caches its
// result. Concurrent callers for the same key share one fn call. Errors are
// returned to every waiting caller and not cached.
func (c *Cache[V]) GetOrCompute(key string, fn func() (V, error)) (V, error) {
	if v, ok := c.store.Get(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	res, err, _ := c.group.Do(key, func() (any, error) {
		// a flight that finished between Get and Do already stored it
		if v, ok := c.store.Peek(key); ok {
			return v, nil
		}
		c.computes.Add(1)
		v, err := fn()
		if err != nil {
			return v, err
		}
		c.store.Add(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	return c.store.Len()
}

// Stats returns the lookup counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Computes: c.computes.Load(),
	}
}
