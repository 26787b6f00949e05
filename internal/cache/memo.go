package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memo caches the results of a pure computation keyed by its inputs.
// Keys are compared by value, so a render pass that sees the same inputs
// gets back the very same result, and consumers can detect "unchanged"
// by identity.
type Memo[K comparable, V any] struct {
	cache *lru.Cache[K, V]
}

// NewMemo creates a memo holding at most size results.
func NewMemo[K comparable, V any](size int) (*Memo[K, V], error) {
	if size <= 0 {
		size = 1
	}
	c, err := lru.New[K, V](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memo: %w", err)
	}
	return &Memo[K, V]{cache: c}, nil
}

// Get returns the cached value for key, computing and storing it on a miss.
func (m *Memo[K, V]) Get(key K, compute func() V) V {
	if v, ok := m.cache.Get(key); ok {
		return v
	}
	v := compute()
	m.cache.Add(key, v)
	return v
}

// Len returns the number of cached values.
func (m *Memo[K, V]) Len() int {
	return m.cache.Len()
}
