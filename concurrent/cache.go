// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package concurrent provides mutex guarded containers.
package concurrent

import "sync"

// Cache is a map safe for concurrent use. Entries never expire.
type Cache[K comparable, V any] struct {
	mu   sync.Mutex
	data map[K]V
}

// NewCache initializes an empty [Cache].
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		data: make(map[K]V),
	}
}

// Get returns the value stored for k.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.data[k]
	return v, ok
}

// GetOr returns the value stored for k, storing the result of f if there is none.
func (c *Cache[K, V]) GetOr(k K, f func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.data[k]
	if ok {
		return v, nil
	}

	v, err := f()
	if err != nil {
		return v, err
	}

	c.data[k] = v
	return v, nil
}

// Update replaces the value stored for k with the result of f while holding
// the lock, so concurrent updates of the same cache are serialized. The
// stored value is left untouched when f fails.
func (c *Cache[K, V]) Update(k K, f func(v V, ok bool) (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.data[k]
	v, err := f(old, ok)
	if err != nil {
		return old, err
	}

	c.data[k] = v
	return v, nil
}

// Len returns the number of stored entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.data)
}
