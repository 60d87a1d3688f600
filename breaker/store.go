// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/z5labs/apiguard/concurrent"

	lru "github.com/hashicorp/golang-lru/v2"
)

// State is the position of a circuit.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Context is the breaker state of a single METHOD:path key.
type Context struct {
	State        State
	FailureCount int

	// ResetAt is when an open circuit lets the next call through.
	ResetAt time.Time
}

// Store holds one [Context] per key.
type Store interface {
	// Get returns the context stored for key, if any.
	Get(ctx context.Context, key string) (Context, bool, error)

	// Update atomically applies f to the context stored for key and stores
	// the result. A missing key starts from a closed context. Nothing is
	// stored when f fails. f may be invoked more than once.
	Update(ctx context.Context, key string, f func(*Context) error) (Context, error)
}

// MemoryStore keeps contexts in process memory for the lifetime of the process.
type MemoryStore struct {
	cache *concurrent.Cache[string, Context]
}

// NewMemoryStore initializes an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: concurrent.NewCache[string, Context](),
	}
}

// Get implements the [Store] interface.
func (s *MemoryStore) Get(ctx context.Context, key string) (Context, bool, error) {
	c, ok := s.cache.Get(key)
	return c, ok, nil
}

// Update implements the [Store] interface.
func (s *MemoryStore) Update(ctx context.Context, key string, f func(*Context) error) (Context, error) {
	return s.cache.Update(key, func(c Context, ok bool) (Context, error) {
		err := f(&c)
		return c, err
	})
}

// LRUStore keeps at most a fixed number of contexts in process memory,
// evicting the least recently used key. An evicted key starts closed again.
type LRUStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, Context]
}

// NewLRUStore initializes an [LRUStore] holding up to size keys.
func NewLRUStore(size int) (*LRUStore, error) {
	cache, err := lru.New[string, Context](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &LRUStore{cache: cache}, nil
}

// Get implements the [Store] interface.
func (s *LRUStore) Get(ctx context.Context, key string) (Context, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cache.Peek(key)
	return c, ok, nil
}

// Update implements the [Store] interface.
func (s *LRUStore) Update(ctx context.Context, key string, f func(*Context) error) (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, _ := s.cache.Get(key)
	err := f(&c)
	if err != nil {
		return c, err
	}

	s.cache.Add(key, c)
	return c, nil
}
