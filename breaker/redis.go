// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package breaker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrConflict is returned by [RedisStore.Update] when a key kept changing
// between reading and writing it.
var ErrConflict = errors.New("breaker context changed concurrently")

const (
	fieldState    = "state"
	fieldFailures = "failures"
	fieldResetAt  = "reset_at"
)

// RedisStore shares contexts between replicas. Each context is stored as a
// hash and updated with an optimistic WATCH/MULTI transaction.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	maxRetries int
}

// RedisOption configures a [RedisStore].
type RedisOption func(*RedisStore)

// KeyPrefix sets the prefix of every redis key. The default is "circuit:".
func KeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// Expiry sets a TTL refreshed on every update. Zero, the default, keeps keys forever.
func Expiry(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// MaxRetries sets how often a conflicting transaction is retried. The default is 3.
func MaxRetries(n int) RedisOption {
	return func(s *RedisStore) {
		s.maxRetries = n
	}
}

// NewRedisStore initializes a [RedisStore] backed by client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:     client,
		prefix:     "circuit:",
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements the [Store] interface.
func (s *RedisStore) Get(ctx context.Context, key string) (Context, bool, error) {
	vals, err := s.client.HGetAll(ctx, s.prefix+key).Result()
	if err != nil {
		return Context{}, false, fmt.Errorf("failed to get breaker context: %w", err)
	}
	if len(vals) == 0 {
		return Context{}, false, nil
	}

	c, err := decodeContext(vals)
	if err != nil {
		return Context{}, false, err
	}
	return c, true, nil
}

// Update implements the [Store] interface.
func (s *RedisStore) Update(ctx context.Context, key string, f func(*Context) error) (Context, error) {
	k := s.prefix + key

	var out Context
	txf := func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, k).Result()
		if err != nil {
			return fmt.Errorf("failed to get breaker context: %w", err)
		}

		c, err := decodeContext(vals)
		if err != nil {
			return err
		}
		err = f(&c)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, encodeContext(c))
			if s.ttl > 0 {
				pipe.Expire(ctx, k, s.ttl)
			}
			return nil
		})
		if err != nil {
			return err
		}

		out = c
		return nil
	}

	for range s.maxRetries + 1 {
		err := s.client.Watch(ctx, txf, k)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return Context{}, err
	}
	return Context{}, ErrConflict
}

func encodeContext(c Context) map[string]any {
	var resetAt int64
	if !c.ResetAt.IsZero() {
		resetAt = c.ResetAt.UnixMilli()
	}
	return map[string]any{
		fieldState:    int(c.State),
		fieldFailures: c.FailureCount,
		fieldResetAt:  resetAt,
	}
}

func decodeContext(vals map[string]string) (Context, error) {
	var c Context
	if len(vals) == 0 {
		return c, nil
	}

	state, err := strconv.Atoi(vals[fieldState])
	if err != nil {
		return c, fmt.Errorf("invalid breaker state %q: %w", vals[fieldState], err)
	}
	failures, err := strconv.Atoi(vals[fieldFailures])
	if err != nil {
		return c, fmt.Errorf("invalid breaker failure count %q: %w", vals[fieldFailures], err)
	}
	resetAt, err := strconv.ParseInt(vals[fieldResetAt], 10, 64)
	if err != nil {
		return c, fmt.Errorf("invalid breaker reset time %q: %w", vals[fieldResetAt], err)
	}

	c.State = State(state)
	c.FailureCount = failures
	if resetAt != 0 {
		c.ResetAt = time.UnixMilli(resetAt)
	}
	return c, nil
}
