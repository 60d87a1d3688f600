// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package breaker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/z5labs/apiguard/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type countingHandler struct {
	mu     sync.Mutex
	calls  int
	status int
}

func (h *countingHandler) Serve(r *http.Request) *router.Response {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls++
	return &router.Response{Status: h.status}
}

func (h *countingHandler) SetStatus(status int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.status = status
}

func (h *countingHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.calls
}

type opened struct {
	mu    sync.Mutex
	calls []string
}

func (o *opened) OnOpen(ctx context.Context, method, path string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.calls = append(o.calls, Key(method, path))
}

func (o *opened) Calls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]string(nil), o.calls...)
}

func call(h router.Handler) *router.Response {
	return h.Serve(httptest.NewRequest(http.MethodGet, "/api/items", nil))
}

func TestBreaker_Middleware(t *testing.T) {
	t.Run("will reject calls once the threshold is reached", func(t *testing.T) {
		clock := newFakeClock()
		notified := &opened{}
		b := New(WithClock(clock.Now), OnOpen(notified.OnOpen))

		inner := &countingHandler{status: http.StatusInternalServerError}
		h := b.Middleware(inner)

		for range 5 {
			resp := call(h)
			require.Equal(t, http.StatusInternalServerError, resp.Status)
		}
		require.Equal(t, 5, inner.Calls())
		require.Equal(t, []string{"GET:/api/items"}, notified.Calls())

		resp := call(h)
		require.Equal(t, http.StatusInternalServerError, resp.Status)
		require.Equal(t, 5, inner.Calls())

		b2, err := json.Marshal(resp.Body)
		require.NoError(t, err)
		require.Contains(t, string(b2), RetryLaterMessage)

		state, err := b.State(context.Background(), "GET:/api/items")
		require.NoError(t, err)
		require.Equal(t, Open, state.State)
		require.Equal(t, 5, state.FailureCount)
		require.True(t, state.ResetAt.Equal(clock.Now().Add(5*time.Second)))
	})

	t.Run("will close after a successful probe", func(t *testing.T) {
		clock := newFakeClock()
		b := New(WithClock(clock.Now), Threshold(2), CoolDown(time.Second))

		inner := &countingHandler{status: http.StatusBadGateway}
		h := b.Middleware(inner)

		call(h)
		call(h)
		require.Equal(t, 2, inner.Calls())

		call(h)
		require.Equal(t, 2, inner.Calls())

		clock.Advance(time.Second)
		inner.SetStatus(http.StatusOK)

		resp := call(h)
		require.Equal(t, http.StatusOK, resp.Status)
		require.Equal(t, 3, inner.Calls())

		state, err := b.State(context.Background(), "GET:/api/items")
		require.NoError(t, err)
		require.Equal(t, Closed, state.State)
		require.Zero(t, state.FailureCount)
	})

	t.Run("will reopen without notifying after a failed probe", func(t *testing.T) {
		clock := newFakeClock()
		notified := &opened{}
		b := New(WithClock(clock.Now), Threshold(1), CoolDown(time.Second), OnOpen(notified.OnOpen))

		inner := &countingHandler{status: http.StatusServiceUnavailable}
		h := b.Middleware(inner)

		call(h)
		require.Len(t, notified.Calls(), 1)

		clock.Advance(time.Second)
		call(h)
		require.Equal(t, 2, inner.Calls())
		require.Len(t, notified.Calls(), 1)

		state, err := b.State(context.Background(), "GET:/api/items")
		require.NoError(t, err)
		require.Equal(t, Open, state.State)
		require.True(t, state.ResetAt.Equal(clock.Now().Add(time.Second)))

		call(h)
		require.Equal(t, 2, inner.Calls())
	})

	t.Run("will not count successful calls", func(t *testing.T) {
		b := New(Threshold(2))

		inner := &countingHandler{status: http.StatusOK}
		h := b.Middleware(inner)

		for range 10 {
			call(h)
		}

		state, err := b.State(context.Background(), "GET:/api/items")
		require.NoError(t, err)
		require.Equal(t, Closed, state.State)
		require.Zero(t, state.FailureCount)
	})

	t.Run("will keep keys independent", func(t *testing.T) {
		b := New(Threshold(1))

		inner := &countingHandler{status: http.StatusInternalServerError}
		h := b.Middleware(inner)

		h.Serve(httptest.NewRequest(http.MethodGet, "/api/a", nil))
		h.Serve(httptest.NewRequest(http.MethodPost, "/api/a", nil))
		h.Serve(httptest.NewRequest(http.MethodGet, "/api/b", nil))
		require.Equal(t, 3, inner.Calls())

		h.Serve(httptest.NewRequest(http.MethodGet, "/api/a", nil))
		require.Equal(t, 3, inner.Calls())
	})

	t.Run("will use the custom classifier and rejection", func(t *testing.T) {
		b := New(
			Threshold(1),
			Classify(func(resp *router.Response) bool {
				return resp.Status == http.StatusTooManyRequests
			}),
			Rejection(func(ctx context.Context, key string) *router.Response {
				return router.JSON(http.StatusServiceUnavailable, map[string]string{"key": key})
			}),
		)

		inner := &countingHandler{status: http.StatusTooManyRequests}
		h := b.Middleware(inner)

		call(h)
		resp := call(h)

		require.Equal(t, http.StatusServiceUnavailable, resp.Status)
		require.Equal(t, map[string]string{"key": "GET:/api/items"}, resp.Body)
	})

	t.Run("will let calls through when the store fails", func(t *testing.T) {
		b := New(WithStore(failingStore{}))

		inner := &countingHandler{status: http.StatusInternalServerError}
		h := b.Middleware(inner)

		for range 10 {
			call(h)
		}
		require.Equal(t, 10, inner.Calls())
	})

	t.Run("will key circuits by the concrete url path", func(t *testing.T) {
		b := New(Threshold(1))

		inner := &countingHandler{status: http.StatusInternalServerError}
		h := b.Middleware(inner)

		h.Serve(httptest.NewRequest(http.MethodGet, "/api/items/1", nil))
		h.Serve(httptest.NewRequest(http.MethodGet, "/api/items/2", nil))
		require.Equal(t, 2, inner.Calls())

		first, err := b.State(context.Background(), Key(http.MethodGet, "/api/items/1"))
		require.NoError(t, err)
		require.Equal(t, Open, first.State)

		template, err := b.State(context.Background(), Key(http.MethodGet, "/api/items/{id}"))
		require.NoError(t, err)
		require.Equal(t, Closed, template.State)
	})
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) (Context, bool, error) {
	return Context{}, false, errors.New("unavailable")
}

func (failingStore) Update(ctx context.Context, key string, f func(*Context) error) (Context, error) {
	return Context{}, errors.New("unavailable")
}

func TestBreaker_Guard(t *testing.T) {
	t.Run("will notify exactly once under concurrent failures", func(t *testing.T) {
		notified := &opened{}
		b := New(Threshold(5), CoolDown(time.Minute), OnOpen(notified.OnOpen))

		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()

				b.Guard(context.Background(), http.MethodPost, "/api/items", func() *router.Response {
					return &router.Response{Status: http.StatusInternalServerError}
				})
			}()
		}
		wg.Wait()

		assert.Len(t, notified.Calls(), 1)

		state, err := b.State(context.Background(), "POST:/api/items")
		require.NoError(t, err)
		require.Equal(t, Open, state.State)
	})
}

func TestBreaker_Monitor(t *testing.T) {
	t.Run("will be unhealthy while a watched key is open", func(t *testing.T) {
		clock := newFakeClock()
		b := New(WithClock(clock.Now), Threshold(1), CoolDown(time.Second))
		m := b.Monitor(Key(http.MethodGet, "/api/items"))

		healthy, err := m.Healthy(context.Background())
		require.NoError(t, err)
		require.True(t, healthy)

		call(b.Middleware(&countingHandler{status: http.StatusInternalServerError}))

		healthy, err = m.Healthy(context.Background())
		require.NoError(t, err)
		require.False(t, healthy)

		clock.Advance(time.Second)

		healthy, err = m.Healthy(context.Background())
		require.NoError(t, err)
		require.True(t, healthy)
	})
}

func TestFromConfig(t *testing.T) {
	t.Run("will read options from the environment", func(t *testing.T) {
		t.Setenv("APIGUARD_BREAKER_THRESHOLD", "2")
		t.Setenv("APIGUARD_BREAKER_COOLDOWN", "1s")

		opts, err := FromConfig(context.Background(), ConfigFromEnv())
		require.NoError(t, err)
		require.Len(t, opts, 2)

		inner := &countingHandler{status: http.StatusInternalServerError}
		h := New(opts...).Middleware(inner)
		for range 3 {
			call(h)
		}
		require.Equal(t, 2, inner.Calls())
	})

	t.Run("will keep defaults for unset values", func(t *testing.T) {
		opts, err := FromConfig(context.Background(), Config{})
		require.NoError(t, err)
		require.Empty(t, opts)
	})

	t.Run("will reject a non positive threshold", func(t *testing.T) {
		t.Setenv("APIGUARD_BREAKER_THRESHOLD", "0")

		_, err := FromConfig(context.Background(), ConfigFromEnv())
		require.Error(t, err)
	})
}
