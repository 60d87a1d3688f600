// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package breaker implements a per route circuit breaker.
//
// Every METHOD:path key moves between [Closed], [Open] and [HalfOpen].
// A closed circuit opens once its failure count reaches the threshold. An
// open circuit rejects calls without invoking the handler until its cool
// down elapses, after which the next call is let through as a probe. A
// successful probe closes the circuit and a failed one reopens it.
//
// While a circuit is half open every concurrent call is let through.
package breaker

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/z5labs/apiguard"
	"github.com/z5labs/apiguard/health"
	"github.com/z5labs/apiguard/router"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// RetryLaterMessage is the error message of the default rejection.
const RetryLaterMessage = "Retry after few minutes"

// Options configure a [Breaker].
type Options struct {
	threshold  int
	coolDown   time.Duration
	classify   func(*router.Response) bool
	onOpen     func(ctx context.Context, method, path string)
	rejection  func(ctx context.Context, key string) *router.Response
	store      Store
	now        func() time.Time
	logHandler slog.Handler
}

// Option sets a value on [Options].
type Option func(*Options)

// Threshold sets the number of failures which open a closed circuit. The default is 5.
func Threshold(n int) Option {
	return func(o *Options) {
		o.threshold = n
	}
}

// CoolDown sets how long a circuit stays open. The default is 5 seconds.
func CoolDown(d time.Duration) Option {
	return func(o *Options) {
		o.coolDown = d
	}
}

// Classify sets the predicate deciding whether a response is a failure.
// The default treats every 5xx status as a failure.
func Classify(f func(*router.Response) bool) Option {
	return func(o *Options) {
		o.classify = f
	}
}

// OnOpen sets the callback invoked when a closed circuit opens.
// It is not invoked when a half open circuit reopens.
func OnOpen(f func(ctx context.Context, method, path string)) Option {
	return func(o *Options) {
		o.onOpen = f
	}
}

// Rejection sets the response returned while a circuit is open.
func Rejection(f func(ctx context.Context, key string) *router.Response) Option {
	return func(o *Options) {
		o.rejection = f
	}
}

// WithStore sets where contexts are kept. The default is a [MemoryStore].
func WithStore(s Store) Option {
	return func(o *Options) {
		o.store = s
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.now = now
	}
}

// LogHandler sets the handler used for breaker logs.
func LogHandler(h slog.Handler) Option {
	return func(o *Options) {
		o.logHandler = h
	}
}

// ServerError reports whether resp has a 5xx status.
func ServerError(resp *router.Response) bool {
	return resp.Status/100 == 5
}

// Breaker guards calls keyed by METHOD:path. It owns the [Store] holding
// the state of every key and is meant to be created once per service.
//
// The path part of a key depends on the entry point. [Breaker.Middleware]
// uses the concrete URL path, so GET /api/pets/1 and GET /api/pets/2 trip
// separately. rest.Breaker passes the route template instead, so every
// call to GET /api/pets/{id} shares one circuit. Keys given to
// [Breaker.Monitor] and [Breaker.State] must use the same form.
type Breaker struct {
	log         *slog.Logger
	tracer      trace.Tracer
	transitions metric.Int64Counter

	threshold int
	coolDown  time.Duration
	classify  func(*router.Response) bool
	onOpen    func(ctx context.Context, method, path string)
	rejection func(ctx context.Context, key string) *router.Response
	store     Store
	now       func() time.Time
}

// New initializes a [Breaker].
func New(opts ...Option) *Breaker {
	o := &Options{
		threshold:  5,
		coolDown:   5 * time.Second,
		classify:   ServerError,
		rejection:  defaultRejection,
		now:        time.Now,
		logHandler: apiguard.LogHandler("github.com/z5labs/apiguard/breaker"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		o.store = NewMemoryStore()
	}

	log := slog.New(o.logHandler)
	if o.onOpen == nil {
		o.onOpen = func(ctx context.Context, method, path string) {
			log.ErrorContext(
				ctx,
				"circuit breaker opened",
				slog.String("method", method),
				slog.String("path", path),
			)
		}
	}

	meter := otel.Meter("github.com/z5labs/apiguard/breaker")
	transitions, err := meter.Int64Counter(
		"breaker.transitions",
		metric.WithDescription("Number of circuit state changes"),
	)
	if err != nil {
		log.Warn("failed to create transitions counter", slog.Any("error", err))
		transitions = noop.Int64Counter{}
	}

	return &Breaker{
		log:         log,
		tracer:      otel.Tracer("github.com/z5labs/apiguard/breaker"),
		transitions: transitions,
		threshold:   o.threshold,
		coolDown:    o.coolDown,
		classify:    o.classify,
		onOpen:      o.onOpen,
		rejection:   o.rejection,
		store:       o.store,
		now:         o.now,
	}
}

func defaultRejection(ctx context.Context, key string) *router.Response {
	return router.DefaultErrorToResponse(router.NewError(http.StatusInternalServerError, RetryLaterMessage))
}

// Key returns the breaker key of a call.
func Key(method, path string) string {
	return method + ":" + path
}

type transition struct {
	from, to State
}

// Guard runs call unless the circuit for method and path is open.
//
// If the store fails the call is let through and its outcome is not recorded.
func (b *Breaker) Guard(ctx context.Context, method, path string, call func() *router.Response) *router.Response {
	key := Key(method, path)

	spanCtx, span := b.tracer.Start(ctx, "Breaker.Guard", trace.WithAttributes(attribute.String("breaker.key", key)))
	defer span.End()

	var (
		rejected bool
		changes  []transition
	)
	_, err := b.store.Update(spanCtx, key, func(c *Context) error {
		rejected = false
		changes = changes[:0]

		if c.State != Open {
			return nil
		}
		if b.now().Before(c.ResetAt) {
			rejected = true
			return nil
		}
		changes = append(changes, transition{from: Open, to: HalfOpen})
		c.State = HalfOpen
		return nil
	})
	if err != nil {
		b.log.WarnContext(spanCtx, "breaker store unavailable, letting call through", slog.String("key", key), slog.Any("error", err))
		return call()
	}
	b.record(spanCtx, key, changes)

	if rejected {
		span.SetAttributes(attribute.Bool("breaker.rejected", true))
		return b.rejection(spanCtx, key)
	}

	resp := call()
	failed := b.classify(resp)

	var opened bool
	_, err = b.store.Update(spanCtx, key, func(c *Context) error {
		opened = false
		changes = changes[:0]

		if !failed {
			if c.State == HalfOpen {
				changes = append(changes, transition{from: HalfOpen, to: Closed})
				*c = Context{State: Closed, ResetAt: b.now()}
			}
			return nil
		}

		c.FailureCount++
		if c.State != HalfOpen && c.FailureCount < b.threshold {
			return nil
		}

		opened = c.State == Closed
		if c.State != Open {
			changes = append(changes, transition{from: c.State, to: Open})
		}
		c.State = Open
		c.ResetAt = b.now().Add(b.coolDown)
		return nil
	})
	if err != nil {
		b.log.WarnContext(spanCtx, "failed to record call outcome", slog.String("key", key), slog.Any("error", err))
		return resp
	}
	b.record(spanCtx, key, changes)

	if opened {
		b.onOpen(spanCtx, method, path)
	}
	return resp
}

func (b *Breaker) record(ctx context.Context, key string, changes []transition) {
	for _, t := range changes {
		b.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("breaker.key", key),
			attribute.String("from", t.from.String()),
			attribute.String("to", t.to.String()),
		))
	}
}

// Middleware guards h using the request method and the concrete URL path,
// not the route template, as the key.
func (b *Breaker) Middleware(h router.Handler) router.Handler {
	return router.HandlerFunc(func(r *http.Request) *router.Response {
		return b.Guard(r.Context(), r.Method, r.URL.Path, func() *router.Response {
			return h.Serve(r)
		})
	})
}

// State returns the context of key. An unknown key is reported as closed.
func (b *Breaker) State(ctx context.Context, key string) (Context, error) {
	c, _, err := b.store.Get(ctx, key)
	return c, err
}

// Monitor returns a [health.Monitor] which is unhealthy while any of keys is open.
func (b *Breaker) Monitor(keys ...string) health.Monitor {
	return health.MonitorFunc(func(ctx context.Context) (bool, error) {
		for _, key := range keys {
			c, err := b.State(ctx, key)
			if err != nil {
				return false, err
			}
			if c.State == Open && b.now().Before(c.ResetAt) {
				return false, nil
			}
		}
		return true, nil
	})
}
