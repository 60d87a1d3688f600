// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package router turns dispatch functions into validated HTTP endpoints.
//
// A [Router] owns the event subscribers and error policies shared by every
// route it registers. Each call to an [Endpoint] gathers the path params,
// query, JSON body, multipart form and custom fields concurrently, validates
// them against the route's schemas, invokes the dispatch function, validates
// its result and emits exactly one log event.
package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/z5labs/apiguard"
	"github.com/z5labs/apiguard/schema"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Validation holds the schemas applied to each slot of a call.
// A nil schema means the slot is not read and is passed to dispatch as an empty object.
type Validation struct {
	Params   schema.Schema
	Query    schema.Schema
	Data     schema.Schema
	Form     schema.Schema
	Response schema.Schema
}

// Route describes a registered operation.
type Route struct {
	Method string

	// Path is the chi style route pattern, e.g. /api/users/{id}.
	// When empty it is derived from Dir with [PathFromDir].
	Path string
	Dir  string

	Summary     string
	Description string
	Tags        []string
	OperationID string
	Deprecated  bool

	Validation Validation
}

// Request is handed to a [Dispatch] function.
type Request struct {
	ID string

	// Raw is the original request. Its body has already been consumed
	// when Data or Form were read.
	Raw *http.Request

	Params any
	Query  any
	Data   any
	Form   any
	Custom any
}

// Dispatch handles a validated call.
//
// Returning a [*Response] sends it as is. Returning nil sends an empty
// 200 OK. Any other value is validated by the route's response schema
// and sent as a JSON 200 OK.
type Dispatch func(context.Context, *Request) (any, error)

// Handler produces a [Response] for a request.
type Handler interface {
	Serve(*http.Request) *Response
}

// HandlerFunc is a func adapter for [Handler].
type HandlerFunc func(*http.Request) *Response

// Serve implements the [Handler] interface.
func (f HandlerFunc) Serve(r *http.Request) *Response {
	return f(r)
}

// CustomProducer computes caller defined fields for every call.
// It runs concurrently with the other readers.
type CustomProducer func(context.Context, *http.Request, Route) (any, error)

// Options configure a [Router].
type Options struct {
	root            string
	maxMemory       int64
	errorLevel      func(error) Level
	errorToResponse func(error) *Response
	custom          CustomProducer
	logHandler      slog.Handler
	now             func() time.Time
}

// Option sets a value on [Options].
type Option func(*Options)

// ErrorLevel sets the classifier choosing the log level of failed calls.
// The default reports every failure at [LevelError].
func ErrorLevel(f func(error) Level) Option {
	return func(o *Options) {
		o.errorLevel = f
	}
}

// ErrorToResponse sets the mapping from a failed call to its reply.
// The default is [DefaultErrorToResponse].
func ErrorToResponse(f func(error) *Response) Option {
	return func(o *Options) {
		o.errorToResponse = f
	}
}

// CustomFields sets the producer of [Request.Custom].
func CustomFields(f CustomProducer) Option {
	return func(o *Options) {
		o.custom = f
	}
}

// RootDir sets the directory stripped from [Route.Dir] when deriving paths.
func RootDir(dir string) Option {
	return func(o *Options) {
		o.root = dir
	}
}

// MaxMemory sets the bytes of a multipart form held in memory.
func MaxMemory(n int64) Option {
	return func(o *Options) {
		o.maxMemory = n
	}
}

// LogHandler sets the handler used by the router and its default log subscriber.
func LogHandler(h slog.Handler) Option {
	return func(o *Options) {
		o.logHandler = h
	}
}

// Clock overrides the time source used to measure elapsed time.
func Clock(now func() time.Time) Option {
	return func(o *Options) {
		o.now = now
	}
}

// Router registers routes and holds the subscribers and policies shared by them.
type Router struct {
	log    *slog.Logger
	tracer trace.Tracer

	root            string
	maxMemory       int64
	errorLevel      func(error) Level
	errorToResponse func(error) *Response
	custom          CustomProducer
	now             func() time.Time

	routeAdded subscribers[RouteSubscriber]
	logged     subscribers[LogSubscriber]
}

// New initializes a [Router]. It starts with one log subscriber, see [SlogSubscriber].
func New(opts ...Option) *Router {
	o := &Options{
		maxMemory:       DefaultMaxMemory,
		errorLevel:      func(error) Level { return LevelError },
		errorToResponse: DefaultErrorToResponse,
		logHandler:      apiguard.LogHandler("github.com/z5labs/apiguard/router"),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	rt := &Router{
		log:             slog.New(o.logHandler),
		tracer:          otel.Tracer("github.com/z5labs/apiguard/router"),
		root:            o.root,
		maxMemory:       o.maxMemory,
		errorLevel:      o.errorLevel,
		errorToResponse: o.errorToResponse,
		custom:          o.custom,
		now:             o.now,
	}
	rt.logged.set(SlogSubscriber(o.logHandler))
	return rt
}

// OnRouteAdded appends s to the route subscribers. The returned func removes it.
func (rt *Router) OnRouteAdded(s RouteSubscriber) func() {
	return rt.routeAdded.add(s)
}

// OnLog appends s to the log subscribers. The returned func removes it.
func (rt *Router) OnLog(s LogSubscriber) func() {
	return rt.logged.add(s)
}

// SetLog replaces every log subscriber, including the default one, with subs.
func (rt *Router) SetLog(subs ...LogSubscriber) {
	rt.logged.set(subs...)
}

// Route registers route and returns the [Endpoint] serving it.
//
// Route subscribers are notified in order before the endpoint is returned.
// A subscriber error is logged and does not prevent registration.
func (rt *Router) Route(route Route, d Dispatch) *Endpoint {
	if route.Path == "" && route.Dir != "" {
		route.Path = PathFromDir(rt.root, route.Dir)
	}

	ctx := context.Background()
	for _, sub := range rt.routeAdded.snapshot() {
		err := sub.OnRouteAdded(ctx, route)
		if err == nil {
			continue
		}
		rt.log.ErrorContext(
			ctx,
			"route subscriber failed",
			slog.String("method", route.Method),
			slog.String("path", route.Path),
			slog.Any("error", err),
		)
	}

	v := route.Validation
	return &Endpoint{
		router:   rt,
		route:    route,
		dispatch: d,
		params:   schema.Normalize(v.Params, schema.ModeRuntime),
		query:    schema.Normalize(v.Query, schema.ModeRuntime),
		data:     schema.Normalize(v.Data, schema.ModeRuntime),
		form:     schema.Normalize(v.Form, schema.ModeRuntime),
		response: schema.Normalize(v.Response, schema.ModeRuntime),
	}
}

func (rt *Router) emitLog(ctx context.Context, level Level, ev LogEvent) {
	for _, sub := range rt.logged.snapshot() {
		sub.OnLog(ctx, level, ev)
	}
}
