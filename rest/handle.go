// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/z5labs/apiguard/breaker"
	"github.com/z5labs/apiguard/openapi"
	"github.com/z5labs/apiguard/router"

	"github.com/z5labs/sdk-go/try"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OperationOptions holds configuration for an operation registered with [Handle].
type OperationOptions struct {
	breaker    *breaker.Breaker
	errHandler ErrorHandler
}

// OperationOption configures an operation created by [Handle].
type OperationOption func(*OperationOptions)

// Breaker guards the operation with b. The circuit is keyed by the
// route method and path template, see [breaker.Key].
func Breaker(b *breaker.Breaker) OperationOption {
	return func(oo *OperationOptions) {
		oo.breaker = b
	}
}

// OnError configures a custom [ErrorHandler] for an operation.
// It receives failures to write a response and recovered panics.
//
// Example:
//
//	eh := rest.ErrorHandlerFunc(func(ctx context.Context, w http.ResponseWriter, err error) {
//	    w.WriteHeader(http.StatusBadGateway)
//	})
//	rest.Handle(rt, route, dispatch, rest.OnError(eh))
func OnError(eh ErrorHandler) OperationOption {
	return func(oo *OperationOptions) {
		oo.errHandler = eh
	}
}

// Handle registers route with rt and serves the resulting [router.Endpoint]
// from the [Api]. The route's OpenAPI fragment is added to the document
// served at /openapi.json.
//
// Handle panics if the fragment can not be built, for example when the
// route has neither a path nor a directory.
func Handle(rt *router.Router, route router.Route, d router.Dispatch, opts ...OperationOption) ApiOption {
	return apiOptionFunc(func(ao *ApiOptions) {
		ep := rt.Route(route, d)
		route := ep.Route()

		fragment, err := openapi.Fragment(route)
		if err != nil {
			panic(err)
		}
		b, err := json.Marshal(fragment)
		if err != nil {
			panic(err)
		}
		ao.fragments = append(ao.fragments, b)

		oo := &OperationOptions{
			errHandler: defaultErrorHandler(ao.logHandler),
		}
		for _, opt := range opts {
			opt(oo)
		}

		var inner router.Handler = ep
		if oo.breaker != nil {
			inner = guarded(oo.breaker, route, ep)
		}

		method := route.Method
		if method == "" {
			method = http.MethodGet
		}

		ao.mux.Method(
			method,
			route.Path,
			otelhttp.WithRouteTag(route.Path, &operationHandler{
				tracer:     otel.Tracer("github.com/z5labs/apiguard/rest"),
				route:      route,
				errHandler: oo.errHandler,
				inner:      inner,
			}),
		)
	})
}

func guarded(b *breaker.Breaker, route router.Route, h router.Handler) router.Handler {
	return router.HandlerFunc(func(r *http.Request) *router.Response {
		return b.Guard(r.Context(), r.Method, route.Path, func() *router.Response {
			return h.Serve(r)
		})
	})
}

type operationHandler struct {
	tracer     trace.Tracer
	route      router.Route
	errHandler ErrorHandler
	inner      router.Handler
}

// ServeHTTP implements the [http.Handler] interface.
func (h *operationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	spanCtx, span := h.tracer.Start(
		r.Context(),
		"operationHandler.ServeHTTP",
		trace.WithAttributes(attribute.String("http.route", h.route.Path)),
	)
	defer span.End()

	err := h.serve(w, r.WithContext(spanCtx))
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	h.errHandler.OnError(spanCtx, w, err)
}

func (h *operationHandler) serve(w http.ResponseWriter, r *http.Request) (err error) {
	defer try.Recover(&err)

	resp := h.inner.Serve(r)
	if resp == nil {
		return fmt.Errorf("no response for %s", breaker.Key(r.Method, h.route.Path))
	}
	err = resp.Write(w)
	if err != nil {
		return writeError{route: h.route, err: err}
	}
	return nil
}

type writeError struct {
	route router.Route
	err   error
}

func (e writeError) Error() string {
	return fmt.Sprintf("failed to write response for %s: %s", e.route.Path, e.err)
}

func (e writeError) Unwrap() error {
	return e.err
}

func (e writeError) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", e.route.Path),
		slog.Any("error", e.err),
	)
}
