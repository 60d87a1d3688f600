// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/z5labs/apiguard/schema"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/z5labs/sdk-go/try"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Endpoint serves a single registered [Route].
type Endpoint struct {
	router   *Router
	route    Route
	dispatch Dispatch

	params   schema.Schema
	query    schema.Schema
	data     schema.Schema
	form     schema.Schema
	response schema.Schema
}

// Route returns the route this endpoint was registered with.
func (e *Endpoint) Route() Route {
	return e.route
}

// ServeHTTP implements the [http.Handler] interface.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := e.Serve(r)

	err := resp.Write(w)
	if err == nil {
		return
	}
	e.router.log.ErrorContext(
		r.Context(),
		"failed to write response",
		slog.String("method", e.route.Method),
		slog.String("path", e.route.Path),
		slog.Any("error", err),
	)
}

// Serve implements the [Handler] interface.
//
// Serve never returns nil. Failures of any step, including panics, are
// turned into a reply by the router's error mapping.
func (e *Endpoint) Serve(r *http.Request) *Response {
	ctx, span := e.router.tracer.Start(
		r.Context(),
		"Endpoint.Serve",
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("http.route", e.route.Path),
		),
	)
	defer span.End()

	startedAt := e.router.now()
	ev := LogEvent{
		RequestID: uuid.NewString(),
		Method:    r.Method,
		URL:       r.URL.String(),
	}

	resp, err := e.handle(ctx, r, &ev)
	ev.Elapsed = e.router.now().Sub(startedAt)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		ev.Err = err
		e.router.emitLog(ctx, e.router.errorLevel(err), ev)

		resp = e.router.errorToResponse(err)
		if resp == nil {
			return DefaultErrorToResponse(err)
		}
		return resp
	}

	level := LevelInfo
	if ev.Elapsed > SlowCall {
		level = LevelWarn
	}
	e.router.emitLog(ctx, level, ev)
	return resp
}

func (e *Endpoint) handle(ctx context.Context, r *http.Request, ev *LogEvent) (resp *Response, err error) {
	defer try.Recover(&err)

	req := &Request{
		ID:  ev.RequestID,
		Raw: r,
	}

	p := pool.New().WithContext(ctx).WithFirstError()
	p.Go(func(ctx context.Context) (err error) {
		req.Params, err = e.readParams(r)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		req.Query, err = e.readQuery(r)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		req.Data, err = e.readData(ctx, r)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		req.Form, err = e.readForm(ctx, r)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		if e.router.custom == nil {
			return nil
		}
		req.Custom, err = e.router.custom(ctx, r, e.route)
		return err
	})
	err = p.Wait()

	ev.Params = req.Params
	ev.Query = req.Query
	ev.Data = req.Data
	ev.Form = req.Form
	ev.Custom = req.Custom
	if err != nil {
		return nil, err
	}

	out, err := e.dispatch(ctx, req)
	if err != nil {
		return nil, err
	}

	switch v := out.(type) {
	case *Response:
		if v == nil {
			return Empty(), nil
		}
		return v, nil
	case nil:
		return Empty(), nil
	}

	result, err := e.validateResponse(out)
	if err != nil {
		return nil, err
	}
	ev.Result = result
	return JSON(http.StatusOK, result), nil
}

func (e *Endpoint) readParams(r *http.Request) (any, error) {
	if e.params == nil {
		return map[string]any{}, nil
	}
	return e.params.Parse(readParams(r))
}

func (e *Endpoint) readQuery(r *http.Request) (any, error) {
	if e.query == nil {
		return map[string]any{}, nil
	}
	return e.query.Parse(readQuery(r))
}

func (e *Endpoint) readData(ctx context.Context, r *http.Request) (any, error) {
	if e.data == nil {
		return map[string]any{}, nil
	}
	v, ok, err := readBody(r)
	if err != nil {
		e.undecodable(ctx, "data", err)
	}
	if !ok {
		return nil, nil
	}
	return e.data.Parse(v)
}

func (e *Endpoint) readForm(ctx context.Context, r *http.Request) (any, error) {
	if e.form == nil {
		return map[string]any{}, nil
	}
	form, ok, err := readForm(r, e.form, e.router.maxMemory)
	if err != nil {
		e.undecodable(ctx, "form", err)
	}
	if !ok {
		return nil, nil
	}
	return e.form.Parse(form)
}

// undecodable records a payload which is treated as absent.
func (e *Endpoint) undecodable(ctx context.Context, field string, err error) {
	e.router.log.WarnContext(
		ctx,
		"ignoring undecodable request payload",
		slog.String("method", e.route.Method),
		slog.String("path", e.route.Path),
		slog.String("field", field),
		slog.Any("error", err),
	)
}

// validateResponse parses the JSON form of v with the response schema.
func (e *Endpoint) validateResponse(v any) (any, error) {
	if e.response == nil {
		return v, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var decoded any
	err = json.Unmarshal(b, &decoded)
	if err != nil {
		return nil, err
	}
	return e.response.Parse(decoded)
}
