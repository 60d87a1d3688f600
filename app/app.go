// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app builds and runs a service process.
//
// A [Builder] wires the process together, e.g. a router, its breaker store
// and the openapi synthesizer, and returns a [Runtime]. [Run] cancels the
// runtime on SIGINT or SIGTERM. Clients such as the redis connection behind
// a breaker store are closed by hooks registered with [WithHooks].
package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/z5labs/sdk-go/try"
)

// Builder creates a value, usually a [Runtime], from configuration
// available in the context.
type Builder[T any] interface {
	Build(context.Context) (T, error)
}

// BuilderFunc is a func adapter for [Builder].
type BuilderFunc[T any] func(context.Context) (T, error)

// Build implements the [Builder] interface.
func (f BuilderFunc[T]) Build(ctx context.Context) (T, error) {
	return f(ctx)
}

// Bind builds A and passes it to binder to obtain the [Builder] of B.
func Bind[A, B any](builder Builder[A], binder func(A) Builder[B]) Builder[B] {
	return BuilderFunc[B](func(ctx context.Context) (B, error) {
		a, err := builder.Build(ctx)
		if err != nil {
			var zero B
			return zero, err
		}
		return binder(a).Build(ctx)
	})
}

// Runtime runs until its context is cancelled or it fails.
type Runtime interface {
	Run(context.Context) error
}

// RuntimeFunc is a func adapter for [Runtime].
type RuntimeFunc func(context.Context) error

// Run implements the [Runtime] interface.
func (f RuntimeFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Run builds and runs the runtime produced by builder. A panic while
// building or running is returned as an error.
func Run[T Runtime](ctx context.Context, builder Builder[T]) (err error) {
	defer try.Recover(&err)

	sigCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := builder.Build(sigCtx)
	if err != nil {
		return err
	}

	return rt.Run(sigCtx)
}

// LogError logs err, if any, to handler.
func LogError(handler slog.Handler, err error) {
	if err == nil {
		return
	}

	log := slog.New(handler)
	log.Error("failed to run app", slog.Any("error", err))
}
