// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"
)

// HookFunc releases a resource once the runtime has returned.
type HookFunc func(context.Context) error

// HookRegistry collects the hooks registered while building a runtime.
type HookRegistry struct {
	hooks []HookFunc
}

// OnPostRun registers hook to run after the runtime returns.
func (r *HookRegistry) OnPostRun(hook HookFunc) {
	r.hooks = append(r.hooks, hook)
}

type hookRuntime struct {
	inner Runtime
	hooks []HookFunc
}

// Run implements the [Runtime] interface.
//
// Hooks run in registration order with a context which is no longer
// cancelled by the runtime's context. Every hook runs even when the
// runtime or an earlier hook failed, and all errors are joined.
func (rt hookRuntime) Run(ctx context.Context) error {
	errs := []error{rt.inner.Run(ctx)}

	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range rt.hooks {
		errs = append(errs, hook(hookCtx))
	}
	return errors.Join(errs...)
}

// WithHooks lets f register cleanup hooks while it builds its runtime.
//
// A failed build runs the hooks registered so far, so that clients opened
// before the failure are still closed.
//
// Example usage:
//
//	builder := app.WithHooks(func(ctx context.Context, h *app.HookRegistry) (http.App, error) {
//	    client := redis.NewClient(&redis.Options{Addr: addr})
//	    h.OnPostRun(func(ctx context.Context) error {
//	        return client.Close()
//	    })
//	    return buildApp(ctx, breaker.NewRedisStore(client))
//	})
func WithHooks[T Runtime](f func(context.Context, *HookRegistry) (T, error)) Builder[hookRuntime] {
	return BuilderFunc[hookRuntime](func(ctx context.Context) (hookRuntime, error) {
		registry := &HookRegistry{}

		inner, err := f(ctx, registry)
		if err != nil {
			errs := []error{err}
			for _, hook := range registry.hooks {
				errs = append(errs, hook(context.WithoutCancel(ctx)))
			}
			return hookRuntime{}, errors.Join(errs...)
		}

		return hookRuntime{
			inner: inner,
			hooks: registry.hooks,
		}, nil
	})
}
