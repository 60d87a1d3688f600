// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health reports whether a service should receive traffic.
//
// A [Monitor] is usually backed by a circuit breaker or a flag flipped
// during startup and shutdown. Monitors compose with [All] and [Any] and are
// served over HTTP with [Handler].
package health

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sourcegraph/conc/iter"
)

// Monitor reports the current health of a component.
type Monitor interface {
	Healthy(context.Context) (bool, error)
}

// MonitorFunc is a func adapter for [Monitor].
type MonitorFunc func(context.Context) (bool, error)

// Healthy implements the [Monitor] interface.
func (f MonitorFunc) Healthy(ctx context.Context) (bool, error) {
	return f(ctx)
}

// Binary is a [Monitor] toggled by hand. It is safe for concurrent use and
// starts unhealthy.
type Binary struct {
	healthy atomic.Bool
}

// MarkUnhealthy reports unhealthy from now on.
func (b *Binary) MarkUnhealthy() {
	b.healthy.Store(false)
}

// MarkHealthy reports healthy from now on.
func (b *Binary) MarkHealthy() {
	b.healthy.Store(true)
}

// Healthy implements the [Monitor] interface.
func (b *Binary) Healthy(ctx context.Context) (bool, error) {
	return b.healthy.Load(), nil
}

type check struct {
	healthy bool
	err     error
}

func checkAll(ctx context.Context, ms []Monitor) []check {
	return iter.Map(ms, func(m *Monitor) check {
		healthy, err := (*m).Healthy(ctx)
		return check{healthy: healthy, err: err}
	})
}

// All is healthy when every monitor is healthy. Monitors are checked
// concurrently and their errors are joined. An empty All is healthy.
func All(ms ...Monitor) Monitor {
	return MonitorFunc(func(ctx context.Context) (bool, error) {
		healthy := true
		var errs []error
		for _, c := range checkAll(ctx, ms) {
			healthy = healthy && c.healthy && c.err == nil
			errs = append(errs, c.err)
		}
		return healthy, errors.Join(errs...)
	})
}

// Any is healthy when at least one monitor is healthy without error.
// Monitors are checked concurrently. Errors are only reported when no
// monitor is healthy.
func Any(ms ...Monitor) Monitor {
	return MonitorFunc(func(ctx context.Context) (bool, error) {
		var errs []error
		for _, c := range checkAll(ctx, ms) {
			if c.healthy && c.err == nil {
				return true, nil
			}
			errs = append(errs, c.err)
		}
		return false, errors.Join(errs...)
	})
}
