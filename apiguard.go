// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package apiguard provides validated, circuit broken HTTP routes with
// OpenAPI documentation generated from the same schemas.
//
// The building blocks live in sub packages:
//   - schema: validation schemas and their normalization
//   - router: the per call request pipeline
//   - breaker: the per route circuit breaker
//   - openapi: per route document fragments and their merge
//   - rest: a chi based [net/http.Handler] tying them together
package apiguard

import (
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// Logger returns a [slog.Logger] which sends records to the global OTel logger provider.
func Logger(name string) *slog.Logger {
	return otelslog.NewLogger(name)
}

// LogHandler returns a [slog.Handler] which sends records to the global OTel logger provider.
func LogHandler(name string) slog.Handler {
	return otelslog.NewHandler(name)
}
