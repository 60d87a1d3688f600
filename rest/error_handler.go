// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/z5labs/apiguard/router"
)

// ErrorHandler handles the errors an operation could not turn into a
// [router.Response]: recovered panics and failures while writing.
//
// Errors returned by a dispatch function never reach it. Those are mapped
// by the router, see [router.ErrorToResponse].
type ErrorHandler interface {
	OnError(context.Context, http.ResponseWriter, error)
}

// ErrorHandlerFunc is a func adapter for [ErrorHandler].
type ErrorHandlerFunc func(context.Context, http.ResponseWriter, error)

// OnError implements the [ErrorHandler] interface.
func (f ErrorHandlerFunc) OnError(ctx context.Context, w http.ResponseWriter, err error) {
	f(ctx, w, err)
}

func defaultErrorHandler(h slog.Handler) ErrorHandlerFunc {
	log := slog.New(h)

	return func(ctx context.Context, w http.ResponseWriter, err error) {
		var we writeError
		if errors.As(err, &we) {
			log.WarnContext(ctx, "failed to write response", slog.Any("error", we))
			return
		}

		log.ErrorContext(ctx, "operation failed", slog.Any("error", err))

		werr := router.DefaultErrorToResponse(err).Write(w)
		if werr != nil {
			log.WarnContext(ctx, "failed to write error response", slog.Any("error", werr))
		}
	}
}
