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

	"github.com/z5labs/apiguard"
	"github.com/z5labs/apiguard/router"
)

// ProblemDetailsErrorHandler is an [ErrorHandler] which replies with RFC 7807
// Problem Details, see [router.ProblemResponse].
//
// Example:
//
//	rest.Handle(rt, route, dispatch, rest.OnError(rest.NewProblemDetailsErrorHandler(
//	    router.ProblemType("https://api.example.com/problems/"),
//	    router.HideDetails(),
//	)))
type ProblemDetailsErrorHandler struct {
	log      *slog.Logger
	response func(error) *router.Response
}

// NewProblemDetailsErrorHandler initializes a [ProblemDetailsErrorHandler].
func NewProblemDetailsErrorHandler(opts ...router.ProblemOption) *ProblemDetailsErrorHandler {
	return &ProblemDetailsErrorHandler{
		log:      apiguard.Logger("github.com/z5labs/apiguard/rest"),
		response: router.ProblemResponse(opts...),
	}
}

// OnError implements the [ErrorHandler] interface.
func (h *ProblemDetailsErrorHandler) OnError(ctx context.Context, w http.ResponseWriter, err error) {
	var we writeError
	if errors.As(err, &we) {
		h.log.WarnContext(ctx, "failed to write response", slog.Any("error", we))
		return
	}

	h.log.ErrorContext(ctx, "sending problem details", slog.Any("error", err))

	werr := h.response(err).Write(w)
	if werr != nil {
		h.log.ErrorContext(ctx, "failed to write problem details", slog.Any("error", werr))
	}
}
