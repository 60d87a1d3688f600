// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/z5labs/apiguard/schema"
)

// Error is an application error carrying the HTTP status it should be reported with.
//
// The default error mapping of a [Router] reports every error as 500. Use
// [ErrorResponse] with the [ErrorToResponse] option to honor Error.Status.
type Error struct {
	Status   int
	Code     string
	Message  string
	Redirect string
}

// NewError returns an [Error] with the given status and message.
func NewError(status int, message string) *Error {
	return &Error{
		Status:  status,
		Message: message,
	}
}

// Error implements the [error] interface.
func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithCode sets the machine readable error code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithMessage replaces the error message.
func (e *Error) WithMessage(message string) *Error {
	e.Message = message
	return e
}

// WithRedirect sets a location the client should be sent to.
func (e *Error) WithRedirect(redirect string) *Error {
	e.Redirect = redirect
	return e
}

// DefaultErrorToResponse reports err as a 500 with a JSON body of the form
// {"error":{"name":...,"message":...,"stack":...}}.
func DefaultErrorToResponse(err error) *Response {
	return JSON(http.StatusInternalServerError, map[string]any{
		"error": map[string]any{
			"name":    fmt.Sprintf("%T", err),
			"message": err.Error(),
			"stack":   fmt.Sprintf("%+v", err),
		},
	})
}

// ErrorResponse maps an [*Error] to its own status, a [*schema.ValidationError]
// to 400 Bad Request and everything else to [DefaultErrorToResponse].
func ErrorResponse(err error) *Response {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		status := apiErr.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}

		body := map[string]any{"message": apiErr.Message}
		if apiErr.Code != "" {
			body["code"] = apiErr.Code
		}
		if apiErr.Redirect != "" {
			body["redirect"] = apiErr.Redirect
		}

		resp := JSON(status, map[string]any{"error": body})
		if apiErr.Redirect != "" && status >= 300 && status < 400 {
			resp.Header.Set("Location", apiErr.Redirect)
		}
		return resp
	}

	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return JSON(http.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"path":    verr.Path,
				"message": verr.Message,
			},
		})
	}

	return DefaultErrorToResponse(err)
}
