// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package schema

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrMissingFile is the cause of a [ValidationError] for an absent or empty upload.
	ErrMissingFile = errors.New("file is required")

	// ErrFileTooLarge is the cause of a [ValidationError] for an upload exceeding its max size.
	ErrFileTooLarge = errors.New("file is too large")
)

// ValidationError is returned when a value is rejected by a schema.
type ValidationError struct {
	// Path locates the rejected value, e.g. /items/0/name.
	Path    string
	Message string
	Cause   error

	// anchored errors already carry a complete path.
	anchored bool
}

// Error implements the [error] interface.
func (e *ValidationError) Error() string {
	path := e.Path
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("validation failed at %s: %s", path, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func withPrefix(err error, segment string) error {
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.anchored {
		return err
	}
	c := *verr
	c.Path = "/" + segment + c.Path
	return &c
}

func withIndex(err error, i int) error {
	return withPrefix(err, strconv.Itoa(i))
}
