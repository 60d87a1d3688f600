// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package openapi

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erraggy/oastools/parser"
	"github.com/erraggy/oastools/validator"
	"github.com/swaggest/openapi-go/openapi3"
)

// InvalidDocumentError lists the problems found by [Validate].
type InvalidDocumentError struct {
	Problems []string
}

func (e InvalidDocumentError) Error() string {
	return fmt.Sprintf("openapi document has %d problem(s): %v", len(e.Problems), e.Problems)
}

// Validate checks spec against the OpenAPI specification. Warnings are ignored.
func Validate(spec *openapi3.Spec) error {
	if spec == nil {
		return errors.New("openapi document is nil")
	}

	b, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to encode openapi document: %w", err)
	}

	parsed, err := parser.ParseWithOptions(parser.WithBytes(b))
	if err != nil {
		return fmt.Errorf("failed to parse openapi document: %w", err)
	}

	res, err := validator.ValidateWithOptions(
		validator.WithParsed(*parsed),
		validator.WithIncludeWarnings(false),
	)
	if err != nil {
		return fmt.Errorf("failed to validate openapi document: %w", err)
	}
	if res.Valid {
		return nil
	}

	problems := make([]string, 0, len(res.Errors))
	for _, issue := range res.Errors {
		problems = append(problems, issue.String())
	}
	return InvalidDocumentError{Problems: problems}
}
