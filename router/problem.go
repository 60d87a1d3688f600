// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"errors"
	"net/http"

	"github.com/z5labs/apiguard/schema"
)

// ContentTypeProblemJSON is the media type of an RFC 7807 Problem Details body.
const ContentTypeProblemJSON = "application/problem+json"

// ProblemDetail is an RFC 7807 Problem Details body.
//
// Embed it in an error type to control the reply and add extension fields:
//
//	type OutOfStockError struct {
//	    router.ProblemDetail
//	    Sku string `json:"sku"`
//	}
//
//	return nil, OutOfStockError{
//	    ProblemDetail: router.ProblemDetail{
//	        Type:   "https://petstore.example.com/problems/out-of-stock",
//	        Title:  "Out Of Stock",
//	        Status: http.StatusConflict,
//	    },
//	    Sku: sku,
//	}
//
// Reference: https://www.rfc-editor.org/rfc/rfc7807
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Error implements the [error] interface.
func (p ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

func (p ProblemDetail) problemStatus() int {
	return p.Status
}

type problem interface {
	error
	problemStatus() int
}

type validationProblem struct {
	ProblemDetail
	Path string `json:"path"`
}

type applicationProblem struct {
	ProblemDetail
	Code     string `json:"code,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// ProblemOptions configure [ProblemResponse].
type ProblemOptions struct {
	baseType    string
	hideDetails bool
}

// ProblemOption sets a value on [ProblemOptions].
type ProblemOption func(*ProblemOptions)

// ProblemType sets the base URI problem types are appended to, e.g.
// "https://api.example.com/problems/". The default is "about:blank",
// which is used for every problem.
func ProblemType(base string) ProblemOption {
	return func(po *ProblemOptions) {
		po.baseType = base
	}
}

// HideDetails replaces the detail of unexpected errors with a fixed message
// so internal failures are not leaked to clients.
func HideDetails() ProblemOption {
	return func(po *ProblemOptions) {
		po.hideDetails = true
	}
}

// ProblemResponse returns an error mapping for [ErrorToResponse] which
// replies with RFC 7807 Problem Details.
//
// Errors embedding [ProblemDetail] are sent as is, including their extension
// fields. An [*Error] is reported with its own status, code and redirect. A
// [*schema.ValidationError] is a 400 Bad Request with the rejected path.
// Everything else is a 500 Internal Server Error.
func ProblemResponse(opts ...ProblemOption) func(error) *Response {
	po := &ProblemOptions{
		baseType: "about:blank",
	}
	for _, opt := range opts {
		opt(po)
	}

	return func(err error) *Response {
		var p problem
		if errors.As(err, &p) {
			return problemJSON(p.problemStatus(), p)
		}

		var apiErr *Error
		if errors.As(err, &apiErr) {
			status := apiErr.Status
			if status == 0 {
				status = http.StatusInternalServerError
			}

			resp := problemJSON(status, applicationProblem{
				ProblemDetail: ProblemDetail{
					Type:   po.typeURI(apiErr.Code),
					Title:  http.StatusText(status),
					Status: status,
					Detail: apiErr.Message,
				},
				Code:     apiErr.Code,
				Redirect: apiErr.Redirect,
			})
			if apiErr.Redirect != "" && status >= 300 && status < 400 {
				resp.Header.Set("Location", apiErr.Redirect)
			}
			return resp
		}

		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			path := verr.Path
			if path == "" {
				path = "/"
			}
			return problemJSON(http.StatusBadRequest, validationProblem{
				ProblemDetail: ProblemDetail{
					Type:   po.typeURI("validation-failed"),
					Title:  "Validation Failed",
					Status: http.StatusBadRequest,
					Detail: verr.Message,
				},
				Path: path,
			})
		}

		detail := err.Error()
		if po.hideDetails {
			detail = "An internal server error occurred."
		}
		return problemJSON(http.StatusInternalServerError, ProblemDetail{
			Type:   po.typeURI("internal-error"),
			Title:  "Internal Server Error",
			Status: http.StatusInternalServerError,
			Detail: detail,
		})
	}
}

func (po *ProblemOptions) typeURI(problemType string) string {
	if po.baseType == "about:blank" || problemType == "" {
		return "about:blank"
	}
	return po.baseType + problemType
}

func problemJSON(status int, v any) *Response {
	resp := JSON(status, v)
	resp.Header.Set("Content-Type", ContentTypeProblemJSON)
	return resp
}
