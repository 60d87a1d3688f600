// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"encoding/json"
	"net/http"
)

// ContentTypeJSON is the media type used for every JSON body written by this package.
const ContentTypeJSON = "application/json"

// Response is a fully formed reply. Dispatch functions may return a *Response
// to bypass response validation and control the status and headers directly.
type Response struct {
	Status int
	Header http.Header

	// Body is JSON encoded when written unless it is a []byte,
	// which is written as is. A nil Body writes nothing.
	Body any
}

// JSON returns a [Response] which encodes v as its JSON body.
func JSON(status int, v any) *Response {
	h := make(http.Header)
	h.Set("Content-Type", ContentTypeJSON)
	return &Response{
		Status: status,
		Header: h,
		Body:   v,
	}
}

// Empty returns a 200 OK [Response] without a body.
func Empty() *Response {
	return &Response{
		Status: http.StatusOK,
		Header: make(http.Header),
	}
}

// Write sends the response to w.
func (r *Response) Write(w http.ResponseWriter) error {
	for key, values := range r.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}

	switch body := r.Body.(type) {
	case nil:
		w.WriteHeader(status)
		return nil
	case []byte:
		w.WriteHeader(status)
		_, err := w.Write(body)
		return err
	default:
		b, err := json.Marshal(body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return err
		}
		w.WriteHeader(status)
		_, err = w.Write(b)
		return err
	}
}
