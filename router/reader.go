// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/z5labs/apiguard/schema"
)

// ContentTypeMultipartForm is the media type of form uploads.
const ContentTypeMultipartForm = "multipart/form-data"

// DefaultMaxMemory is the number of bytes of a multipart form kept in memory
// before file parts are spooled to disk.
const DefaultMaxMemory = 32 << 20

func readParams(r *http.Request) map[string]any {
	params := make(map[string]any)

	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return params
	}
	for i, key := range rctx.URLParams.Keys {
		if i >= len(rctx.URLParams.Values) {
			break
		}
		params[key] = rctx.URLParams.Values[i]
	}
	return params
}

// readQuery decodes every query value as JSON, falling back to the raw
// string. Repeated keys collect their values into an array.
func readQuery(r *http.Request) map[string]any {
	values := r.URL.Query()

	query := make(map[string]any, len(values))
	for key, raw := range values {
		if len(raw) == 1 {
			query[key] = decodeValue(raw[0])
			continue
		}

		items := make([]any, len(raw))
		for i, value := range raw {
			items[i] = decodeValue(value)
		}
		query[key] = items
	}
	return query
}

func decodeValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func hasBody(r *http.Request) bool {
	return r.Method != http.MethodGet && r.ContentLength > 0
}

// readBody returns the decoded JSON body and whether one was present.
// A body which cannot be decoded is reported as absent along with the
// decode error.
func readBody(r *http.Request) (any, bool, error) {
	if !hasBody(r) {
		return nil, false, nil
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != ContentTypeJSON {
		return nil, false, nil
	}

	var v any
	err = json.NewDecoder(r.Body).Decode(&v)
	if err != nil {
		return nil, false, fmt.Errorf("malformed json body: %w", err)
	}
	return v, true, nil
}

// readForm returns the decoded multipart form and whether one was present.
// Non file values are decoded as JSON with a fallback to the raw string and
// files are kept as *multipart.FileHeader. A key whose schema is an array
// accumulates every value, any other key keeps the last one. A form which
// cannot be parsed is reported as absent along with the parse error.
func readForm(r *http.Request, s schema.Schema, maxMemory int64) (map[string]any, bool, error) {
	if !hasBody(r) {
		return nil, false, nil
	}
	if !strings.Contains(r.Header.Get("Content-Type"), ContentTypeMultipartForm) {
		return nil, false, nil
	}

	err := r.ParseMultipartForm(maxMemory)
	if err != nil {
		return nil, false, fmt.Errorf("malformed multipart form: %w", err)
	}

	form := make(map[string]any)
	put := func(key string, value any) {
		if !schema.IsArray(schema.Field(s, key)) {
			form[key] = value
			return
		}
		items, _ := form[key].([]any)
		form[key] = append(items, value)
	}

	for key, values := range r.MultipartForm.Value {
		for _, value := range values {
			put(key, decodeValue(value))
		}
	}
	for key, files := range r.MultipartForm.File {
		for _, file := range files {
			put(key, file)
		}
	}
	return form, true, nil
}
