// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package openapi builds an OpenAPI 3.0 document from registered routes.
//
// Every route is written as its own fragment to a [Store] when it is
// registered. [Synthesizer.MergeAll] later folds the fragments into one
// document, so routes registered by separate processes or builds end up in
// the same document.
package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/z5labs/apiguard"
	"github.com/z5labs/apiguard/router"
	"github.com/z5labs/apiguard/schema"

	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/ptr"
)

// ErrMissingPath is returned when a route has neither a path nor a directory.
var ErrMissingPath = errors.New("route has no path")

// Options configure a [Synthesizer].
type Options struct {
	logHandler slog.Handler
}

// Option sets a value on [Options].
type Option func(*Options)

// LogHandler sets the handler used for synthesizer logs.
func LogHandler(h slog.Handler) Option {
	return func(o *Options) {
		o.logHandler = h
	}
}

// Synthesizer writes route fragments to a [Store] and merges them back.
type Synthesizer struct {
	log   *slog.Logger
	store Store
}

// NewSynthesizer initializes a [Synthesizer] backed by store.
func NewSynthesizer(store Store, opts ...Option) *Synthesizer {
	o := &Options{
		logHandler: apiguard.LogHandler("github.com/z5labs/apiguard/openapi"),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Synthesizer{
		log:   slog.New(o.logHandler),
		store: store,
	}
}

// Subscriber returns a [router.RouteSubscriber] which synthesizes every
// route added to a [router.Router].
func (s *Synthesizer) Subscriber() router.RouteSubscriber {
	return router.RouteSubscriberFunc(s.Synthesize)
}

// Synthesize stores the fragment of route, replacing any fragment
// previously stored for the same method and path.
func (s *Synthesizer) Synthesize(ctx context.Context, route router.Route) error {
	spec, err := Fragment(route)
	if err != nil {
		return err
	}

	b, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal fragment: %w", err)
	}

	name := FileName(route.Path, route.Method)
	err = s.store.Put(ctx, name, b)
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "stored openapi fragment", slog.String("name", name))
	return nil
}

// FileName returns the fragment name of a method and path, e.g.
// /api/users/{id} and GET give $api$users$[id]@get.json.
func FileName(path, method string) string {
	name := strings.NewReplacer("/", "$", "{", "[", "}", "]").Replace(path)
	return name + "@" + strings.ToLower(method) + ".json"
}

// Fragment builds a document describing route alone. Its schemas are
// normalized for documentation.
func Fragment(route router.Route) (*openapi3.Spec, error) {
	if route.Path == "" {
		return nil, ErrMissingPath
	}

	v := route.Validation
	params := schema.Normalize(v.Params, schema.ModeDocumentation)
	query := schema.Normalize(v.Query, schema.ModeDocumentation)
	data := schema.Normalize(v.Data, schema.ModeDocumentation)
	form := schema.Normalize(v.Form, schema.ModeDocumentation)
	response := schema.Normalize(v.Response, schema.ModeDocumentation)

	op := openapi3.Operation{
		Tags: route.Tags,
	}
	if route.Summary != "" {
		op.Summary = ptr.Ref(route.Summary)
	}
	if route.Description != "" {
		op.Description = ptr.Ref(route.Description)
	}
	if route.OperationID != "" {
		op.ID = ptr.Ref(route.OperationID)
	}
	if route.Deprecated {
		op.Deprecated = ptr.Ref(true)
	}

	pathParams, err := pathParameters(route.Path, params)
	if err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	queryParams, err := queryParameters(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	op.Parameters = append(pathParams, queryParams...)

	body, err := requestBody(data, form)
	if err != nil {
		return nil, err
	}
	op.RequestBody = body

	ok := openapi3.Response{
		Description: "OK",
	}
	if response != nil {
		s, err := schemaOrRef(response)
		if err != nil {
			return nil, fmt.Errorf("response: %w", err)
		}
		ok.Content = map[string]openapi3.MediaType{
			router.ContentTypeJSON: {Schema: s},
		}
	}
	op.Responses = openapi3.Responses{
		MapOfResponseOrRefValues: map[string]openapi3.ResponseOrRef{
			"200": {Response: &ok},
		},
	}

	spec := &openapi3.Spec{
		Openapi: "3.0.0",
		Info: openapi3.Info{
			Title:   "temp",
			Version: "1.0",
		},
	}
	method := route.Method
	if method == "" {
		method = http.MethodGet
	}
	err = spec.AddOperation(method, route.Path, op)
	if err != nil {
		return nil, fmt.Errorf("failed to add operation: %w", err)
	}
	return spec, nil
}

func requestBody(data, form schema.Schema) (*openapi3.RequestBodyOrRef, error) {
	if data == nil && form == nil {
		return nil, nil
	}

	content := make(map[string]openapi3.MediaType, 2)
	if data != nil {
		s, err := schemaOrRef(data)
		if err != nil {
			return nil, fmt.Errorf("data: %w", err)
		}
		content[router.ContentTypeJSON] = openapi3.MediaType{Schema: s}
	}
	if form != nil {
		s, err := schemaOrRef(form)
		if err != nil {
			return nil, fmt.Errorf("form: %w", err)
		}
		content[router.ContentTypeMultipartForm] = openapi3.MediaType{Schema: s}
	}

	return &openapi3.RequestBodyOrRef{
		RequestBody: &openapi3.RequestBody{
			Required: ptr.Ref(true),
			Content:  content,
		},
	}, nil
}

// pathParameters documents every placeholder of path. Placeholders without
// a declared field are documented as strings.
func pathParameters(path string, params schema.Schema) ([]openapi3.ParameterOrRef, error) {
	var out []openapi3.ParameterOrRef
	for _, name := range placeholders(path) {
		field := schema.Field(params, name)
		if field == nil {
			field = schema.Str()
		}

		p, err := parameter(name, openapi3.ParameterInPath, field)
		if err != nil {
			return nil, err
		}
		p.Parameter.Required = ptr.Ref(true)
		out = append(out, p)
	}
	return out, nil
}

func queryParameters(query schema.Schema) ([]openapi3.ParameterOrRef, error) {
	obj, ok := query.(*schema.Object)
	if !ok {
		return nil, nil
	}

	names := make([]string, 0, len(obj.Fields))
	for name := range obj.Fields {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]openapi3.ParameterOrRef, 0, len(names))
	for _, name := range names {
		p, err := parameter(name, openapi3.ParameterInQuery, obj.Fields[name])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func parameter(name string, in openapi3.ParameterIn, field schema.Schema) (openapi3.ParameterOrRef, error) {
	s, err := schemaOrRef(field)
	if err != nil {
		return openapi3.ParameterOrRef{}, fmt.Errorf("%s: %w", name, err)
	}

	p := &openapi3.Parameter{
		Name:   name,
		In:     in,
		Schema: s,
	}
	if _, optional := field.(*schema.Optional); !optional {
		p.Required = ptr.Ref(true)
	}
	meta := schema.MetaOf(field)
	if meta.Description != "" {
		p.Description = ptr.Ref(meta.Description)
	}
	if meta.Deprecated {
		p.Deprecated = ptr.Ref(true)
	}
	return openapi3.ParameterOrRef{Parameter: p}, nil
}

func schemaOrRef(s schema.Schema) (*openapi3.SchemaOrRef, error) {
	js, err := schema.JSONSchema(s)
	if err != nil {
		return nil, err
	}

	var sor openapi3.SchemaOrRef
	sor.FromJSONSchema(js.ToSchemaOrBool())
	return &sor, nil
}

func placeholders(path string) []string {
	var names []string
	for seg := range strings.SplitSeq(path, "/") {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(seg, "{"), "}")
		name, _, _ = strings.Cut(name, ":")
		names = append(names, name)
	}
	return names
}
