// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package schema provides the validation schemas used to describe the
// params, query, body, form and response slots of a route.
//
// A [Schema] is one of a closed set of node types: [Object], [Optional],
// [Array], [Union], [Effect], [Lazy], [File] and the leaf types [String],
// [Number], [Boolean] and [Any]. A plain [Shape] may be used anywhere a
// [Schema] is accepted and is treated as an [Object].
//
// Before a schema is used it is rewritten by [Normalize] into a canonical
// form. The same normalized schema is used to parse every request and to
// generate OpenAPI documentation.
package schema

import (
	"regexp"
)

// Meta holds documentation hints attached to a schema node.
// It never affects parsing.
type Meta struct {
	Title       string
	Description string
	Example     any
	Format      string
	Deprecated  bool
}

// Schema validates a decoded value and returns its typed form.
//
// Values are expected to be in the shape produced by decoding JSON into an
// any, i.e. map[string]any, []any, string, float64, bool and nil. File
// values are accepted by [File] nodes.
type Schema interface {
	Parse(v any) (any, error)

	meta() Meta
	schemaNode()
}

// Shape is a plain field mapping. It is wrapped into an [Object] by [Normalize].
type Shape map[string]Schema

// Parse implements the [Schema] interface.
func (s Shape) Parse(v any) (any, error) {
	return Obj(s).Parse(v)
}

func (Shape) meta() Meta  { return Meta{} }
func (Shape) schemaNode() {}

// Object describes a JSON object with a fixed set of fields.
// Keys which are not declared are dropped while parsing.
type Object struct {
	Meta
	Fields map[string]Schema
}

func (o *Object) meta() Meta  { return o.Meta }
func (*Object) schemaNode() {}

// Optional allows the inner schema to be absent.
type Optional struct {
	Meta
	Inner Schema
}

func (o *Optional) meta() Meta  { return o.Meta }
func (*Optional) schemaNode() {}

// Array describes a list whose elements all satisfy Element.
type Array struct {
	Meta
	Element Schema
}

func (a *Array) meta() Meta  { return a.Meta }
func (*Array) schemaNode() {}

// Union accepts a value matching any of its options. Options are tried in order.
type Union struct {
	Meta
	Options []Schema
}

func (u *Union) meta() Meta  { return u.Meta }
func (*Union) schemaNode() {}

// Effect parses its source schema and then applies Transform to the result.
type Effect struct {
	Meta
	Source    Schema
	Transform func(any) (any, error)
}

func (e *Effect) meta() Meta  { return e.Meta }
func (*Effect) schemaNode() {}

// Lazy defers building a schema until it is needed, which allows
// self referencing schemas.
type Lazy struct {
	Meta
	Resolve func() Schema
}

func (l *Lazy) meta() Meta  { return l.Meta }
func (*Lazy) schemaNode() {}

// File describes a binary upload.
//
// A File which has not been normalized only checks that the value is a file.
// After normalization it also rejects missing or empty uploads with
// [ErrMissingFile] and uploads larger than MaxSize with [ErrFileTooLarge].
type File struct {
	Meta

	// MaxSize is the largest accepted size in bytes. Zero means unlimited.
	MaxSize int64

	checked bool
	path    string
}

func (f *File) meta() Meta  { return f.Meta }
func (*File) schemaNode() {}

// String describes a string value.
type String struct {
	Meta
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
	Enum      []string
}

func (s *String) meta() Meta  { return s.Meta }
func (*String) schemaNode() {}

// Number describes a numeric value.
type Number struct {
	Meta
	Integer bool
	Min     *float64
	Max     *float64
}

func (n *Number) meta() Meta  { return n.Meta }
func (*Number) schemaNode() {}

// Boolean describes a bool value.
type Boolean struct {
	Meta
}

func (b *Boolean) meta() Meta  { return b.Meta }
func (*Boolean) schemaNode() {}

// Any accepts every value unchanged.
type Any struct {
	Meta
}

func (a *Any) meta() Meta  { return a.Meta }
func (*Any) schemaNode() {}

// Obj returns an [Object] for the given fields.
func Obj(fields Shape) *Object {
	return &Object{Fields: fields}
}

// Opt marks s as optional.
func Opt(s Schema) *Optional {
	return &Optional{Inner: s}
}

// Arr returns an [Array] of s.
func Arr(s Schema) *Array {
	return &Array{Element: s}
}

// OneOf returns a [Union] of the given options.
func OneOf(options ...Schema) *Union {
	return &Union{Options: options}
}

// Transform wraps s so f is applied to every successfully parsed value.
func Transform(s Schema, f func(any) (any, error)) *Effect {
	return &Effect{Source: s, Transform: f}
}

// Ref returns a [Lazy] schema resolved by f.
func Ref(f func() Schema) *Lazy {
	return &Lazy{Resolve: f}
}

// Binary returns a [File] accepting uploads of at most maxSize bytes.
func Binary(maxSize int64) *File {
	return &File{
		Meta:    Meta{Format: "binary"},
		MaxSize: maxSize,
	}
}

// Str returns an unconstrained [String].
func Str() *String { return &String{} }

// Num returns an unconstrained [Number].
func Num() *Number { return &Number{} }

// Int returns a [Number] which only accepts integral values.
func Int() *Number { return &Number{Integer: true} }

// Bool returns a [Boolean].
func Bool() *Boolean { return &Boolean{} }

// AnyValue returns an [Any].
func AnyValue() *Any { return &Any{} }

// Describe returns a shallow copy of s carrying m as its documentation.
// A [Shape] is first wrapped into an [Object].
func Describe(s Schema, m Meta) Schema {
	switch n := s.(type) {
	case Shape:
		return &Object{Meta: m, Fields: n}
	case *Object:
		c := *n
		c.Meta = m
		return &c
	case *Optional:
		c := *n
		c.Meta = m
		return &c
	case *Array:
		c := *n
		c.Meta = m
		return &c
	case *Union:
		c := *n
		c.Meta = m
		return &c
	case *Effect:
		c := *n
		c.Meta = m
		return &c
	case *Lazy:
		c := *n
		c.Meta = m
		return &c
	case *File:
		c := *n
		c.Meta = m
		return &c
	case *String:
		c := *n
		c.Meta = m
		return &c
	case *Number:
		c := *n
		c.Meta = m
		return &c
	case *Boolean:
		c := *n
		c.Meta = m
		return &c
	case *Any:
		c := *n
		c.Meta = m
		return &c
	default:
		return s
	}
}

// MetaOf returns the documentation attached to s.
func MetaOf(s Schema) Meta {
	if s == nil {
		return Meta{}
	}
	return s.meta()
}

// IsArray reports whether s, or the schema wrapped by an [Optional], is an [Array].
func IsArray(s Schema) bool {
	if o, ok := s.(*Optional); ok {
		s = o.Inner
	}
	_, ok := s.(*Array)
	return ok
}

// Field returns the schema declared for key when s is an object, or nil.
func Field(s Schema, key string) Schema {
	switch n := s.(type) {
	case Shape:
		return n[key]
	case *Object:
		return n.Fields[key]
	default:
		return nil
	}
}
