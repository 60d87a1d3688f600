// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package schema

import (
	"fmt"
	"slices"

	"github.com/swaggest/jsonschema-go"
)

// JSONSchema converts s into a JSON Schema. Callers are expected to pass a
// schema produced by [Normalize] in [ModeDocumentation].
func JSONSchema(s Schema) (jsonschema.Schema, error) {
	var js jsonschema.Schema
	switch n := s.(type) {
	case nil:
		return js, nil
	case Shape:
		return JSONSchema(&Object{Fields: n})
	case *Object:
		js.WithType(jsonschema.Object.Type())

		keys := make([]string, 0, len(n.Fields))
		for key := range n.Fields {
			keys = append(keys, key)
		}
		slices.Sort(keys)

		var required []string
		for _, key := range keys {
			field := n.Fields[key]
			fieldSchema, err := JSONSchema(field)
			if err != nil {
				return js, fmt.Errorf("field %s: %w", key, err)
			}
			js.WithPropertiesItem(key, fieldSchema.ToSchemaOrBool())
			if _, ok := field.(*Optional); !ok {
				required = append(required, key)
			}
		}
		if len(required) > 0 {
			js.WithRequired(required...)
		}
	case *Optional:
		inner, err := JSONSchema(n.Inner)
		if err != nil {
			return js, err
		}
		js = inner
	case *Array:
		elem, err := JSONSchema(n.Element)
		if err != nil {
			return js, err
		}
		items := elem.ToSchemaOrBool()
		js.WithType(jsonschema.Array.Type())
		js.WithItems(jsonschema.Items{SchemaOrBool: &items})
	case *Union:
		options := make([]jsonschema.SchemaOrBool, 0, len(n.Options))
		for _, option := range n.Options {
			os, err := JSONSchema(option)
			if err != nil {
				return js, err
			}
			options = append(options, os.ToSchemaOrBool())
		}
		js.WithOneOf(options...)
	case *Effect:
		source, err := JSONSchema(n.Source)
		if err != nil {
			return js, err
		}
		js = source
	case *Lazy:
		resolved, err := JSONSchema(n.Resolve())
		if err != nil {
			return js, err
		}
		js = resolved
	case *File:
		js.WithType(jsonschema.String.Type())
		js.WithFormat("binary")
		if n.MaxSize > 0 {
			js.WithMaxLength(n.MaxSize)
		}
	case *String:
		js.WithType(jsonschema.String.Type())
		if n.MinLength > 0 {
			js.WithMinLength(int64(n.MinLength))
		}
		if n.MaxLength > 0 {
			js.WithMaxLength(int64(n.MaxLength))
		}
		if n.Pattern != nil {
			js.WithPattern(n.Pattern.String())
		}
		for _, e := range n.Enum {
			js.Enum = append(js.Enum, e)
		}
	case *Number:
		if n.Integer {
			js.WithType(jsonschema.Integer.Type())
		} else {
			js.WithType(jsonschema.Number.Type())
		}
		if n.Min != nil {
			js.WithMinimum(*n.Min)
		}
		if n.Max != nil {
			js.WithMaximum(*n.Max)
		}
	case *Boolean:
		js.WithType(jsonschema.Boolean.Type())
	case *Any:
	default:
		return js, fmt.Errorf("unsupported schema node %T", s)
	}

	applyMeta(&js, MetaOf(s))
	return js, nil
}

func applyMeta(js *jsonschema.Schema, m Meta) {
	if m.Title != "" {
		js.WithTitle(m.Title)
	}
	if m.Description != "" {
		js.WithDescription(m.Description)
	}
	if m.Format != "" {
		js.WithFormat(m.Format)
	}
	if m.Example != nil {
		js.WithExamples(m.Example)
	}
	if m.Deprecated {
		js.WithDeprecated(true)
	}
}
