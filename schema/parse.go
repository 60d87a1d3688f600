// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package schema

import (
	"errors"
	"fmt"
	"mime/multipart"
)

// Parse implements the [Schema] interface.
func (o *Object) Parse(v any) (any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, invalid("expected object, received %s", kindOf(v))
	}

	out := make(map[string]any, len(o.Fields))
	for key, field := range o.Fields {
		raw, present := m[key]
		if !present {
			raw = nil
		}

		parsed, err := field.Parse(raw)
		if err != nil {
			return nil, withPrefix(err, key)
		}
		if !present && parsed == nil {
			continue
		}
		out[key] = parsed
	}
	return out, nil
}

// Parse implements the [Schema] interface.
func (o *Optional) Parse(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return o.Inner.Parse(v)
}

// Parse implements the [Schema] interface.
func (a *Array) Parse(v any) (any, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, invalid("expected array, received %s", kindOf(v))
	}

	out := make([]any, len(items))
	for i, item := range items {
		parsed, err := a.Element.Parse(item)
		if err != nil {
			return nil, withIndex(err, i)
		}
		out[i] = parsed
	}
	return out, nil
}

// Parse implements the [Schema] interface.
func (u *Union) Parse(v any) (any, error) {
	errs := make([]error, 0, len(u.Options))
	for _, option := range u.Options {
		parsed, err := option.Parse(v)
		if err == nil {
			return parsed, nil
		}
		errs = append(errs, err)
	}
	return nil, &ValidationError{
		Message: "value does not match any union option",
		Cause:   errors.Join(errs...),
	}
}

// Parse implements the [Schema] interface.
func (e *Effect) Parse(v any) (any, error) {
	parsed, err := e.Source.Parse(v)
	if err != nil {
		return nil, err
	}
	if e.Transform == nil {
		return parsed, nil
	}

	out, err := e.Transform(parsed)
	if err != nil {
		return nil, &ValidationError{Message: err.Error(), Cause: err}
	}
	return out, nil
}

// Parse implements the [Schema] interface.
func (l *Lazy) Parse(v any) (any, error) {
	return l.Resolve().Parse(v)
}

// Parse implements the [Schema] interface.
func (f *File) Parse(v any) (any, error) {
	size, isFile := fileSize(v)
	if !f.checked {
		if v != nil && !isFile {
			return nil, invalid("expected file, received %s", kindOf(v))
		}
		return v, nil
	}

	if !isFile || size == 0 {
		return nil, &ValidationError{
			Path:     f.path,
			Message:  ErrMissingFile.Error(),
			Cause:    ErrMissingFile,
			anchored: f.path != "",
		}
	}
	if f.MaxSize > 0 && size > f.MaxSize {
		return nil, &ValidationError{
			Path:     f.path,
			Message:  fmt.Sprintf("%s: %d bytes exceeds %d", ErrFileTooLarge, size, f.MaxSize),
			Cause:    ErrFileTooLarge,
			anchored: f.path != "",
		}
	}
	return v, nil
}

// Sized is implemented by file values which know their own size.
type Sized interface {
	Size() int64
}

func fileSize(v any) (int64, bool) {
	switch f := v.(type) {
	case *multipart.FileHeader:
		if f == nil {
			return 0, false
		}
		return f.Size, true
	case []byte:
		return int64(len(f)), true
	case Sized:
		return f.Size(), true
	default:
		return 0, false
	}
}

// Parse implements the [Schema] interface.
func (s *String) Parse(v any) (any, error) {
	str, ok := v.(string)
	if !ok {
		return nil, invalid("expected string, received %s", kindOf(v))
	}

	err := checkLeaf(s, str)
	if err != nil {
		return nil, err
	}
	return str, nil
}

// Parse implements the [Schema] interface.
func (n *Number) Parse(v any) (any, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	default:
		return nil, invalid("expected number, received %s", kindOf(v))
	}

	err := checkLeaf(n, f)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Parse implements the [Schema] interface.
func (b *Boolean) Parse(v any) (any, error) {
	x, ok := v.(bool)
	if !ok {
		return nil, invalid("expected boolean, received %s", kindOf(v))
	}
	return x, nil
}

// Parse implements the [Schema] interface.
func (a *Any) Parse(v any) (any, error) {
	return v, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "undefined"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64, float32, int, int64:
		return "number"
	case bool:
		return "boolean"
	default:
		if _, ok := fileSize(v); ok {
			return "file"
		}
		return fmt.Sprintf("%T", v)
	}
}
