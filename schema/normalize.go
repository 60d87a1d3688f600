// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package schema

import (
	"strings"
)

// Mode selects the normalization policy.
type Mode int

const (
	// ModeRuntime produces schemas for parsing requests and responses.
	ModeRuntime Mode = iota

	// ModeDocumentation produces schemas for generating OpenAPI documents.
	// Unions collapse to their first option, transforms are discarded and
	// object fields starting with an underscore are omitted.
	ModeDocumentation
)

func (m Mode) String() string {
	if m == ModeDocumentation {
		return "documentation"
	}
	return "runtime"
}

// Normalize rewrites s into its canonical form for the given mode.
//
// Normalize never modifies s. Normalizing an already normalized schema
// with the same mode yields a structurally identical schema.
func Normalize(s Schema, mode Mode) Schema {
	return NormalizeAt(s, mode, "")
}

// NormalizeAt is [Normalize] for a schema located at path. The path is
// reported by file validation errors.
//
// A [Lazy] schema is resolved once. When it is met again while its own
// resolution is in progress, runtime mode keeps it as a [Lazy] pointing
// back at the resolved schema and documentation mode replaces it with
// [Any].
func NormalizeAt(s Schema, mode Mode, path string) Schema {
	nz := &normalizer{
		mode:      mode,
		resolving: make(map[*Lazy]*lazyCell),
	}
	return nz.normalize(s, path)
}

type lazyCell struct {
	schema Schema
}

type normalizer struct {
	mode      Mode
	resolving map[*Lazy]*lazyCell
}

func (nz *normalizer) normalize(s Schema, path string) Schema {
	switch n := s.(type) {
	case nil:
		return nil
	case Shape:
		return nz.normalize(&Object{Fields: n}, path)
	case *Object:
		fields := make(map[string]Schema, len(n.Fields))
		for key, field := range n.Fields {
			if nz.mode == ModeDocumentation && strings.HasPrefix(key, "_") {
				continue
			}
			fields[key] = nz.normalize(field, path+"/"+key)
		}
		return &Object{Meta: n.Meta, Fields: fields}
	case *Optional:
		return &Optional{Meta: n.Meta, Inner: nz.normalize(n.Inner, path)}
	case *Array:
		return &Array{Meta: n.Meta, Element: nz.normalize(n.Element, path+"/[number]")}
	case *Union:
		if len(n.Options) == 0 {
			return n
		}
		if nz.mode == ModeDocumentation {
			return inherit(nz.normalize(n.Options[0], path), n.Meta)
		}
		options := make([]Schema, len(n.Options))
		for i, option := range n.Options {
			options[i] = nz.normalize(option, path)
		}
		return &Union{Meta: n.Meta, Options: options}
	case *Effect:
		if nz.mode == ModeDocumentation {
			return inherit(nz.normalize(n.Source, path), n.Meta)
		}
		return &Effect{Meta: n.Meta, Source: nz.normalize(n.Source, path), Transform: n.Transform}
	case *Lazy:
		return nz.resolve(n, path)
	case *File:
		return &File{Meta: n.Meta, MaxSize: n.MaxSize, checked: true, path: path}
	default:
		return s
	}
}

func (nz *normalizer) resolve(l *Lazy, path string) Schema {
	cell, cyclic := nz.resolving[l]
	if cyclic {
		if nz.mode == ModeDocumentation {
			return &Any{Meta: l.Meta}
		}
		return &Lazy{
			Meta:    l.Meta,
			Resolve: func() Schema { return cell.schema },
		}
	}

	cell = &lazyCell{}
	nz.resolving[l] = cell
	cell.schema = inherit(nz.normalize(l.Resolve(), path), l.Meta)
	delete(nz.resolving, l)
	return cell.schema
}

// inherit copies the non-zero documentation of a removed wrapper onto s.
func inherit(s Schema, wrapper Meta) Schema {
	if wrapper.Title == "" && wrapper.Description == "" && wrapper.Example == nil && wrapper.Format == "" && !wrapper.Deprecated {
		return s
	}
	m := MetaOf(s)
	if wrapper.Title != "" {
		m.Title = wrapper.Title
	}
	if wrapper.Description != "" {
		m.Description = wrapper.Description
	}
	if wrapper.Example != nil {
		m.Example = wrapper.Example
	}
	if wrapper.Format != "" {
		m.Format = wrapper.Format
	}
	if wrapper.Deprecated {
		m.Deprecated = true
	}
	return Describe(s, m)
}
