// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONSchema(t *testing.T) {
	t.Run("will mark non optional fields as required", func(t *testing.T) {
		s := Normalize(Shape{
			"name": Describe(Str(), Meta{Description: "display name"}),
			"age":  Opt(Int()),
		}, ModeDocumentation)

		js, err := JSONSchema(s)
		require.NoError(t, err)

		b, err := json.Marshal(js)
		require.NoError(t, err)
		require.JSONEq(t, `{
			"type": "object",
			"required": ["name"],
			"properties": {
				"age": {"type": "integer"},
				"name": {"type": "string", "description": "display name"}
			}
		}`, string(b))
	})

	t.Run("will describe files as binary strings", func(t *testing.T) {
		s := Normalize(Binary(1024), ModeDocumentation)

		js, err := JSONSchema(s)
		require.NoError(t, err)

		b, err := json.Marshal(js)
		require.NoError(t, err)
		require.JSONEq(t, `{"type": "string", "format": "binary", "maxLength": 1024}`, string(b))
	})

	t.Run("will describe arrays by their element", func(t *testing.T) {
		js, err := JSONSchema(Normalize(Arr(Bool()), ModeDocumentation))
		require.NoError(t, err)

		b, err := json.Marshal(js)
		require.NoError(t, err)
		require.JSONEq(t, `{"type": "array", "items": {"type": "boolean"}}`, string(b))
	})

	t.Run("will keep union options when given a runtime schema", func(t *testing.T) {
		js, err := JSONSchema(OneOf(Str(), Num()))
		require.NoError(t, err)
		require.Len(t, js.OneOf, 2)
	})
}
