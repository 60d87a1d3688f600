// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v4"
)

// UnmarshalJSON decodes the JSON document read from r into a T.
func UnmarshalJSON[T any](r Reader[io.Reader]) Reader[T] {
	return Map(r, func(src io.Reader) (T, error) {
		var v T
		err := json.NewDecoder(src).Decode(&v)
		if err != nil {
			return v, fmt.Errorf("failed to unmarshal json config: %w", err)
		}
		return v, nil
	})
}

// UnmarshalYAML decodes the YAML document read from r into a T.
func UnmarshalYAML[T any](r Reader[io.Reader]) Reader[T] {
	return Map(r, func(src io.Reader) (T, error) {
		var v T
		err := yaml.NewDecoder(src).Decode(&v)
		if err != nil {
			return v, fmt.Errorf("failed to unmarshal yaml config: %w", err)
		}
		return v, nil
	})
}
