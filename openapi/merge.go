// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"dario.cat/mergo"
	"github.com/swaggest/openapi-go/openapi3"
)

// MergeAll folds every stored fragment, in name order, into one document
// described by info. Operations sharing a path are kept side by side and a
// later fragment wins for the same method and path.
//
// Maps, including components.schemas and components.parameters, serialize
// with sorted keys.
func (s *Synthesizer) MergeAll(ctx context.Context, info openapi3.Info) (*openapi3.Spec, error) {
	names, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.Sort(names)

	fragments := make([][]byte, 0, len(names))
	for _, name := range names {
		b, err := s.store.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, b)
	}

	spec, err := Merge(info, fragments...)
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "merged openapi fragments", "count", len(fragments))
	return spec, nil
}

// Merge deep merges fragments, in the given order, into one document described by info.
func Merge(info openapi3.Info, fragments ...[]byte) (*openapi3.Spec, error) {
	merged := map[string]any{
		"components": map[string]any{
			"schemas":    map[string]any{},
			"parameters": map[string]any{},
		},
		"paths": map[string]any{},
	}
	for i, b := range fragments {
		var fragment map[string]any
		err := json.Unmarshal(b, &fragment)
		if err != nil {
			return nil, fmt.Errorf("failed to decode fragment %d: %w", i, err)
		}

		err = mergo.Merge(&merged, fragment, mergo.WithOverride)
		if err != nil {
			return nil, fmt.Errorf("failed to merge fragment %d: %w", i, err)
		}
	}

	merged["openapi"] = "3.0.0"
	merged["info"] = info

	b, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merged document: %w", err)
	}

	var spec openapi3.Spec
	err = json.Unmarshal(b, &spec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode merged document: %w", err)
	}
	return &spec, nil
}
