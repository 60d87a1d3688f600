// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Decode copies a validated value, e.g. [Request.Query], into dst which
// must be a pointer. Struct fields are matched using the json tag.
func Decode(src any, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           dst,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	err = dec.Decode(src)
	if err != nil {
		return fmt.Errorf("failed to decode %T: %w", dst, err)
	}
	return nil
}
