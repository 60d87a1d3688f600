// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package breaker

import (
	"context"
	"fmt"
	"time"

	"github.com/z5labs/apiguard/config"
)

// Config holds the breaker settings which are usually supplied per deployment.
type Config struct {
	Threshold config.Reader[int]
	CoolDown  config.Reader[time.Duration]
}

// ConfigFromEnv reads APIGUARD_BREAKER_THRESHOLD and APIGUARD_BREAKER_COOLDOWN.
func ConfigFromEnv() Config {
	return Config{
		Threshold: config.IntFromString(config.Env("APIGUARD_BREAKER_THRESHOLD")),
		CoolDown:  config.DurationFromString(config.Env("APIGUARD_BREAKER_COOLDOWN")),
	}
}

// FromConfig converts the values set in cfg into options. Unset values
// keep the defaults of [New].
func FromConfig(ctx context.Context, cfg Config) ([]Option, error) {
	var opts []Option

	if cfg.Threshold != nil {
		val, err := cfg.Threshold.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read breaker threshold: %w", err)
		}
		if n, ok := val.Value(); ok {
			if n < 1 {
				return nil, fmt.Errorf("breaker threshold must be positive: %d", n)
			}
			opts = append(opts, Threshold(n))
		}
	}

	if cfg.CoolDown != nil {
		val, err := cfg.CoolDown.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read breaker cool down: %w", err)
		}
		if d, ok := val.Value(); ok {
			if d < 0 {
				return nil, fmt.Errorf("breaker cool down must not be negative: %s", d)
			}
			opts = append(opts, CoolDown(d))
		}
	}

	return opts, nil
}
