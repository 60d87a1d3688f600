// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config provides composable readers for configuration values.
//
// A [Reader] produces an optional [Value]. Readers are combined with
// helpers such as [Or], [Default] and the *FromString converters so a
// configuration field can be described once, e.g.
//
//	threshold := config.Default(5, config.IntFromString(config.Env("APIGUARD_BREAKER_THRESHOLD")))
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Value is an optional configuration value.
type Value[T any] struct {
	v   T
	set bool
}

// ValueOf returns a [Value] which is set to v.
func ValueOf[T any](v T) Value[T] {
	return Value[T]{v: v, set: true}
}

// Value returns the underlying value and whether it was set.
func (v Value[T]) Value() (T, bool) {
	return v.v, v.set
}

// Reader reads a single configuration value.
type Reader[T any] interface {
	Read(context.Context) (Value[T], error)
}

// ReaderFunc is a func adapter for [Reader].
type ReaderFunc[T any] func(context.Context) (Value[T], error)

// Read implements the [Reader] interface.
func (f ReaderFunc[T]) Read(ctx context.Context) (Value[T], error) {
	return f(ctx)
}

// ReaderOf returns a [Reader] which always returns v.
func ReaderOf[T any](v T) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return ValueOf(v), nil
	})
}

// EmptyReader returns a [Reader] which never has a value.
func EmptyReader[T any]() Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return Value[T]{}, nil
	})
}

// Env reads the environment variable key. An unset variable has no value.
func Env(key string) Reader[string] {
	return ReaderFunc[string](func(ctx context.Context) (Value[string], error) {
		v, ok := os.LookupEnv(key)
		if !ok {
			return Value[string]{}, nil
		}
		return ValueOf(v), nil
	})
}

// Or returns the first value set by readers, tried in order.
func Or[T any](readers ...Reader[T]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		for _, r := range readers {
			if r == nil {
				continue
			}
			val, err := r.Read(ctx)
			if err != nil {
				return Value[T]{}, err
			}
			if _, ok := val.Value(); ok {
				return val, nil
			}
		}
		return Value[T]{}, nil
	})
}

// Default returns def whenever r has no value.
func Default[T any](def T, r Reader[T]) Reader[T] {
	return Or(r, ReaderOf(def))
}

// Map converts the value of r with f. Unset values are passed through.
func Map[A, B any](r Reader[A], f func(A) (B, error)) Reader[B] {
	return ReaderFunc[B](func(ctx context.Context) (Value[B], error) {
		val, err := r.Read(ctx)
		if err != nil {
			return Value[B]{}, err
		}
		a, ok := val.Value()
		if !ok {
			return Value[B]{}, nil
		}
		b, err := f(a)
		if err != nil {
			return Value[B]{}, err
		}
		return ValueOf(b), nil
	})
}

// Read returns the value of r or the zero value of T when it is unset.
func Read[T any](ctx context.Context, r Reader[T]) (T, error) {
	if r == nil {
		var zero T
		return zero, nil
	}
	val, err := r.Read(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := val.Value()
	return v, nil
}

// Must is [Read] but panics on error.
func Must[T any](ctx context.Context, r Reader[T]) T {
	v, err := Read(ctx, r)
	if err != nil {
		panic(err)
	}
	return v
}

// MustOr is [Must] but returns def when r has no value.
func MustOr[T any](ctx context.Context, def T, r Reader[T]) T {
	if r == nil {
		return def
	}
	return Must(ctx, Default(def, r))
}

// InvalidValueError is returned when a string can not be converted.
type InvalidValueError struct {
	Value string
	Type  string
	Cause error
}

// Error implements the [error] interface.
func (e InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s value %q: %s", e.Type, e.Value, e.Cause)
}

// Unwrap returns the underlying conversion error.
func (e InvalidValueError) Unwrap() error {
	return e.Cause
}

func fromString[T any](typ string, r Reader[string], parse func(string) (T, error)) Reader[T] {
	return Map(r, func(s string) (T, error) {
		v, err := parse(s)
		if err != nil {
			return v, InvalidValueError{Value: s, Type: typ, Cause: err}
		}
		return v, nil
	})
}

// IntFromString parses the value of r as a base 10 int.
func IntFromString(r Reader[string]) Reader[int] {
	return fromString("int", r, strconv.Atoi)
}

// Int64FromString parses the value of r as a base 10 int64.
func Int64FromString(r Reader[string]) Reader[int64] {
	return fromString("int64", r, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

// Float64FromString parses the value of r as a float64.
func Float64FromString(r Reader[string]) Reader[float64] {
	return fromString("float64", r, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// BoolFromString parses the value of r with [strconv.ParseBool].
func BoolFromString(r Reader[string]) Reader[bool] {
	return fromString("bool", r, strconv.ParseBool)
}

// DurationFromString parses the value of r with [time.ParseDuration].
func DurationFromString(r Reader[string]) Reader[time.Duration] {
	return fromString("duration", r, time.ParseDuration)
}
