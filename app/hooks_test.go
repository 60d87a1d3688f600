// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func runWithHooks(ctx context.Context, run RuntimeFunc, hooks ...HookFunc) error {
	builder := WithHooks(func(ctx context.Context, h *HookRegistry) (Runtime, error) {
		for _, hook := range hooks {
			h.OnPostRun(hook)
		}
		return run, nil
	})

	rt, err := builder.Build(ctx)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

func TestWithHooks(t *testing.T) {
	t.Run("will run hooks in order after the runtime", func(t *testing.T) {
		var order []string
		record := func(name string) HookFunc {
			return func(ctx context.Context) error {
				order = append(order, name)
				return nil
			}
		}

		err := runWithHooks(
			context.Background(),
			func(ctx context.Context) error {
				order = append(order, "runtime")
				return nil
			},
			record("close redis"),
			record("close postgres"),
		)

		require.NoError(t, err)
		require.Equal(t, []string{"runtime", "close redis", "close postgres"}, order)
	})

	t.Run("will run every hook and join all errors", func(t *testing.T) {
		runErr := errors.New("listener closed")
		redisErr := errors.New("redis close failed")
		postgresErr := errors.New("postgres close failed")

		var calls int
		failWith := func(err error) HookFunc {
			return func(ctx context.Context) error {
				calls++
				return err
			}
		}

		err := runWithHooks(
			context.Background(),
			func(ctx context.Context) error { return runErr },
			failWith(redisErr),
			failWith(nil),
			failWith(postgresErr),
		)

		require.Equal(t, 3, calls)
		require.ErrorIs(t, err, runErr)
		require.ErrorIs(t, err, redisErr)
		require.ErrorIs(t, err, postgresErr)
	})

	t.Run("will give hooks a context which is not cancelled", func(t *testing.T) {
		type ctxKey struct{}

		ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "petstore"))

		var hookErr error
		var hookValue any
		err := runWithHooks(
			ctx,
			func(ctx context.Context) error {
				cancel()
				return nil
			},
			func(ctx context.Context) error {
				hookErr = ctx.Err()
				hookValue = ctx.Value(ctxKey{})
				return nil
			},
		)

		require.NoError(t, err)
		require.NoError(t, hookErr)
		require.Equal(t, "petstore", hookValue)
	})

	t.Run("will run registered hooks when the build fails", func(t *testing.T) {
		buildErr := errors.New("postgres unreachable")

		var closed bool
		builder := WithHooks(func(ctx context.Context, h *HookRegistry) (Runtime, error) {
			h.OnPostRun(func(ctx context.Context) error {
				closed = true
				return nil
			})
			return nil, buildErr
		})

		_, err := builder.Build(context.Background())
		require.ErrorIs(t, err, buildErr)
		require.True(t, closed)
	})
}

func TestBind(t *testing.T) {
	t.Run("will pass the first value to the binder", func(t *testing.T) {
		b := Bind(
			BuilderFunc[int](func(ctx context.Context) (int, error) { return 2, nil }),
			func(n int) Builder[string] {
				return BuilderFunc[string](func(ctx context.Context) (string, error) {
					return string(rune('a' + n)), nil
				})
			},
		)

		s, err := b.Build(context.Background())
		require.NoError(t, err)
		require.Equal(t, "c", s)
	})

	t.Run("will not call the binder when the first build fails", func(t *testing.T) {
		buildErr := errors.New("no listener")
		b := Bind(
			BuilderFunc[int](func(ctx context.Context) (int, error) { return 0, buildErr }),
			func(n int) Builder[string] {
				t.Fatal("binder must not be called")
				return nil
			},
		)

		_, err := b.Build(context.Background())
		require.ErrorIs(t, err, buildErr)
	})
}

func TestRun(t *testing.T) {
	t.Run("will return a panic as an error", func(t *testing.T) {
		builder := BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
			return RuntimeFunc(func(ctx context.Context) error {
				panic("boom")
			}), nil
		})

		err := Run(context.Background(), builder)
		require.Error(t, err)
	})

	t.Run("will return the build error", func(t *testing.T) {
		buildErr := errors.New("build failed")
		builder := BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
			return nil, buildErr
		})

		err := Run(context.Background(), builder)
		require.ErrorIs(t, err, buildErr)
	})
}
