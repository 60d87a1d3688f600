// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app_test

import (
	"context"
	"fmt"
	"net/http"

	"github.com/z5labs/apiguard/app"
	"github.com/z5labs/apiguard/breaker"
	"github.com/z5labs/apiguard/router"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// Example_withHooks closes the redis client shared by a breaker once the
// runtime returns.
func Example_withHooks() {
	mr, err := miniredis.Run()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer mr.Close()

	builder := app.WithHooks(func(ctx context.Context, h *app.HookRegistry) (app.Runtime, error) {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		h.OnPostRun(func(ctx context.Context) error {
			fmt.Println("closing redis client")
			return client.Close()
		})

		b := breaker.New(breaker.WithStore(breaker.NewRedisStore(client)))

		return app.RuntimeFunc(func(ctx context.Context) error {
			resp := b.Guard(ctx, http.MethodGet, "/api/items", func() *router.Response {
				return router.Empty()
			})
			fmt.Println("guarded call returned", resp.Status)
			return nil
		}), nil
	})

	err = app.Run(context.Background(), builder)
	if err != nil {
		fmt.Println(err)
	}

	// Output:
	// guarded call returned 200
	// closing redis client
}

// Example_withHooksMultiple runs hooks in registration order.
func Example_withHooksMultiple() {
	builder := app.WithHooks(func(ctx context.Context, h *app.HookRegistry) (app.Runtime, error) {
		for _, name := range []string{"flush fragments", "close store"} {
			h.OnPostRun(func(ctx context.Context) error {
				fmt.Println(name)
				return nil
			})
		}

		return app.RuntimeFunc(func(ctx context.Context) error {
			fmt.Println("serving")
			return nil
		}), nil
	})

	_ = app.Run(context.Background(), builder)

	// Output:
	// serving
	// flush fragments
	// close store
}
