// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"net/http"

	"github.com/z5labs/apiguard/app"
	petstore "github.com/z5labs/apiguard/example/petstore/app"
	httpserver "github.com/z5labs/apiguard/http"
	"github.com/z5labs/apiguard/telemetry"
)

func main() {
	cfg := petstore.ConfigFromEnv()

	appBuilder := app.WithHooks(func(ctx context.Context, h *app.HookRegistry) (httpserver.App, error) {
		handler := app.BuilderFunc[http.Handler](func(ctx context.Context) (http.Handler, error) {
			return petstore.BuildApi(ctx, cfg, h)
		})

		return httpserver.Build(httpserver.ConfigFromEnv(), handler).Build(ctx)
	})

	_ = app.Run(context.Background(), telemetry.Build(telemetry.ConfigFromEnv(), appBuilder))
}
