// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package http runs an [http.Handler], typically a rest.Api, as an [app.Runtime].
package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/z5labs/apiguard"
	"github.com/z5labs/apiguard/app"
	"github.com/z5labs/apiguard/config"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultAddr is the address listened on when none is configured.
const DefaultAddr = ":8080"

// Listener returns a reader which opens a TCP listener on addr, or on
// [DefaultAddr] when addr is unset.
func Listener(addr config.Reader[string]) config.Reader[net.Listener] {
	return config.ReaderFunc[net.Listener](func(ctx context.Context) (config.Value[net.Listener], error) {
		a := config.MustOr(ctx, DefaultAddr, addr)

		ln, err := net.Listen("tcp", a)
		if err != nil {
			return config.Value[net.Listener]{}, err
		}
		return config.ValueOf(ln), nil
	})
}

// Config holds the server settings. Unset readers fall back to the
// defaults documented on each field.
type Config struct {
	// Listener is required.
	Listener config.Reader[net.Listener]

	// ReadTimeout defaults to 5 seconds.
	ReadTimeout config.Reader[time.Duration]

	// ReadHeaderTimeout defaults to 2 seconds.
	ReadHeaderTimeout config.Reader[time.Duration]

	// WriteTimeout defaults to 10 seconds.
	WriteTimeout config.Reader[time.Duration]

	// IdleTimeout defaults to 120 seconds.
	IdleTimeout config.Reader[time.Duration]

	// ShutdownTimeout bounds graceful shutdown and defaults to 15 seconds.
	ShutdownTimeout config.Reader[time.Duration]

	// MaxHeaderBytes defaults to 1 MB.
	MaxHeaderBytes config.Reader[int]
}

// ConfigFromEnv reads every setting from APIGUARD_HTTP_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		Listener:          Listener(config.Env("APIGUARD_HTTP_ADDR")),
		ReadTimeout:       config.DurationFromString(config.Env("APIGUARD_HTTP_READ_TIMEOUT")),
		ReadHeaderTimeout: config.DurationFromString(config.Env("APIGUARD_HTTP_READ_HEADER_TIMEOUT")),
		WriteTimeout:      config.DurationFromString(config.Env("APIGUARD_HTTP_WRITE_TIMEOUT")),
		IdleTimeout:       config.DurationFromString(config.Env("APIGUARD_HTTP_IDLE_TIMEOUT")),
		ShutdownTimeout:   config.DurationFromString(config.Env("APIGUARD_HTTP_SHUTDOWN_TIMEOUT")),
		MaxHeaderBytes:    config.IntFromString(config.Env("APIGUARD_HTTP_MAX_HEADER_BYTES")),
	}
}

// App serves HTTP until its context is cancelled.
type App struct {
	ls              net.Listener
	srv             *http.Server
	shutdownTimeout time.Duration
}

// Run implements the [app.Runtime] interface. Cancelling ctx shuts the
// server down gracefully, which is not reported as an error.
func (a App) Run(ctx context.Context) error {
	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		return a.srv.Serve(a.ls)
	})

	p.Go(func(ctx context.Context) error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		return a.srv.Shutdown(shutdownCtx)
	})

	err := p.Wait()
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Build returns a builder for an [App] serving the handler built by b.
// Every request is traced with otelhttp.
func Build(cfg Config, b app.Builder[http.Handler]) app.Builder[App] {
	return app.Bind(b, func(h http.Handler) app.Builder[App] {
		return app.BuilderFunc[App](func(ctx context.Context) (App, error) {
			ln, err := config.Read(ctx, cfg.Listener)
			if err != nil {
				return App{}, err
			}
			if ln == nil {
				return App{}, errors.New("http: no listener configured")
			}

			log := apiguard.Logger("github.com/z5labs/apiguard/http")

			srv := &http.Server{
				Handler: otelhttp.NewHandler(
					h,
					"apiguard",
					otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
				),
				ReadTimeout:       config.MustOr(ctx, 5*time.Second, cfg.ReadTimeout),
				ReadHeaderTimeout: config.MustOr(ctx, 2*time.Second, cfg.ReadHeaderTimeout),
				WriteTimeout:      config.MustOr(ctx, 10*time.Second, cfg.WriteTimeout),
				IdleTimeout:       config.MustOr(ctx, 120*time.Second, cfg.IdleTimeout),
				MaxHeaderBytes:    config.MustOr(ctx, 1<<20, cfg.MaxHeaderBytes),
				ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelError),
			}

			return App{
				ls:              ln,
				srv:             srv,
				shutdownTimeout: config.MustOr(ctx, 15*time.Second, cfg.ShutdownTimeout),
			}, nil
		})
	})
}
