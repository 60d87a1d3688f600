// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app assembles the petstore [rest.Api].
package app

import (
	"context"
	"net/http"

	"github.com/z5labs/apiguard/app"
	"github.com/z5labs/apiguard/breaker"
	"github.com/z5labs/apiguard/config"
	"github.com/z5labs/apiguard/example/petstore/endpoint"
	"github.com/z5labs/apiguard/example/petstore/pet"
	"github.com/z5labs/apiguard/openapi"
	"github.com/z5labs/apiguard/rest"
	"github.com/z5labs/apiguard/router"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

// ProblemTypeBase prefixes the type URI of every problem reported by the petstore.
const ProblemTypeBase = "https://petstore.example.com/problems/"

// Config selects the backing services of the petstore. Unset readers fall
// back to in process implementations.
type Config struct {
	Title   config.Reader[string]
	Version config.Reader[string]

	PostgresURL  config.Reader[string]
	RedisAddr    config.Reader[string]
	FragmentsDir config.Reader[string]

	Breaker breaker.Config
}

// ConfigFromEnv reads [Config] from PETSTORE_* and APIGUARD_BREAKER_* variables.
func ConfigFromEnv() Config {
	return Config{
		Title:        config.Env("PETSTORE_TITLE"),
		Version:      config.Env("PETSTORE_VERSION"),
		PostgresURL:  config.Env("PETSTORE_POSTGRES_URL"),
		RedisAddr:    config.Env("PETSTORE_REDIS_ADDR"),
		FragmentsDir: config.Env("PETSTORE_OPENAPI_DIR"),
		Breaker:      breaker.ConfigFromEnv(),
	}
}

// BuildApi wires the petstore endpoints. Connections opened here are
// closed by hooks registered on h.
func BuildApi(ctx context.Context, cfg Config, h *app.HookRegistry) (*rest.Api, error) {
	store, err := openStore(ctx, cfg, h)
	if err != nil {
		return nil, err
	}

	opts, err := breaker.FromConfig(ctx, cfg.Breaker)
	if err != nil {
		return nil, err
	}
	opts = append(opts, breaker.WithStore(breakerStore(ctx, cfg, h)))
	b := breaker.New(opts...)

	rt := router.New(router.ErrorToResponse(router.ProblemResponse(
		router.ProblemType(ProblemTypeBase),
		router.HideDetails(),
	)))

	dir := config.MustOr(ctx, "", cfg.FragmentsDir)
	if dir != "" {
		fragments := openapi.NewSynthesizer(openapi.NewFSStore(afero.NewOsFs(), dir))
		rt.OnRouteAdded(fragments.Subscriber())
	}

	d := endpoint.Deps{
		Router:  rt,
		Breaker: b,
		Store:   store,
	}

	api := rest.NewApi(
		config.MustOr(ctx, "Petstore", cfg.Title),
		config.MustOr(ctx, "v1.0.0", cfg.Version),
		endpoint.ListPets(d),
		endpoint.FindPet(d),
		endpoint.AddPet(d),
		endpoint.DeletePet(d),
		rest.Readiness(b.Monitor(
			breaker.Key(http.MethodGet, "/api/pets"),
			breaker.Key(http.MethodPost, "/api/pets"),
		)),
	)
	return api, nil
}

func openStore(ctx context.Context, cfg Config, h *app.HookRegistry) (pet.Store, error) {
	url := config.MustOr(ctx, "", cfg.PostgresURL)
	if url == "" {
		return pet.NewMemoryStore(), nil
	}

	s, err := pet.OpenPostgres(ctx, url)
	if err != nil {
		return nil, err
	}
	h.OnPostRun(func(ctx context.Context) error {
		return s.Close()
	})
	return s, nil
}

func breakerStore(ctx context.Context, cfg Config, h *app.HookRegistry) breaker.Store {
	addr := config.MustOr(ctx, "", cfg.RedisAddr)
	if addr == "" {
		return breaker.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	h.OnPostRun(func(ctx context.Context) error {
		return client.Close()
	})
	return breaker.NewRedisStore(client, breaker.KeyPrefix("petstore:breaker:"))
}
