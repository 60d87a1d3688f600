// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/z5labs/apiguard"
	"github.com/z5labs/apiguard/health"
	"github.com/z5labs/apiguard/openapi"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/openapi-go/openapi3"
)

// ApiOptions holds configuration values used when constructing an [Api].
type ApiOptions struct {
	mux        *chi.Mux
	logHandler slog.Handler
	fragments  [][]byte
	readiness  health.Monitor
	liveness   health.Monitor
}

// ApiOption configures an [Api].
//
// Common implementations include:
//   - [Handle] - registers a route
//   - [Readiness] - sets the readiness monitor
//   - [Liveness] - sets the liveness monitor
//   - [NotFound] - customizes 404 handling
//   - [MethodNotAllowed] - customizes 405 handling
type ApiOption interface {
	ApplyApiOption(*ApiOptions)
}

type apiOptionFunc func(*ApiOptions)

func (f apiOptionFunc) ApplyApiOption(ao *ApiOptions) {
	f(ao)
}

// Readiness reports m at GET /health/readiness.
//
// Tie m to the breakers of the api, see [breaker.Breaker.Monitor], so that
// upstream load balancers stop sending traffic while a circuit is open.
//
// See [Liveness, Readiness, and Startup Probes] for more details.
//
// [Liveness, Readiness, and Startup Probes]: https://kubernetes.io/docs/concepts/configuration/liveness-readiness-startup-probes/
func Readiness(m health.Monitor) ApiOption {
	return apiOptionFunc(func(ao *ApiOptions) {
		ao.readiness = m
	})
}

// Liveness reports m at GET /health/liveness.
//
// See [Liveness, Readiness, and Startup Probes] for more details.
//
// [Liveness, Readiness, and Startup Probes]: https://kubernetes.io/docs/concepts/configuration/liveness-readiness-startup-probes/
func Liveness(m health.Monitor) ApiOption {
	return apiOptionFunc(func(ao *ApiOptions) {
		ao.liveness = m
	})
}

// NotFound replaces the handler for requests matching no route.
func NotFound(h http.Handler) ApiOption {
	return apiOptionFunc(func(ao *ApiOptions) {
		ao.mux.NotFound(h.ServeHTTP)
	})
}

// MethodNotAllowed replaces the handler for requests to a known path with
// an unsupported method.
func MethodNotAllowed(h http.Handler) ApiOption {
	return apiOptionFunc(func(ao *ApiOptions) {
		ao.mux.MethodNotAllowed(h.ServeHTTP)
	})
}

// LogHandler sets the handler used by the api and its operations.
// It must be given before any [Handle] option to apply to them.
func LogHandler(h slog.Handler) ApiOption {
	return apiOptionFunc(func(ao *ApiOptions) {
		ao.logHandler = h
	})
}

// Api is a [http.Handler] serving routes and their OpenAPI document.
type Api struct {
	router *chi.Mux
	spec   *openapi3.Spec
}

// NewApi creates an [Api] whose document is described by title and version.
//
// NewApi panics if the fragments of the registered routes can not be merged.
func NewApi(title, version string, opts ...ApiOption) *Api {
	var defaultHealth health.Binary
	defaultHealth.MarkHealthy()

	ao := &ApiOptions{
		mux:        chi.NewMux(),
		logHandler: apiguard.LogHandler("github.com/z5labs/apiguard/rest"),
		readiness:  &defaultHealth,
		liveness:   &defaultHealth,
	}
	for _, opt := range opts {
		opt.ApplyApiOption(ao)
	}

	spec, err := openapi.Merge(openapi3.Info{Title: title, Version: version}, ao.fragments...)
	if err != nil {
		panic(err)
	}

	log := slog.New(ao.logHandler)
	ao.mux.Get("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		enc := json.NewEncoder(w)
		err := enc.Encode(spec)
		if err == nil {
			return
		}
		log.ErrorContext(
			r.Context(),
			"failed to encode openapi schema to json",
			slog.Any("error", err),
		)
	})

	ao.mux.Method(http.MethodGet, "/health/readiness", health.Handler(ao.readiness, log))
	ao.mux.Method(http.MethodGet, "/health/liveness", health.Handler(ao.liveness, log))

	return &Api{
		router: ao.mux,
		spec:   spec,
	}
}

// Spec returns the document served at /openapi.json.
func (api *Api) Spec() *openapi3.Spec {
	return api.spec
}

// ServeHTTP implements the [http.Handler] interface.
func (api *Api) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	api.router.ServeHTTP(w, req)
}
