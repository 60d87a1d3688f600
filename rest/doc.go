// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package rest serves routes registered with a [router.Router] over chi.
//
// # Overview
//
// An [Api] provides:
//   - every route registered with [Handle], optionally guarded by a [breaker.Breaker]
//   - the OpenAPI 3.0 document of those routes at GET /openapi.json
//   - health endpoints at GET /health/liveness and GET /health/readiness
//   - OpenTelemetry route tags for every operation
//
// # Quick Start
//
//	rt := router.New()
//	b := breaker.New()
//
//	api := rest.NewApi(
//	    "Users",
//	    "v1.0.0",
//	    rest.Handle(rt, router.Route{
//	        Method: http.MethodGet,
//	        Path:   "/api/users/{id}",
//	        Validation: router.Validation{
//	            Params: schema.Shape{"id": schema.Str()},
//	        },
//	    }, getUser, rest.Breaker(b)),
//	    rest.Readiness(b.Monitor()),
//	)
//	http.ListenAndServe(":8080", api)
package rest
