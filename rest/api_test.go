// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/z5labs/apiguard/breaker"
	"github.com/z5labs/apiguard/health"
	"github.com/z5labs/apiguard/router"
	"github.com/z5labs/apiguard/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() *router.Router {
	return router.New(router.LogHandler(slog.DiscardHandler))
}

func getUserRoute() router.Route {
	return router.Route{
		Method:  http.MethodGet,
		Path:    "/api/users/{id}",
		Summary: "Get a user",
		Validation: router.Validation{
			Params:   schema.Shape{"id": schema.Str()},
			Response: schema.Shape{"id": schema.Str()},
		},
	}
}

func getUser(ctx context.Context, req *router.Request) (any, error) {
	params := req.Params.(map[string]any)
	return map[string]any{"id": params["id"]}, nil
}

func TestApi_OpenApi(t *testing.T) {
	t.Run("will serve the merged document of every route", func(t *testing.T) {
		rt := newRouter()
		api := NewApi(
			"Users",
			"v1.0.0",
			LogHandler(slog.DiscardHandler),
			Handle(rt, getUserRoute(), getUser),
			Handle(rt, router.Route{
				Method: http.MethodPost,
				Path:   "/api/users",
				Validation: router.Validation{
					Data: schema.Shape{"name": schema.Str()},
				},
			}, func(ctx context.Context, req *router.Request) (any, error) {
				return nil, nil
			}),
		)

		srv := httptest.NewServer(api)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/openapi.json")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var doc map[string]any
		err = json.NewDecoder(resp.Body).Decode(&doc)
		require.NoError(t, err)

		require.Equal(t, "3.0.0", doc["openapi"])
		info := doc["info"].(map[string]any)
		require.Equal(t, "Users", info["title"])
		require.Equal(t, "v1.0.0", info["version"])

		paths := doc["paths"].(map[string]any)
		require.Contains(t, paths, "/api/users/{id}")
		require.Contains(t, paths, "/api/users")
		require.Contains(t, paths["/api/users/{id}"], "get")
		require.Contains(t, paths["/api/users"], "post")
	})

	t.Run("will panic when a route has no path", func(t *testing.T) {
		require.Panics(t, func() {
			NewApi("Users", "v1.0.0", Handle(newRouter(), router.Route{}, getUser))
		})
	})
}

func TestHandle(t *testing.T) {
	t.Run("will serve a validated call", func(t *testing.T) {
		api := NewApi("Users", "v1.0.0", LogHandler(slog.DiscardHandler), Handle(newRouter(), getUserRoute(), getUser))

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/users/42", nil)
		api.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		err := json.Unmarshal(w.Body.Bytes(), &body)
		require.NoError(t, err)
		require.Equal(t, "42", body["id"])
	})

	t.Run("will reject calls once the breaker opens", func(t *testing.T) {
		b := breaker.New(breaker.Threshold(1), breaker.LogHandler(slog.DiscardHandler))

		var calls int
		api := NewApi(
			"Users",
			"v1.0.0",
			LogHandler(slog.DiscardHandler),
			Handle(newRouter(), getUserRoute(), func(ctx context.Context, req *router.Request) (any, error) {
				calls++
				return nil, errors.New("upstream down")
			}, Breaker(b)),
			Readiness(b.Monitor(breaker.Key(http.MethodGet, "/api/users/{id}"))),
		)

		w := httptest.NewRecorder()
		api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/1", nil))
		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.Equal(t, 1, calls)

		w = httptest.NewRecorder()
		api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/2", nil))
		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.Equal(t, 1, calls)
		require.Contains(t, w.Body.String(), breaker.RetryLaterMessage)

		w = httptest.NewRecorder()
		api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("will call the error handler when the handler panics", func(t *testing.T) {
		var handled error
		eh := ErrorHandlerFunc(func(ctx context.Context, w http.ResponseWriter, err error) {
			handled = err
			w.WriteHeader(http.StatusBadGateway)
		})

		rt := newRouter()
		api := NewApi(
			"Users",
			"v1.0.0",
			LogHandler(slog.DiscardHandler),
			Handle(rt, getUserRoute(), getUser, OnError(eh), Breaker(breaker.New(
				breaker.LogHandler(slog.DiscardHandler),
				breaker.Classify(func(*router.Response) bool {
					panic("classifier failed")
				}),
			))),
		)

		w := httptest.NewRecorder()
		api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/1", nil))

		require.Equal(t, http.StatusBadGateway, w.Code)
		require.Error(t, handled)
	})

	t.Run("will reply with problem details for a recovered panic", func(t *testing.T) {
		rt := newRouter()
		api := NewApi(
			"Users",
			"v1.0.0",
			LogHandler(slog.DiscardHandler),
			Handle(rt, getUserRoute(), getUser,
				OnError(NewProblemDetailsErrorHandler(router.HideDetails())),
				Breaker(breaker.New(
					breaker.LogHandler(slog.DiscardHandler),
					breaker.Classify(func(*router.Response) bool {
						panic("classifier failed")
					}),
				)),
			),
		)

		w := httptest.NewRecorder()
		api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/1", nil))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.Equal(t, router.ContentTypeProblemJSON, w.Header().Get("Content-Type"))

		var problem map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
		require.Equal(t, "Internal Server Error", problem["title"])
		require.NotContains(t, problem["detail"], "classifier failed")
	})
}

func TestApi_Health(t *testing.T) {
	t.Run("will report healthy by default", func(t *testing.T) {
		api := NewApi("Users", "v1.0.0", LogHandler(slog.DiscardHandler))

		for _, path := range []string{"/health/liveness", "/health/readiness"} {
			w := httptest.NewRecorder()
			api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, w.Code, path)
		}
	})

	t.Run("will report an unhealthy liveness monitor", func(t *testing.T) {
		var m health.Binary
		m.MarkUnhealthy()

		api := NewApi("Users", "v1.0.0", LogHandler(slog.DiscardHandler), Liveness(&m))

		w := httptest.NewRecorder()
		api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/liveness", nil))
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestApi_NotFound(t *testing.T) {
	t.Run("will use the custom handlers", func(t *testing.T) {
		api := NewApi(
			"Users",
			"v1.0.0",
			LogHandler(slog.DiscardHandler),
			Handle(newRouter(), getUserRoute(), getUser),
			NotFound(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			})),
			MethodNotAllowed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
			})),
		)

		w := httptest.NewRecorder()
		api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
		require.Equal(t, http.StatusTeapot, w.Code)

		w = httptest.NewRecorder()
		api.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/users/1", nil))
		require.Equal(t, http.StatusConflict, w.Code)
	})
}
