// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/z5labs/apiguard/schema"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPathFromDir(t *testing.T) {
	testCases := []struct {
		Name string
		Root string
		Dir  string
		Path string
	}{
		{
			Name: "strips the root and the api segment",
			Root: "/srv/app",
			Dir:  "/srv/app/src/app/api/users",
			Path: "/api/users",
		},
		{
			Name: "converts dynamic segments",
			Root: "/srv/app",
			Dir:  "/srv/app/api/users/[id]/posts/[postId]",
			Path: "/api/users/{id}/posts/{postId}",
		},
		{
			Name: "uses the last api segment",
			Root: "",
			Dir:  "/srv/api/app/api/health",
			Path: "/api/health",
		},
		{
			Name: "keeps the remainder without an api segment",
			Root: "/srv/app",
			Dir:  "/srv/app/users",
			Path: "/api/users",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			require.Equal(t, testCase.Path, PathFromDir(testCase.Root, testCase.Dir))
		})
	}
}

func TestRouter_Route(t *testing.T) {
	t.Run("will notify route subscribers once per registration", func(t *testing.T) {
		rt := New()

		var routes []Route
		rt.OnRouteAdded(RouteSubscriberFunc(func(ctx context.Context, route Route) error {
			routes = append(routes, route)
			return nil
		}))

		rt.Route(Route{Method: http.MethodGet, Dir: "/srv/app/api/users/[id]"}, nil)

		require.Len(t, routes, 1)
		require.Equal(t, "/api/users/{id}", routes[0].Path)
	})

	t.Run("will keep registering after a subscriber error", func(t *testing.T) {
		var buf bytes.Buffer
		rt := New(LogHandler(slog.NewJSONHandler(&buf, nil)))

		calls := 0
		rt.OnRouteAdded(RouteSubscriberFunc(func(ctx context.Context, route Route) error {
			calls++
			return errors.New("disk full")
		}))
		rt.OnRouteAdded(RouteSubscriberFunc(func(ctx context.Context, route Route) error {
			calls++
			return nil
		}))

		e := rt.Route(Route{Method: http.MethodGet, Path: "/api/items"}, nil)

		require.NotNil(t, e)
		require.Equal(t, 2, calls)
		require.Contains(t, buf.String(), "disk full")
	})

	t.Run("will stop notifying removed subscribers", func(t *testing.T) {
		rt := New()

		calls := 0
		remove := rt.OnRouteAdded(RouteSubscriberFunc(func(ctx context.Context, route Route) error {
			calls++
			return nil
		}))
		rt.Route(Route{Method: http.MethodGet, Path: "/api/a"}, nil)
		remove()
		rt.Route(Route{Method: http.MethodGet, Path: "/api/b"}, nil)

		require.Equal(t, 1, calls)
	})
}

func TestSlogSubscriber(t *testing.T) {
	t.Run("will write one record per call", func(t *testing.T) {
		var buf bytes.Buffer
		rt := New(LogHandler(slog.NewJSONHandler(&buf, nil)))

		e := rt.Route(Route{
			Method:     http.MethodGet,
			Path:       "/api/items",
			Validation: Validation{Query: schema.Shape{"id": schema.Num()}},
		}, func(ctx context.Context, req *Request) (any, error) {
			return nil, errors.New("boom")
		})

		e.Serve(httptest.NewRequest(http.MethodGet, "/api/items?id=1", nil))

		var record map[string]any
		err := json.Unmarshal(buf.Bytes(), &record)
		require.NoError(t, err)

		require.Equal(t, "ERROR", record["level"])
		require.Equal(t, "handled request", record["msg"])
		require.Equal(t, http.MethodGet, record["method"])
		require.Equal(t, "boom", record["error"])
		require.Equal(t, map[string]any{"id": float64(1)}, record["query"])
		require.NotEmpty(t, record["request_id"])
	})
}

func TestZapSubscriber(t *testing.T) {
	t.Run("will map levels and fields", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)

		rt := New()
		rt.SetLog(ZapSubscriber(zap.New(core)))

		e := rt.Route(Route{Method: http.MethodGet, Path: "/api/items"}, func(ctx context.Context, req *Request) (any, error) {
			return nil, nil
		})
		e.Serve(httptest.NewRequest(http.MethodGet, "/api/items", nil))

		entries := logs.All()
		require.Len(t, entries, 1)
		require.Equal(t, zap.InfoLevel, entries[0].Level)
		require.Equal(t, "/api/items", entries[0].ContextMap()["url"])
	})
}

func TestDecode(t *testing.T) {
	type query struct {
		ID   int      `json:"id"`
		Tags []string `json:"tags"`
	}

	t.Run("will decode validated values into a struct", func(t *testing.T) {
		var q query
		err := Decode(map[string]any{"id": float64(7), "tags": []any{"a"}}, &q)
		require.NoError(t, err)
		require.Equal(t, query{ID: 7, Tags: []string{"a"}}, q)
	})

	t.Run("will fail for incompatible values", func(t *testing.T) {
		var q query
		err := Decode(map[string]any{"id": map[string]any{}}, &q)
		require.Error(t, err)
	})
}

func TestErrorResponse(t *testing.T) {
	t.Run("will map validation errors to 400", func(t *testing.T) {
		resp := ErrorResponse(&schema.ValidationError{Path: "/id", Message: "expected number"})
		require.Equal(t, http.StatusBadRequest, resp.Status)
	})

	t.Run("will set the location of redirects", func(t *testing.T) {
		resp := ErrorResponse(NewError(http.StatusFound, "moved").WithRedirect("/login"))
		require.Equal(t, http.StatusFound, resp.Status)
		require.Equal(t, "/login", resp.Header.Get("Location"))
	})

	t.Run("will fall back to a 500", func(t *testing.T) {
		resp := ErrorResponse(errors.New("boom"))
		require.Equal(t, http.StatusInternalServerError, resp.Status)
	})
}
