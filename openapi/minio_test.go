//go:build testcontainers

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package openapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/z5labs/apiguard/router"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupMinIOContainer starts a MinIO server and returns a client with an empty bucket.
func setupMinIOContainer(t *testing.T, bucket string) *minio.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		Cmd: []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/ready").
			WithPort("9000/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	require.NoError(t, err)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
	require.NoError(t, err)

	return client
}

func TestMinIOStore(t *testing.T) {
	client := setupMinIOContainer(t, "openapi")
	ctx := context.Background()

	t.Run("will round trip fragments under the prefix", func(t *testing.T) {
		store := NewMinIOStore(client, "openapi", "prebuilt/")

		require.NoError(t, store.Put(ctx, "$api$a@get.json", []byte(`{"a":1}`)))
		require.NoError(t, store.Put(ctx, "$api$b@get.json", []byte(`{"b":2}`)))

		names, err := store.List(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"$api$a@get.json", "$api$b@get.json"}, names)

		b, err := store.Get(ctx, "$api$b@get.json")
		require.NoError(t, err)
		require.JSONEq(t, `{"b":2}`, string(b))
	})

	t.Run("will merge fragments synthesized into the bucket", func(t *testing.T) {
		syn := NewSynthesizer(NewMinIOStore(client, "openapi", "merge/"), LogHandler(discard()))

		require.NoError(t, syn.Synthesize(ctx, router.Route{Method: http.MethodGet, Path: "/api/items"}))
		require.NoError(t, syn.Synthesize(ctx, router.Route{Method: http.MethodPost, Path: "/api/items"}))

		spec, err := syn.MergeAll(ctx, openapi3.Info{Title: "Items", Version: "v1"})
		require.NoError(t, err)
		require.NoError(t, Validate(spec))

		item := spec.Paths.MapOfPathItemValues["/api/items"]
		require.Len(t, item.MapOfOperationValues, 2)
	})
}
