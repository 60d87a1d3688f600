// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package openapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/z5labs/sdk-go/try"
)

// MinIOStore keeps fragments as objects in an S3 compatible bucket so that
// every replica of a service contributes to the same document.
type MinIOStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinIOStore initializes a [MinIOStore]. Object keys are prefix followed
// by the fragment name.
func NewMinIOStore(client *minio.Client, bucket, prefix string) *MinIOStore {
	return &MinIOStore{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Put implements the [Store] interface.
func (s *MinIOStore) Put(ctx context.Context, name string, b []byte) error {
	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		s.prefix+name,
		bytes.NewReader(b),
		int64(len(b)),
		minio.PutObjectOptions{
			ContentType: "application/json",
		},
	)
	if err != nil {
		return fmt.Errorf("failed to put fragment %s: %w", name, err)
	}
	return nil
}

// List implements the [Store] interface.
func (s *MinIOStore) List(ctx context.Context) ([]string, error) {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	})

	var names []string
	for obj := range objects {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list fragments: %w", obj.Err)
		}

		name := strings.TrimPrefix(obj.Key, s.prefix)
		if strings.Contains(name, "/") || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Get implements the [Store] interface.
func (s *MinIOStore) Get(ctx context.Context, name string) (_ []byte, err error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.prefix+name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get fragment %s: %w", name, err)
	}
	defer try.Close(&err, obj)

	b, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read fragment %s: %w", name, err)
	}
	return b, nil
}
