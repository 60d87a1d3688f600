// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package openapi

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefaultDir is where an [FSStore] keeps fragments when no directory is given.
const DefaultDir = ".openapi/cache/prebuilt"

// Store persists one OpenAPI fragment per route.
type Store interface {
	// Put stores b under name, replacing any previous fragment.
	Put(ctx context.Context, name string, b []byte) error

	// List returns the names of every stored fragment.
	List(ctx context.Context) ([]string, error)

	// Get returns the fragment stored under name.
	Get(ctx context.Context, name string) ([]byte, error)
}

// FSStore keeps fragments as JSON files in a single directory.
type FSStore struct {
	fs  afero.Fs
	dir string
}

// NewFSStore initializes a [FSStore] writing into dir on fsys.
// An empty dir means [DefaultDir].
func NewFSStore(fsys afero.Fs, dir string) *FSStore {
	if dir == "" {
		dir = DefaultDir
	}
	return &FSStore{
		fs:  fsys,
		dir: dir,
	}
}

// Put implements the [Store] interface.
func (s *FSStore) Put(ctx context.Context, name string, b []byte) error {
	err := s.fs.MkdirAll(s.dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create fragment directory: %w", err)
	}

	err = afero.WriteFile(s.fs, filepath.Join(s.dir, name), b, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write fragment %s: %w", name, err)
	}
	return nil
}

// List implements the [Store] interface. A missing directory holds no fragments.
func (s *FSStore) List(ctx context.Context) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list fragments: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			continue
		}
		names = append(names, info.Name())
	}
	return names, nil
}

// Get implements the [Store] interface.
func (s *FSStore) Get(ctx context.Context, name string) ([]byte, error) {
	b, err := afero.ReadFile(s.fs, filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read fragment %s: %w", name, err)
	}
	return b, nil
}
