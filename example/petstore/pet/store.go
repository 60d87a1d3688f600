// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pet stores the pets served by the petstore example.
package pet

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no pet has the requested id.
var ErrNotFound = errors.New("pet not found")

// Pet is a stored pet.
type Pet struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
	Tag  string `json:"tag,omitempty"`
}

// Store persists pets.
type Store interface {
	List(ctx context.Context, limit int) ([]Pet, error)
	Get(ctx context.Context, id string) (Pet, error)
	Add(ctx context.Context, p Pet) (Pet, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps pets in a map.
type MemoryStore struct {
	mu   sync.RWMutex
	pets map[string]Pet
}

// NewMemoryStore initializes an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pets: make(map[string]Pet),
	}
}

// List returns at most limit pets ordered by name.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pets := make([]Pet, 0, len(s.pets))
	for _, p := range s.pets {
		pets = append(pets, p)
	}
	slices.SortFunc(pets, func(a, b Pet) int {
		return strings.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(pets) > limit {
		pets = pets[:limit]
	}
	return pets, nil
}

// Get returns the pet with id.
func (s *MemoryStore) Get(ctx context.Context, id string) (Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pets[id]
	if !ok {
		return Pet{}, ErrNotFound
	}
	return p, nil
}

// Add stores p under a new id.
func (s *MemoryStore) Add(ctx context.Context, p Pet) (Pet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = uuid.NewString()
	s.pets[p.ID] = p
	return p, nil
}

// Delete removes the pet with id.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pets[id]; !ok {
		return ErrNotFound
	}
	delete(s.pets, id)
	return nil
}

// Schema creates the pets table used by [PostgresStore].
const Schema = `CREATE TABLE IF NOT EXISTS pets (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	tag  TEXT NOT NULL DEFAULT ''
)`

// PostgresStore keeps pets in a Postgres table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to url and makes sure the pets table exists.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	_, err = pool.Exec(ctx, Schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create pets table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases every pooled connection.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// List returns at most limit pets ordered by name.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Pet, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, "SELECT id, name, kind, tag FROM pets ORDER BY name LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Pet])
}

// Get returns the pet with id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Pet, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, kind, tag FROM pets WHERE id = $1", id)
	if err != nil {
		return Pet{}, err
	}

	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Pet])
	if errors.Is(err, pgx.ErrNoRows) {
		return Pet{}, ErrNotFound
	}
	return p, err
}

// Add stores p under a new id.
func (s *PostgresStore) Add(ctx context.Context, p Pet) (Pet, error) {
	p.ID = uuid.NewString()

	_, err := s.pool.Exec(
		ctx,
		"INSERT INTO pets (id, name, kind, tag) VALUES ($1, $2, $3, $4)",
		p.ID, p.Name, p.Kind, p.Tag,
	)
	if err != nil {
		return Pet{}, err
	}
	return p, nil
}

// Delete removes the pet with id.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM pets WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
