// Package store persists facts: vectors and payloads in the vector index,
// plus a relational catalog used for listing and deletion.
package store

import (
	"context"

	"minerva/backend/go/internal/models"
)

// Store defines the interface for fact persistence.
type Store interface {
	// Upsert writes facts with their vectors. Existing ids keep their CreatedAt.
	Upsert(ctx context.Context, facts []models.Fact, vectors [][]float32) error
	// Search returns the closest facts with Score set, best first.
	Search(ctx context.Context, vector []float32, limit int) ([]models.Fact, error)
	// Delete removes one fact. Unknown ids are not an error.
	Delete(ctx context.Context, id string) error
	// DeleteAll removes every fact.
	DeleteAll(ctx context.Context) error
	// List returns every stored fact, newest first.
	List(ctx context.Context) ([]models.Fact, error)
}
