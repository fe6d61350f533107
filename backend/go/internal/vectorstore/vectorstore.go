// Package vectorstore stores embedding vectors with JSON payloads in named
// collections and answers cosine-similarity queries over them.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrCollectionNotFound is returned by CollectionInfo for unknown collections.
var ErrCollectionNotFound = errors.New("vectorstore: collection not found")

// Point is one stored vector.
type Point struct {
	ID      string
	Vector  []float32
	Payload json.RawMessage
}

// Hit is one search result. Score is cosine similarity, higher is closer.
type Hit struct {
	ID      string
	Score   float32
	Payload json.RawMessage
}

// CollectionInfo describes a collection.
type CollectionInfo struct {
	PointCount int
	Status     string
}

// Index is a vector index. Collections are created on first Upsert with the
// index dimension and cosine distance. Search on a missing collection returns
// no hits; Delete and DropCollection on missing data succeed.
type Index interface {
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error)
	Delete(ctx context.Context, collection string, ids []string) error
	CollectionInfo(ctx context.Context, collection string) (CollectionInfo, error)
	DropCollection(ctx context.Context, collection string) error
}

func validatePoints(points []Point, dim int) error {
	for _, p := range points {
		if p.ID == "" {
			return errors.New("vectorstore: point without id")
		}
		if len(p.Vector) != dim {
			return fmt.Errorf("vectorstore: point %s has dimension %d, want %d", p.ID, len(p.Vector), dim)
		}
	}
	return nil
}

// isZero reports whether v carries no direction; cosine similarity is undefined for it.
func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// sortHits orders by descending score, ties broken by id, and truncates to limit.
func sortHits(hits []Hit, limit int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
