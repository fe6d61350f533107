package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemIndex stores vectors in an embedded chromem-go database, optionally
// persisted to a directory. The payload JSON is kept as the document content.
type ChromemIndex struct {
	db  *chromem.DB
	dim int
}

// NewChromemIndex opens a persistent database at path, or an in-memory one when path is empty.
func NewChromemIndex(path string, compress bool, dim int) (*ChromemIndex, error) {
	if path == "" {
		return &ChromemIndex{db: chromem.NewDB(), dim: dim}, nil
	}
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("open chromem db at %s: %w", path, err)
	}
	return &ChromemIndex{db: db, dim: dim}, nil
}

func (c *ChromemIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := validatePoints(points, c.dim); err != nil {
		return err
	}
	// No embedding func: vectors always come precomputed.
	col, err := c.db.GetOrCreateCollection(collection, nil, nil)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		docs[i] = chromem.Document{
			ID:        p.ID,
			Content:   string(p.Payload),
			Embedding: p.Vector,
		}
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

func (c *ChromemIndex) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	if isZero(vector) || limit <= 0 {
		return nil, nil
	}
	col := c.db.GetCollection(collection, nil)
	if col == nil {
		return nil, nil
	}
	// chromem-go requires nResults <= collection size.
	n := col.Count()
	if n == 0 {
		return nil, nil
	}
	if limit > n {
		limit = n
	}
	results, err := col.QueryEmbedding(ctx, vector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{ID: r.ID, Score: r.Similarity, Payload: json.RawMessage(r.Content)})
	}
	return sortHits(hits, limit), nil
}

func (c *ChromemIndex) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	col := c.db.GetCollection(collection, nil)
	if col == nil {
		return nil
	}
	present := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := col.GetByID(ctx, id); err == nil {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, present...); err != nil {
		return fmt.Errorf("chromem delete: %w", err)
	}
	return nil
}

func (c *ChromemIndex) CollectionInfo(_ context.Context, collection string) (CollectionInfo, error) {
	col := c.db.GetCollection(collection, nil)
	if col == nil {
		return CollectionInfo{}, ErrCollectionNotFound
	}
	return CollectionInfo{PointCount: col.Count(), Status: "green"}, nil
}

func (c *ChromemIndex) DropCollection(_ context.Context, collection string) error {
	if c.db.GetCollection(collection, nil) == nil {
		return nil
	}
	return c.db.DeleteCollection(collection)
}
