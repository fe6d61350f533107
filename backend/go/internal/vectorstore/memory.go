package vectorstore

import (
	"context"
	"math"
	"sync"
)

// MemoryIndex keeps everything in process memory. It backs tests and the
// "memory" backend; data is lost on exit.
type MemoryIndex struct {
	dim         int
	mu          sync.RWMutex
	collections map[string]map[string]Point
}

// NewMemoryIndex creates an empty index for vectors of size dim.
func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{dim: dim, collections: make(map[string]map[string]Point)}
}

func (m *MemoryIndex) Upsert(_ context.Context, collection string, points []Point) error {
	if err := validatePoints(points, m.dim); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		col = make(map[string]Point)
		m.collections[collection] = col
	}
	for _, p := range points {
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		col[p.ID] = Point{ID: p.ID, Vector: vec, Payload: append([]byte(nil), p.Payload...)}
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if isZero(vector) || limit <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}
	hits := make([]Hit, 0, len(col))
	for _, p := range col {
		if isZero(p.Vector) {
			continue
		}
		hits = append(hits, Hit{ID: p.ID, Score: cosine(vector, p.Vector), Payload: p.Payload})
	}
	return sortHits(hits, limit), nil
}

func (m *MemoryIndex) Delete(_ context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(col, id)
	}
	return nil
}

func (m *MemoryIndex) CollectionInfo(_ context.Context, collection string) (CollectionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[collection]
	if !ok {
		return CollectionInfo{}, ErrCollectionNotFound
	}
	return CollectionInfo{PointCount: len(col), Status: "green"}, nil
}

func (m *MemoryIndex) DropCollection(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, collection)
	return nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
