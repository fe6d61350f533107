package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"minerva/backend/go/internal/database/milvus"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusIndex stores points in Milvus collections sharing one schema:
// a VarChar primary key, the JSON payload as VarChar, and a float vector.
type MilvusIndex struct {
	mc  *milvus.MilvusClient
	dim int

	mu    sync.Mutex
	ready map[string]bool
}

// NewMilvusIndex wraps a connected Milvus client.
func NewMilvusIndex(mc *milvus.MilvusClient, dim int) *MilvusIndex {
	return &MilvusIndex{mc: mc, dim: dim, ready: make(map[string]bool)}
}

func (m *MilvusIndex) ensure(ctx context.Context, collection string, create bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready[collection] {
		return true, nil
	}
	if !create {
		exists, err := m.mc.Client.HasCollection(ctx, collection)
		if err != nil || !exists {
			return false, err
		}
	}
	if err := m.mc.EnsureCollection(ctx, collection, m.dim); err != nil {
		return false, err
	}
	m.ready[collection] = true
	return true, nil
}

func (m *MilvusIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := validatePoints(points, m.dim); err != nil {
		return err
	}
	if _, err := m.ensure(ctx, collection, true); err != nil {
		return err
	}
	ids := make([]string, len(points))
	payloads := make([]string, len(points))
	vectors := make([][]float32, len(points))
	for i, p := range points {
		ids[i] = p.ID
		payloads[i] = string(p.Payload)
		vectors[i] = p.Vector
	}
	_, err := m.mc.Client.Upsert(ctx, collection, "",
		entity.NewColumnVarChar(milvus.FieldID, ids),
		entity.NewColumnVarChar(milvus.FieldPayload, payloads),
		entity.NewColumnFloatVector(milvus.FieldVector, m.dim, vectors),
	)
	if err != nil {
		return fmt.Errorf("milvus upsert into %s: %w", collection, err)
	}
	return nil
}

func (m *MilvusIndex) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	if isZero(vector) || limit <= 0 {
		return nil, nil
	}
	ok, err := m.ensure(ctx, collection, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	sp, err := m.mc.SearchParam()
	if err != nil {
		return nil, err
	}
	results, err := m.mc.Client.Search(ctx, collection, nil, "",
		[]string{milvus.FieldPayload},
		[]entity.Vector{entity.FloatVector(vector)},
		milvus.FieldVector, entity.COSINE, limit, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search %s: %w", collection, err)
	}

	var hits []Hit
	for _, res := range results {
		idCol, ok := res.IDs.(*entity.ColumnVarChar)
		if !ok {
			return nil, fmt.Errorf("milvus search %s: unexpected id column type %T", collection, res.IDs)
		}
		var payloadCol *entity.ColumnVarChar
		for _, f := range res.Fields {
			if f.Name() == milvus.FieldPayload {
				payloadCol, _ = f.(*entity.ColumnVarChar)
			}
		}
		for i := 0; i < res.ResultCount; i++ {
			id, err := idCol.ValueByIdx(i)
			if err != nil {
				return nil, err
			}
			hit := Hit{ID: id, Score: res.Scores[i]}
			if payloadCol != nil {
				if p, err := payloadCol.ValueByIdx(i); err == nil {
					hit.Payload = json.RawMessage(p)
				}
			}
			hits = append(hits, hit)
		}
	}
	return sortHits(hits, limit), nil
}

func (m *MilvusIndex) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ok, err := m.ensure(ctx, collection, false)
	if err != nil || !ok {
		return err
	}
	quoted, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	expr := fmt.Sprintf("%s in %s", milvus.FieldID, quoted)
	if err := m.mc.Client.Delete(ctx, collection, "", expr); err != nil {
		return fmt.Errorf("milvus delete from %s: %w", collection, err)
	}
	return nil
}

func (m *MilvusIndex) CollectionInfo(ctx context.Context, collection string) (CollectionInfo, error) {
	exists, err := m.mc.Client.HasCollection(ctx, collection)
	if err != nil {
		return CollectionInfo{}, err
	}
	if !exists {
		return CollectionInfo{}, ErrCollectionNotFound
	}
	stats, err := m.mc.Client.GetCollectionStatistics(ctx, collection)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("milvus statistics %s: %w", collection, err)
	}
	n, _ := strconv.Atoi(stats["row_count"])
	return CollectionInfo{PointCount: n, Status: "loaded"}, nil
}

func (m *MilvusIndex) DropCollection(ctx context.Context, collection string) error {
	m.mu.Lock()
	delete(m.ready, collection)
	m.mu.Unlock()
	exists, err := m.mc.Client.HasCollection(ctx, collection)
	if err != nil || !exists {
		return err
	}
	return m.mc.Client.DropCollection(ctx, collection)
}

// HealthCheck lists collections on the Milvus server.
func (m *MilvusIndex) HealthCheck(ctx context.Context) error {
	return m.mc.HealthCheck(ctx)
}
