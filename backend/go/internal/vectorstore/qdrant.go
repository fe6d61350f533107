package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	mhttp "minerva/backend/go/pkg/http"

	"github.com/google/uuid"
)

// QdrantIndex talks to Qdrant over its REST API. Requests go through the
// breaker-protected pkg/http client. Qdrant only accepts UUID or integer
// point ids, so non-UUID ids are mapped to a name-based UUID.
type QdrantIndex struct {
	baseURL string
	client  *mhttp.Client
	dim     int

	mu    sync.Mutex
	known map[string]bool
}

// NewQdrantIndex creates a client for the Qdrant server at baseURL.
func NewQdrantIndex(baseURL string, client *mhttp.Client, dim int) *QdrantIndex {
	return &QdrantIndex{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		dim:     dim,
		known:   make(map[string]bool),
	}
}

type qdrantPoint struct {
	ID      string          `json:"id"`
	Vector  []float32       `json:"vector"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (q *QdrantIndex) collectionURL(collection string, parts ...string) string {
	return q.baseURL + "/collections/" + url.PathEscape(collection) + strings.Join(parts, "")
}

func pointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, collection string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.known[collection] {
		return nil
	}
	err := q.client.DoJSON(ctx, http.MethodGet, q.collectionURL(collection), nil, nil)
	if mhttp.IsStatus(err, http.StatusNotFound) {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     q.dim,
				"distance": "Cosine",
			},
		}
		err = q.client.DoJSON(ctx, http.MethodPut, q.collectionURL(collection), body, nil)
	}
	if err != nil {
		return fmt.Errorf("qdrant ensure collection %s: %w", collection, err)
	}
	q.known[collection] = true
	return nil
}

func (q *QdrantIndex) forget(collection string) {
	q.mu.Lock()
	delete(q.known, collection)
	q.mu.Unlock()
}

func (q *QdrantIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := validatePoints(points, q.dim); err != nil {
		return err
	}
	if err := q.ensureCollection(ctx, collection); err != nil {
		return err
	}
	body := struct {
		Points []qdrantPoint `json:"points"`
	}{Points: make([]qdrantPoint, len(points))}
	for i, p := range points {
		body.Points[i] = qdrantPoint{ID: pointID(p.ID), Vector: p.Vector, Payload: p.Payload}
	}
	err := q.client.DoJSON(ctx, http.MethodPut, q.collectionURL(collection, "/points?wait=true"), body, nil)
	if mhttp.IsStatus(err, http.StatusNotFound) {
		// Dropped behind our back.
		q.forget(collection)
		if err = q.ensureCollection(ctx, collection); err == nil {
			err = q.client.DoJSON(ctx, http.MethodPut, q.collectionURL(collection, "/points?wait=true"), body, nil)
		}
	}
	if err != nil {
		return fmt.Errorf("qdrant upsert into %s: %w", collection, err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	if isZero(vector) || limit <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      json.RawMessage `json:"id"`
			Score   float32         `json:"score"`
			Payload json.RawMessage `json:"payload"`
		} `json:"result"`
	}
	err := q.client.DoJSON(ctx, http.MethodPost, q.collectionURL(collection, "/points/search"), req, &resp)
	if mhttp.IsStatus(err, http.StatusNotFound) {
		q.forget(collection)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("qdrant search %s: %w", collection, err)
	}
	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, Hit{ID: decodeID(r.ID), Score: r.Score, Payload: r.Payload})
	}
	return sortHits(hits, limit), nil
}

// decodeID accepts both string and integer ids.
func decodeID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (q *QdrantIndex) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	mapped := make([]string, len(ids))
	for i, id := range ids {
		mapped[i] = pointID(id)
	}
	body := map[string]any{"points": mapped}
	err := q.client.DoJSON(ctx, http.MethodPost, q.collectionURL(collection, "/points/delete?wait=true"), body, nil)
	if mhttp.IsStatus(err, http.StatusNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("qdrant delete from %s: %w", collection, err)
	}
	return nil
}

func (q *QdrantIndex) CollectionInfo(ctx context.Context, collection string) (CollectionInfo, error) {
	var resp struct {
		Result struct {
			Status      string `json:"status"`
			PointsCount int    `json:"points_count"`
		} `json:"result"`
	}
	err := q.client.DoJSON(ctx, http.MethodGet, q.collectionURL(collection), nil, &resp)
	if mhttp.IsStatus(err, http.StatusNotFound) {
		return CollectionInfo{}, ErrCollectionNotFound
	}
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("qdrant collection info %s: %w", collection, err)
	}
	return CollectionInfo{PointCount: resp.Result.PointsCount, Status: resp.Result.Status}, nil
}

func (q *QdrantIndex) DropCollection(ctx context.Context, collection string) error {
	q.forget(collection)
	err := q.client.DoJSON(ctx, http.MethodDelete, q.collectionURL(collection), nil, nil)
	if err != nil && !mhttp.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("qdrant drop %s: %w", collection, err)
	}
	return nil
}

// HealthCheck lists collections on the Qdrant server.
func (q *QdrantIndex) HealthCheck(ctx context.Context) error {
	if err := q.client.DoJSON(ctx, http.MethodGet, q.baseURL+"/collections", nil, nil); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}
