package vectorstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"minerva/backend/go/internal/config"
	mhttp "minerva/backend/go/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQdrant records requests and serves a single collection.
type fakeQdrant struct {
	mu       sync.Mutex
	exists   bool
	requests []string
	upserted []qdrantPoint
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	body, _ := io.ReadAll(r.Body)

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/collections":
		_, _ = w.Write([]byte(`{"result":{"collections":[]}}`))
	case r.Method == http.MethodGet && r.URL.Path == "/collections/facts":
		if !f.exists {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"result":{"status":"green","points_count":` + itoa(len(f.upserted)) + `}}`))
	case r.Method == http.MethodPut && r.URL.Path == "/collections/facts":
		var req map[string]map[string]any
		_ = json.Unmarshal(body, &req)
		if req["vectors"]["distance"] != "Cosine" {
			http.Error(w, "bad distance", http.StatusBadRequest)
			return
		}
		f.exists = true
		_, _ = w.Write([]byte(`{"result":true}`))
	case r.Method == http.MethodPut && r.URL.Path == "/collections/facts/points":
		var req struct {
			Points []qdrantPoint `json:"points"`
		}
		_ = json.Unmarshal(body, &req)
		f.upserted = append(f.upserted, req.Points...)
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	case r.Method == http.MethodPost && r.URL.Path == "/collections/facts/points/search":
		_, _ = w.Write([]byte(`{"result":[
			{"id":"b","score":0.4,"payload":{"text":"low"}},
			{"id":"a","score":0.9,"payload":{"text":"high"}}]}`))
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/collections/missing/"):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusTeapot)
	}
}

func itoa(n int) string { b, _ := json.Marshal(n); return string(b) }

func newTestQdrant(t *testing.T, f *fakeQdrant) *QdrantIndex {
	t.Helper()
	ts := httptest.NewServer(f)
	t.Cleanup(ts.Close)
	client, err := mhttp.NewClient("qdrant", config.CircuitBreakerConfig{}, nil, mhttp.WithHeader("api-key", "k"))
	require.NoError(t, err)
	return NewQdrantIndex(ts.URL, client, 2)
}

func TestQdrantCreatesCollectionLazily(t *testing.T) {
	f := &fakeQdrant{}
	q := newTestQdrant(t, f)
	ctx := context.Background()

	id := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	require.NoError(t, q.Upsert(ctx, "facts", []Point{
		{ID: id, Vector: []float32{1, 0}, Payload: json.RawMessage(`{"text":"x"}`)},
		{ID: "not-a-uuid", Vector: []float32{0, 1}, Payload: json.RawMessage(`{"text":"y"}`)},
	}))
	require.NoError(t, q.Upsert(ctx, "facts", []Point{{ID: id, Vector: []float32{1, 0}}}))

	assert.Equal(t, []string{
		"GET /collections/facts",
		"PUT /collections/facts",
		"PUT /collections/facts/points",
		"PUT /collections/facts/points",
	}, f.requests)
	require.Len(t, f.upserted, 3)
	assert.Equal(t, id, f.upserted[0].ID)
	assert.Equal(t, pointID("not-a-uuid"), f.upserted[1].ID)

	info, err := q.CollectionInfo(ctx, "facts")
	require.NoError(t, err)
	assert.Equal(t, 3, info.PointCount)
}

func TestQdrantSearchSortsAndHandlesMissing(t *testing.T) {
	q := newTestQdrant(t, &fakeQdrant{exists: true})
	ctx := context.Background()

	hits, err := q.Search(ctx, "facts", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.JSONEq(t, `{"text":"high"}`, string(hits[0].Payload))

	hits, err = q.Search(ctx, "missing", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	assert.NoError(t, q.Delete(ctx, "missing", []string{"a"}))
}

func TestQdrantCollectionInfoNotFound(t *testing.T) {
	q := newTestQdrant(t, &fakeQdrant{})
	_, err := q.CollectionInfo(context.Background(), "facts")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestQdrantHealthCheck(t *testing.T) {
	f := &fakeQdrant{}
	q := newTestQdrant(t, f)
	require.NoError(t, HealthCheck(context.Background(), q))
	assert.Equal(t, []string{"GET /collections"}, f.requests)

	down, err := mhttp.NewClient("qdrant", config.CircuitBreakerConfig{}, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()
	assert.Error(t, NewQdrantIndex(ts.URL, down, 2).HealthCheck(context.Background()))
}
