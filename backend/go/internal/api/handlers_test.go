package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"minerva/backend/go/internal/history"
	"minerva/backend/go/internal/models"
	"minerva/backend/go/internal/rag/catalog"
	"minerva/backend/go/internal/rag/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeChat struct {
	conversationID string
	message        string
}

func (f *fakeChat) Route(_ context.Context, conversationID, message string) *models.RouteResult {
	f.conversationID, f.message = conversationID, message
	return &models.RouteResult{
		Answer:         "¡Hola!",
		AgentUsed:      models.AgentConversational,
		Confidence:     models.ConfidenceMedium,
		Intent:         models.IntentConversation,
		ConversationID: conversationID,
	}
}

type fakeDocs struct {
	indexed   []string
	content   []byte
	result    pipeline.IndexResult
	results   []pipeline.SearchResult
	threshold float32
	deleteErr error
}

func (f *fakeDocs) Index(_ context.Context, path, collection string) pipeline.IndexResult {
	f.indexed = append(f.indexed, path)
	f.content, _ = os.ReadFile(path)
	res := f.result
	res.Filename = filepath.Base(path)
	return res
}

func (f *fakeDocs) Search(_ context.Context, _, _ string, _ int, threshold float32) ([]pipeline.SearchResult, error) {
	f.threshold = threshold
	return f.results, nil
}

func (f *fakeDocs) DeleteDocument(context.Context, string) error { return f.deleteErr }

func (f *fakeDocs) ListDocuments(context.Context, string) ([]models.Document, error) {
	return []models.Document{{ID: "d1", Filename: "manual.pdf", IsIndexed: true}}, nil
}

type fakeFacts struct {
	facts   []models.Fact
	deleted []string
	cleared bool
}

func (f *fakeFacts) List(context.Context) ([]models.Fact, error) { return f.facts, nil }
func (f *fakeFacts) Recall(context.Context, string, int) []models.Fact { return f.facts }
func (f *fakeFacts) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}
func (f *fakeFacts) DeleteAll(context.Context) error {
	f.cleared = true
	return nil
}

type fixture struct {
	engine  *gin.Engine
	chat    *fakeChat
	docs    *fakeDocs
	facts   *fakeFacts
	history *history.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		chat:    &fakeChat{},
		docs:    &fakeDocs{result: pipeline.IndexResult{Success: true, DocumentID: "d1", ChunksCreated: 2}},
		facts:   &fakeFacts{facts: []models.Fact{{ID: "f1", Text: "El usuario se llama Marcelo"}}},
		history: history.NewMemoryStore(),
	}
	h := NewHandler(f.chat, f.history, f.docs, f.facts, Options{UploadDir: t.TempDir(), SearchThreshold: 0.3}, nil)
	f.engine = SetupRouter(h, nil)
	return f
}

func (f *fixture) do(method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *fixture) doJSON(method, target string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	return f.do(method, target, raw, "application/json")
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthReportsBackends(t *testing.T) {
	var sawDeadline bool
	sql := Check{Name: "sql", Run: func(ctx context.Context) error {
		_, sawDeadline = ctx.Deadline()
		return nil
	}}
	redis := Check{Name: "redis", Run: func(context.Context) error { return errors.New("connection refused") }}

	healthz := func(checks ...Check) *httptest.ResponseRecorder {
		h := NewHandler(&fakeChat{}, history.NewMemoryStore(), nil, nil, Options{Checks: checks, CheckTimeout: time.Second}, nil)
		w := httptest.NewRecorder()
		SetupRouter(h, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		return w
	}

	w := healthz(sql)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"sql":"ok"}}`, w.Body.String())
	assert.True(t, sawDeadline)

	w = healthz(sql, redis)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"sql":"ok","redis":"connection refused"}}`, w.Body.String())
}

func TestChatCreatesConversation(t *testing.T) {
	f := newFixture(t)
	w := f.doJSON(http.MethodPost, "/api/v1/chat", map[string]string{"message": "hola"})
	require.Equal(t, http.StatusOK, w.Code)

	var res models.RouteResult
	decode(t, w, &res)
	assert.Equal(t, "¡Hola!", res.Answer)
	assert.NotEmpty(t, res.ConversationID)
	assert.Equal(t, res.ConversationID, f.chat.conversationID)

	convs, err := f.history.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "hola", convs[0].Title)
}

func TestChatTitlesLongMessages(t *testing.T) {
	f := newFixture(t)
	msg := strings.Repeat("palabra ", 20)
	require.Equal(t, http.StatusOK, f.doJSON(http.MethodPost, "/api/v1/chat", map[string]string{"message": msg}).Code)

	convs, err := f.history.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, history.TitleFrom(msg), convs[0].Title)
}

func TestChatUnknownConversation(t *testing.T) {
	f := newFixture(t)
	w := f.doJSON(http.MethodPost, "/api/v1/chat", map[string]string{"conversation_id": "nope", "message": "hola"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, f.chat.message)

	id, err := f.history.CreateConversation(context.Background(), "viaje")
	require.NoError(t, err)
	w = f.doJSON(http.MethodPost, "/api/v1/chat", map[string]string{"conversation_id": id, "message": "hola"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, f.chat.conversationID)
}

func TestChatRejectsBlankMessage(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.doJSON(http.MethodPost, "/api/v1/chat", map[string]string{}).Code)
	assert.Equal(t, http.StatusBadRequest, f.doJSON(http.MethodPost, "/api/v1/chat", map[string]string{"message": "   "}).Code)
	assert.Empty(t, f.chat.message)
}

func TestConversationsAndMessages(t *testing.T) {
	f := newFixture(t)
	w := f.doJSON(http.MethodPost, "/api/v1/conversations", map[string]string{"title": "viaje"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ConversationID string `json:"conversation_id"`
	}
	decode(t, w, &created)
	require.NotEmpty(t, created.ConversationID)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, f.history.AppendMessage(ctx, created.ConversationID,
			&models.Message{Role: models.RoleUser, Content: fmt.Sprintf("m%d", i)}))
	}

	w = f.do(http.MethodGet, "/api/v1/conversations/"+created.ConversationID+"/messages?limit=2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var msgs struct {
		Messages []models.Message `json:"messages"`
	}
	decode(t, w, &msgs)
	require.Len(t, msgs.Messages, 2)
	assert.Equal(t, "m1", msgs.Messages[0].Content)
	assert.Equal(t, "m2", msgs.Messages[1].Content)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/conversations/x/messages?limit=-1", nil, "").Code)

	w = f.do(http.MethodGet, "/api/v1/conversations", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "viaje")
}

func TestIndexDocumentByPath(t *testing.T) {
	f := newFixture(t)
	w := f.doJSON(http.MethodPost, "/api/v1/documents", map[string]string{"path": "/data/manual.pdf"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"/data/manual.pdf"}, f.docs.indexed)

	f.docs.result = pipeline.IndexResult{Success: false, Error: "unsupported file type"}
	w = f.doJSON(http.MethodPost, "/api/v1/documents", map[string]string{"path": "/data/foto.png"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported file type")
}

func TestIndexDocumentUpload(t *testing.T) {
	f := newFixture(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "notas.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("contenido de prueba"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("collection", "personal"))
	require.NoError(t, mw.Close())

	w := f.do(http.MethodPost, "/api/v1/documents", body.Bytes(), mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, f.docs.indexed, 1)
	assert.Equal(t, "notas.txt", filepath.Base(f.docs.indexed[0]))
	assert.Equal(t, "contenido de prueba", string(f.docs.content))

	var res pipeline.IndexResult
	decode(t, w, &res)
	assert.Equal(t, "notas.txt", res.Filename)
	assert.Equal(t, 2, res.ChunksCreated)
}

func TestSearchDocuments(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/documents/search", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/documents/search?q=x&threshold=2", nil, "").Code)

	w := f.do(http.MethodGet, "/api/v1/documents/search?q=garantia", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"results":[]}`, w.Body.String())
	assert.InDelta(t, 0.3, f.docs.threshold, 1e-6)

	f.docs.results = []pipeline.SearchResult{{ID: "c1", Filename: "manual.pdf", Text: "dos años", Score: 0.8}}
	w = f.do(http.MethodGet, "/api/v1/documents/search?q=garantia&threshold=0.5", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "manual.pdf")
	assert.InDelta(t, 0.5, f.docs.threshold, 1e-6)
}

func TestDeleteDocument(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/v1/documents/d1", nil, "").Code)

	f.docs.deleteErr = fmt.Errorf("get document: %w", catalog.ErrDocumentNotFound)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/v1/documents/nope", nil, "").Code)

	w := f.do(http.MethodGet, "/api/v1/documents", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "manual.pdf")
}

func TestFacts(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/v1/facts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Marcelo")

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/facts/recall", nil, "").Code)
	w = f.do(http.MethodGet, "/api/v1/facts/recall?q="+url.QueryEscape("cómo me llamo"), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Marcelo")

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/v1/facts/f1", nil, "").Code)
	assert.Equal(t, []string{"f1"}, f.facts.deleted)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/v1/facts", nil, "").Code)
	assert.True(t, f.facts.cleared)
}

func TestDisabledComponents(t *testing.T) {
	h := NewHandler(&fakeChat{}, history.NewMemoryStore(), nil, nil, Options{}, nil)
	engine := SetupRouter(h, nil)
	for _, target := range []string{"/api/v1/facts", "/api/v1/documents/search?q=x"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, target)
	}
}
