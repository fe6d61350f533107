package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"minerva/backend/go/internal/api"
	"minerva/backend/go/internal/history"
	"minerva/backend/go/internal/models"
	"minerva/backend/go/internal/rag/pipeline"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoChat struct{ conversationID string }

func (e *echoChat) Route(_ context.Context, conversationID, message string) *models.RouteResult {
	e.conversationID = conversationID
	return &models.RouteResult{Answer: "eco: " + message, ConversationID: conversationID, AgentUsed: models.AgentConversational}
}

type stubFacts struct{ facts []models.Fact }

func (s stubFacts) List(context.Context) ([]models.Fact, error) { return s.facts, nil }
func (s stubFacts) Recall(context.Context, string, int) []models.Fact { return s.facts }
func (s stubFacts) Delete(context.Context, string) error { return nil }
func (s stubFacts) DeleteAll(context.Context) error { return nil }

type stubDocs struct {
	results []pipeline.SearchResult
	limit   int
}

func (s *stubDocs) Index(_ context.Context, path, _ string) pipeline.IndexResult {
	return pipeline.IndexResult{Success: false, Filename: path, Error: "unsupported file type"}
}

func (s *stubDocs) Search(_ context.Context, _, _ string, limit int, _ float32) ([]pipeline.SearchResult, error) {
	s.limit = limit
	return s.results, nil
}

func (s *stubDocs) DeleteDocument(context.Context, string) error { return nil }

func (s *stubDocs) ListDocuments(context.Context, string) ([]models.Document, error) { return nil, nil }

func call(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestAskCreatesConversation(t *testing.T) {
	chat := &echoChat{}
	tools := NewTools(chat, history.NewMemoryStore(), nil, nil, api.Options{}, nil)

	res, err := tools.HandleAsk(context.Background(), call("ask", map[string]interface{}{"message": "hola"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var out models.RouteResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, "eco: hola", out.Answer)
	assert.NotEmpty(t, chat.conversationID)
	assert.Equal(t, chat.conversationID, out.ConversationID)
}

func TestAskRequiresMessage(t *testing.T) {
	tools := NewTools(&echoChat{}, history.NewMemoryStore(), nil, nil, api.Options{}, nil)
	_, err := tools.HandleAsk(context.Background(), call("ask", map[string]interface{}{}))
	assert.Error(t, err)
}

func TestRecallFacts(t *testing.T) {
	tools := NewTools(&echoChat{}, history.NewMemoryStore(), nil,
		stubFacts{facts: []models.Fact{{ID: "f1", Text: "El usuario vive en Rosario"}}}, api.Options{}, nil)
	res, err := tools.HandleRecallFacts(context.Background(), call("recall_facts", map[string]interface{}{"query": "dónde vivo"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "Rosario")

	disabled := NewTools(&echoChat{}, history.NewMemoryStore(), nil, nil, api.Options{}, nil)
	res, err = disabled.HandleRecallFacts(context.Background(), call("recall_facts", map[string]interface{}{"query": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSearchAndIndexDocuments(t *testing.T) {
	docs := &stubDocs{}
	tools := NewTools(&echoChat{}, history.NewMemoryStore(), docs, nil, api.Options{SearchLimit: 3}, nil)
	ctx := context.Background()

	res, err := tools.HandleSearchDocuments(ctx, call("search_documents", map[string]interface{}{"query": "garantía"}))
	require.NoError(t, err)
	assert.Equal(t, "No matching documents.", text(t, res))
	assert.Equal(t, 3, docs.limit)

	docs.results = []pipeline.SearchResult{{Filename: "manual.pdf", Text: "dos años", Score: 0.8}}
	res, err = tools.HandleSearchDocuments(ctx, call("search_documents", map[string]interface{}{"query": "garantía", "limit": 1}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "manual.pdf")
	assert.Equal(t, 1, docs.limit)

	res, err = tools.HandleIndexDocument(ctx, call("index_document", map[string]interface{}{"file_path": "/tmp/foto.png"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "unsupported file type")
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer(NewTools(&echoChat{}, history.NewMemoryStore(), nil, nil, api.Options{}, nil), "test")
	assert.NotNil(t, s)
}
