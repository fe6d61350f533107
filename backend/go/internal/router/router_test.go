package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"minerva/backend/go/internal/history"
	"minerva/backend/go/internal/llm"
	"minerva/backend/go/internal/models"
	"minerva/backend/go/internal/prompts"
	"minerva/backend/go/internal/rag/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	mu            sync.Mutex
	label         string
	classifyErr   error
	generateErr   error
	answer        string
	classifyCalls int
	generated     []*models.CompletionRequest
}

func (s *scriptedLLM) Model() string { return "scripted-1" }

func (s *scriptedLLM) Complete(ctx context.Context, req *models.CompletionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.System == classifierSystem {
		s.classifyCalls++
		if s.classifyErr != nil {
			return "", s.classifyErr
		}
		return s.label, nil
	}
	s.generated = append(s.generated, req)
	if s.generateErr != nil {
		return "", s.generateErr
	}
	if s.answer == "" {
		return "respuesta generada", nil
	}
	return s.answer, nil
}

func (s *scriptedLLM) generations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.generated)
}

type fakeDocs struct {
	results []pipeline.SearchResult
	err     error
}

func (f *fakeDocs) HasDocuments(context.Context, string) bool { return len(f.results) > 0 }

func (f *fakeDocs) Search(_ context.Context, _, _ string, limit int, threshold float32) ([]pipeline.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []pipeline.SearchResult
	for _, r := range f.results {
		if r.Score >= threshold && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeWeb struct {
	results []models.SearchResult
	err     error
	queries []string
}

func (f *fakeWeb) Search(_ context.Context, query string, limit int) ([]models.SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

// newsWeb also serves the news vertical.
type newsWeb struct {
	fakeWeb
	news        []models.SearchResult
	newsQueries []string
}

func (f *newsWeb) SearchNews(_ context.Context, query string, _ int) ([]models.SearchResult, error) {
	f.newsQueries = append(f.newsQueries, query)
	return f.news, nil
}

type fakeMemory struct{ facts []models.Fact }

func (f *fakeMemory) Recall(context.Context, string, int) []models.Fact { return f.facts }

type fakeQueue struct {
	mu  sync.Mutex
	got []models.Exchange
}

func (q *fakeQueue) Enqueue(_ context.Context, ex models.Exchange) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.got = append(q.got, ex)
	return nil
}

var fixedNow = time.Date(2025, 1, 16, 10, 30, 0, 0, time.UTC)

type harness struct {
	router  *Router
	llm     *scriptedLLM
	history *history.MemoryStore
	convID  string
}

func newHarness(t *testing.T, p *scriptedLLM, docs Documents, opts Options, options ...Option) *harness {
	t.Helper()
	ps, err := prompts.NewFileStore("")
	require.NoError(t, err)
	hs := history.NewMemoryStore()
	id, err := hs.CreateConversation(context.Background(), "prueba")
	require.NoError(t, err)
	opts.Location = time.UTC
	options = append([]Option{WithClock(func() time.Time { return fixedNow })}, options...)
	return &harness{
		router:  New(p, ps, hs, docs, opts, options...),
		llm:     p,
		history: hs,
		convID:  id,
	}
}

func (h *harness) messages(t *testing.T) []models.Message {
	t.Helper()
	msgs, err := h.history.GetMessages(context.Background(), h.convID, 0)
	require.NoError(t, err)
	return msgs
}

func TestClassificationErrorFallsBackToConversation(t *testing.T) {
	p := &scriptedLLM{classifyErr: errors.New("unexpected reply"), answer: "¡Hola! ¿En qué te ayudo?"}
	h := newHarness(t, p, &fakeDocs{}, Options{})

	res := h.router.Route(context.Background(), h.convID, "hola")
	assert.Equal(t, models.IntentConversation, res.Intent)
	assert.Equal(t, models.AgentConversational, res.AgentUsed)
	assert.Equal(t, models.ConfidenceLow, res.Confidence)
	assert.Equal(t, "¡Hola! ¿En qué te ayudo?", res.Answer)
	assert.True(t, res.Degraded)

	msgs := h.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "scripted-1", msgs[1].Model)
	assert.Equal(t, models.AgentConversational, msgs[1].AgentType)
	require.NotNil(t, msgs[1].Metadata)
	assert.True(t, msgs[1].Metadata.Degraded)
	assert.Equal(t, models.ConfidenceLow, msgs[1].Metadata.Confidence)
}

func TestUnreachableClassifierUsesHeuristics(t *testing.T) {
	p := &scriptedLLM{classifyErr: fmt.Errorf("%w: connection refused", llm.ErrUnavailable)}
	web := &fakeWeb{results: []models.SearchResult{
		{Title: "Dólar hoy", Snippet: strings.Repeat("cotización ", 20), Link: "https://a.example"},
		{Title: "Mercados", Snippet: "b", Link: "https://b.example"},
		{Title: "Economía", Snippet: "c", Link: "https://c.example"},
		{Title: "Extra", Snippet: "d", Link: "https://d.example"},
	}}
	h := newHarness(t, p, &fakeDocs{}, Options{}, WithWebSearch(web))

	res := h.router.Route(context.Background(), h.convID, "¿a cuánto está el dólar hoy?")
	assert.Equal(t, models.IntentWebSearch, res.Intent)
	assert.Equal(t, models.AgentWeb, res.AgentUsed)
	assert.Equal(t, models.ConfidenceLow, res.Confidence)
	assert.True(t, res.Degraded)
	require.Len(t, res.Sources, 3)
	assert.Equal(t, "https://a.example", res.Sources[0].URL)
	assert.Len(t, []rune(res.Sources[0].Snippet), 100)

	require.Equal(t, 1, p.generations())
	prompt := p.generated[0].Prompt
	assert.True(t, strings.HasPrefix(prompt, "CONTEXTO TEMPORAL:"))
	assert.Contains(t, prompt, "[Resultado 1]\nTítulo: Dólar hoy")
	assert.Contains(t, prompt, "¿a cuánto está el dólar hoy?")
}

func TestNewsQuestionsUseNewsVertical(t *testing.T) {
	p := &scriptedLLM{label: "web_search", answer: "Resumen de titulares."}
	web := &newsWeb{
		fakeWeb: fakeWeb{results: []models.SearchResult{{Title: "General", Snippet: "g", Link: "https://g.example"}}},
		news:    []models.SearchResult{{Title: "Titular", Snippet: "n", Link: "https://n.example", Date: "2026-10-14"}},
	}
	h := newHarness(t, p, &fakeDocs{}, Options{}, WithWebSearch(web))
	ctx := context.Background()

	res := h.router.Route(ctx, h.convID, "últimas noticias de economía")
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "https://n.example", res.Sources[0].URL)
	assert.Equal(t, []string{"últimas noticias de economía"}, web.newsQueries)
	assert.Empty(t, web.queries)

	res = h.router.Route(ctx, h.convID, "precio del dólar hoy")
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "https://g.example", res.Sources[0].URL)
	assert.Len(t, web.newsQueries, 1)

	web.news = nil
	res = h.router.Route(ctx, h.convID, "noticias de Rosario")
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "https://g.example", res.Sources[0].URL)
	assert.Len(t, web.newsQueries, 2)
}

func TestKnowledgeBelowThresholdSkipsCompletion(t *testing.T) {
	p := &scriptedLLM{label: "knowledge"}
	docs := &fakeDocs{results: []pipeline.SearchResult{{Filename: "manual.pdf", Text: "texto", Score: 0.4}}}
	h := newHarness(t, p, docs, Options{KnowledgeThreshold: 0.9})

	res := h.router.Route(context.Background(), h.convID, "¿qué dice el manual sobre la garantía?")
	assert.Equal(t, models.IntentKnowledge, res.Intent)
	assert.Equal(t, models.AgentKnowledge, res.AgentUsed)
	assert.Equal(t, models.ConfidenceLow, res.Confidence)
	assert.Equal(t, msgNoDocuments, res.Answer)
	assert.Empty(t, res.Sources)
	assert.Zero(t, p.generations())
}

func TestKnowledgeAnswerAndSourceRequest(t *testing.T) {
	p := &scriptedLLM{label: "knowledge", answer: "La garantía dura dos años."}
	docs := &fakeDocs{results: []pipeline.SearchResult{
		{Filename: "manual.pdf", Text: "La garantía cubre dos años desde la compra.", ChunkIndex: 3, Score: 0.8},
		{Filename: "manual.pdf", Text: "Para reclamos conserve la factura.", ChunkIndex: 4, Score: 0.75},
	}}
	h := newHarness(t, p, docs, Options{})

	res := h.router.Route(context.Background(), h.convID, "¿cuánto dura la garantía?")
	assert.Equal(t, models.AgentKnowledge, res.AgentUsed)
	assert.Equal(t, models.ConfidenceHigh, res.Confidence)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, "manual.pdf", res.Sources[0].Filename)
	require.NotNil(t, res.Sources[0].ChunkIndex)
	assert.Equal(t, 3, *res.Sources[0].ChunkIndex)

	require.Equal(t, 1, p.generations())
	assert.Contains(t, p.generated[0].Prompt, "[Fuente 1: manual.pdf - Relevancia: 0.80]")
	assert.Contains(t, p.generated[0].Prompt, "¿cuánto dura la garantía?")

	p.label = "fuentes"
	res = h.router.Route(context.Background(), h.convID, "¿de dónde sacaste eso?")
	assert.Equal(t, models.AgentSourceRequest, res.AgentUsed)
	assert.Equal(t, models.ConfidenceHigh, res.Confidence)
	assert.True(t, strings.HasPrefix(res.Answer, msgSourcesTitle))
	assert.Contains(t, res.Answer, "1. manual.pdf (fragmento 3)")
	assert.Equal(t, 1, p.generations())
}

func TestSourceRequestWithoutSources(t *testing.T) {
	p := &scriptedLLM{label: "source_request"}
	h := newHarness(t, p, &fakeDocs{}, Options{})
	res := h.router.Route(context.Background(), h.convID, "pasame las fuentes")
	assert.Equal(t, msgNoSources, res.Answer)
	assert.Equal(t, models.ConfidenceLow, res.Confidence)
	assert.Zero(t, p.generations())
}

func TestKnowledgeWithoutDocumentsIsConversation(t *testing.T) {
	p := &scriptedLLM{label: "knowledge"}
	h := newHarness(t, p, &fakeDocs{}, Options{})
	res := h.router.Route(context.Background(), h.convID, "¿qué dice mi contrato?")
	assert.Equal(t, models.IntentConversation, res.Intent)
	assert.Equal(t, models.AgentConversational, res.AgentUsed)
}

func TestEmptyWebResultsAreHonest(t *testing.T) {
	p := &scriptedLLM{label: "web_search"}
	h := newHarness(t, p, &fakeDocs{}, Options{}, WithWebSearch(&fakeWeb{}))
	res := h.router.Route(context.Background(), h.convID, "resultado del partido de anoche")
	assert.Equal(t, msgNoWeb, res.Answer)
	assert.Equal(t, models.ConfidenceLow, res.Confidence)
	assert.Zero(t, p.generations())
}

func TestHandlerFailureDegradesToHistory(t *testing.T) {
	p := &scriptedLLM{label: "web_search", answer: "No tengo datos frescos, pero puedo ayudarte igual."}
	h := newHarness(t, p, &fakeDocs{}, Options{}, WithWebSearch(&fakeWeb{err: errors.New("serper 500")}))

	res := h.router.Route(context.Background(), h.convID, "noticias de hoy")
	assert.True(t, res.Degraded)
	assert.Equal(t, models.ConfidenceLow, res.Confidence)
	assert.Equal(t, models.AgentConversational, res.AgentUsed)
	assert.Equal(t, models.IntentWebSearch, res.Intent)
	assert.Equal(t, "No tengo datos frescos, pero puedo ayudarte igual.", res.Answer)

	msgs := h.messages(t)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].Metadata.Degraded)
}

func TestStaticApologyWhenGenerationFails(t *testing.T) {
	p := &scriptedLLM{label: "conversation", generateErr: fmt.Errorf("%w: deadline", llm.ErrTimeout)}
	h := newHarness(t, p, &fakeDocs{}, Options{})

	res := h.router.Route(context.Background(), h.convID, "contame un chiste")
	assert.Equal(t, msgApology, res.Answer)
	assert.True(t, res.Degraded)
	assert.Equal(t, models.ConfidenceLow, res.Confidence)

	msgs := h.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, msgApology, msgs[1].Content)
	assert.Empty(t, msgs[1].Model)
}

func TestCancelledTurnLeavesNoOrphan(t *testing.T) {
	p := &scriptedLLM{label: "conversation"}
	q := &fakeQueue{}
	h := newHarness(t, p, &fakeDocs{}, Options{}, WithQueue(q))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := h.router.Route(ctx, h.convID, "hola")
	assert.Equal(t, msgApology, res.Answer)

	msgs := h.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Len(t, q.got, 1)
}

func TestPersonalTurnUsesFactsHistoryAndQueue(t *testing.T) {
	p := &scriptedLLM{label: "AGENT: personal", answer: "¡Claro, Marcelo!"}
	mem := &fakeMemory{facts: []models.Fact{{ID: "f1", Text: "El usuario se llama Marcelo"}}}
	q := &fakeQueue{}
	h := newHarness(t, p, &fakeDocs{}, Options{HistoryWindow: 2}, WithMemory(mem), WithQueue(q))
	ctx := context.Background()

	for _, m := range []string{"primero", "segundo"} {
		require.NoError(t, h.history.AppendMessage(ctx, h.convID, &models.Message{Role: models.RoleUser, Content: m}))
	}
	res := h.router.Route(ctx, h.convID, "¿te acordás de mi nombre?")
	assert.Equal(t, models.AgentPersonal, res.AgentUsed)
	assert.Equal(t, models.ConfidenceHigh, res.Confidence)
	assert.False(t, res.Degraded)
	assert.Equal(t, h.convID, res.ConversationID)

	prompt := p.generated[0].Prompt
	assert.Contains(t, prompt, "Hoy es jueves 16 de enero de 2025.")
	assert.Contains(t, prompt, "- El usuario se llama Marcelo")
	assert.Contains(t, prompt, "Usuario: primero\nUsuario: segundo")
	assert.True(t, strings.HasSuffix(prompt, "Usuario: ¿te acordás de mi nombre?\n\nMinerva:"))
	assert.Equal(t, 1, strings.Count(prompt, "¿te acordás de mi nombre?"))

	require.Len(t, q.got, 1)
	assert.Equal(t, "¿te acordás de mi nombre?", q.got[0].UserText)
	assert.Equal(t, "¡Claro, Marcelo!", q.got[0].AssistantText)
	assert.Equal(t, h.convID, q.got[0].ConversationID)

	msgs := h.messages(t)
	last := msgs[len(msgs)-1]
	assert.True(t, last.Metadata.HadContext)
	assert.Equal(t, models.IntentPersonal, last.Metadata.Intent)
}

func TestTurnsOfOneConversationAreSerialized(t *testing.T) {
	p := &scriptedLLM{label: "conversation"}
	h := newHarness(t, p, &fakeDocs{}, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.router.Route(context.Background(), h.convID, fmt.Sprintf("mensaje %d", i))
		}(i)
	}
	wg.Wait()

	msgs := h.messages(t)
	require.Len(t, msgs, 10)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, models.RoleUser, msgs[i].Role)
		assert.Equal(t, models.RoleAssistant, msgs[i+1].Role)
	}
	assert.Zero(t, h.router.locks.size())
}
