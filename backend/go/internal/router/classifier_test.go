package router

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"minerva/backend/go/internal/models"
	"minerva/backend/go/internal/rag/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLabel(t *testing.T) {
	cases := []struct {
		raw  string
		want models.Intent
	}{
		{"personal", models.IntentPersonal},
		{"  KNOWLEDGE\n", models.IntentKnowledge},
		{"web_search.", models.IntentWebSearch},
		{"AGENT: web_search", models.IntentWebSearch},
		{`"source_request"`, models.IntentSourceRequest},
		{"fuentes", models.IntentSourceRequest},
		{"documentos", models.IntentKnowledge},
		{"conversation porque saluda", models.IntentConversation},
		{"no sé", models.IntentConversation},
		{"", models.IntentConversation},
		{"***", models.IntentConversation},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeLabel(c.raw), "raw %q", c.raw)
	}
}

func TestHeuristicClassifier(t *testing.T) {
	docs := &fakeDocs{results: []pipeline.SearchResult{{Filename: "contrato.pdf", Score: 0.85}}}
	h := NewHeuristicClassifier(docs, "documents", 0.8)
	ctx := context.Background()

	assert.Equal(t, models.IntentWebSearch, h.Classify(ctx, "¿Qué clima hace hoy?", true))
	assert.Equal(t, models.IntentWebSearch, h.Classify(ctx, "últimas noticias de economía", false))
	assert.Equal(t, models.IntentSourceRequest, h.Classify(ctx, "dame el link de eso", true))
	assert.Equal(t, models.IntentKnowledge, h.Classify(ctx, "¿qué dice la cláusula tercera?", true))
	assert.Equal(t, models.IntentConversation, h.Classify(ctx, "¿qué dice la cláusula tercera?", false))
	assert.Equal(t, models.IntentConversation, h.Classify(ctx, "quiero ahorrar más", false))

	low := NewHeuristicClassifier(&fakeDocs{results: []pipeline.SearchResult{{Score: 0.5}}}, "documents", 0.8)
	assert.Equal(t, models.IntentConversation, low.Classify(ctx, "¿qué dice la cláusula tercera?", true))
}

func TestTemporalBlock(t *testing.T) {
	now := time.Date(2025, 1, 16, 9, 5, 0, 0, time.UTC)
	block := TemporalBlock(now)

	lines := strings.Split(block, "\n")
	require.Len(t, lines, 11)
	assert.Equal(t, "CONTEXTO TEMPORAL:", lines[0])
	assert.Equal(t, "- Hoy es jueves 16 de enero de 2025.", lines[1])
	assert.Equal(t, "- Hora actual: 09:05.", lines[2])
	assert.Equal(t, "- Próximos días:", lines[3])
	assert.Equal(t, "  - viernes 17/01/2025", lines[4])
	assert.Equal(t, "  - jueves 23/01/2025", lines[10])
}

func TestSpanishDateCrossesYear(t *testing.T) {
	assert.Equal(t, "miércoles 31 de diciembre de 2025", SpanishDate(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestKnowledgeConfidence(t *testing.T) {
	assert.Equal(t, models.ConfidenceLow, KnowledgeConfidence(nil))
	assert.Equal(t, models.ConfidenceMedium, KnowledgeConfidence([]pipeline.SearchResult{{Score: 0.95}}))
	assert.Equal(t, models.ConfidenceHigh, KnowledgeConfidence([]pipeline.SearchResult{{Score: 0.8}, {Score: 0.7}}))
	assert.Equal(t, models.ConfidenceMedium, KnowledgeConfidence([]pipeline.SearchResult{{Score: 0.8}, {Score: 0.5}}))
}

func TestFormatWebResults(t *testing.T) {
	out := FormatWebResults([]models.SearchResult{
		{Title: "A", Snippet: "uno", Link: "https://a"},
		{Title: "B", Snippet: "dos", Link: "https://b", Date: "hace 2 horas"},
	})
	assert.Equal(t, "[Resultado 1]\nTítulo: A\nContenido: uno\nFuente: https://a\n\n"+
		"[Resultado 2]\nTítulo: B\nContenido: dos\nFuente: https://b\nFecha: hace 2 horas", out)
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	k := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("c1")
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, k.size())

	a := k.Lock("a")
	b := k.Lock("b")
	assert.Equal(t, 2, k.size())
	a()
	b()
	assert.Zero(t, k.size())
}
