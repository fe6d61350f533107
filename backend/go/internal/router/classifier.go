package router

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"minerva/backend/go/internal/models"
)

const classifierSystem = "Eres un clasificador de intenciones. Respondes con UNA sola palabra."

var labelSynonyms = map[string]models.Intent{
	"personal_question": models.IntentPersonal,
	"sources":           models.IntentSourceRequest,
	"source":            models.IntentSourceRequest,
	"fuentes":           models.IntentSourceRequest,
	"web":               models.IntentWebSearch,
	"search":            models.IntentWebSearch,
	"internet":          models.IntentWebSearch,
	"docs":              models.IntentKnowledge,
	"documents":         models.IntentKnowledge,
	"documentos":        models.IntentKnowledge,
	"chat":              models.IntentConversation,
	"general":           models.IntentConversation,
	"conversational":    models.IntentConversation,
}

// NormalizeLabel maps a raw classifier reply to an intent. Replies outside
// the closed set fall back to conversation.
func NormalizeLabel(raw string) models.Intent {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimLeftFunc(s, isLabelPunct)
	s = strings.TrimSpace(strings.TrimPrefix(s, "agent:"))
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return models.IntentConversation
	}
	label := strings.TrimFunc(fields[0], isLabelPunct)
	label = strings.TrimPrefix(label, "agent:")

	switch intent := models.Intent(label); intent {
	case models.IntentPersonal, models.IntentSourceRequest, models.IntentWebSearch,
		models.IntentKnowledge, models.IntentConversation:
		return intent
	}
	if intent, ok := labelSynonyms[label]; ok {
		return intent
	}
	return models.IntentConversation
}

func isLabelPunct(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

var (
	temporalTerms = []string{
		"hoy", "ahora", "actual", "actualmente", "actualidad",
		"último", "última", "últimos", "últimas", "ultimo", "ultima",
		"noticias", "noticia", "clima", "pronóstico", "precio", "precios",
		"cotización", "cotizacion", "dólar", "dolar", "mañana", "ayer",
		"esta semana", "este mes", "este año", "en vivo", "resultado del partido",
	}
	sourceTerms = []string{"fuente", "fuentes", "link", "links", "enlace", "enlaces", "url"}
	newsTerms   = []string{"noticia", "noticias", "titulares", "periódico", "diario", "news", "headlines"}
)

// containsTerm matches whole words and phrases, so "ahora" does not match
// inside "ahorar".
func containsTerm(text string, terms []string) bool {
	joined := " " + strings.Join(tokenRe.FindAllString(strings.ToLower(text), -1), " ") + " "
	for _, t := range terms {
		if strings.Contains(joined, " "+t+" ") {
			return true
		}
	}
	return false
}

// HeuristicClassifier decides without the completion provider. It is used
// while the provider is unreachable.
type HeuristicClassifier struct {
	docs       Documents
	collection string
	threshold  float32
}

// NewHeuristicClassifier creates a HeuristicClassifier. threshold is the
// minimum best-document score that routes to knowledge.
func NewHeuristicClassifier(docs Documents, collection string, threshold float32) *HeuristicClassifier {
	return &HeuristicClassifier{docs: docs, collection: collection, threshold: threshold}
}

// Classify applies the keyword rules, then the document score rule.
func (h *HeuristicClassifier) Classify(ctx context.Context, message string, hasDocuments bool) models.Intent {
	switch {
	case containsTerm(message, temporalTerms):
		return models.IntentWebSearch
	case containsTerm(message, sourceTerms):
		return models.IntentSourceRequest
	}
	if hasDocuments && h.docs != nil {
		results, err := h.docs.Search(ctx, message, h.collection, 1, 0)
		if err == nil && len(results) > 0 && results[0].Score >= h.threshold {
			return models.IntentKnowledge
		}
	}
	return models.IntentConversation
}
