package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"minerva/backend/go/internal/models"
	"minerva/backend/go/internal/prompts"
	"minerva/backend/go/internal/rag/pipeline"
	"minerva/backend/go/internal/websearch"
)

// outcome is a handler's answer plus what the stored message records about it.
type outcome struct {
	result     *models.RouteResult
	generated  bool
	hadContext bool
}

func apology(intent models.Intent) outcome {
	return outcome{result: &models.RouteResult{
		Answer:     msgApology,
		AgentUsed:  models.AgentConversational,
		Confidence: models.ConfidenceLow,
		Intent:     intent,
		Degraded:   true,
	}}
}

func (r *Router) dispatch(ctx context.Context, intent models.Intent, conversationID, message string) (outcome, error) {
	switch intent {
	case models.IntentSourceRequest:
		return r.handleSources(ctx, conversationID)
	case models.IntentWebSearch:
		return r.handleWeb(ctx, message)
	case models.IntentKnowledge:
		return r.handleKnowledge(ctx, message)
	case models.IntentPersonal:
		return r.handleConversation(ctx, conversationID, message, models.AgentPersonal, models.ConfidenceHigh)
	default:
		return r.handleConversation(ctx, conversationID, message, models.AgentConversational, models.ConfidenceMedium)
	}
}

func (r *Router) handleSources(ctx context.Context, conversationID string) (outcome, error) {
	msg, err := r.history.LastWithSources(ctx, conversationID)
	if err != nil {
		return outcome{}, fmt.Errorf("load last sources: %w", err)
	}
	if msg == nil || !msg.Metadata.HasSources() {
		return outcome{result: &models.RouteResult{
			Answer:     msgNoSources,
			AgentUsed:  models.AgentSourceRequest,
			Confidence: models.ConfidenceLow,
		}}, nil
	}

	sources := msg.Metadata.Sources
	var b strings.Builder
	b.WriteString(msgSourcesTitle + "\n\n")
	for i, s := range sources {
		switch {
		case s.URL != "":
			fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, s.Title, s.URL)
		case s.ChunkIndex != nil:
			fmt.Fprintf(&b, "%d. %s (fragmento %d)\n", i+1, sourceName(s), *s.ChunkIndex)
		default:
			fmt.Fprintf(&b, "%d. %s\n", i+1, sourceName(s))
		}
	}
	return outcome{result: &models.RouteResult{
		Answer:     b.String(),
		AgentUsed:  models.AgentSourceRequest,
		Confidence: models.ConfidenceHigh,
		Sources:    sources,
	}}, nil
}

func sourceName(s models.Source) string {
	if s.Filename != "" {
		return s.Filename
	}
	if s.Title != "" {
		return s.Title
	}
	return "Sin título"
}

// searchWeb sends news questions to the news vertical when the provider has
// one, and everything else (or an empty news page) to the general search.
func (r *Router) searchWeb(ctx context.Context, message string) ([]models.SearchResult, error) {
	if ns, ok := r.web.(websearch.NewsSearcher); ok && containsTerm(message, newsTerms) {
		results, err := ns.SearchNews(ctx, message, r.opts.WebResults)
		if err != nil || len(results) > 0 {
			return results, err
		}
	}
	return r.web.Search(ctx, message, r.opts.WebResults)
}

func (r *Router) handleWeb(ctx context.Context, message string) (outcome, error) {
	results, err := r.searchWeb(ctx, message)
	if err != nil {
		return outcome{}, fmt.Errorf("web search: %w", err)
	}
	if len(results) == 0 {
		return outcome{result: &models.RouteResult{
			Answer:     msgNoWeb,
			AgentUsed:  models.AgentWeb,
			Confidence: models.ConfidenceLow,
		}}, nil
	}

	system, err := prompts.Get(ctx, r.prompts, prompts.WebSystem)
	if err != nil {
		return outcome{}, err
	}
	synthesis, err := prompts.Get(ctx, r.prompts, prompts.WebSynthesis)
	if err != nil {
		return outcome{}, err
	}
	prompt := r.temporal() + "\n\n" + prompts.Render(synthesis, map[string]string{
		"search_results": FormatWebResults(results),
		"user_question":  message,
	})
	answer, err := r.complete(ctx, system, prompt)
	if err != nil {
		return outcome{}, err
	}

	top := results
	if len(top) > 3 {
		top = top[:3]
	}
	sources := make([]models.Source, len(top))
	for i, res := range top {
		sources[i] = models.Source{Title: res.Title, URL: res.Link, Snippet: truncate(res.Snippet, 100)}
	}
	return outcome{
		result: &models.RouteResult{
			Answer:     answer,
			AgentUsed:  models.AgentWeb,
			Confidence: models.ConfidenceHigh,
			Sources:    sources,
		},
		generated:  true,
		hadContext: true,
	}, nil
}

// FormatWebResults renders search results for the synthesis prompt.
func FormatWebResults(results []models.SearchResult) string {
	parts := make([]string, len(results))
	for i, res := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "[Resultado %d]\nTítulo: %s\nContenido: %s\nFuente: %s", i+1, res.Title, res.Snippet, res.Link)
		if res.Date != "" {
			fmt.Fprintf(&b, "\nFecha: %s", res.Date)
		}
		parts[i] = b.String()
	}
	return strings.Join(parts, "\n\n")
}

func (r *Router) handleKnowledge(ctx context.Context, message string) (outcome, error) {
	if r.docs == nil {
		return outcome{}, errors.New("document engine not configured")
	}
	results, err := r.docs.Search(ctx, message, r.opts.DocumentsCollection, r.opts.MaxChunks, r.opts.KnowledgeThreshold)
	if err != nil {
		return outcome{}, fmt.Errorf("document search: %w", err)
	}
	if len(results) == 0 {
		return outcome{result: &models.RouteResult{
			Answer:     msgNoDocuments,
			AgentUsed:  models.AgentKnowledge,
			Confidence: models.ConfidenceLow,
		}}, nil
	}

	system, err := prompts.Get(ctx, r.prompts, prompts.KnowledgeSystem)
	if err != nil {
		return outcome{}, err
	}
	rag, err := prompts.Get(ctx, r.prompts, prompts.KnowledgeRAG)
	if err != nil {
		return outcome{}, err
	}
	prompt := prompts.Render(rag, map[string]string{
		"context":  pipeline.FormatContext(results),
		"question": message,
	})
	answer, err := r.complete(ctx, system, prompt)
	if err != nil {
		return outcome{}, err
	}

	sources := make([]models.Source, len(results))
	for i, res := range results {
		s := res.Source()
		s.Snippet = truncate(res.Text, 150)
		sources[i] = s
	}
	return outcome{
		result: &models.RouteResult{
			Answer:     answer,
			AgentUsed:  models.AgentKnowledge,
			Confidence: KnowledgeConfidence(results),
			Sources:    sources,
		},
		generated:  true,
		hadContext: true,
	}, nil
}

// KnowledgeConfidence grades an answer by the scores of the chunks behind it.
func KnowledgeConfidence(results []pipeline.SearchResult) models.Confidence {
	if len(results) == 0 {
		return models.ConfidenceLow
	}
	var sum float32
	for _, r := range results {
		sum += r.Score
	}
	avg := sum / float32(len(results))
	if avg >= 0.7 && len(results) >= 2 {
		return models.ConfidenceHigh
	}
	return models.ConfidenceMedium
}

func (r *Router) handleConversation(ctx context.Context, conversationID, message string, agent models.AgentType, confidence models.Confidence) (outcome, error) {
	system, err := prompts.Get(ctx, r.prompts, prompts.ConversationalSystem)
	if err != nil {
		return outcome{}, err
	}
	var facts []models.Fact
	if r.memory != nil {
		facts = r.memory.Recall(ctx, message, r.opts.RecallLimit)
	}
	hist, err := r.recentHistory(ctx, conversationID, message)
	if err != nil {
		return outcome{}, err
	}
	answer, err := r.complete(ctx, system, r.conversationPrompt(facts, hist, message))
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		result: &models.RouteResult{
			Answer:     answer,
			AgentUsed:  agent,
			Confidence: confidence,
		},
		generated:  true,
		hadContext: len(facts) > 0,
	}, nil
}

// degraded answers from the persona and the history alone.
func (r *Router) degraded(ctx context.Context, conversationID, message string) (outcome, error) {
	system, err := prompts.Get(ctx, r.prompts, prompts.ConversationalSystem)
	if err != nil {
		return outcome{}, err
	}
	hist, err := r.recentHistory(ctx, conversationID, message)
	if err != nil {
		hist = nil
	}
	answer, err := r.complete(ctx, system, r.conversationPrompt(nil, hist, message))
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		result: &models.RouteResult{
			Answer:     answer,
			AgentUsed:  models.AgentConversational,
			Confidence: models.ConfidenceLow,
			Degraded:   true,
		},
		generated: true,
	}, nil
}

// recentHistory returns the last HistoryWindow messages before the current
// user message, which has already been stored.
func (r *Router) recentHistory(ctx context.Context, conversationID, message string) ([]models.Message, error) {
	msgs, err := r.history.GetMessages(ctx, conversationID, r.opts.HistoryWindow+1)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if n := len(msgs); n > 0 && msgs[n-1].Role == models.RoleUser && msgs[n-1].Content == message {
		msgs = msgs[:n-1]
	}
	if len(msgs) > r.opts.HistoryWindow {
		msgs = msgs[len(msgs)-r.opts.HistoryWindow:]
	}
	return msgs, nil
}

func (r *Router) conversationPrompt(facts []models.Fact, hist []models.Message, message string) string {
	var b strings.Builder
	b.WriteString(r.temporal())
	if len(facts) > 0 {
		b.WriteString("\n\nLo que sabes del usuario:")
		for _, f := range facts {
			b.WriteString("\n- " + f.Text)
		}
	}
	if len(hist) > 0 {
		b.WriteString("\n\nConversación reciente:")
		for _, m := range hist {
			b.WriteString("\n" + speaker(m.Role) + ": " + m.Content)
		}
	}
	b.WriteString("\n\nUsuario: " + message + "\n\nMinerva:")
	return b.String()
}

func speaker(role models.Role) string {
	if role == models.RoleAssistant {
		return "Minerva"
	}
	return "Usuario"
}

func (r *Router) temporal() string {
	return TemporalBlock(r.now().In(r.opts.Location))
}

func (r *Router) complete(ctx context.Context, system, prompt string) (string, error) {
	out, err := r.llm.Complete(ctx, &models.CompletionRequest{
		Prompt:      prompt,
		System:      system,
		Temperature: r.opts.Temperature,
		MaxTokens:   r.opts.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("completion returned no text")
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
