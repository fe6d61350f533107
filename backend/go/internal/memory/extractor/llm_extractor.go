package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"minerva/backend/go/internal/llm"
	"minerva/backend/go/internal/models"
	"minerva/backend/go/internal/prompts"
	"minerva/backend/go/pkg/logger"
)

// LLMExtractor asks the completion provider for a JSON list of facts.
type LLMExtractor struct {
	llm         llm.Provider
	prompts     prompts.Store
	temperature float32
	timeout     time.Duration
	log         *logger.Logger
}

// Option configures an LLMExtractor.
type Option func(*LLMExtractor)

// WithTemperature sets the sampling temperature. Default 0.3.
func WithTemperature(t float32) Option {
	return func(e *LLMExtractor) { e.temperature = t }
}

// WithTimeout bounds each extraction call. Default 30s.
func WithTimeout(d time.Duration) Option {
	return func(e *LLMExtractor) { e.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(e *LLMExtractor) { e.log = log }
}

// NewLLMExtractor creates a new LLMExtractor.
func NewLLMExtractor(provider llm.Provider, store prompts.Store, opts ...Option) *LLMExtractor {
	e := &LLMExtractor{
		llm:         provider,
		prompts:     store,
		temperature: 0.3,
		timeout:     30 * time.Second,
		log:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract renders the extraction prompt for batch and parses the reply.
func (e *LLMExtractor) Extract(ctx context.Context, batch []models.Exchange) ([]models.ExtractedFact, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	tmpl, err := prompts.Get(ctx, e.prompts, prompts.MemoryExtraction)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	raw, err := e.llm.Complete(callCtx, &models.CompletionRequest{
		Prompt:      prompts.Render(tmpl, map[string]string{"conversation": FormatConversation(batch)}),
		Temperature: e.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("fact extraction: %w", err)
	}

	facts := ParseFacts(raw)
	if facts == nil && strings.TrimSpace(raw) != "" {
		e.log.WithPayload(map[string]interface{}{"output": truncate(raw, 200)}).Warn("extraction output is not valid JSON, discarded")
	}
	return facts, nil
}

// FormatConversation renders exchanges as "Usuario: ...\nMinerva: ...\n\n" blocks.
func FormatConversation(batch []models.Exchange) string {
	var b strings.Builder
	for _, ex := range batch {
		b.WriteString("Usuario: ")
		b.WriteString(strings.TrimSpace(ex.UserText))
		b.WriteString("\nMinerva: ")
		b.WriteString(strings.TrimSpace(ex.AssistantText))
		b.WriteString("\n\n")
	}
	return b.String()
}

type factsEnvelope struct {
	Facts []map[string]interface{} `json:"facts"`
}

// ParseFacts reads {"facts": [{"category": ..., "fact": ...}]} from model
// output. It tries the whole text, then the outermost {...} span, and
// returns nil when neither decodes. Entries without fact text are skipped.
func ParseFacts(raw string) []models.ExtractedFact {
	raw = strings.TrimSpace(raw)
	env, ok := decodeEnvelope(raw)
	if !ok {
		start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return nil
		}
		if env, ok = decodeEnvelope(raw[start : end+1]); !ok {
			return nil
		}
	}

	out := make([]models.ExtractedFact, 0, len(env.Facts))
	for _, item := range env.Facts {
		text, _ := item["fact"].(string)
		category, _ := item["category"].(string)
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		category = strings.ToLower(strings.TrimSpace(category))
		if category == "" {
			category = "contexto"
		}
		out = append(out, models.ExtractedFact{Category: category, Fact: text})
	}
	return out
}

func decodeEnvelope(s string) (factsEnvelope, bool) {
	var env factsEnvelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return factsEnvelope{}, false
	}
	return env, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
