// Package router answers one chat turn: it classifies the message, gathers
// facts, document chunks or web results for it and generates the reply.
package router

import (
	"context"
	"time"

	"minerva/backend/go/internal/config"
	"minerva/backend/go/internal/history"
	"minerva/backend/go/internal/llm"
	"minerva/backend/go/internal/memory/consumer"
	"minerva/backend/go/internal/models"
	"minerva/backend/go/internal/prompts"
	"minerva/backend/go/internal/rag/pipeline"
	"minerva/backend/go/internal/websearch"
	"minerva/backend/go/pkg/logger"
)

const (
	msgApology      = "Lo siento, tuve un problema procesando tu mensaje. ¿Podrías intentarlo de nuevo?"
	msgNoSources    = "No encontré fuentes en mi última respuesta."
	msgSourcesTitle = "📚 **Fuentes de mi última respuesta:**"
	msgNoWeb        = "No pude encontrar información actualizada en internet sobre esa consulta. " +
		"Intenta reformularla o ser más específico."
	msgNoDocuments = "No encontré información relevante en mis documentos sobre eso. " +
		"Si quieres, puedo buscarlo en internet o responderte con lo que sé."
)

// persistTimeout bounds the writes made after the caller went away.
const persistTimeout = 5 * time.Second

// Documents is the part of the document engine the router uses.
type Documents interface {
	HasDocuments(ctx context.Context, collection string) bool
	Search(ctx context.Context, query, collection string, limit int, threshold float32) ([]pipeline.SearchResult, error)
}

// Memory recalls facts about the user.
type Memory interface {
	Recall(ctx context.Context, query string, limit int) []models.Fact
}

// Options tunes a Router.
type Options struct {
	DocumentsCollection string
	// KnowledgeThreshold is the minimum chunk score a knowledge answer uses.
	KnowledgeThreshold float32
	// HeuristicThreshold is the best-document score that routes to knowledge
	// when the classifier is unreachable.
	HeuristicThreshold  float32
	HistoryWindow       int
	WebResults          int
	MaxChunks           int
	RecallLimit         int
	Temperature         float32
	ClassifyTemperature float32
	MaxTokens           int
	ClassifyTimeout     time.Duration
	Location            *time.Location
}

// OptionsFromConfig maps the configuration to router Options.
func OptionsFromConfig(cfg *config.AppConfig) Options {
	return Options{
		DocumentsCollection: cfg.VectorStore.Collections.Documents,
		KnowledgeThreshold:  cfg.Router.KnowledgeThreshold,
		HeuristicThreshold:  cfg.Router.HeuristicThreshold,
		HistoryWindow:       cfg.Router.HistoryWindow,
		WebResults:          cfg.Router.WebResults,
		MaxChunks:           cfg.Retrieval.MaxChunks,
		RecallLimit:         cfg.Memory.RecallLimit,
		Temperature:         cfg.LLM.Temperature,
		ClassifyTemperature: cfg.Router.ClassifyTemperature,
		MaxTokens:           cfg.LLM.MaxTokens,
		ClassifyTimeout:     config.Duration(cfg.LLM.ClassifyTimeout, 10*time.Second),
		Location:            cfg.Location(),
	}
}

func (o *Options) applyDefaults() {
	if o.DocumentsCollection == "" {
		o.DocumentsCollection = "documents"
	}
	if o.KnowledgeThreshold <= 0 {
		o.KnowledgeThreshold = 0.4
	}
	if o.HeuristicThreshold <= 0 {
		o.HeuristicThreshold = 0.8
	}
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = 10
	}
	if o.WebResults <= 0 {
		o.WebResults = 5
	}
	if o.MaxChunks <= 0 {
		o.MaxChunks = 5
	}
	if o.RecallLimit <= 0 {
		o.RecallLimit = 5
	}
	if o.Temperature <= 0 {
		o.Temperature = 0.7
	}
	if o.ClassifyTemperature <= 0 {
		o.ClassifyTemperature = 0.1
	}
	if o.ClassifyTimeout <= 0 {
		o.ClassifyTimeout = 10 * time.Second
	}
	if o.Location == nil {
		o.Location = time.Local
	}
}

// Router routes chat turns.
type Router struct {
	llm       llm.Provider
	prompts   prompts.Store
	history   history.Store
	docs      Documents
	memory    Memory
	web       websearch.Searcher
	queue     consumer.Queue
	heuristic *HeuristicClassifier
	opts      Options
	log       *logger.Logger
	now       func() time.Time
	locks     *keyedMutex
}

// Option customizes a Router.
type Option func(*Router)

// WithMemory enables fact recall.
func WithMemory(m Memory) Option {
	return func(r *Router) { r.memory = m }
}

// WithWebSearch sets the web search backend.
func WithWebSearch(s websearch.Searcher) Option {
	return func(r *Router) { r.web = s }
}

// WithQueue sends every finished exchange to fact extraction.
func WithQueue(q consumer.Queue) Option {
	return func(r *Router) { r.queue = q }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Router) { r.log = l }
}

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// New creates a new Router.
func New(provider llm.Provider, ps prompts.Store, hs history.Store, docs Documents, opts Options, options ...Option) *Router {
	opts.applyDefaults()
	r := &Router{
		llm:     provider,
		prompts: ps,
		history: hs,
		docs:    docs,
		web:     websearch.Disabled{},
		opts:    opts,
		log:     logger.Discard(),
		now:     time.Now,
		locks:   newKeyedMutex(),
	}
	for _, o := range options {
		o(r)
	}
	r.heuristic = NewHeuristicClassifier(docs, opts.DocumentsCollection, opts.HeuristicThreshold)
	return r
}

// Route answers one message of a conversation. It never fails: errors
// degrade the answer and are reported through RouteResult.Degraded and a
// low confidence. Turns of the same conversation run one at a time.
func (r *Router) Route(ctx context.Context, conversationID, message string) *models.RouteResult {
	unlock := r.locks.Lock(conversationID)
	defer unlock()

	start := r.now()
	log := r.log.WithTrace(conversationID).WithComponent("router")

	userMsg := &models.Message{Role: models.RoleUser, Content: message}
	if err := r.history.AppendMessage(ctx, conversationID, userMsg); err != nil {
		log.WithError(models.NewErrorInfo(err, "history")).Error("user message not persisted")
	}

	out := r.answer(ctx, conversationID, message, log)

	persistCtx := ctx
	if ctx.Err() != nil {
		log.WithErr(ctx.Err()).Warn("turn cancelled, storing apology")
		out = apology(out.result.Intent)
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
	}
	res := out.result
	res.ConversationID = conversationID

	assistant := &models.Message{
		Role:      models.RoleAssistant,
		Content:   res.Answer,
		AgentType: res.AgentUsed,
		Metadata: &models.MessageMetadata{
			Sources:    res.Sources,
			Confidence: res.Confidence,
			Degraded:   res.Degraded,
			HadContext: out.hadContext,
			Intent:     res.Intent,
		},
	}
	if out.generated {
		assistant.Model = llm.ModelName(r.llm)
	}
	if err := r.history.AppendMessage(persistCtx, conversationID, assistant); err != nil {
		log.WithError(models.NewErrorInfo(err, "history")).Error("assistant message not persisted")
	}

	r.enqueue(persistCtx, log, models.Exchange{
		UserText:       message,
		AssistantText:  res.Answer,
		ConversationID: conversationID,
		Timestamp:      start.UTC(),
	})

	log.WithPayload(map[string]interface{}{
		"intent":      res.Intent,
		"agent":       res.AgentUsed,
		"confidence":  res.Confidence,
		"degraded":    res.Degraded,
		"sources":     len(res.Sources),
		"duration_ms": r.now().Sub(start).Milliseconds(),
	}).Info("turn routed")
	return res
}

func (r *Router) enqueue(ctx context.Context, log *logger.Logger, ex models.Exchange) {
	if r.queue == nil {
		return
	}
	if err := r.queue.Enqueue(ctx, ex); err != nil {
		log.WithError(models.NewErrorInfo(err, "fact_queue")).Warn("exchange not queued for fact extraction")
	}
}

// answer classifies and dispatches, falling back to a history-only reply
// and finally to the static apology.
func (r *Router) answer(ctx context.Context, conversationID, message string, log *logger.Logger) outcome {
	hasDocs := r.docs != nil && r.docs.HasDocuments(ctx, r.opts.DocumentsCollection)
	intent, fellBack := r.classify(ctx, message, hasDocs, log)

	out, err := r.dispatch(ctx, intent, conversationID, message)
	if err == nil {
		out.result.Intent = intent
		if fellBack {
			out.result.Degraded = true
			out.result.Confidence = models.ConfidenceLow
		}
		return out
	}
	log.WithError(models.NewErrorInfo(err, "dispatch")).WithPayload(map[string]interface{}{"intent": intent}).
		Warn("handler failed, answering from history only")

	out, err = r.degraded(ctx, conversationID, message)
	if err != nil {
		log.WithError(models.NewErrorInfo(err, "completion")).Error("degraded answer failed")
		return apology(intent)
	}
	out.result.Intent = intent
	return out
}

// classify asks the completion provider for the intent. An unreachable
// provider switches to the heuristic rules; any other failure means
// conversation. fellBack reports that the intent did not come from the model.
func (r *Router) classify(ctx context.Context, message string, hasDocs bool, log *logger.Logger) (intent models.Intent, fellBack bool) {
	tmpl, err := prompts.Get(ctx, r.prompts, prompts.RouterClassification)
	if err != nil {
		log.WithError(models.NewErrorInfo(err, "prompts")).Error("classification prompt unavailable")
		return models.IntentConversation, true
	}
	prompt := prompts.Render(tmpl, map[string]string{
		"query":         message,
		"has_documents": yesNo(hasDocs),
	})

	cctx, cancel := context.WithTimeout(ctx, r.opts.ClassifyTimeout)
	defer cancel()
	raw, err := r.llm.Complete(cctx, &models.CompletionRequest{
		Prompt:      prompt,
		System:      classifierSystem,
		Temperature: r.opts.ClassifyTemperature,
		MaxTokens:   16,
	})
	if err != nil {
		if llm.IsDegraded(err) {
			intent = r.heuristic.Classify(ctx, message, hasDocs)
			log.WithErr(err).WithPayload(map[string]interface{}{"intent": intent}).Warn("classifier unreachable, using heuristics")
			return intent, true
		}
		log.WithError(models.NewErrorInfo(err, "classification")).Warn("classification failed, using conversation")
		return models.IntentConversation, true
	}

	intent = NormalizeLabel(raw)
	if intent == models.IntentKnowledge && !hasDocs {
		intent = models.IntentConversation
	}
	log.WithPayload(map[string]interface{}{"raw": raw, "intent": intent}).Debug("message classified")
	return intent, false
}

func yesNo(b bool) string {
	if b {
		return "sí"
	}
	return "no"
}
