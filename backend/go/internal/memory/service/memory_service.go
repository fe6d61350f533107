package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"minerva/backend/go/internal/embedding"
	"minerva/backend/go/internal/memory/extractor"
	"minerva/backend/go/internal/memory/store"
	"minerva/backend/go/internal/models"
	"minerva/backend/go/pkg/logger"

	"github.com/google/uuid"
)

// factNamespace seeds the content-derived fact ids.
var factNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("minerva/facts"))

// FactID derives the id of a fact from its normalized text, so the same fact
// extracted twice overwrites itself.
func FactID(text string) string {
	return uuid.NewSHA1(factNamespace, []byte(extractor.Normalize(text))).String()
}

// Options tunes a MemoryService.
type Options struct {
	// ExtractionInterval is the number of buffered exchanges that triggers extraction.
	ExtractionInterval int
	// MinScore is the lowest similarity a recalled fact may have.
	MinScore float32
}

// MemoryService provides the core memory functionality.
type MemoryService struct {
	extractor extractor.Extractor
	embedder  embedding.Embedder
	store     store.Store
	opts      Options
	log       *logger.Logger
	now       func() time.Time

	mu     sync.Mutex
	buffer []models.Exchange
}

// NewMemoryService creates a new MemoryService.
func NewMemoryService(ext extractor.Extractor, emb embedding.Embedder, st store.Store, opts Options, log *logger.Logger) *MemoryService {
	if opts.ExtractionInterval <= 0 {
		opts.ExtractionInterval = 1
	}
	if opts.MinScore <= 0 {
		opts.MinScore = 0.5
	}
	if log == nil {
		log = logger.Discard()
	}
	return &MemoryService{
		extractor: ext,
		embedder:  emb,
		store:     st,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// Ingest buffers one exchange. When the buffer holds ExtractionInterval
// exchanges it is drained and the batch is extracted and stored.
func (s *MemoryService) Ingest(ctx context.Context, ex models.Exchange) error {
	s.mu.Lock()
	s.buffer = append(s.buffer, ex)
	if len(s.buffer) < s.opts.ExtractionInterval {
		s.mu.Unlock()
		return nil
	}
	batch := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	_, err := s.ExtractAndStore(ctx, batch)
	return err
}

// Flush extracts whatever is buffered, regardless of the interval.
func (s *MemoryService) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.buffer
	s.buffer = nil
	s.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	_, err := s.ExtractAndStore(ctx, batch)
	return err
}

// ExtractAndStore runs extraction over batch, filters candidates through the
// quality gate, de-duplicates them and stores the survivors. It returns the
// stored facts.
func (s *MemoryService) ExtractAndStore(ctx context.Context, batch []models.Exchange) ([]models.Fact, error) {
	log := s.log
	if len(batch) > 0 {
		log = log.WithTrace(batch[len(batch)-1].ConversationID)
	}

	candidates, err := s.extractor.Extract(ctx, batch)
	if err != nil {
		log.WithError(models.NewErrorInfo(err, "fact_extraction")).Warn("fact extraction failed, batch skipped")
		return nil, err
	}

	now := s.now().UTC()
	conversationID := ""
	if len(batch) > 0 {
		conversationID = batch[len(batch)-1].ConversationID
	}
	seen := make(map[string]struct{}, len(candidates))
	facts := make([]models.Fact, 0, len(candidates))
	texts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if ok, reason := extractor.Check(c.Fact); !ok {
			log.WithPayload(map[string]interface{}{"fact": c.Fact, "reason": reason}).Info("fact rejected")
			continue
		}
		key := extractor.Normalize(c.Fact)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		facts = append(facts, models.Fact{
			ID:             FactID(c.Fact),
			Text:           c.Fact,
			Category:       c.Category,
			ConversationID: conversationID,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		texts = append(texts, c.Fact)
	}
	if len(facts) == 0 {
		return nil, nil
	}

	vectors, err := s.embedder.EmbedMany(ctx, texts)
	if err != nil {
		log.WithError(models.NewErrorInfo(err, "embedding")).Warn("fact embedding failed, batch skipped")
		return nil, fmt.Errorf("embed facts: %w", err)
	}
	if err := s.store.Upsert(ctx, facts, vectors); err != nil {
		log.WithError(models.NewErrorInfo(err, "vector_index")).Error("storing facts failed")
		return nil, err
	}
	log.WithPayload(map[string]interface{}{"stored": len(facts), "candidates": len(candidates)}).Info("facts stored")
	return facts, nil
}

// Recall returns at most limit facts relevant to query with a score of at
// least MinScore, best first with ties broken by id. Failures are logged and
// yield no facts.
func (s *MemoryService) Recall(ctx context.Context, query string, limit int) []models.Fact {
	if limit <= 0 {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.log.WithError(models.NewErrorInfo(err, "embedding")).Warn("recall skipped")
		return nil
	}
	hits, err := s.store.Search(ctx, vec, limit)
	if err != nil {
		s.log.WithError(models.NewErrorInfo(err, "vector_index")).Warn("recall skipped")
		return nil
	}
	out := make([]models.Fact, 0, len(hits))
	for _, f := range hits {
		if f.Score >= s.opts.MinScore {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Delete removes one fact. Unknown ids succeed.
func (s *MemoryService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// DeleteAll forgets everything, including exchanges still buffered.
func (s *MemoryService) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	s.buffer = nil
	s.mu.Unlock()
	return s.store.DeleteAll(ctx)
}

// List returns every stored fact.
func (s *MemoryService) List(ctx context.Context) ([]models.Fact, error) {
	return s.store.List(ctx)
}

// Pending reports how many exchanges wait in the buffer.
func (s *MemoryService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}
