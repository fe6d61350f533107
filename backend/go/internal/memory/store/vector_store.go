package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"minerva/backend/go/internal/models"
	"minerva/backend/go/internal/vectorstore"
	"minerva/backend/go/pkg/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VectorStore keeps facts in a vector index collection and mirrors them in
// the facts table.
type VectorStore struct {
	index      vectorstore.Index
	collection string
	db         *gorm.DB
	log        *logger.Logger
}

// NewVectorStore migrates the facts table.
func NewVectorStore(index vectorstore.Index, collection string, db *gorm.DB, log *logger.Logger) (*VectorStore, error) {
	if err := db.AutoMigrate(&models.Fact{}); err != nil {
		return nil, fmt.Errorf("migrate fact tables: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &VectorStore{index: index, collection: collection, db: db, log: log}, nil
}

func (s *VectorStore) Upsert(ctx context.Context, facts []models.Fact, vectors [][]float32) error {
	if len(facts) != len(vectors) {
		return fmt.Errorf("upsert facts: %d facts but %d vectors", len(facts), len(vectors))
	}
	if len(facts) == 0 {
		return nil
	}

	ids := make([]string, len(facts))
	for i, f := range facts {
		ids[i] = f.ID
	}
	var existing []models.Fact
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&existing).Error; err != nil {
		return fmt.Errorf("upsert facts: %w", err)
	}
	created := make(map[string]time.Time, len(existing))
	for _, f := range existing {
		created[f.ID] = f.CreatedAt
	}

	points := make([]vectorstore.Point, len(facts))
	rows := make([]models.Fact, len(facts))
	for i, f := range facts {
		if c, ok := created[f.ID]; ok {
			f.CreatedAt = c
		}
		payload, err := models.NewFactPayload(f)
		if err != nil {
			return err
		}
		raw, err := payload.Encode()
		if err != nil {
			return fmt.Errorf("encode fact payload: %w", err)
		}
		points[i] = vectorstore.Point{ID: f.ID, Vector: vectors[i], Payload: raw}
		f.Score = 0
		f.UpdatedAt = payload.UpdatedAt
		rows[i] = f
	}

	if err := s.index.Upsert(ctx, s.collection, points); err != nil {
		return fmt.Errorf("upsert fact vectors: %w", err)
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "category", "conversation_id", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert fact catalog: %w", err)
	}
	return nil
}

func (s *VectorStore) Search(ctx context.Context, vector []float32, limit int) ([]models.Fact, error) {
	hits, err := s.index.Search(ctx, s.collection, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("search facts: %w", err)
	}
	out := make([]models.Fact, 0, len(hits))
	for _, h := range hits {
		p, err := models.DecodeFactPayload(h.Payload)
		if err != nil {
			s.log.WithErr(err).WithPayload(map[string]interface{}{"id": h.ID}).Warn("skipping malformed fact payload")
			continue
		}
		out = append(out, p.ToFact(h.ID, h.Score))
	}
	return out, nil
}

func (s *VectorStore) Delete(ctx context.Context, id string) error {
	if err := s.index.Delete(ctx, s.collection, []string{id}); err != nil {
		return fmt.Errorf("delete fact vector: %w", err)
	}
	if err := s.db.WithContext(ctx).Delete(&models.Fact{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete fact: %w", err)
	}
	return nil
}

func (s *VectorStore) DeleteAll(ctx context.Context) error {
	if err := s.index.DropCollection(ctx, s.collection); err != nil && !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return fmt.Errorf("drop fact collection: %w", err)
	}
	if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Fact{}).Error; err != nil {
		return fmt.Errorf("delete facts: %w", err)
	}
	return nil
}

func (s *VectorStore) List(ctx context.Context) ([]models.Fact, error) {
	var out []models.Fact
	if err := s.db.WithContext(ctx).Order("created_at DESC, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	return out, nil
}
