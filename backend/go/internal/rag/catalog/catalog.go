// Package catalog records indexed documents in the SQL database so they can
// be listed and removed from the vector index as a unit.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"minerva/backend/go/internal/models"

	"gorm.io/gorm"
)

// ErrDocumentNotFound is returned for unknown document ids.
var ErrDocumentNotFound = errors.New("document not found")

// Store is the gorm-backed document catalog.
type Store struct {
	db *gorm.DB
}

// New migrates the documents table.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&models.Document{}); err != nil {
		return nil, fmt.Errorf("migrate document tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Save inserts or replaces a catalog entry.
func (s *Store) Save(ctx context.Context, doc *models.Document) error {
	if err := s.db.WithContext(ctx).Save(doc).Error; err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns one document.
func (s *Store) Get(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return &doc, nil
}

// List returns the indexed documents of a collection, newest first. An empty
// collection lists every collection.
func (s *Store) List(ctx context.Context, collection string) ([]models.Document, error) {
	q := s.db.WithContext(ctx).Where("is_indexed = ?", true)
	if collection != "" {
		q = q.Where("collection = ?", collection)
	}
	var docs []models.Document
	if err := q.Order("processed_at DESC").Order("id").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// MarkRemoved keeps the row for auditing but flags it as no longer indexed.
func (s *Store) MarkRemoved(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_indexed": false, "chunk_count": 0})
	if res.Error != nil {
		return fmt.Errorf("remove document %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return nil
}
