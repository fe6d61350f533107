package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"minerva/backend/go/internal/models"
	"minerva/backend/go/internal/rag/catalog"
)

// SearchResult is one retrieved chunk.
type SearchResult struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Text       string  `json:"text"`
	ChunkIndex int     `json:"chunk_index"`
	Page       int     `json:"page,omitempty"`
	Score      float32 `json:"score"`
}

// Source converts the result to an answer citation.
func (r SearchResult) Source() models.Source {
	idx := r.ChunkIndex
	return models.Source{
		Title:      r.Filename,
		Filename:   r.Filename,
		Snippet:    r.Text,
		Score:      r.Score,
		ChunkIndex: &idx,
	}
}

// Search returns up to limit chunks scoring at least threshold, best first.
// No match, and a collection that does not exist, give an empty result.
func (e *Engine) Search(ctx context.Context, query, collection string, limit int, threshold float32) ([]SearchResult, error) {
	if limit <= 0 {
		return nil, nil
	}
	collection = e.collection(collection)
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	ictx, cancel := e.indexCtx(ctx)
	defer cancel()
	hits, err := e.index.Search(ictx, collection, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Score < threshold {
			continue
		}
		p, err := models.DecodeChunkPayload(h.Payload)
		if err != nil {
			e.log.WithPayload(map[string]interface{}{"point": h.ID}).Warn("skipping malformed chunk payload")
			continue
		}
		results = append(results, SearchResult{
			ID:         h.ID,
			DocumentID: p.DocumentID,
			Filename:   p.Filename,
			Text:       p.Text,
			ChunkIndex: p.ChunkIndex,
			Page:       p.Page,
			Score:      h.Score,
		})
	}
	e.log.WithPayload(map[string]interface{}{
		"collection": collection,
		"hits":       len(hits),
		"kept":       len(results),
		"threshold":  threshold,
	}).Debug("document search")
	return results, nil
}

// Context searches with the configured threshold and formats the surviving
// chunks as a prompt context block. It returns "" when nothing matches.
func (e *Engine) Context(ctx context.Context, query, collection string, maxChunks int) (string, []SearchResult, error) {
	if maxChunks <= 0 {
		maxChunks = e.opts.MaxChunks
	}
	results, err := e.Search(ctx, query, collection, maxChunks, e.opts.SearchThreshold)
	if err != nil || len(results) == 0 {
		return "", nil, err
	}
	return FormatContext(results), results, nil
}

// FormatContext renders chunks as
//
//	[Fuente 1: file.pdf - Relevancia: 0.87]
//	text
//
// separated by "\n---\n".
func FormatContext(results []SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[Fuente %d: %s - Relevancia: %.2f]\n%s\n", i+1, r.Filename, r.Score, r.Text)
	}
	return strings.Join(parts, "\n---\n")
}

// HasDocuments reports whether the collection holds any chunk. Errors count
// as no documents.
func (e *Engine) HasDocuments(ctx context.Context, collection string) bool {
	ictx, cancel := e.indexCtx(ctx)
	defer cancel()
	info, err := e.index.CollectionInfo(ictx, e.collection(collection))
	if err != nil {
		return false
	}
	return info.PointCount > 0
}

// DeleteDocument removes every chunk of a document from its collection and
// flags the catalog entry as no longer indexed.
func (e *Engine) DeleteDocument(ctx context.Context, documentID string) error {
	if err := e.requireCatalog(); err != nil {
		return err
	}
	doc, err := e.catalog.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if !doc.IsIndexed {
		return nil
	}

	ictx, cancel := e.indexCtx(ctx)
	err = e.index.Delete(ictx, doc.Collection, doc.PointIDs)
	cancel()
	if err != nil {
		return fmt.Errorf("delete chunks of %s: %w", documentID, err)
	}
	if e.archive != nil && doc.ArchiveKey != "" {
		if err := e.archive.Remove(ctx, doc.ArchiveKey); err != nil {
			e.log.WithError(models.NewErrorInfo(err, "archive")).Warn("archived original not removed")
		}
	}
	if err := e.catalog.MarkRemoved(ctx, documentID); err != nil {
		return err
	}
	e.log.WithPayload(map[string]interface{}{"document_id": documentID, "chunks": len(doc.PointIDs)}).Info("document removed")
	return nil
}

// ListDocuments lists indexed documents. An empty collection lists all.
func (e *Engine) ListDocuments(ctx context.Context, collection string) ([]models.Document, error) {
	if err := e.requireCatalog(); err != nil {
		return nil, err
	}
	return e.catalog.List(ctx, collection)
}

// IsNotFound reports whether err means the document is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, catalog.ErrDocumentNotFound)
}
