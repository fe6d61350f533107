package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"minerva/backend/go/internal/models"
	"minerva/backend/go/internal/rag/schema"
	"minerva/backend/go/internal/vectorstore"

	"github.com/djherbis/times"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// IndexResult summarizes one Index call. Failures are reported here, never
// as an error.
type IndexResult struct {
	Success        bool          `json:"success"`
	DocumentID     string        `json:"document_id,omitempty"`
	Filename       string        `json:"filename"`
	Collection     string        `json:"collection,omitempty"`
	ChunksCreated  int           `json:"chunks_created"`
	ProcessingTime time.Duration `json:"processing_time"`
	Error          string        `json:"error,omitempty"`
}

var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("minerva/chunks"))

// ChunkID derives the point id of a chunk.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s:%d", documentID, index))).String()
}

// Index loads, chunks, embeds and stores one file.
func (e *Engine) Index(ctx context.Context, filePath, collection string) IndexResult {
	start := e.now()
	collection = e.collection(collection)
	res := IndexResult{Filename: filepath.Base(filePath), Collection: collection}
	log := e.log.WithPayload(map[string]interface{}{"file": res.Filename, "collection": collection})

	docID, chunks, err := e.indexFile(ctx, filePath, collection, &res)
	res.ProcessingTime = e.now().Sub(start)
	if err != nil {
		res.Error = err.Error()
		log.WithError(models.NewErrorInfo(err, "indexing")).Error("document indexing failed")
		return res
	}
	res.Success = true
	res.DocumentID = docID
	res.ChunksCreated = chunks
	log.WithPayload(map[string]interface{}{
		"document_id": docID,
		"chunks":      chunks,
		"duration_ms": res.ProcessingTime.Milliseconds(),
	}).Info("document indexed")
	return res
}

func (e *Engine) indexFile(ctx context.Context, filePath, collection string, res *IndexResult) (string, int, error) {
	info, err := os.Stat(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return "", 0, fmt.Errorf("file not found: %s", filePath)
	}
	if err != nil {
		return "", 0, err
	}
	if info.IsDir() {
		return "", 0, fmt.Errorf("%s is a directory", filePath)
	}
	if e.opts.MaxFileSize > 0 && info.Size() > e.opts.MaxFileSize {
		return "", 0, fmt.Errorf("file too large: %d bytes, limit %d", info.Size(), e.opts.MaxFileSize)
	}

	loader, fileType, err := e.loaders.ForFile(filePath)
	if err != nil {
		return "", 0, err
	}
	docs, err := loader.Load(ctx, filePath)
	if err != nil {
		return "", 0, fmt.Errorf("extract text: %w", err)
	}
	if !hasText(docs) {
		return "", 0, errors.New("no text could be extracted")
	}
	chunks, err := e.splitter.Split(ctx, docs)
	if err != nil {
		return "", 0, fmt.Errorf("split text: %w", err)
	}
	if len(chunks) == 0 {
		return "", 0, errors.New("no text could be extracted")
	}

	vectors, err := e.embedChunks(ctx, chunks)
	if err != nil {
		return "", 0, fmt.Errorf("embed chunks: %w", err)
	}

	docID := uuid.NewString()
	indexedAt := e.now().UTC()
	points := make([]vectorstore.Point, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		payload, err := models.NewChunkPayload(models.ChunkPayload{
			Text:       c.Text,
			Filename:   res.Filename,
			DocumentID: docID,
			ChunkIndex: c.Index,
			CharStart:  c.CharStart,
			CharEnd:    c.CharEnd,
			Collection: collection,
			IndexedAt:  indexedAt,
			FileType:   fileType,
			Page:       c.Page,
		})
		if err != nil {
			return "", 0, err
		}
		raw, err := payload.Encode()
		if err != nil {
			return "", 0, err
		}
		ids[i] = ChunkID(docID, c.Index)
		points[i] = vectorstore.Point{ID: ids[i], Vector: vectors[i], Payload: raw}
	}

	ictx, cancel := e.indexCtx(ctx)
	err = e.index.Upsert(ictx, collection, points)
	cancel()
	if err != nil {
		return "", 0, fmt.Errorf("store chunks: %w", err)
	}

	var archiveKey string
	if e.archive != nil {
		key, err := e.archive.Put(ctx, docID, filePath)
		if err != nil {
			e.log.WithError(models.NewErrorInfo(err, "archive")).Warn("original not archived")
		}
		archiveKey = key
	}

	if e.catalog != nil {
		doc := &models.Document{
			ID:           docID,
			Filename:     res.Filename,
			OriginalPath: filePath,
			FileType:     fileType,
			FileSize:     info.Size(),
			FileModTime:  fileModTime(filePath, info),
			ChunkCount:   len(chunks),
			Collection:   collection,
			PointIDs:     ids,
			IsIndexed:    true,
			ProcessedAt:  indexedAt,
			ArchiveKey:   archiveKey,
		}
		if err := e.catalog.Save(ctx, doc); err != nil {
			e.rollback(ctx, collection, ids)
			return "", 0, err
		}
	}
	return docID, len(chunks), nil
}

// embedChunks embeds the chunks in batches, several batches at a time.
// The result is aligned with chunks.
func (e *Engine) embedChunks(ctx context.Context, chunks []schema.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for lo := 0; lo < len(chunks); lo += e.opts.BatchSize {
		hi := lo + e.opts.BatchSize
		if hi > len(chunks) {
			hi = len(chunks)
		}
		texts := make([]string, 0, hi-lo)
		for _, c := range chunks[lo:hi] {
			texts = append(texts, c.Text)
		}
		g.Go(func() error {
			out, err := e.embedder.EmbedMany(gctx, texts)
			if err != nil {
				return err
			}
			if len(out) != len(texts) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(out), len(texts))
			}
			copy(vectors[lo:], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// rollback removes points whose catalog entry could not be written.
func (e *Engine) rollback(ctx context.Context, collection string, ids []string) {
	ictx, cancel := e.indexCtx(context.WithoutCancel(ctx))
	defer cancel()
	if err := e.index.Delete(ictx, collection, ids); err != nil {
		e.log.WithError(models.NewErrorInfo(err, "vector_index")).Error("rollback of indexed chunks failed")
	}
}

func hasText(docs []*schema.Document) bool {
	for _, d := range docs {
		if strings.TrimSpace(d.Text) != "" {
			return true
		}
	}
	return false
}

func fileModTime(path string, info os.FileInfo) time.Time {
	t, err := times.Stat(path)
	if err != nil {
		return info.ModTime().UTC()
	}
	return t.ModTime().UTC()
}
