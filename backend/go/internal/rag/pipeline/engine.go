// Package pipeline indexes documents into a vector collection and answers
// similarity queries over them.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"minerva/backend/go/internal/config"
	"minerva/backend/go/internal/embedding"
	"minerva/backend/go/internal/rag/archive"
	"minerva/backend/go/internal/rag/catalog"
	"minerva/backend/go/internal/rag/loaders"
	"minerva/backend/go/internal/rag/splitters"
	"minerva/backend/go/internal/vectorstore"
	"minerva/backend/go/pkg/logger"
)

// Options tunes an Engine.
type Options struct {
	// Collection is used when a call passes an empty collection name.
	Collection string
	// BatchSize is the number of chunks embedded per call.
	BatchSize int
	// Concurrency bounds the embedding calls in flight.
	Concurrency int
	// MaxFileSize rejects larger files. Zero means no limit.
	MaxFileSize int64
	// IndexTimeout bounds each vector index call.
	IndexTimeout time.Duration
	// SearchThreshold is the minimum score Context keeps.
	SearchThreshold float32
	// MaxChunks is the default number of chunks Context includes.
	MaxChunks int
}

// OptionsFromConfig maps the retrieval and vector store sections to Options.
func OptionsFromConfig(cfg *config.AppConfig) Options {
	return Options{
		Collection:      cfg.VectorStore.Collections.Documents,
		BatchSize:       cfg.Retrieval.BatchSize,
		Concurrency:     cfg.Retrieval.Concurrency,
		MaxFileSize:     int64(cfg.Retrieval.MaxFileSizeMB) << 20,
		IndexTimeout:    config.Duration(cfg.VectorStore.Timeout, 10*time.Second),
		SearchThreshold: cfg.Retrieval.SearchThreshold,
		MaxChunks:       cfg.Retrieval.MaxChunks,
	}
}

// Engine is the document retrieval engine.
type Engine struct {
	loaders  *loaders.Registry
	splitter splitters.Splitter
	embedder embedding.Embedder
	index    vectorstore.Index
	catalog  *catalog.Store
	archive  archive.Archive
	opts     Options
	log      *logger.Logger
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithCatalog records indexed documents so they can be listed and deleted.
func WithCatalog(c *catalog.Store) Option {
	return func(e *Engine) { e.catalog = c }
}

// WithArchive copies every indexed original to the archive.
func WithArchive(a archive.Archive) Option {
	return func(e *Engine) { e.archive = a }
}

// WithLoaders replaces the default loader registry.
func WithLoaders(r *loaders.Registry) Option {
	return func(e *Engine) { e.loaders = r }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a new Engine.
func NewEngine(splitter splitters.Splitter, embedder embedding.Embedder, index vectorstore.Index, opts Options, options ...Option) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.IndexTimeout <= 0 {
		opts.IndexTimeout = 10 * time.Second
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = 5
	}
	if opts.Collection == "" {
		opts.Collection = "documents"
	}
	e := &Engine{
		loaders:  loaders.NewRegistry(),
		splitter: splitter,
		embedder: embedder,
		index:    index,
		opts:     opts,
		log:      logger.Discard(),
		now:      time.Now,
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Supports reports whether path has a loader.
func (e *Engine) Supports(path string) bool {
	return e.loaders.Supports(path)
}

func (e *Engine) collection(name string) string {
	if name == "" {
		return e.opts.Collection
	}
	return name
}

func (e *Engine) indexCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.opts.IndexTimeout)
}

func (e *Engine) requireCatalog() error {
	if e.catalog == nil {
		return fmt.Errorf("document catalog is not configured")
	}
	return nil
}
