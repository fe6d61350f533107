package vectorstore

import (
	"context"
	"fmt"
	"time"

	"minerva/backend/go/internal/config"
	"minerva/backend/go/internal/database/milvus"
	mhttp "minerva/backend/go/pkg/http"
	"minerva/backend/go/pkg/logger"
)

// New builds the configured backend and bounds each call by the configured
// timeout. Milvus connects eagerly; Qdrant is lazy.
func New(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (Index, error) {
	idx, err := newBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return WithTimeout(idx, config.Duration(cfg.VectorStore.Timeout, 10*time.Second)), nil
}

func newBackend(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (Index, error) {
	dim := cfg.Embedding.Dimension
	vs := cfg.VectorStore
	switch vs.Backend {
	case "memory":
		return NewMemoryIndex(dim), nil
	case "chromem":
		return NewChromemIndex(vs.Chromem.Path, vs.Chromem.Compress, dim)
	case "qdrant":
		var opts []mhttp.ClientOption
		if vs.Qdrant.APIKey != "" {
			opts = append(opts, mhttp.WithHeader("api-key", vs.Qdrant.APIKey))
		}
		client, err := mhttp.NewClient("qdrant", vs.CircuitBreaker, log, opts...)
		if err != nil {
			return nil, err
		}
		return NewQdrantIndex(vs.Qdrant.URL, client, dim), nil
	case "milvus":
		mc, err := milvus.New(ctx, cfg.Databases.Milvus, log)
		if err != nil {
			return nil, err
		}
		return NewMilvusIndex(mc, dim), nil
	default:
		return nil, fmt.Errorf("unsupported vector store backend: %s", vs.Backend)
	}
}
