package embedding

import (
	"context"
	"fmt"
	"time"

	"minerva/backend/go/internal/config"
	"minerva/backend/go/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// NewEmbedder 根据配置创建 Embedder：厂商客户端外包一层 Guard（超时、零向量、维度检查），
// 启用缓存时再包一层 Cached。rdb 为空时只使用进程内缓存。
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig, rdb *redis.Client, prefix string, log *logger.Logger) (Embedder, error) {
	var raw batchEmbedder
	var err error
	model := cfg.Provider
	switch cfg.Provider {
	case "hash":
		return NewHashEmbedder(cfg.Dimension), nil
	case "ollama":
		raw, err = NewOllamaModel(cfg.Ollama.Model, cfg.Ollama.BaseURL)
		model += ":" + cfg.Ollama.Model
	case "openai":
		raw, err = NewOpenAIModel(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
		model += ":" + cfg.OpenAI.Model
	case "gemini":
		raw, err = NewGoogleModel(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		model += ":" + cfg.Gemini.Model
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", cfg.Provider, err)
	}

	var emb Embedder = NewGuard(raw, cfg.Dimension, config.Duration(cfg.Timeout, 5*time.Second))
	if !cfg.Cache.Enabled {
		return emb, nil
	}
	if !cfg.Cache.Redis {
		rdb = nil
	}
	return NewCached(emb, CacheOptions{
		Model:    model,
		Capacity: cfg.Cache.Capacity,
		TTL:      config.Duration(cfg.Cache.TTL, time.Hour),
		Redis:    rdb,
		Prefix:   prefix,
		Log:      log,
	})
}
