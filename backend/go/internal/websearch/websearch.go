// Package websearch provides ranked web snippets for the web handler.
package websearch

import (
	"context"
	"fmt"
	"time"

	"minerva/backend/go/internal/config"
	"minerva/backend/go/internal/models"
	mhttp "minerva/backend/go/pkg/http"
	"minerva/backend/go/pkg/logger"
)

// Searcher returns at most limit results, best first.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
}

// NewsSearcher is implemented by providers with a dedicated news vertical.
type NewsSearcher interface {
	SearchNews(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
}

// Disabled is used when no search provider is configured. It never finds anything.
type Disabled struct{}

func (Disabled) Search(context.Context, string, int) ([]models.SearchResult, error) {
	return nil, nil
}

// New 根据配置创建网页搜索客户端。
func New(cfg config.WebSearchConfig, loc *time.Location, log *logger.Logger) (Searcher, error) {
	switch cfg.Provider {
	case "none":
		return Disabled{}, nil
	case "serper":
		if cfg.APIKey == "" {
			log.Warn("未配置 SERPER_API_KEY，网页搜索已禁用")
			return Disabled{}, nil
		}
		client, err := mhttp.NewClient("serper", cfg.CircuitBreaker, log,
			mhttp.WithTimeout(config.Duration(cfg.Timeout, 10*time.Second)),
			mhttp.WithHeader("X-API-KEY", cfg.APIKey),
		)
		if err != nil {
			return nil, err
		}
		return NewSerper(cfg.BaseURL, client,
			WithLocale(cfg.Country, cfg.Language),
			WithNormalizer(NewDateNormalizer(loc)),
			WithLogger(log),
		), nil
	default:
		return nil, fmt.Errorf("%w: unknown web search provider %q", config.ErrInvalid, cfg.Provider)
	}
}
