package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"minerva/backend/go/internal/config"
	"minerva/backend/go/internal/models"
	mhttp "minerva/backend/go/pkg/http"
	"minerva/backend/go/pkg/logger"
)

var (
	// ErrTimeout 表示生成调用超过了配置的超时时间，同时包装 context.DeadlineExceeded。
	ErrTimeout = errors.New("llm: completion timed out")
	// ErrUnavailable 表示生成服务不可达：熔断器打开或连接被拒绝。
	ErrUnavailable = errors.New("llm: provider unavailable")
)

// Provider 定义了所有大型语言模型客户端必须实现的通用接口。
// 实现不负责重试，超时与熔断由 Guarded 统一处理。
type Provider interface {
	Complete(ctx context.Context, req *models.CompletionRequest) (string, error)
}

// Pinger 由能廉价探测服务可达性的 Provider 实现。
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckReachable 在启动时探测生成服务，不可达时返回包装了 ErrUnavailable 的错误。
// 未实现 Pinger 的 Provider 视为可达。
func CheckReachable(ctx context.Context, p Provider, timeout time.Duration) error {
	pinger, ok := p.(Pinger)
	if !ok {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pinger.Ping(pingCtx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ModelName 返回 Provider 使用的模型名称，未知时返回空字符串。
func ModelName(p Provider) string {
	if m, ok := p.(interface{ Model() string }); ok {
		return m.Model()
	}
	return ""
}

// NewProvider 是一个工厂函数，根据配置创建对应的客户端并包上超时与熔断保护。
func NewProvider(ctx context.Context, cfg config.LLMConfig, log *logger.Logger) (*Guarded, error) {
	var (
		inner Provider
		err   error
	)
	switch cfg.Provider {
	case "ollama":
		inner, err = NewOllama(cfg.Ollama.Model, cfg.Ollama.BaseURL, cfg.MaxTokens)
	case "openai":
		inner, err = NewOpenAI(cfg.OpenAI.Model, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.MaxTokens)
	case "gemini":
		inner, err = NewGemini(ctx, cfg.Gemini.Model, cfg.Gemini.APIKey, cfg.MaxTokens)
	case "anthropic":
		inner, err = NewAnthropic(cfg.Anthropic.Model, cfg.Anthropic.APIKey, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", cfg.Provider, err)
	}

	opts := []GuardOption{WithTimeout(config.Duration(cfg.Timeout, 60*time.Second))}
	if cfg.CircuitBreaker.Enabled {
		breaker, err := mhttp.NewBreaker("llm-"+cfg.Provider, cfg.CircuitBreaker, log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithBreaker(breaker))
	}
	return NewGuarded(inner, opts...), nil
}
