package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"minerva/backend/go/internal/models"

	olla "github.com/ollama/ollama/api"
)

// Ollama 调用本地 Ollama 的 /api/generate。
type Ollama struct {
	client    *olla.Client
	model     string
	maxTokens int // 请求未指定时使用的 num_predict
}

// NewOllama 创建客户端，baseURL 为空时使用本机默认端口。超时由调用方的 context 控制。
func NewOllama(model, baseURL string, maxTokens int) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: bad base url %q: %w", baseURL, err)
	}
	return &Ollama{client: olla.NewClient(u, &http.Client{}), model: model, maxTokens: maxTokens}, nil
}

// Ping 调用 Ollama 的心跳接口。
func (o *Ollama) Ping(ctx context.Context) error { return o.client.Heartbeat(ctx) }

// Model 返回模型名称。
func (o *Ollama) Model() string { return o.model }

// Complete 以非流式方式调用 /api/generate。
func (o *Ollama) Complete(ctx context.Context, req *models.CompletionRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}
	stream := false

	var sb strings.Builder
	err := o.client.Generate(ctx, &olla.GenerateRequest{
		Model:  o.model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
			"num_predict": maxTokens,
		},
	}, func(resp olla.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}
