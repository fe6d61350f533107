package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	ollama "github.com/ollama/ollama/api"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaModel 通过 Ollama 的 /api/embed 生成向量。
type OllamaModel struct {
	client *ollama.Client
	model  string
}

// NewOllamaModel 创建 Ollama 嵌入客户端，baseURL 为空时使用本机默认端口。
// 请求超时由调用方的 context 控制。
func NewOllamaModel(model, baseURL string) (*OllamaModel, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama embedding: bad base url %q: %w", baseURL, err)
	}
	return &OllamaModel{client: ollama.NewClient(u, &http.Client{}), model: model}, nil
}

func (m *OllamaModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := m.client.Embed(ctx, &ollama.EmbedRequest{Model: m.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embedding: %w", err)
	}
	if got := len(resp.Embeddings); got != len(texts) {
		return nil, fmt.Errorf("ollama embedding: got %d vectors for %d inputs", got, len(texts))
	}
	return resp.Embeddings, nil
}
