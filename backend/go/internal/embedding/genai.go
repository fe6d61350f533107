package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GoogleModel 调用 Gemini 的嵌入接口。
type GoogleModel struct {
	client *genai.Client
	em     *genai.EmbeddingModel
}

func NewGoogleModel(ctx context.Context, apiKey, name string) (*GoogleModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embedding: api key is empty")
	}
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}
	return &GoogleModel{client: c, em: c.EmbeddingModel(name)}, nil
}

// Close 释放底层连接。
func (m *GoogleModel) Close() error { return m.client.Close() }

// EmbedBatch 用一次 BatchEmbedContents 请求处理整批文本。
func (m *GoogleModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	b := m.em.NewBatch()
	for _, t := range texts {
		b.AddContent(genai.Text(t))
	}
	res, err := m.em.BatchEmbedContents(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embedding: got %d vectors for %d inputs", len(res.Embeddings), len(texts))
	}
	out := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
