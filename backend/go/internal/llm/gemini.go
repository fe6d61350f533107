package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"minerva/backend/go/internal/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini 通过 generative-ai-go 调用 Gemini 模型。
type Gemini struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGemini 创建一个新的 Gemini 客户端。
//
// 参数:
//
//	ctx: 上下文，用于控制客户端的生命周期。
//	model: 要使用的 Gemini 模型名称。
//	apiKey: Gemini API 密钥。
func NewGemini(ctx context.Context, model, apiKey string, maxTokens int) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Gemini{client: client, model: model, maxTokens: maxTokens}, nil
}

// Model 返回模型名称。
func (g *Gemini) Model() string { return g.model }

// Close 释放底层连接。
func (g *Gemini) Close() error { return g.client.Close() }

// Complete 发送一次单轮请求。每次调用都创建新的 GenerativeModel，避免并发修改温度等参数。
func (g *Gemini) Complete(ctx context.Context, req *models.CompletionRequest) (string, error) {
	gm := g.client.GenerativeModel(g.model)
	gm.SetTemperature(req.Temperature)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}
	gm.SetMaxOutputTokens(int32(maxTokens))
	if req.System != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content with gemini: %w", err)
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	if sb.Len() == 0 {
		return "", errors.New("gemini returned no text")
	}
	return strings.TrimSpace(sb.String()), nil
}
