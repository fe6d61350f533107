package embedding

import (
	"context"
	"errors"
)

// ErrTimeout 表示 embedding 调用超时，同时包装 context.DeadlineExceeded。
var ErrTimeout = errors.New("embedding: timed out")

// Embedder 定义了向量化文本的统一接口。
// 空文本或只包含空白的文本返回长度为 Dimension() 的零向量，而不是错误。
type Embedder interface {
	// Embed 为单个文本生成嵌入向量。
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedMany 为一批文本生成嵌入向量，结果顺序与输入一致。
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension 返回向量维度。
	Dimension() int
}

// batchEmbedder 是各厂商客户端需要实现的最小接口，由 Guard 补齐 Embedder 的其余约定。
type batchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
