package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// HashEmbedder 是离线的确定性嵌入器：对小写词元做特征哈希并做 L2 归一化。
// 共享词元越多的文本余弦相似度越高，适合测试和无模型环境。
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder 创建指定维度的 HashEmbedder。
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &HashEmbedder{dimension: dimension}
}

// Dimension 返回向量维度。
func (e *HashEmbedder) Dimension() int { return e.dimension }

// Embed 为单个文本生成嵌入向量。
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.embedText(text), nil
}

// EmbedMany 为一批文本生成嵌入向量。
func (e *HashEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embedText(t)
	}
	return out, nil
}

// EmbedBatch 与 EmbedMany 相同，使 HashEmbedder 也能放在 Guard 后面。
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedMany(ctx, texts)
}

func (e *HashEmbedder) embedText(text string) []float32 {
	v := make([]float32, e.dimension)
	tokens := tokenRe.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return v
	}
	h := fnv.New64a()
	for _, tok := range tokens {
		h.Reset()
		_, _ = h.Write([]byte(tok))
		v[h.Sum64()%uint64(e.dimension)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
