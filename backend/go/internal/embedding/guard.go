package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Guard adapts a vendor client to Embedder: blank inputs get zero vectors
// without a remote call, every call is bounded by timeout, and returned
// vectors must have the configured dimension.
type Guard struct {
	inner     batchEmbedder
	dimension int
	timeout   time.Duration
}

// NewGuard wraps inner.
func NewGuard(inner batchEmbedder, dimension int, timeout time.Duration) *Guard {
	return &Guard{inner: inner, dimension: dimension, timeout: timeout}
}

// Dimension returns the vector size.
func (g *Guard) Dimension() int { return g.dimension }

// Embed embeds one text.
func (g *Guard) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := g.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedMany embeds texts, sending only the non-blank ones to the backend.
func (g *Guard) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		pending []string
		slots   []int
	)
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = make([]float32, g.dimension)
			continue
		}
		pending = append(pending, t)
		slots = append(slots, i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	vecs, err := g.inner.EmbedBatch(callCtx, pending)
	if err != nil {
		if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, context.DeadlineExceeded)
		}
		return nil, err
	}
	if len(vecs) != len(pending) {
		return nil, fmt.Errorf("embedding backend returned %d vectors for %d inputs", len(vecs), len(pending))
	}
	for j, v := range vecs {
		if len(v) != g.dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(v), g.dimension)
		}
		out[slots[j]] = v
	}
	return out, nil
}
