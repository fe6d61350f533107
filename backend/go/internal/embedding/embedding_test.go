package embedding

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedderDeterministicAndNormalized(t *testing.T) {
	e := NewHashEmbedder(128)
	a, err := e.Embed(context.Background(), "El usuario vive en Madrid")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "el usuario VIVE en madrid")
	require.NoError(t, err)

	assert.Len(t, a, 128)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, cosine(a, a), 1e-5)
}

func TestHashEmbedderBlankIsZeroVector(t *testing.T) {
	e := NewHashEmbedder(16)
	v, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), v)
}

func TestHashEmbedderSharedTokensAreSimilar(t *testing.T) {
	e := NewHashEmbedder(384)
	ctx := context.Background()
	fact, _ := e.Embed(ctx, "El usuario se llama Marcelo")
	question, _ := e.Embed(ctx, "¿cómo se llama el usuario?")
	unrelated, _ := e.Embed(ctx, "receta de pan casero")

	assert.Greater(t, cosine(fact, question), 0.5)
	assert.Less(t, cosine(fact, unrelated), cosine(fact, question))
}

type countingBackend struct {
	calls int32
	seen  [][]string
	dim   int
	delay time.Duration
	err   error
}

func (c *countingBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&c.calls, 1)
	c.seen = append(c.seen, texts)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, c.dim)
		v[0] = float32(len(texts[i]))
		out[i] = v
	}
	return out, nil
}

func TestGuardSkipsBlankInputs(t *testing.T) {
	be := &countingBackend{dim: 4}
	g := NewGuard(be, 4, time.Second)

	out, err := g.EmbedMany(context.Background(), []string{"", "hola", "  "})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, make([]float32, 4), out[0])
	assert.Equal(t, float32(4), out[1][0])
	assert.Equal(t, make([]float32, 4), out[2])
	assert.Equal(t, [][]string{{"hola"}}, be.seen)

	_, err = g.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&be.calls))
}

func TestGuardRejectsWrongDimension(t *testing.T) {
	g := NewGuard(&countingBackend{dim: 3}, 4, time.Second)
	_, err := g.Embed(context.Background(), "hola")
	assert.Error(t, err)
}

func TestGuardTimeout(t *testing.T) {
	g := NewGuard(&countingBackend{dim: 4, delay: time.Second}, 4, 20*time.Millisecond)
	_, err := g.Embed(context.Background(), "hola")
	require.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuardPropagatesBackendError(t *testing.T) {
	boom := errors.New("boom")
	g := NewGuard(&countingBackend{dim: 4, err: boom}, 4, time.Second)
	_, err := g.Embed(context.Background(), "hola")
	assert.ErrorIs(t, err, boom)
}

func TestCachedAvoidsRepeatedCalls(t *testing.T) {
	be := &countingBackend{dim: 4}
	c, err := NewCached(NewGuard(be, 4, time.Second), CacheOptions{Model: "m", Capacity: 10, TTL: time.Minute})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := c.EmbedMany(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	second, err := c.EmbedMany(ctx, []string{"bb", "ccc"})
	require.NoError(t, err)

	assert.Equal(t, first[1], second[0])
	assert.Equal(t, [][]string{{"a", "bb"}, {"ccc"}}, be.seen)
	assert.Equal(t, 4, c.Dimension())

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(3), st.Misses)
}
