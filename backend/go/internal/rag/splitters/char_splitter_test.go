package splitters

import (
	"context"
	"strings"
	"testing"

	"minerva/backend/go/internal/rag/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconstruct(chunks []schema.Chunk) string {
	var sb strings.Builder
	end := 0
	for _, c := range chunks {
		runes := []rune(c.Text)
		sb.WriteString(string(runes[end-c.CharStart:]))
		end = c.CharEnd
	}
	return sb.String()
}

func TestSplitThreeChunksWithOverlap(t *testing.T) {
	text := strings.Repeat("palabra ", 150)
	require.Len(t, text, 1200)

	s, err := NewCharSplitter(500, 50)
	require.NoError(t, err)
	chunks := s.SplitText(text)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Contains(t, text, c.Text)
		assert.LessOrEqual(t, len([]rune(c.Text)), 500)
		assert.Equal(t, string([]rune(text)[c.CharStart:c.CharEnd]), c.Text)
	}
	first := []rune(chunks[0].Text)
	second := []rune(chunks[1].Text)
	assert.Equal(t, string(first[len(first)-50:]), string(second[:50]))
	// The first cut lands right after a space instead of mid-word.
	assert.True(t, strings.HasSuffix(chunks[0].Text, " "))
	assert.Equal(t, text, reconstruct(chunks))
}

func TestSplitIsDeterministicAndLossless(t *testing.T) {
	text := "La reunión es el lunes. ¿Quién trae el informe? Ñandú, pingüino y café: " +
		strings.Repeat("el pingüino camina despacio por la orilla helada. ", 40)
	s, err := NewCharSplitter(120, 20)
	require.NoError(t, err)

	a := s.SplitText(text)
	b := s.SplitText(text)
	require.Equal(t, a, b)
	require.NotEmpty(t, a)
	assert.Equal(t, text, reconstruct(a))
	for i := 1; i < len(a); i++ {
		assert.Greater(t, a[i].CharStart, a[i-1].CharStart)
	}
}

func TestSplitWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("x", 1200)
	s, err := NewCharSplitter(500, 50)
	require.NoError(t, err)
	chunks := s.SplitText(text)
	require.Len(t, chunks, 3)
	assert.Equal(t, 500, chunks[0].CharEnd)
	assert.Equal(t, 450, chunks[1].CharStart)
	assert.Equal(t, 1200, chunks[2].CharEnd)
}

func TestSplitSkipsBlankAndShortInput(t *testing.T) {
	s, err := NewCharSplitter(500, 50)
	require.NoError(t, err)
	assert.Empty(t, s.SplitText(""))
	assert.Empty(t, s.SplitText("   \n\t "))

	chunks := s.SplitText("hola")
	require.Len(t, chunks, 1)
	assert.Equal(t, "hola", chunks[0].Text)
}

func TestSplitNumbersChunksAcrossPages(t *testing.T) {
	s, err := NewCharSplitter(10, 2)
	require.NoError(t, err)
	docs := []*schema.Document{
		{Text: "uno dos tres cuatro", Metadata: map[string]interface{}{schema.MetadataKeyPage: 1}},
		{Text: "cinco seis", Metadata: map[string]interface{}{schema.MetadataKeyPage: 2}},
	}
	chunks, err := s.Split(context.Background(), docs)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 2, chunks[len(chunks)-1].Page)
}

func TestNewCharSplitterRejectsOverlap(t *testing.T) {
	_, err := NewCharSplitter(100, 100)
	assert.Error(t, err)
	_, err = NewCharSplitter(0, 0)
	assert.Error(t, err)
}
