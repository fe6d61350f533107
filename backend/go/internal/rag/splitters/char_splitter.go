package splitters

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"minerva/backend/go/internal/rag/schema"
)

// BoundaryWindow is how far back from the hard cutoff a chunk end may move to
// land on a sentence terminator or whitespace.
const BoundaryWindow = 50

// Splitter cuts documents into chunks.
type Splitter interface {
	Split(ctx context.Context, docs []*schema.Document) ([]schema.Chunk, error)
}

// CharSplitter splits text into chunks of at most ChunkSize runes that overlap
// by ChunkOverlap runes.
type CharSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewCharSplitter creates a new CharSplitter.
func NewCharSplitter(chunkSize, chunkOverlap int) (*CharSplitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	return &CharSplitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}, nil
}

// Split chunks every document in order. Chunk indexes run across all
// documents so they follow reading order.
func (s *CharSplitter) Split(ctx context.Context, docs []*schema.Document) ([]schema.Chunk, error) {
	var chunks []schema.Chunk
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, c := range s.SplitText(doc.Text) {
			c.Index = len(chunks)
			c.Page = doc.Page()
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

// SplitText chunks a single text. Indexes start at 0.
func (s *CharSplitter) SplitText(text string) []schema.Chunk {
	runes := []rune(text)
	n := len(runes)
	var chunks []schema.Chunk
	start := 0
	for start < n {
		end := start + s.ChunkSize
		if end >= n {
			end = n
		} else if cut := lastBoundary(runes, start, end); cut >= 0 {
			end = cut + 1
		}

		piece := string(runes[start:end])
		if strings.TrimSpace(piece) != "" {
			chunks = append(chunks, schema.Chunk{
				Index:     len(chunks),
				Text:      piece,
				CharStart: start,
				CharEnd:   end,
			})
		}
		if end == n {
			break
		}

		next := end - s.ChunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// lastBoundary returns the position of the last terminator or whitespace in
// runes[end-BoundaryWindow:end], never at or before start, or -1.
func lastBoundary(runes []rune, start, end int) int {
	lo := end - BoundaryWindow
	if lo <= start {
		lo = start + 1
	}
	for i := end - 1; i >= lo; i-- {
		if isBoundary(runes[i]) {
			return i
		}
	}
	return -1
}

func isBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '…':
		return true
	}
	return unicode.IsSpace(r)
}

var _ Splitter = (*CharSplitter)(nil)
