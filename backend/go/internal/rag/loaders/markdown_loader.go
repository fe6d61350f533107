package loaders

import (
	"context"
	"os"
	"regexp"

	"minerva/backend/go/internal/rag/schema"
)

// MarkdownLoader implements the Loader interface for reading Markdown (.md) files.
type MarkdownLoader struct{}

// NewMarkdownLoader creates a new MarkdownLoader.
func NewMarkdownLoader() *MarkdownLoader {
	return &MarkdownLoader{}
}

// imageRegex matches Markdown image syntax (e.g., ![alt text](path/to/image.jpg)).
var imageRegex = regexp.MustCompile(`!\[(.*?)\]\((.*?)\)`)

// Load reads a Markdown file. Images are replaced by their alt text, which is
// the only part of them worth embedding.
func (l *MarkdownLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := imageRegex.ReplaceAllString(decodeText(content), "$1")
	return []*schema.Document{newDocument(path, text)}, nil
}

var _ Loader = (*MarkdownLoader)(nil)
