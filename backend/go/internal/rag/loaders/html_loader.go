package loaders

import (
	"context"
	"os"

	"minerva/backend/go/internal/rag/schema"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// HTMLLoader implements the Loader interface for saved web pages. The page is
// converted to Markdown so headings and lists survive as text.
type HTMLLoader struct{}

// NewHTMLLoader creates a new HTMLLoader.
func NewHTMLLoader() *HTMLLoader {
	return &HTMLLoader{}
}

// Load converts an HTML file to Markdown and returns it as a single Document.
func (l *HTMLLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	markdown, err := htmltomarkdown.ConvertString(decodeText(content))
	if err != nil {
		return nil, err
	}
	return []*schema.Document{newDocument(path, markdown)}, nil
}

var _ Loader = (*HTMLLoader)(nil)
