package loaders

import (
	"context"
	"fmt"
	"strings"

	"minerva/backend/go/internal/rag/schema"

	"github.com/ledongthuc/pdf"
)

// PdfLoader implements the Loader interface for reading PDF files.
type PdfLoader struct{}

// NewPdfLoader creates a new PdfLoader.
func NewPdfLoader() *PdfLoader {
	return &PdfLoader{}
}

// Load extracts the text of each page and returns a Document per page.
// Pages without text are skipped.
func (l *PdfLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var documents []*schema.Document
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		doc := newDocument(path, text)
		doc.Metadata[schema.MetadataKeyPage] = i
		documents = append(documents, doc)
	}
	return documents, nil
}

var _ Loader = (*PdfLoader)(nil)
