package loaders

import (
	"context"
	"strings"

	"minerva/backend/go/internal/rag/schema"

	"github.com/xuri/excelize/v2"
)

// XlsxLoader implements the Loader interface for reading Excel (.xlsx) files.
type XlsxLoader struct{}

// NewXlsxLoader creates a new XlsxLoader.
func NewXlsxLoader() *XlsxLoader {
	return &XlsxLoader{}
}

// Load converts each sheet to a Markdown table and returns a Document per sheet.
func (l *XlsxLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var documents []*schema.Document
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil || len(rows) == 0 {
			continue
		}
		doc := newDocument(path, sheetMarkdown(sheetName, rows))
		doc.Metadata[schema.MetadataKeySheet] = sheetName
		documents = append(documents, doc)
	}
	return documents, nil
}

func sheetMarkdown(name string, rows [][]string) string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	var md strings.Builder
	md.WriteString("## " + name + "\n\n")
	for i, row := range rows {
		cells := make([]string, width)
		copy(cells, row)
		md.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		if i == 0 {
			md.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
		}
	}
	return md.String()
}

var _ Loader = (*XlsxLoader)(nil)
