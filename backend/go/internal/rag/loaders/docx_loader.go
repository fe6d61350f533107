package loaders

import (
	"context"
	"strings"

	"minerva/backend/go/internal/rag/schema"

	"github.com/unidoc/unioffice/v2/document"
)

// DocxLoader 实现了用于读取 Word (.docx) 文件的 Loader 接口。
type DocxLoader struct{}

// NewDocxLoader 创建一个新的 DocxLoader。
func NewDocxLoader() *DocxLoader {
	return &DocxLoader{}
}

// Load 读取一个 .docx 文件，按段落提取文本，段落之间以空行分隔。
func (l *DocxLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	doc, err := document.Open(path)
	if err != nil {
		return nil, err
	}

	paragraphs := make([]string, 0, len(doc.Paragraphs()))
	for _, p := range doc.Paragraphs() {
		var sb strings.Builder
		for _, r := range p.Runs() {
			sb.WriteString(r.Text())
		}
		paragraphs = append(paragraphs, sb.String())
	}
	return []*schema.Document{newDocument(path, strings.Join(paragraphs, "\n\n"))}, nil
}

var _ Loader = (*DocxLoader)(nil)
