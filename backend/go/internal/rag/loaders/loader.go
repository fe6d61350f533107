// Package loaders extracts plain text from the file formats the document
// engine accepts.
package loaders

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"minerva/backend/go/internal/rag/schema"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnsupported is returned for files no loader accepts.
var ErrUnsupported = errors.New("unsupported file type")

// Loader reads a file and returns the text it contains.
type Loader interface {
	Load(ctx context.Context, path string) ([]*schema.Document, error)
}

// Registry maps file extensions to loaders.
type Registry struct {
	byExt  map[string]Loader
	byMIME map[string]string
}

// NewRegistry creates a registry with every built-in loader registered.
func NewRegistry() *Registry {
	r := &Registry{byExt: map[string]Loader{}, byMIME: map[string]string{}}
	r.Register(NewTxtLoader(), []string{".txt", ".text", ".log", ".csv"}, "text/plain", "text/csv")
	r.Register(NewMarkdownLoader(), []string{".md", ".markdown"}, "text/markdown")
	r.Register(NewPdfLoader(), []string{".pdf"}, "application/pdf")
	r.Register(NewDocxLoader(), []string{".docx"}, "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	r.Register(NewXlsxLoader(), []string{".xlsx"}, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	r.Register(NewHTMLLoader(), []string{".html", ".htm"}, "text/html")
	return r
}

// Register adds a loader for the given extensions. mimeTypes are used when a
// file's extension is missing or unknown.
func (r *Registry) Register(l Loader, exts []string, mimeTypes ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = l
	}
	if len(exts) == 0 {
		return
	}
	for _, m := range mimeTypes {
		r.byMIME[m] = strings.ToLower(exts[0])
	}
}

// Extensions lists the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether a file with this name has a loader by extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ForFile picks the loader for path. The extension decides; content sniffing
// is the fallback for files without a known extension. It also returns the
// canonical file type, the extension without the dot.
func (r *Registry) ForFile(path string) (Loader, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if l, ok := r.byExt[ext]; ok {
		return l, strings.TrimPrefix(ext, "."), nil
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("detect file type: %w", err)
	}
	for m := mtype; m != nil; m = m.Parent() {
		if canonical, ok := r.byMIME[m.String()]; ok {
			return r.byExt[canonical], strings.TrimPrefix(canonical, "."), nil
		}
		base := strings.SplitN(m.String(), ";", 2)[0]
		if canonical, ok := r.byMIME[base]; ok {
			return r.byExt[canonical], strings.TrimPrefix(canonical, "."), nil
		}
	}
	if ext == "" {
		ext = mtype.Extension()
	}
	return nil, "", fmt.Errorf("%w: %s (%s)", ErrUnsupported, ext, mtype.String())
}

func newDocument(path, text string) *schema.Document {
	return &schema.Document{
		Text: text,
		Metadata: map[string]interface{}{
			schema.MetadataKeyFileName: filepath.Base(path),
		},
	}
}
