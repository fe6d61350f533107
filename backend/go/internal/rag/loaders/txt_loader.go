package loaders

import (
	"context"
	"os"
	"unicode/utf8"

	"minerva/backend/go/internal/rag/schema"
)

// TxtLoader implements the Loader interface for reading plain text files.
type TxtLoader struct{}

// NewTxtLoader creates a new TxtLoader.
func NewTxtLoader() *TxtLoader {
	return &TxtLoader{}
}

// Load reads a text file as a single Document. Content that is not valid
// UTF-8 is decoded as Latin-1.
func (l *TxtLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []*schema.Document{newDocument(path, decodeText(content))}, nil
}

func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

var _ Loader = (*TxtLoader)(nil)
