package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// PayloadTypeChunk tags document chunk records stored in the vector index.
const PayloadTypeChunk = "chunk"

// Document is the catalog entry of an indexed file.
type Document struct {
	ID           string                      `gorm:"primaryKey;size:36" json:"id"`
	Filename     string                      `gorm:"size:255;not null;index" json:"filename"`
	OriginalPath string                      `gorm:"size:1024" json:"original_path"`
	FileType     string                      `gorm:"size:32" json:"file_type"`
	MimeType     string                      `gorm:"size:128" json:"mime_type"`
	FileSize     int64                       `json:"file_size"`
	FileModTime  time.Time                   `json:"file_mod_time"`
	ChunkCount   int                         `json:"chunk_count"`
	Collection   string                      `gorm:"size:128;index" json:"collection"`
	PointIDs     datatypes.JSONSlice[string] `json:"point_ids"`
	ArchiveKey   string                      `gorm:"size:512" json:"archive_key,omitempty"`
	IsIndexed    bool                        `json:"is_indexed"`
	ProcessedAt  time.Time                   `json:"processed_at"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// ChunkPayload is the canonical payload of a document chunk point.
type ChunkPayload struct {
	Type       string    `json:"type"`
	Text       string    `json:"text"`
	Filename   string    `json:"filename"`
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	CharStart  int       `json:"char_start"`
	CharEnd    int       `json:"char_end"`
	Collection string    `json:"collection"`
	IndexedAt  time.Time `json:"indexed_at"`
	FileType   string    `json:"file_type,omitempty"`
	Page       int       `json:"page,omitempty"`
}

// NewChunkPayload validates the required chunk fields.
func NewChunkPayload(p ChunkPayload) (ChunkPayload, error) {
	switch {
	case strings.TrimSpace(p.Text) == "":
		return ChunkPayload{}, errors.New("chunk payload: text is required")
	case p.Filename == "":
		return ChunkPayload{}, errors.New("chunk payload: filename is required")
	case p.DocumentID == "":
		return ChunkPayload{}, errors.New("chunk payload: document_id is required")
	case p.ChunkIndex < 0:
		return ChunkPayload{}, errors.New("chunk payload: chunk_index must be >= 0")
	case p.CharEnd < p.CharStart:
		return ChunkPayload{}, errors.New("chunk payload: char_end before char_start")
	case p.IndexedAt.IsZero():
		return ChunkPayload{}, errors.New("chunk payload: indexed_at is required")
	}
	p.Type = PayloadTypeChunk
	p.IndexedAt = p.IndexedAt.UTC()
	return p, nil
}

// Encode marshals the payload for storage.
func (p ChunkPayload) Encode() (json.RawMessage, error) {
	return json.Marshal(p)
}

// DecodeChunkPayload parses a stored payload and checks its type tag.
func DecodeChunkPayload(raw json.RawMessage) (ChunkPayload, error) {
	var p ChunkPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ChunkPayload{}, fmt.Errorf("decode chunk payload: %w", err)
	}
	if p.Type != PayloadTypeChunk {
		return ChunkPayload{}, fmt.Errorf("decode chunk payload: unexpected type %q", p.Type)
	}
	return p, nil
}
