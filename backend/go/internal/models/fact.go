package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PayloadTypeFact tags fact records stored in the vector index.
const PayloadTypeFact = "fact"

// Fact represents a validated statement about the user.
// The vector index holds the searchable copy; the table row is the catalog
// used for listing and bulk deletion.
type Fact struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	Category       string    `gorm:"size:32;index" json:"category"`
	ConversationID string    `gorm:"size:36" json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Score          float32   `gorm:"-" json:"score,omitempty"`
}

// Exchange is one user turn and the assistant reply, queued for fact extraction.
type Exchange struct {
	UserText       string    `json:"user_text"`
	AssistantText  string    `json:"assistant_text"`
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// ExtractedFact is one candidate returned by the extraction model.
type ExtractedFact struct {
	Category string `json:"category"`
	Fact     string `json:"fact"`
}

// FactPayload is the canonical payload of a fact point.
type FactPayload struct {
	Type           string    `json:"type"`
	Text           string    `json:"text"`
	Category       string    `json:"category"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
}

// NewFactPayload builds a payload and rejects records missing required fields.
func NewFactPayload(f Fact) (FactPayload, error) {
	if strings.TrimSpace(f.Text) == "" {
		return FactPayload{}, errors.New("fact payload: text is required")
	}
	if strings.TrimSpace(f.Category) == "" {
		return FactPayload{}, errors.New("fact payload: category is required")
	}
	if f.CreatedAt.IsZero() {
		return FactPayload{}, errors.New("fact payload: created_at is required")
	}
	updated := f.UpdatedAt
	if updated.IsZero() {
		updated = f.CreatedAt
	}
	return FactPayload{
		Type:           PayloadTypeFact,
		Text:           f.Text,
		Category:       f.Category,
		CreatedAt:      f.CreatedAt.UTC(),
		UpdatedAt:      updated.UTC(),
		ConversationID: f.ConversationID,
	}, nil
}

// Encode marshals the payload for storage.
func (p FactPayload) Encode() (json.RawMessage, error) {
	return json.Marshal(p)
}

// DecodeFactPayload parses a stored payload and checks its type tag.
func DecodeFactPayload(raw json.RawMessage) (FactPayload, error) {
	var p FactPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return FactPayload{}, fmt.Errorf("decode fact payload: %w", err)
	}
	if p.Type != PayloadTypeFact {
		return FactPayload{}, fmt.Errorf("decode fact payload: unexpected type %q", p.Type)
	}
	return p, nil
}

// ToFact converts a stored payload back into a Fact.
func (p FactPayload) ToFact(id string, score float32) Fact {
	return Fact{
		ID:             id,
		Text:           p.Text,
		Category:       p.Category,
		ConversationID: p.ConversationID,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		Score:          score,
	}
}
