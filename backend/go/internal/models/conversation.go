package models

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation is a chat session container.
type Conversation struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Title     string    `gorm:"size:255" json:"title"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageMetadata holds the structured extras attached to a message.
type MessageMetadata struct {
	Sources    []Source   `json:"sources,omitempty"`
	Confidence Confidence `json:"confidence,omitempty"`
	Degraded   bool       `json:"degraded,omitempty"`
	HadContext bool       `json:"had_context,omitempty"`
	Intent     Intent     `json:"intent,omitempty"`
}

// HasSources reports whether the metadata carries any citation.
func (m *MessageMetadata) HasSources() bool {
	return m != nil && len(m.Sources) > 0
}

// Message belongs to exactly one conversation.
type Message struct {
	ID             uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string           `gorm:"size:36;not null;index:idx_conv_ts" json:"conversation_id"`
	Role           Role             `gorm:"size:16;not null" json:"role"`
	Content        string           `gorm:"type:text;not null" json:"content"`
	Timestamp      time.Time        `gorm:"not null;index:idx_conv_ts" json:"timestamp"`
	AgentType      AgentType        `gorm:"size:32" json:"agent_type,omitempty"`
	Model          string           `gorm:"size:128" json:"model,omitempty"`
	Metadata       *MessageMetadata `gorm:"serializer:json" json:"metadata,omitempty"`
}
