package models

import "time"

// PromptVersion is one stored revision of a prompt template.
// Only one version per (AgentType, PromptName) is active at a time.
type PromptVersion struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AgentType   string    `gorm:"size:64;not null;index:idx_prompt_key" json:"agent_type"`
	PromptName  string    `gorm:"size:64;not null;index:idx_prompt_key" json:"prompt_name"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	Version     int       `gorm:"not null" json:"version"`
	Active      bool      `gorm:"index" json:"active"`
	Description string    `gorm:"size:512" json:"description,omitempty"`
	CreatedBy   string    `gorm:"size:64" json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
