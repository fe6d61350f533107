// Package history persists conversations and their messages.
package history

import (
	"context"
	"errors"
	"strings"
	"time"

	"minerva/backend/go/internal/models"
)

// ErrConversationNotFound is returned when appending to an unknown conversation.
var ErrConversationNotFound = errors.New("history: conversation not found")

// Store persists conversations. Messages of one conversation are ordered by
// timestamp, ties broken by insertion order.
type Store interface {
	CreateConversation(ctx context.Context, title string) (string, error)
	ConversationExists(ctx context.Context, conversationID string) (bool, error)
	AppendMessage(ctx context.Context, conversationID string, msg *models.Message) error
	// GetMessages returns the most recent limit messages in chronological order.
	// limit <= 0 returns the whole conversation.
	GetMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	// LastWithSources returns the latest assistant message carrying sources, or nil.
	LastWithSources(ctx context.Context, conversationID string) (*models.Message, error)
	ListConversations(ctx context.Context) ([]models.Conversation, error)
}

// DefaultTitle names conversations created without a title.
func DefaultTitle(now time.Time) string {
	return "Conversación " + now.Format("2006-01-02 15:04")
}

// TitleFrom derives a conversation title from its first user message.
func TitleFrom(message string) string {
	t := strings.Join(strings.Fields(message), " ")
	if r := []rune(t); len(r) > 60 {
		t = string(r[:60]) + "…"
	}
	return t
}

func prepare(conversationID string, msg *models.Message, now time.Time) {
	msg.ConversationID = conversationID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	msg.Timestamp = msg.Timestamp.UTC()
}
