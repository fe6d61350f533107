package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"minerva/backend/go/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStore keeps history in SQLite or MySQL.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore migrates the conversation and message tables.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.Conversation{}, &models.Message{}); err != nil {
		return nil, fmt.Errorf("migrate history tables: %w", err)
	}
	return &GormStore{db: db, now: time.Now}, nil
}

func (s *GormStore) CreateConversation(ctx context.Context, title string) (string, error) {
	now := s.now().UTC()
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle(now)
	}
	conv := models.Conversation{ID: uuid.NewString(), Title: title, IsActive: true}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	return conv.ID, nil
}

func (s *GormStore) ConversationExists(ctx context.Context, conversationID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", conversationID).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("find conversation: %w", err)
	}
	return n > 0, nil
}

func (s *GormStore) AppendMessage(ctx context.Context, conversationID string, msg *models.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", s.now().UTC())
		if res.Error != nil {
			return fmt.Errorf("touch conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConversationNotFound
		}
		prepare(conversationID, msg, s.now())
		msg.ID = 0
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("append message: %w", err)
		}
		return nil
	})
}

func (s *GormStore) GetMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	q := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []models.Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// LastWithSources scans assistant messages newest first. Metadata is a JSON
// column, so the sources check happens in Go.
func (s *GormStore) LastWithSources(ctx context.Context, conversationID string) (*models.Message, error) {
	const page = 20
	for offset := 0; ; offset += page {
		var msgs []models.Message
		err := s.db.WithContext(ctx).
			Where("conversation_id = ? AND role = ?", conversationID, models.RoleAssistant).
			Order("timestamp DESC").Order("id DESC").
			Offset(offset).Limit(page).
			Find(&msgs).Error
		if err != nil {
			return nil, fmt.Errorf("last message with sources: %w", err)
		}
		for i := range msgs {
			if msgs[i].Metadata.HasSources() {
				return &msgs[i], nil
			}
		}
		if len(msgs) < page {
			return nil, nil
		}
	}
}

func (s *GormStore) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}
