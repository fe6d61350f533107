package history

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"minerva/backend/go/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps history in process memory.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message
	nextID        uint
	now           func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
		now:           time.Now,
	}
}

func (s *MemoryStore) CreateConversation(_ context.Context, title string) (string, error) {
	now := s.now().UTC()
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle(now)
	}
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[id] = &models.Conversation{ID: id, Title: title, IsActive: true, CreatedAt: now, UpdatedAt: now}
	return id, nil
}

func (s *MemoryStore) ConversationExists(_ context.Context, conversationID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.conversations[conversationID]
	return ok, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, conversationID string, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	prepare(conversationID, msg, s.now())
	s.nextID++
	msg.ID = s.nextID
	msgs := append(s.messages[conversationID], *msg)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
	s.messages[conversationID] = msgs
	conv.UpdatedAt = msg.Timestamp
	return nil
}

func (s *MemoryStore) GetMessages(_ context.Context, conversationID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) LastWithSources(_ context.Context, conversationID string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleAssistant && msgs[i].Metadata.HasSources() {
			m := msgs[i]
			return &m, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListConversations(_ context.Context) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
