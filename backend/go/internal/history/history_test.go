package history

import (
	"context"
	"strings"
	"testing"
	"time"

	"minerva/backend/go/internal/database/sqldb"
	"minerva/backend/go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	db, err := sqldb.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqldb.Close(db) })
	gs, err := NewGormStore(db)
	require.NoError(t, err)
	return map[string]Store{"memory": NewMemoryStore(), "gorm": gs}
}

func TestStoreContract(t *testing.T) {
	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := s.CreateConversation(ctx, "")
			require.NoError(t, err)
			require.NotEmpty(t, id)

			base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
			for i, text := range []string{"uno", "dos", "tres", "cuatro"} {
				role := models.RoleUser
				if i%2 == 1 {
					role = models.RoleAssistant
				}
				msg := &models.Message{Role: role, Content: text, Timestamp: base.Add(time.Duration(i) * time.Second)}
				require.NoError(t, s.AppendMessage(ctx, id, msg))
			}

			last2, err := s.GetMessages(ctx, id, 2)
			require.NoError(t, err)
			require.Len(t, last2, 2)
			assert.Equal(t, "tres", last2[0].Content)
			assert.Equal(t, "cuatro", last2[1].Content)

			all, err := s.GetMessages(ctx, id, 0)
			require.NoError(t, err)
			assert.Len(t, all, 4)

			none, err := s.LastWithSources(ctx, id)
			require.NoError(t, err)
			assert.Nil(t, none)

			require.NoError(t, s.AppendMessage(ctx, id, &models.Message{
				Role:      models.RoleAssistant,
				Content:   "con fuentes",
				AgentType: models.AgentWeb,
				Metadata: &models.MessageMetadata{
					Sources:    []models.Source{{Title: "Diario", URL: "https://example.com"}},
					Confidence: models.ConfidenceHigh,
				},
			}))
			require.NoError(t, s.AppendMessage(ctx, id, &models.Message{Role: models.RoleAssistant, Content: "sin fuentes"}))

			withSources, err := s.LastWithSources(ctx, id)
			require.NoError(t, err)
			require.NotNil(t, withSources)
			assert.Equal(t, "con fuentes", withSources.Content)
			assert.Equal(t, "https://example.com", withSources.Metadata.Sources[0].URL)
			assert.Equal(t, models.AgentWeb, withSources.AgentType)

			convs, err := s.ListConversations(ctx)
			require.NoError(t, err)
			require.Len(t, convs, 1)
			assert.Equal(t, id, convs[0].ID)
		})
	}
}

func TestAppendToUnknownConversation(t *testing.T) {
	for name, s := range stores(t) {
		err := s.AppendMessage(context.Background(), "nope", &models.Message{Role: models.RoleUser, Content: "x"})
		assert.ErrorIs(t, err, ErrConversationNotFound, name)
	}
}

func TestConversationExists(t *testing.T) {
	for name, s := range stores(t) {
		ctx := context.Background()
		id, err := s.CreateConversation(ctx, "")
		require.NoError(t, err, name)

		ok, err := s.ConversationExists(ctx, id)
		require.NoError(t, err, name)
		assert.True(t, ok, name)

		ok, err = s.ConversationExists(ctx, "nope")
		require.NoError(t, err, name)
		assert.False(t, ok, name)
	}
}

func TestTitleFrom(t *testing.T) {
	assert.Equal(t, "hola que tal", TitleFrom("  hola   que\ntal "))
	long := TitleFrom(strings.Repeat("á", 70))
	assert.Equal(t, 61, len([]rune(long)))
}
