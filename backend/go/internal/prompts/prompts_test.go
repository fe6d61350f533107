package prompts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"minerva/backend/go/internal/config"
	"minerva/backend/go/internal/database/sqldb"
	"minerva/backend/go/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsCoverRequired(t *testing.T) {
	s, err := NewFileStore("")
	require.NoError(t, err)
	require.NoError(t, Require(context.Background(), s, Required))
}

func TestRenderLeavesJSONBracesAlone(t *testing.T) {
	content, err := Get(context.Background(), mustFileStore(t), MemoryExtraction)
	require.NoError(t, err)

	out := Render(content, map[string]string{"conversation": "Usuario: hola\nMinerva: hola\n\n"})
	assert.Contains(t, out, "Usuario: hola")
	assert.NotContains(t, out, "{conversation}")
	assert.Contains(t, out, `{"facts": []}`)
}

func TestRenderMultiple(t *testing.T) {
	out := Render("Q={question} C={context} X={other}", map[string]string{
		"question": "¿qué?",
		"context":  "texto",
	})
	assert.Equal(t, "Q=¿qué? C=texto X={other}", out)
}

func TestFileStoreOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
prompts:
  - agentType: conversational
    name: system_prompt
    content: Sos Minerva.
  - agentType: conversational
    name: extra
    content: otro
`), 0o600))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	got, ok, err := s.GetActivePrompt(context.Background(), "conversational", "system_prompt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Sos Minerva.", got)

	_, ok, err = s.GetActivePrompt(context.Background(), "router", "classification_prompt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRequireReportsMissing(t *testing.T) {
	err := Require(context.Background(), mustFileStore(t), []Key{{"nope", "missing"}})
	require.ErrorIs(t, err, ErrPromptNotFound)
	assert.Contains(t, err.Error(), "nope/missing")
}

func TestGormStoreVersioning(t *testing.T) {
	ctx := context.Background()
	db, err := sqldb.OpenMemory()
	require.NoError(t, err)
	s, err := NewGormStore(db)
	require.NoError(t, err)

	_, ok, err := s.GetActivePrompt(ctx, "web", "system_prompt")
	require.NoError(t, err)
	assert.False(t, ok)

	v1, err := s.CreateVersion(ctx, "web", "system_prompt", "uno", "", "test", true)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, "Version 1", v1.Description)

	v2, err := s.CreateVersion(ctx, "web", "system_prompt", "dos", "", "test", true)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	got, ok, err := s.GetActivePrompt(ctx, "web", "system_prompt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dos", got)

	require.NoError(t, s.Activate(ctx, v1.ID))
	got, _, err = s.GetActivePrompt(ctx, "web", "system_prompt")
	require.NoError(t, err)
	assert.Equal(t, "uno", got)

	hist, err := s.History(ctx, "web", "system_prompt", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 2, hist[0].Version)
	assert.False(t, hist[0].Active)
	assert.True(t, hist[1].Active)

	require.ErrorIs(t, s.Activate(ctx, 999), ErrPromptNotFound)
}

func TestGormStoreSeedKeepsEdits(t *testing.T) {
	ctx := context.Background()
	db, err := sqldb.OpenMemory()
	require.NoError(t, err)
	s, err := NewGormStore(db)
	require.NoError(t, err)

	_, err = s.CreateVersion(ctx, "conversational", "system_prompt", "editado", "", "user", true)
	require.NoError(t, err)

	defaults, err := Defaults()
	require.NoError(t, err)
	n, err := s.Seed(ctx, defaults)
	require.NoError(t, err)
	assert.Equal(t, len(defaults)-1, n)

	got, _, err := s.GetActivePrompt(ctx, "conversational", "system_prompt")
	require.NoError(t, err)
	assert.Equal(t, "editado", got)
	require.NoError(t, Require(ctx, s, Required))

	n, err = s.Seed(ctx, defaults)
	require.NoError(t, err)
	assert.Zero(t, n)

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, len(defaults))
}

func TestNewRejectsDatabaseWithoutConnection(t *testing.T) {
	_, err := New(context.Background(), config.PromptsConfig{Source: "database"}, nil, logger.Discard())
	require.ErrorIs(t, err, config.ErrInvalid)
}

func mustFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore("")
	require.NoError(t, err)
	return s
}
