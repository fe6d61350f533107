package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "app:\n  name: test\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Name)
	assert.Equal(t, 500, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 50, cfg.Retrieval.ChunkOverlap)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, "phi3", cfg.LLM.Ollama.Model)
	assert.Equal(t, 1, cfg.Memory.ExtractionInterval)
	assert.InDelta(t, 0.5, cfg.Memory.MinScore, 1e-6)
	assert.Equal(t, "inprocess", cfg.Memory.Queue.Backend)
	assert.Equal(t, "minerva_facts", cfg.VectorStore.Collections.Facts)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoadConfigReadsYAML(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: openai
  openai:
    model: gpt-4o
retrieval:
  chunkSize: 800
  chunkOverlap: 100
vectorStore:
  backend: qdrant
  qdrant:
    url: http://qdrant:6333
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.OpenAI.Model)
	assert.Equal(t, 800, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 100, cfg.Retrieval.ChunkOverlap)
	assert.Equal(t, "http://qdrant:6333", cfg.VectorStore.Qdrant.URL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsOverlapLargerThanChunk(t *testing.T) {
	path := writeConfig(t, "retrieval:\n  chunkSize: 100\n  chunkOverlap: 100\n")
	_, err := LoadConfig(path)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, "vectorStore:\n  backend: faiss\n")
	_, err := LoadConfig(path)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestValidateRejectsKafkaQueueWithoutBrokers(t *testing.T) {
	path := writeConfig(t, "memory:\n  queue:\n    backend: kafka\n")
	_, err := LoadConfig(path)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestApplyEnvOverridesSecrets(t *testing.T) {
	var cfg AppConfig
	env := map[string]string{
		"OPENAI_API_KEY":              "sk-test",
		"SERPER_API_KEY":              "serper",
		"MINERVA_EXTRACTION_INTERVAL": "4",
	}
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "sk-test", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "sk-test", cfg.Embedding.OpenAI.APIKey)
	assert.Equal(t, "serper", cfg.WebSearch.APIKey)
	assert.Equal(t, 4, cfg.Memory.ExtractionInterval)
}
