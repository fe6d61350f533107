package prompts

import (
	"context"
	"fmt"
	"os"
	"sort"

	"minerva/backend/go/internal/models"
)

// FileStore serves templates from the built-in defaults, optionally
// overridden by a YAML file with the same layout.
type FileStore struct {
	templates map[Key]Template
}

// NewFileStore loads the defaults and overlays path when it is set.
func NewFileStore(path string) (*FileStore, error) {
	defaults, err := Defaults()
	if err != nil {
		return nil, err
	}
	s := &FileStore{templates: make(map[Key]Template, len(defaults))}
	for _, t := range defaults {
		s.templates[Key{t.AgentType, t.Name}] = t
	}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file %q: %w", path, err)
	}
	overrides, err := parseTemplates(data)
	if err != nil {
		return nil, err
	}
	for _, t := range overrides {
		s.templates[Key{t.AgentType, t.Name}] = t
	}
	return s, nil
}

func (s *FileStore) GetActivePrompt(_ context.Context, agentType, promptName string) (string, bool, error) {
	t, ok := s.templates[Key{agentType, promptName}]
	if !ok || t.Content == "" {
		return "", false, nil
	}
	return t.Content, true, nil
}

func (s *FileStore) ListActive(context.Context) ([]models.PromptVersion, error) {
	out := make([]models.PromptVersion, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, models.PromptVersion{
			AgentType:   t.AgentType,
			PromptName:  t.Name,
			Content:     t.Content,
			Version:     1,
			Active:      true,
			Description: t.Description,
			CreatedBy:   "file",
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AgentType != out[j].AgentType {
			return out[i].AgentType < out[j].AgentType
		}
		return out[i].PromptName < out[j].PromptName
	})
	return out, nil
}
