package prompts

import (
	"context"
	"errors"
	"fmt"

	"minerva/backend/go/internal/models"

	"gorm.io/gorm"
)

// GormStore keeps versioned templates. Exactly one version per key is active.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the prompt_versions table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.PromptVersion{}); err != nil {
		return nil, fmt.Errorf("migrate prompt tables: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) GetActivePrompt(ctx context.Context, agentType, promptName string) (string, bool, error) {
	var v models.PromptVersion
	err := s.db.WithContext(ctx).
		Where("agent_type = ? AND prompt_name = ? AND active = ?", agentType, promptName, true).
		Order("version DESC").
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get active prompt: %w", err)
	}
	return v.Content, true, nil
}

// CreateVersion stores content as the next version of the key and, when
// activate is set, makes it the active one.
func (s *GormStore) CreateVersion(ctx context.Context, agentType, promptName, content, description, createdBy string, activate bool) (*models.PromptVersion, error) {
	if agentType == "" || promptName == "" || content == "" {
		return nil, errors.New("create prompt version: agent type, name and content are required")
	}
	v := &models.PromptVersion{
		AgentType:   agentType,
		PromptName:  promptName,
		Content:     content,
		Description: description,
		CreatedBy:   createdBy,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		if err := tx.Model(&models.PromptVersion{}).
			Where("agent_type = ? AND prompt_name = ?", agentType, promptName).
			Select("COALESCE(MAX(version), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		v.Version = last + 1
		if v.Description == "" {
			v.Description = fmt.Sprintf("Version %d", v.Version)
		}
		if activate {
			if err := deactivate(tx, agentType, promptName); err != nil {
				return err
			}
			v.Active = true
		}
		return tx.Create(v).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create prompt version: %w", err)
	}
	return v, nil
}

// Activate makes version id the only active version of its key.
func (s *GormStore) Activate(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.PromptVersion
		if err := tx.First(&target, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: version %d", ErrPromptNotFound, id)
			}
			return fmt.Errorf("activate prompt: %w", err)
		}
		if err := deactivate(tx, target.AgentType, target.PromptName); err != nil {
			return fmt.Errorf("activate prompt: %w", err)
		}
		if err := tx.Model(&target).Update("active", true).Error; err != nil {
			return fmt.Errorf("activate prompt: %w", err)
		}
		return nil
	})
}

func deactivate(tx *gorm.DB, agentType, promptName string) error {
	return tx.Model(&models.PromptVersion{}).
		Where("agent_type = ? AND prompt_name = ?", agentType, promptName).
		Update("active", false).Error
}

// History returns the newest versions of a key first.
func (s *GormStore) History(ctx context.Context, agentType, promptName string, limit int) ([]models.PromptVersion, error) {
	q := s.db.WithContext(ctx).
		Where("agent_type = ? AND prompt_name = ?", agentType, promptName).
		Order("version DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.PromptVersion
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("prompt history: %w", err)
	}
	return out, nil
}

func (s *GormStore) ListActive(ctx context.Context) ([]models.PromptVersion, error) {
	var out []models.PromptVersion
	if err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("agent_type, prompt_name").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return out, nil
}

// Seed inserts templates whose key has no version yet and reports how many
// were written. Existing keys, including edited ones, are left alone.
func (s *GormStore) Seed(ctx context.Context, templates []Template) (int, error) {
	n := 0
	for _, t := range templates {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.PromptVersion{}).
			Where("agent_type = ? AND prompt_name = ?", t.AgentType, t.Name).
			Count(&count).Error; err != nil {
			return n, fmt.Errorf("seed prompts: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := s.CreateVersion(ctx, t.AgentType, t.Name, t.Content, t.Description, "seed", true); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
