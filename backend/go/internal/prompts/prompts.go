// Package prompts resolves the active prompt templates used by the router,
// the document engine and fact extraction.
package prompts

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"minerva/backend/go/internal/config"
	"minerva/backend/go/internal/models"
	"minerva/backend/go/pkg/logger"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// ErrPromptNotFound is returned when a required template has no active version.
var ErrPromptNotFound = errors.New("prompt not found")

//go:embed defaults.yaml
var defaultsYAML []byte

// Key addresses one prompt template.
type Key struct {
	AgentType string
	Name      string
}

func (k Key) String() string { return k.AgentType + "/" + k.Name }

var (
	ConversationalSystem = Key{"conversational", "system_prompt"}
	KnowledgeSystem      = Key{"knowledge", "system_prompt"}
	KnowledgeRAG         = Key{"knowledge", "rag_prompt"}
	RouterClassification = Key{"router", "classification_prompt"}
	WebSystem            = Key{"web", "system_prompt"}
	WebSynthesis         = Key{"web", "synthesis_prompt"}
	MemoryExtraction     = Key{"memory", "extraction_prompt"}
)

// Required lists every template the assistant needs to answer a turn.
var Required = []Key{
	ConversationalSystem,
	KnowledgeSystem,
	KnowledgeRAG,
	RouterClassification,
	WebSystem,
	WebSynthesis,
	MemoryExtraction,
}

// Store returns the active content of a template.
// A missing template is reported as ok=false, not as an error.
type Store interface {
	GetActivePrompt(ctx context.Context, agentType, promptName string) (string, bool, error)
}

// Lister is implemented by stores that can enumerate their active templates.
type Lister interface {
	ListActive(ctx context.Context) ([]models.PromptVersion, error)
}

// Template is one entry of a prompts YAML file.
type Template struct {
	AgentType   string `yaml:"agentType"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Content     string `yaml:"content"`
}

type templateFile struct {
	Prompts []Template `yaml:"prompts"`
}

// Defaults returns the built-in templates.
func Defaults() ([]Template, error) {
	return parseTemplates(defaultsYAML)
}

func parseTemplates(data []byte) ([]Template, error) {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	for i, t := range f.Prompts {
		if t.AgentType == "" || t.Name == "" {
			return nil, fmt.Errorf("parse prompts: entry %d needs agentType and name", i)
		}
	}
	return f.Prompts, nil
}

// Get fetches a template and turns a missing one into ErrPromptNotFound.
func Get(ctx context.Context, s Store, k Key) (string, error) {
	content, ok, err := s.GetActivePrompt(ctx, k.AgentType, k.Name)
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", k, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPromptNotFound, k)
	}
	return content, nil
}

// Require checks that every key resolves. It is called once at startup.
func Require(ctx context.Context, s Store, keys []Key) error {
	var missing []string
	for _, k := range keys {
		_, ok, err := s.GetActivePrompt(ctx, k.AgentType, k.Name)
		if err != nil {
			return fmt.Errorf("load prompt %s: %w", k, err)
		}
		if !ok {
			missing = append(missing, k.String())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrPromptNotFound, strings.Join(missing, ", "))
	}
	return nil
}

// Render substitutes {name} placeholders. Unknown placeholders and other
// braces are left untouched so JSON examples inside templates survive.
func Render(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// New 根据配置创建提示词存储。
// database 模式下会迁移表结构，并在 Seed 为 true 时写入缺失的默认提示词。
func New(ctx context.Context, cfg config.PromptsConfig, db *gorm.DB, log *logger.Logger) (Store, error) {
	switch cfg.Source {
	case "file":
		s, err := NewFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		log.WithPayload(map[string]interface{}{"path": cfg.Path, "templates": len(s.templates)}).Info("提示词从文件加载")
		return s, nil
	case "database":
		if db == nil {
			return nil, fmt.Errorf("%w: prompts source database requires a sql connection", config.ErrInvalid)
		}
		s, err := NewGormStore(db)
		if err != nil {
			return nil, err
		}
		if cfg.Seed {
			defaults, err := Defaults()
			if err != nil {
				return nil, err
			}
			n, err := s.Seed(ctx, defaults)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				log.WithPayload(map[string]interface{}{"seeded": n}).Info("已写入默认提示词")
			}
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown prompts source %q", config.ErrInvalid, cfg.Source)
	}
}
