package websearch

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"minerva/backend/go/internal/models"
	mhttp "minerva/backend/go/pkg/http"
	"minerva/backend/go/pkg/logger"
)

// Serper queries the google.serper.dev API.
type Serper struct {
	baseURL    string
	client     *mhttp.Client
	country    string
	language   string
	normalizer *DateNormalizer
	log        *logger.Logger
}

// SerperOption configures a Serper client.
type SerperOption func(*Serper)

// WithLocale sets the gl and hl parameters.
func WithLocale(country, language string) SerperOption {
	return func(s *Serper) {
		s.country = country
		s.language = language
	}
}

// WithNormalizer rewrites relative dates in queries before sending them.
func WithNormalizer(n *DateNormalizer) SerperOption {
	return func(s *Serper) { s.normalizer = n }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) SerperOption {
	return func(s *Serper) { s.log = log }
}

// NewSerper creates a client. The API key travels as a default header of client.
func NewSerper(baseURL string, client *mhttp.Client, opts ...SerperOption) *Serper {
	s := &Serper{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		country:  "ar",
		language: "es",
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
	GL  string `json:"gl,omitempty"`
	HL  string `json:"hl,omitempty"`
}

type serperItem struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
	Date    string `json:"date"`
}

type serperResponse struct {
	AnswerBox *struct {
		Title   string `json:"title"`
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"answerBox"`
	KnowledgeGraph *struct {
		Title             string `json:"title"`
		Description       string `json:"description"`
		DescriptionSource string `json:"descriptionSource"`
		DescriptionLink   string `json:"descriptionLink"`
	} `json:"knowledgeGraph"`
	Organic []serperItem `json:"organic"`
	News    []serperItem `json:"news"`
}

// Search runs a general web search. Direct answers from the answer box and
// the knowledge graph are placed before the organic results.
func (s *Serper) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	resp, err := s.post(ctx, "/search", query, limit)
	if err != nil {
		return nil, err
	}

	var out []models.SearchResult
	if ab := resp.AnswerBox; ab != nil {
		if text := firstNonEmpty(ab.Answer, ab.Snippet); text != "" {
			out = append(out, models.SearchResult{Title: firstNonEmpty(ab.Title, "Respuesta directa"), Snippet: text, Link: ab.Link})
		}
	}
	if kg := resp.KnowledgeGraph; kg != nil && kg.Description != "" {
		out = append(out, models.SearchResult{Title: firstNonEmpty(kg.Title, kg.DescriptionSource), Snippet: kg.Description, Link: kg.DescriptionLink})
	}
	for _, it := range resp.Organic {
		out = append(out, toResult(it))
	}
	return truncate(out, limit), nil
}

// SearchNews queries the news vertical. Results carry the publication date.
func (s *Serper) SearchNews(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	resp, err := s.post(ctx, "/news", query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.SearchResult, 0, len(resp.News))
	for _, it := range resp.News {
		out = append(out, toResult(it))
	}
	return truncate(out, limit), nil
}

func (s *Serper) post(ctx context.Context, path, query string, limit int) (*serperResponse, error) {
	q := strings.TrimSpace(query)
	if s.normalizer != nil {
		if n := s.normalizer.Normalize(q); n != q {
			s.log.WithPayload(map[string]interface{}{"query": q, "normalized": n}).Debug("query dates normalized")
			q = n
		}
	}
	req := serperRequest{Q: q, Num: limit, GL: s.country, HL: s.language}
	var resp serperResponse
	if err := s.client.DoJSON(ctx, http.MethodPost, s.baseURL+path, req, &resp); err != nil {
		return nil, fmt.Errorf("serper %s: %w", path, err)
	}
	return &resp, nil
}

func toResult(it serperItem) models.SearchResult {
	return models.SearchResult{
		Title:   firstNonEmpty(it.Title, "Sin título"),
		Snippet: firstNonEmpty(it.Snippet, "Sin descripción"),
		Link:    it.Link,
		Date:    it.Date,
	}
}

func truncate(rs []models.SearchResult, limit int) []models.SearchResult {
	if limit > 0 && len(rs) > limit {
		return rs[:limit]
	}
	return rs
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
