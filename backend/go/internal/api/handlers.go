// Package api exposes chat, documents and facts over HTTP/JSON.
package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"minerva/backend/go/internal/history"
	"minerva/backend/go/internal/models"
	"minerva/backend/go/internal/rag/pipeline"
	"minerva/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Chat answers one turn.
type Chat interface {
	Route(ctx context.Context, conversationID, message string) *models.RouteResult
}

// Documents is the document engine as seen by the API.
type Documents interface {
	Index(ctx context.Context, filePath, collection string) pipeline.IndexResult
	Search(ctx context.Context, query, collection string, limit int, threshold float32) ([]pipeline.SearchResult, error)
	DeleteDocument(ctx context.Context, documentID string) error
	ListDocuments(ctx context.Context, collection string) ([]models.Document, error)
}

// Facts is the fact store as seen by the API.
type Facts interface {
	List(ctx context.Context) ([]models.Fact, error)
	Recall(ctx context.Context, query string, limit int) []models.Fact
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

// Check 是 /healthz 报告的一项后端检查。
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Options 控制上传目录、默认检索参数和健康检查。
type Options struct {
	UploadDir       string
	SearchLimit     int
	SearchThreshold float32
	RecallLimit     int
	HistoryLimit    int
	Checks          []Check
	CheckTimeout    time.Duration
}

// Handler 封装了所有 API endpoint 的处理函数。
type Handler struct {
	chat    Chat
	history history.Store
	docs    Documents
	facts   Facts
	opts    Options
	log     *logger.Logger
}

// NewHandler 创建一个新的 Handler 实例。docs 和 facts 可以为 nil，对应的接口返回 503。
func NewHandler(chat Chat, hs history.Store, docs Documents, facts Facts, opts Options, log *logger.Logger) *Handler {
	if opts.UploadDir == "" {
		opts.UploadDir = filepath.Join(os.TempDir(), "minerva-uploads")
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 5
	}
	if opts.RecallLimit <= 0 {
		opts.RecallLimit = 5
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 100
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 3 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{chat: chat, history: hs, docs: docs, facts: facts, opts: opts, log: log.WithComponent("api")}
}

func (h *Handler) fail(c *gin.Context, status int, err error, msg string) {
	if status >= http.StatusInternalServerError {
		h.log.WithError(models.NewErrorInfo(err, "api")).WithPayload(map[string]interface{}{"path": c.FullPath()}).Error(msg)
	}
	c.JSON(status, gin.H{"error": msg})
}

// --- Conversations ---

type createConversationRequest struct {
	Title string `json:"title"`
}

// CreateConversation 创建一个新的会话。
func (h *Handler) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	id, err := h.history.CreateConversation(c.Request.Context(), req.Title)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err, "failed to create conversation")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation_id": id})
}

// ListConversations 返回全部会话，最近更新的在前。
func (h *Handler) ListConversations(c *gin.Context) {
	convs, err := h.history.ListConversations(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err, "failed to list conversations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// GetMessages 返回会话最近的消息，按时间顺序排列。
func (h *Handler) GetMessages(c *gin.Context) {
	limit, err := queryInt(c, "limit", h.opts.HistoryLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msgs, err := h.history.GetMessages(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		if errors.Is(err, history.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		h.fail(c, http.StatusInternalServerError, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// --- Chat ---

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message" binding:"required"`
}

// Chat 处理一轮对话。未提供 conversation_id 时会先创建会话。
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message must not be blank"})
		return
	}
	ctx := c.Request.Context()
	if req.ConversationID == "" {
		id, err := h.history.CreateConversation(ctx, history.TitleFrom(req.Message))
		if err != nil {
			h.fail(c, http.StatusInternalServerError, err, "failed to create conversation")
			return
		}
		req.ConversationID = id
	} else {
		ok, err := h.history.ConversationExists(ctx, req.ConversationID)
		if err != nil {
			h.fail(c, http.StatusInternalServerError, err, "failed to load conversation")
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
	}
	c.JSON(http.StatusOK, h.chat.Route(ctx, req.ConversationID, req.Message))
}

// --- Documents ---

type indexPathRequest struct {
	Path       string `json:"path" binding:"required"`
	Collection string `json:"collection"`
}

// IndexDocument 接收 multipart 上传（字段 file）或 JSON 中的本地路径并建立索引。
// 索引失败以 IndexResult 返回，状态码 422。
func (h *Handler) IndexDocument(c *gin.Context) {
	if h.docs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "document engine disabled"})
		return
	}
	var path, collection string
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
			return
		}
		dir := filepath.Join(h.opts.UploadDir, uuid.NewString())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			h.fail(c, http.StatusInternalServerError, err, "failed to store upload")
			return
		}
		path = filepath.Join(dir, filepath.Base(file.Filename))
		if err := c.SaveUploadedFile(file, path); err != nil {
			h.fail(c, http.StatusInternalServerError, err, "failed to store upload")
			return
		}
		collection = c.PostForm("collection")
	} else {
		var req indexPathRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		path, collection = req.Path, req.Collection
	}

	res := h.docs.Index(c.Request.Context(), path, collection)
	if !res.Success {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ListDocuments 返回已索引的文档目录。
func (h *Handler) ListDocuments(c *gin.Context) {
	if h.docs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "document engine disabled"})
		return
	}
	docs, err := h.docs.ListDocuments(c.Request.Context(), c.Query("collection"))
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err, "failed to list documents")
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// SearchDocuments 按语义检索文档片段。
func (h *Handler) SearchDocuments(c *gin.Context) {
	if h.docs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "document engine disabled"})
		return
	}
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	limit, err := queryInt(c, "limit", h.opts.SearchLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	threshold := h.opts.SearchThreshold
	if raw := c.Query("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil || v < 0 || v > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a number in [0,1]"})
			return
		}
		threshold = float32(v)
	}
	results, err := h.docs.Search(c.Request.Context(), query, c.Query("collection"), limit, threshold)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err, "search failed")
		return
	}
	if results == nil {
		results = []pipeline.SearchResult{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// DeleteDocument 从索引中删除一个文档的全部片段。
func (h *Handler) DeleteDocument(c *gin.Context) {
	if h.docs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "document engine disabled"})
		return
	}
	if err := h.docs.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		if pipeline.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		h.fail(c, http.StatusInternalServerError, err, "failed to delete document")
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Facts ---

// ListFacts 返回全部记住的事实。
func (h *Handler) ListFacts(c *gin.Context) {
	if h.facts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "memory disabled"})
		return
	}
	facts, err := h.facts.List(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err, "failed to list facts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"facts": facts})
}

// RecallFacts 返回与查询相关的事实。
func (h *Handler) RecallFacts(c *gin.Context) {
	if h.facts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "memory disabled"})
		return
	}
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	limit, err := queryInt(c, "limit", h.opts.RecallLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	facts := h.facts.Recall(c.Request.Context(), query, limit)
	if facts == nil {
		facts = []models.Fact{}
	}
	c.JSON(http.StatusOK, gin.H{"facts": facts})
}

// DeleteFact 删除一个事实，未知 id 同样成功。
func (h *Handler) DeleteFact(c *gin.Context) {
	if h.facts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "memory disabled"})
		return
	}
	if err := h.facts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, http.StatusInternalServerError, err, "failed to delete fact")
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteAllFacts 清空全部事实。
func (h *Handler) DeleteAllFacts(c *gin.Context) {
	if h.facts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "memory disabled"})
		return
	}
	if err := h.facts.DeleteAll(c.Request.Context()); err != nil {
		h.fail(c, http.StatusInternalServerError, err, "failed to delete facts")
		return
	}
	c.Status(http.StatusNoContent)
}

// Health 依次运行已启用后端的检查。任一失败时返回 503，status 为 degraded。
func (h *Handler) Health(c *gin.Context) {
	if len(h.opts.Checks) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(h.opts.Checks))
	for _, chk := range h.opts.Checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.CheckTimeout)
		err := chk.Run(ctx)
		cancel()
		if err != nil {
			h.log.WithErr(err).WithPayload(map[string]interface{}{"check": chk.Name}).Warn("health check failed")
			results[chk.Name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		results[chk.Name] = "ok"
	}
	c.JSON(code, gin.H{"status": status, "checks": results})
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return v, nil
}
