package api

import (
	"net/http"
	"time"

	"minerva/backend/go/internal/models"
	"minerva/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger 为每个请求记录一条结构化日志。
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithRequest(models.RequestInfo{
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			RemoteAddr: c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			Status:     c.Writer.Status(),
			LatencyMS:  time.Since(start).Milliseconds(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Warn("request failed")
		default:
			entry.Info("request handled")
		}
	}
}

// SetupRouter 配置和返回一个 Gin 引擎实例。
func SetupRouter(h *Handler, log *logger.Logger) *gin.Engine {
	if log == nil {
		log = logger.Discard()
	}
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))

	r.GET("/healthz", h.Health)

	apiV1 := r.Group("/api/v1")
	{
		conversations := apiV1.Group("/conversations")
		{
			conversations.POST("", h.CreateConversation)
			conversations.GET("", h.ListConversations)
			conversations.GET("/:id/messages", h.GetMessages)
		}

		apiV1.POST("/chat", h.Chat)

		documents := apiV1.Group("/documents")
		{
			documents.POST("", h.IndexDocument)
			documents.GET("", h.ListDocuments)
			documents.GET("/search", h.SearchDocuments)
			documents.DELETE("/:id", h.DeleteDocument)
		}

		facts := apiV1.Group("/facts")
		{
			facts.GET("", h.ListFacts)
			facts.GET("/recall", h.RecallFacts)
			facts.DELETE("/:id", h.DeleteFact)
			facts.DELETE("", h.DeleteAllFacts)
		}
	}
	return r
}
