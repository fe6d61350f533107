// Package mcpserver publishes the assistant as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"minerva/backend/go/internal/api"
	"minerva/backend/go/internal/history"
	"minerva/backend/go/pkg/logger"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tools handles all tool requests.
type Tools struct {
	chat    api.Chat
	history history.Store
	docs    api.Documents
	facts   api.Facts
	opts    api.Options
	log     *logger.Logger
}

// NewTools creates the tool handlers. docs and facts may be nil.
func NewTools(chat api.Chat, hs history.Store, docs api.Documents, facts api.Facts, opts api.Options, log *logger.Logger) *Tools {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 5
	}
	if opts.RecallLimit <= 0 {
		opts.RecallLimit = 5
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Tools{chat: chat, history: hs, docs: docs, facts: facts, opts: opts, log: log.WithComponent("mcp")}
}

// NewServer registers every tool on a new MCP server.
func NewServer(t *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer("minerva", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Sends a message to Minerva and returns the routed answer with its sources."),
		mcp.WithString("message", mcp.Required(), mcp.Description("The user message.")),
		mcp.WithString("conversation_id", mcp.Description("Existing conversation; a new one is created when empty.")),
	), t.HandleAsk)

	s.AddTool(mcp.NewTool("recall_facts",
		mcp.WithDescription("Returns remembered facts about the user relevant to a query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to recall.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of facts.")),
	), t.HandleRecallFacts)

	s.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Semantic search over the indexed documents."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query.")),
		mcp.WithString("collection", mcp.Description("Collection to search.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of chunks.")),
	), t.HandleSearchDocuments)

	s.AddTool(mcp.NewTool("index_document",
		mcp.WithDescription("Indexes a local file so it can be searched."),
		mcp.WithString("file_path", mcp.Required(), mcp.Description("Absolute path of the file.")),
		mcp.WithString("collection", mcp.Description("Target collection.")),
	), t.HandleIndexDocument)

	return s
}

// ServeStdio blocks serving s on stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func (t *Tools) HandleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := req.RequireString("message")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(message) == "" {
		return mcp.NewToolResultError("message must not be blank"), nil
	}
	convID := req.GetString("conversation_id", "")
	if convID == "" {
		convID, err = t.history.CreateConversation(ctx, "MCP")
		if err != nil {
			t.log.WithErr(err).Error("conversation not created")
			return mcp.NewToolResultError(fmt.Sprintf("failed to create conversation: %v", err)), nil
		}
	}
	return jsonResult(t.chat.Route(ctx, convID, message))
}

func (t *Tools) HandleRecallFacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.facts == nil {
		return mcp.NewToolResultError("memory is disabled"), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return nil, err
	}
	limit := int(req.GetFloat("limit", float64(t.opts.RecallLimit)))
	facts := t.facts.Recall(ctx, query, limit)
	if len(facts) == 0 {
		return mcp.NewToolResultText("No relevant facts."), nil
	}
	return jsonResult(facts)
}

func (t *Tools) HandleSearchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.docs == nil {
		return mcp.NewToolResultError("document engine is disabled"), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return nil, err
	}
	limit := int(req.GetFloat("limit", float64(t.opts.SearchLimit)))
	results, err := t.docs.Search(ctx, query, req.GetString("collection", ""), limit, t.opts.SearchThreshold)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No matching documents."), nil
	}
	return jsonResult(results)
}

func (t *Tools) HandleIndexDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.docs == nil {
		return mcp.NewToolResultError("document engine is disabled"), nil
	}
	path, err := req.RequireString("file_path")
	if err != nil {
		return nil, err
	}
	res := t.docs.Index(ctx, path, req.GetString("collection", ""))
	if !res.Success {
		return mcp.NewToolResultError(fmt.Sprintf("indexing %s failed: %s", res.Filename, res.Error)), nil
	}
	return jsonResult(res)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
