package models

// Intent is the label produced by the classifier.
type Intent string

const (
	IntentPersonal      Intent = "personal"
	IntentSourceRequest Intent = "source_request"
	IntentWebSearch     Intent = "web_search"
	IntentKnowledge     Intent = "knowledge"
	IntentConversation  Intent = "conversation"
)

// AgentType names the handler that produced an answer.
type AgentType string

const (
	AgentConversational AgentType = "conversational"
	AgentKnowledge      AgentType = "knowledge"
	AgentWeb            AgentType = "web"
	AgentSourceRequest  AgentType = "source_request"
	AgentPersonal       AgentType = "personal"
)

// Confidence is the coarse answer confidence reported to callers.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Source is a citation attached to an answer.
type Source struct {
	Title      string  `json:"title"`
	URL        string  `json:"url,omitempty"`
	Filename   string  `json:"filename,omitempty"`
	Snippet    string  `json:"snippet,omitempty"`
	Score      float32 `json:"score,omitempty"`
	ChunkIndex *int    `json:"chunk_index,omitempty"`
}

// RouteResult is the outcome of one routed turn.
type RouteResult struct {
	Answer         string     `json:"answer"`
	AgentUsed      AgentType  `json:"agent_used"`
	Confidence     Confidence `json:"confidence"`
	Sources        []Source   `json:"sources"`
	Intent         Intent     `json:"intent"`
	Degraded       bool       `json:"degraded,omitempty"`
	ConversationID string     `json:"conversation_id"`
}

// CompletionRequest is a single text generation call.
type CompletionRequest struct {
	Prompt      string
	System      string
	Temperature float32
	MaxTokens   int
}

// SearchResult is one ranked web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
	Date    string `json:"date,omitempty"`
}
