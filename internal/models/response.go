package models

import "github.com/intentgraph/intentgraph/internal/conversation"

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// ChatResponse is returned by POST /api/v1/chat. It is also the body of a
// 422 response when the step budget ran out.
type ChatResponse struct {
	Status      string                 `json:"status"`
	RunID       string                 `json:"run_id"`
	Intent      string                 `json:"intent"`
	RawLabel    string                 `json:"raw_label"`
	Fallback    bool                   `json:"fallback"`
	Handler     string                 `json:"handler"`
	Answer      string                 `json:"answer"`
	Outcome     string                 `json:"outcome"`
	Steps       int                    `json:"steps"`
	ToolsUsed   []string               `json:"tools_used"`
	Transitions []string               `json:"transitions"`
	DurationMs  int64                  `json:"duration_ms"`
	Transcript  []conversation.Message `json:"transcript"`
}

// KnowledgeAnswerResponse is returned by POST /api/v1/knowledge/ask
type KnowledgeAnswerResponse struct {
	Status     string                 `json:"status"`
	Question   string                 `json:"question"`
	Answer     string                 `json:"answer"`
	Outcome    string                 `json:"outcome"`
	Steps      int                    `json:"steps"`
	ToolsUsed  []string               `json:"tools_used"`
	Transcript []conversation.Message `json:"transcript"`
}

// KnowledgeHit is one retrieved chunk
type KnowledgeHit struct {
	Ref     string  `json:"ref"`
	Source  string  `json:"source"`
	ChunkID int     `json:"chunk_id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// KnowledgeSearchResponse is returned by POST /api/v1/knowledge/search
type KnowledgeSearchResponse struct {
	Status string         `json:"status"`
	Query  string         `json:"query"`
	Hits   []KnowledgeHit `json:"hits"`
}
