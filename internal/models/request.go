package models

import (
	"errors"
	"strings"

	"github.com/intentgraph/intentgraph/internal/conversation"
)

const MaxHistoryMessages = 50

// ChatRequest for POST /api/v1/chat
type ChatRequest struct {
	Message  string                 `json:"message"`
	History  []conversation.Message `json:"history,omitempty"`
	MaxSteps *int                   `json:"max_steps,omitempty"`
}

// Validate checks shape only; prompt content is checked by the security layer
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return errors.New("message is required")
	}
	if len(r.History) > MaxHistoryMessages {
		return errors.New("history too long")
	}
	for _, m := range r.History {
		switch m.Role {
		case conversation.RoleUser, conversation.RoleAssistant, conversation.RoleTool, conversation.RoleSystem:
		default:
			return errors.New("history contains an unknown role: " + string(m.Role))
		}
	}
	if r.MaxSteps != nil && *r.MaxSteps < 0 {
		return errors.New("max_steps must be >= 0")
	}
	return nil
}

// KnowledgeAskRequest for POST /api/v1/knowledge/ask
type KnowledgeAskRequest struct {
	Question   string `json:"question"`
	Permission string `json:"permission,omitempty"`
}

// KnowledgeSearchRequest for POST /api/v1/knowledge/search
type KnowledgeSearchRequest struct {
	Query      string `json:"query"`
	Permission string `json:"permission,omitempty"`
	K          int    `json:"k,omitempty"`
}

func (r *KnowledgeSearchRequest) SetDefaults() {
	if r.K <= 0 {
		r.K = 3
	}
	if r.K > 20 {
		r.K = 20
	}
}
