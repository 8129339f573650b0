package security

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/intentgraph/intentgraph/internal/conversation"
	"github.com/rs/zerolog/log"
)

// RunRecord is what the audit log keeps of one orchestrator run. Prompt and
// APIKey are hashed before they are written.
type RunRecord struct {
	RunID     string
	APIKey    string
	Prompt    string
	Intent    string
	Fallback  bool
	Handler   string
	Outcome   string
	Steps     int
	ToolsUsed []string
	ToolCalls []conversation.ToolCall
	Duration  time.Duration
	Err       error
}

// AuditLogger logs security-relevant events with hashed identifiers
type AuditLogger struct {
	enabled bool
	masker  *DataMasker
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled, masker: NewDataMasker(nil)}
}

// LogRun records a completed (or failed) run and each tool call it made,
// with sensitive argument values masked.
func (a *AuditLogger) LogRun(r RunRecord) {
	if a == nil || !a.enabled {
		return
	}
	evt := log.Info().
		Str("event", "run_audit").
		Str("run_id", r.RunID).
		Str("prompt_hash", hashStr(r.Prompt)[:16]).
		Str("api_key_hash", hashStr(r.APIKey)[:16]).
		Str("intent", r.Intent).
		Bool("fallback", r.Fallback).
		Str("handler", r.Handler).
		Str("outcome", r.Outcome).
		Int("steps", r.Steps).
		Strs("tools_used", r.ToolsUsed).
		Int64("duration_ms", r.Duration.Milliseconds()).
		Bool("success", r.Err == nil)
	if r.Err != nil {
		evt = evt.Str("error", r.Err.Error())
	}
	evt.Msg("audit")

	for _, call := range r.ToolCalls {
		log.Info().
			Str("event", "tool_audit").
			Str("run_id", r.RunID).
			Str("call_id", call.ID).
			Str("tool", call.Name).
			Interface("arguments", a.masker.MaskArguments(call.Arguments)).
			Msg("audit")
	}
}

// LogRejected records a request refused before classification
func (a *AuditLogger) LogRejected(prompt, apiKey, reason string) {
	if a == nil || !a.enabled {
		return
	}
	log.Warn().
		Str("event", "request_rejected").
		Str("prompt_hash", hashStr(prompt)[:16]).
		Str("api_key_hash", hashStr(apiKey)[:16]).
		Str("reason", reason).
		Msg("audit")
}

// ToolCalls collects every tool call made in a transcript, in order
func ToolCalls(c *conversation.Conversation) []conversation.ToolCall {
	var calls []conversation.ToolCall
	for _, m := range c.Messages() {
		if m.Role == conversation.RoleAssistant {
			calls = append(calls, m.ToolCalls...)
		}
	}
	return calls
}

func hashStr(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
