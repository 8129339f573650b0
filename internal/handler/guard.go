package handler

import (
	"fmt"
	"strings"

	"github.com/intentgraph/intentgraph/internal/conversation"
	"github.com/intentgraph/intentgraph/internal/security"
)

// Guard runs the checks every user-supplied prompt must pass before an
// oracle sees it. A nil PII detector disables PII checks.
type Guard struct {
	validator *security.PromptValidator
	pii       *security.PIIDetector
	audit     *security.AuditLogger
}

func NewGuard(validator *security.PromptValidator, pii *security.PIIDetector, audit *security.AuditLogger) *Guard {
	return &Guard{validator: validator, pii: pii, audit: audit}
}

// Check returns a client-facing reason when the prompt is refused
func (g *Guard) Check(prompt, apiKey string) (string, bool) {
	if g == nil {
		return "", true
	}
	if g.pii != nil {
		if found, kw := g.pii.Detect(prompt); found {
			reason := fmt.Sprintf("PII detected in prompt: %s", kw)
			g.audit.LogRejected(prompt, apiKey, reason)
			return reason, false
		}
	}
	if g.validator != nil {
		if vr := g.validator.Validate(prompt); !vr.Valid {
			reason := "prompt validation failed: " + vr.Message
			g.audit.LogRejected(prompt, apiKey, reason)
			return reason, false
		}
	}
	return "", true
}

// CheckHistory applies the same checks to the user turns of
// client-supplied history. Blank turns are skipped.
func (g *Guard) CheckHistory(history []conversation.Message, apiKey string) (string, bool) {
	if g == nil {
		return "", true
	}
	var turns []string
	for _, m := range history {
		if m.Role == conversation.RoleUser && strings.TrimSpace(m.Content) != "" {
			turns = append(turns, m.Content)
		}
	}
	if len(turns) == 0 {
		return "", true
	}

	if g.pii != nil {
		if found, kw := g.pii.DetectMessages(turns...); found {
			reason := fmt.Sprintf("PII detected in history: %s", kw)
			g.audit.LogRejected(strings.Join(turns, "\n"), apiKey, reason)
			return reason, false
		}
	}
	if g.validator != nil {
		for i, turn := range turns {
			if vr := g.validator.Validate(turn); !vr.Valid {
				reason := fmt.Sprintf("history validation failed (user turn %d): %s", i+1, vr.Message)
				g.audit.LogRejected(turn, apiKey, reason)
				return reason, false
			}
		}
	}
	return "", true
}
