// Package llm adapts chat-completion providers to the Oracle interface the
// agent loop talks to.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/intentgraph/intentgraph/internal/conversation"
	"github.com/intentgraph/intentgraph/internal/tools"
)

// ErrOracleUnavailable marks any failure to obtain a completion: transport
// errors, provider errors and an open circuit.
var ErrOracleUnavailable = errors.New("oracle unavailable")

// Request is one completion call. Messages must already be filtered for the
// oracle (see conversation.ForOracle).
type Request struct {
	System   string
	Messages []conversation.Message
	Tools    []tools.Tool
}

// Response is what the oracle produced for one step
type Response struct {
	Text       string
	ToolCalls  []conversation.ToolCall
	StopReason string
}

// Oracle produces the next assistant step for a conversation
type Oracle interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Name() string
}

func unavailable(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrOracleUnavailable, provider, err)
}

// preview trims s for debug logging
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
