package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/intentgraph/intentgraph/internal/conversation"
	"github.com/intentgraph/intentgraph/internal/llm"
	"github.com/intentgraph/intentgraph/internal/tools"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOracle struct {
	calls int
	fn    func(llm.Request) (*llm.Response, error)
}

func (s *stubOracle) Name() string { return "stub" }

func (s *stubOracle) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.calls++
	return s.fn(req)
}

// --- Circuit Breaker ---

func TestBreakerPassesThrough(t *testing.T) {
	inner := &stubOracle{fn: func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: "ok"}, nil
	}}
	b := llm.NewBreakerOracle(inner, llm.BreakerConfig{})

	resp, err := b.Complete(context.Background(), llm.Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, "stub", b.Name())
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	inner := &stubOracle{fn: func(llm.Request) (*llm.Response, error) {
		return nil, errors.New("connection refused")
	}}
	b := llm.NewBreakerOracle(inner, llm.BreakerConfig{MaxFailures: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := b.Complete(context.Background(), llm.Request{})
		require.Error(t, err)
		assert.ErrorIs(t, err, llm.ErrOracleUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Complete(context.Background(), llm.Request{})
	assert.ErrorIs(t, err, llm.ErrOracleUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls, "open circuit must not reach the provider")
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	inner := &stubOracle{fn: func(llm.Request) (*llm.Response, error) {
		return nil, context.Canceled
	}}
	b := llm.NewBreakerOracle(inner, llm.BreakerConfig{MaxFailures: 1})

	for i := 0; i < 3; i++ {
		_, err := b.Complete(context.Background(), llm.Request{})
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

// --- OpenAI-compatible oracle ---

const toolCallCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "qwen3-coder-plus",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": "",
      "tool_calls": [{
        "id": "call_abc",
        "type": "function",
        "function": {"name": "calculate", "arguments": "{\"expression\":\"123 + 456\"}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestOpenAIOracleToolCall(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, toolCallCompletion)
	}))
	defer srv.Close()

	o := llm.NewOpenAIOracle("sk-test", "", srv.URL, 0.7, 0)
	conv := conversation.New(
		conversation.User("123 + 456 = ?"),
		conversation.Annotation("math"),
	)
	resp, err := o.Complete(context.Background(), llm.Request{
		System:   "你是一个数学计算助手，可以帮助用户进行数学计算。",
		Messages: conv.ForOracle(),
		Tools:    []tools.Tool{tools.CalculateTool()},
	})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_abc", resp.ToolCalls[0].ID)
	assert.Equal(t, "calculate", resp.ToolCalls[0].Name)
	assert.Equal(t, "123 + 456", resp.ToolCalls[0].Arguments["expression"])
	assert.Equal(t, "tool_calls", resp.StopReason)

	assert.Equal(t, "qwen3-coder-plus", got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2, "annotation must not reach the oracle")
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
	toolDefs := got["tools"].([]any)
	require.Len(t, toolDefs, 1)
	fn := toolDefs[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "calculate", fn["name"])
}

func TestOpenAIOracleReplaysToolTurns(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"x","object":"chat.completion","created":0,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"579"}}]}`)
	}))
	defer srv.Close()

	call := conversation.ToolCall{ID: "call_1", Name: "calculate", Arguments: map[string]any{"expression": "123 + 456"}}
	msgs := []conversation.Message{
		conversation.User("123 + 456 = ?"),
		conversation.Assistant("", call),
		conversation.ToolResult(call, "计算结果：123 + 456 = 579"),
	}
	resp, err := llm.NewOpenAIOracle("k", "m", srv.URL, 0, 0).Complete(context.Background(), llm.Request{Messages: msgs})
	require.NoError(t, err)
	assert.Equal(t, "579", resp.Text)

	sent := got["messages"].([]any)
	require.Len(t, sent, 3)
	assistant := sent[1].(map[string]any)
	calls := assistant["tool_calls"].([]any)
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].(map[string]any)["id"])
	tool := sent[2].(map[string]any)
	assert.Equal(t, "tool", tool["role"])
	assert.Equal(t, "call_1", tool["tool_call_id"])
}

func TestOpenAIOracleUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	_, err := llm.NewOpenAIOracle("k", "m", srv.URL, 0, 0).Complete(context.Background(), llm.Request{
		Messages: []conversation.Message{conversation.User("hi")},
	})
	assert.ErrorIs(t, err, llm.ErrOracleUnavailable)
}
