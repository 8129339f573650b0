package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/intentgraph/intentgraph/internal/conversation"
	"github.com/rs/zerolog/log"
)

// AnthropicOracle wraps the Anthropic Messages API or a compatible provider (e.g. Z.ai)
type AnthropicOracle struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

func NewAnthropicOracle(apiKey, model, baseURL string, temperature float64, maxTokens int) *AnthropicOracle {
	if model == "" {
		model = "claude-sonnet-4-6"
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicOracle{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (a *AnthropicOracle) Name() string { return "anthropic:" + a.model }

func (a *AnthropicOracle) Complete(ctx context.Context, req Request) (*Response, error) {
	system, messages := anthropicMessages(req)

	params := anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(a.model)),
		MaxTokens:   anthropic.F(int64(a.maxTokens)),
		Messages:    anthropic.F(messages),
		Temperature: anthropic.F(a.temperature),
	}
	if system != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(system),
		})
	}
	if len(req.Tools) > 0 {
		toolParams := make([]anthropic.ToolUnionUnionParam, len(req.Tools))
		for i, t := range req.Tools {
			schema := t.SchemaMap()
			input := map[string]any{
				"type":       "object",
				"properties": schema["properties"],
			}
			if required, ok := schema["required"]; ok {
				input["required"] = required
			}
			toolParams[i] = anthropic.ToolParam{
				Name:        anthropic.String(t.Name),
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.F[interface{}](input),
			}
		}
		params.Tools = anthropic.F(toolParams)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, unavailable(a.Name(), err)
	}

	out := &Response{StopReason: string(resp.StopReason)}
	for _, block := range resp.Content {
		switch b := block.AsUnion().(type) {
		case anthropic.TextBlock:
			out.Text += b.Text
		case anthropic.ToolUseBlock:
			var args map[string]any
			if err := json.Unmarshal(b.Input, &args); err != nil {
				log.Warn().Err(err).Str("tool", b.Name).Msg("failed to parse tool input")
				args = map[string]any{}
			}
			out.ToolCalls = append(out.ToolCalls, conversation.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			})
		}
	}

	log.Debug().
		Str("oracle", a.Name()).
		Str("stop_reason", out.StopReason).
		Str("text_preview", preview(out.Text, 80)).
		Int("tool_calls", len(out.ToolCalls)).
		Msg("completion")
	return out, nil
}

// anthropicMessages converts the transcript. The Messages API wants strictly
// alternating turns, so consecutive user-side blocks (tool results and user
// text) are merged into one user message. System messages found in the
// transcript are folded into the system prompt.
func anthropicMessages(req Request) (string, []anthropic.MessageParam) {
	systems := []string{}
	if req.System != "" {
		systems = append(systems, req.System)
	}

	var (
		out     []anthropic.MessageParam
		pending []anthropic.ContentBlockParamUnion
	)
	flush := func() {
		if len(pending) > 0 {
			out = append(out, anthropic.NewUserMessage(pending...))
			pending = nil
		}
	}

	for _, m := range req.Messages {
		switch m.Role {
		case conversation.RoleSystem:
			if !m.IsAnnotation() {
				systems = append(systems, m.Content)
			}
		case conversation.RoleUser:
			pending = append(pending, anthropic.NewTextBlock(m.Content))
		case conversation.RoleTool:
			isErr := strings.HasPrefix(m.Content, "error: ")
			pending = append(pending, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, isErr))
		case conversation.RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlockParam(tc.ID, tc.Name, args))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		}
	}
	flush()
	return strings.Join(systems, "\n\n"), out
}
