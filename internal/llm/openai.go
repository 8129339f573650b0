package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/intentgraph/intentgraph/internal/conversation"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/rs/zerolog/log"
)

const (
	DefaultOpenAIModel   = "qwen3-coder-plus"
	DefaultOpenAIBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
)

// OpenAIOracle talks to any OpenAI-compatible Chat Completions endpoint
// (DashScope, SiliconFlow, OpenAI itself).
type OpenAIOracle struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAIOracle creates an oracle for apiKey. Empty model and baseURL fall
// back to the DashScope defaults.
func NewOpenAIOracle(apiKey, model, baseURL string, temperature float64, maxTokens int) *OpenAIOracle {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)
	return &OpenAIOracle{
		client:      &client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (o *OpenAIOracle) Name() string { return "openai:" + o.model }

func (o *OpenAIOracle) Complete(ctx context.Context, req Request) (*Response, error) {
	msgs, err := openAIMessages(req)
	if err != nil {
		return nil, err
	}
	params := openai.ChatCompletionNewParams{
		Model:       o.model,
		Messages:    msgs,
		Temperature: openai.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.maxTokens))
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: param.NewOpt(t.Description),
				Parameters:  openai.FunctionParameters(t.SchemaMap()),
			},
		})
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, unavailable(o.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, unavailable(o.Name(), errors.New("no choices"))
	}

	choice := resp.Choices[0]
	out := &Response{
		Text:       choice.Message.Content,
		StopReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				log.Warn().Err(err).Str("tool", tc.Function.Name).Msg("failed to parse tool arguments")
				args = map[string]any{}
			}
		}
		out.ToolCalls = append(out.ToolCalls, conversation.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	log.Debug().
		Str("oracle", o.Name()).
		Str("finish_reason", out.StopReason).
		Str("text_preview", preview(out.Text, 80)).
		Int("tool_calls", len(out.ToolCalls)).
		Msg("completion")
	return out, nil
}

func openAIMessages(req Request) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case conversation.RoleSystem:
			if m.IsAnnotation() {
				continue
			}
			out = append(out, openai.SystemMessage(m.Content))
		case conversation.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case conversation.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			am := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				am.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: param.NewOpt(m.Content),
				}
			}
			for _, tc := range m.ToolCalls {
				args, err := json.Marshal(tc.Arguments)
				if err != nil {
					return nil, fmt.Errorf("encode arguments of %s: %w", tc.Name, err)
				}
				am.ToolCalls = append(am.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &am})
		case conversation.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			return nil, fmt.Errorf("unexpected message role: %s", m.Role)
		}
	}
	return out, nil
}
