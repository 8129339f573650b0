package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/intentgraph/intentgraph/internal/conversation"
	"github.com/intentgraph/intentgraph/internal/llm"
	"github.com/rs/zerolog/log"
)

// Classification is the outcome of classifying one user message.
// Fallback is set when the raw output was not a known label and the
// default intent was used instead.
type Classification struct {
	Intent   Intent `json:"intent"`
	Raw      string `json:"raw"`
	Fallback bool   `json:"fallback"`
}

// Classifier maps a user message to exactly one intent
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

const classifierSystemPrompt = `你是一个意图分类助手。请根据用户的问题，判断其意图类型。

可选的意图类型包括：
1. weather - 天气相关的问题（如查询天气、温度等）
2. math - 数学计算相关的问题（如计算、数学运算等）
3. chat - 通用聊天对话（其他所有问题）

请只返回一个单词：weather、math 或 chat，不要返回其他内容。`

const classifierUserPrompt = `用户问题：%s

请判断意图类型（只返回一个单词：weather、math 或 chat）：`

// LLMClassifier asks the oracle for a single label word
type LLMClassifier struct {
	oracle llm.Oracle
}

func NewLLMClassifier(oracle llm.Oracle) *LLMClassifier {
	return &LLMClassifier{oracle: oracle}
}

// Classify never fails on bad output; only an oracle failure is an error
func (c *LLMClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	resp, err := c.oracle.Complete(ctx, llm.Request{
		System:   classifierSystemPrompt,
		Messages: []conversation.Message{conversation.User(fmt.Sprintf(classifierUserPrompt, text))},
	})
	if err != nil {
		// a spent run deadline is the caller's timeout, not an oracle outage
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Classification{}, fmt.Errorf("classify: %w", ctxErr)
		}
		if !errors.Is(err, llm.ErrOracleUnavailable) {
			err = fmt.Errorf("%w: classify: %w", llm.ErrOracleUnavailable, err)
		}
		return Classification{}, err
	}

	cl := Normalize(resp.Text)
	if cl.Fallback {
		log.Info().Str("raw", preview(cl.Raw, 40)).Str("intent", string(cl.Intent)).Msg("classifier output not recognised, falling back")
	}
	return cl, nil
}

// label decorations oracles like to add around a one-word answer
const (
	labelQuotes   = "\"'`“”‘’「」『』"
	labelTrailing = ".。!！"
)

// Normalize turns raw classifier output into a Classification. Anything
// outside the known labels becomes DefaultIntent with Fallback set.
func Normalize(raw string) Classification {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimRight(s, labelTrailing)
	s = strings.Trim(s, labelQuotes)
	s = strings.TrimSpace(strings.TrimRight(s, labelTrailing))

	if i, ok := ParseIntent(s); ok {
		return Classification{Intent: i, Raw: raw}
	}
	return Classification{Intent: DefaultIntent, Raw: raw, Fallback: true}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
