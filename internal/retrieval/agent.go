package retrieval

import (
	"context"
	"errors"

	"github.com/intentgraph/intentgraph/internal/agent"
	"github.com/intentgraph/intentgraph/internal/conversation"
	"github.com/intentgraph/intentgraph/internal/llm"
	"github.com/intentgraph/intentgraph/internal/tools"
)

var knowledgeHandler = agent.Handler{
	Name:         "knowledge_handler",
	Intent:       agent.IntentChat,
	SystemPrompt: "你可以使用检索工具获得参考资料。然后进行精简的回答。",
	Tools:        []string{"retrieve_context"},
}

// Answer is the knowledge agent's reply to one question
type Answer struct {
	Answer       string                     `json:"answer"`
	Outcome      agent.Outcome              `json:"outcome"`
	Steps        int                        `json:"steps"`
	ToolsUsed    []string                   `json:"tools_used"`
	Conversation *conversation.Conversation `json:"conversation"`
}

// KnowledgeAgent answers questions from the knowledge base. Each call gets
// its own registry holding a retrieve_context tool bound to the caller's
// permission.
type KnowledgeAgent struct {
	oracle    llm.Oracle
	retriever *Retriever
	maxSteps  int
}

func NewKnowledgeAgent(oracle llm.Oracle, retriever *Retriever, maxSteps int) *KnowledgeAgent {
	return &KnowledgeAgent{oracle: oracle, retriever: retriever, maxSteps: maxSteps}
}

// Ask returns the partial Answer together with agent.ErrStepLimitExceeded
// when the budget runs out.
func (a *KnowledgeAgent) Ask(ctx context.Context, question, permission string) (*Answer, error) {
	registry := tools.NewRegistry()
	if err := registry.Register(a.retriever.Tool(permission)); err != nil {
		return nil, err
	}
	loop := agent.NewToolLoop(a.oracle, registry, false)
	conv := conversation.New(conversation.User(question))

	lr, err := loop.Run(ctx, knowledgeHandler, conv, &agent.Budget{Max: a.maxSteps})
	if err != nil && !errors.Is(err, agent.ErrStepLimitExceeded) {
		return nil, err
	}

	ans := &Answer{Outcome: agent.OutcomeDone, Conversation: conv}
	if lr != nil {
		ans.Answer = lr.Answer
		ans.Steps = lr.Steps
		ans.ToolsUsed = lr.ToolsUsed
	}
	if err != nil {
		ans.Outcome = agent.OutcomeStepLimitExceeded
		return ans, err
	}
	return ans, nil
}
