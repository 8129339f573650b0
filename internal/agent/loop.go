package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/intentgraph/intentgraph/internal/conversation"
	"github.com/intentgraph/intentgraph/internal/llm"
	"github.com/intentgraph/intentgraph/internal/tools"
	"github.com/intentgraph/intentgraph/internal/tracer"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// State of the tool-invocation loop
type State string

const (
	StateAwaitingModel  State = "AWAITING_MODEL"
	StateExecutingTools State = "EXECUTING_TOOLS"
	StateDone           State = "DONE"
)

var ErrStepLimitExceeded = errors.New("step limit exceeded")

// BudgetState is the outcome of asking the budget for one more step
type BudgetState int

const (
	Continuing BudgetState = iota
	Exhausted
)

// Budget bounds the number of oracle calls a loop may make. Max 0 means
// unlimited.
type Budget struct {
	Max  int
	used int
}

// Step consumes one step, or reports Exhausted without consuming
func (b *Budget) Step() BudgetState {
	if b.Max > 0 && b.used >= b.Max {
		return Exhausted
	}
	b.used++
	return Continuing
}

func (b *Budget) Used() int { return b.used }

// LoopResult describes one completed (or exhausted) loop
type LoopResult struct {
	Answer      string   `json:"answer"`
	Steps       int      `json:"steps"`
	Transitions []State  `json:"transitions"`
	ToolsUsed   []string `json:"tools_used"`
}

// ToolLoop drives a handler: it offers the handler's tools to the oracle,
// resolves every requested call and returns to the oracle until it answers
// without calling tools.
type ToolLoop struct {
	oracle   llm.Oracle
	registry *tools.Registry
	parallel bool
}

func NewToolLoop(oracle llm.Oracle, registry *tools.Registry, parallel bool) *ToolLoop {
	return &ToolLoop{oracle: oracle, registry: registry, parallel: parallel}
}

// Run appends to conv in place. On ErrStepLimitExceeded the partial result
// is returned along with the error; conv then ends in tool results with no
// call left unanswered.
func (l *ToolLoop) Run(ctx context.Context, h Handler, conv *conversation.Conversation, budget *Budget) (res *LoopResult, err error) {
	ctx, span := tracer.StartSpan(ctx, "agent.loop",
		attribute.String("handler", h.Name),
		attribute.Int("max_steps", budget.Max),
	)
	defer func() { tracer.End(span, err) }()

	defs, err := l.registry.Definitions(h.Tools...)
	if err != nil {
		return nil, fmt.Errorf("handler %s: %w", h.Name, err)
	}
	allowed := make(map[string]bool, len(h.Tools))
	for _, name := range h.Tools {
		allowed[name] = true
	}

	res = &LoopResult{Transitions: []State{StateAwaitingModel}}
	seq := countCalls(conv)

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if budget.Step() == Exhausted {
			log.Warn().Str("handler", h.Name).Int("steps", res.Steps).Msg("tool loop step budget exhausted")
			return res, fmt.Errorf("%w: %d steps", ErrStepLimitExceeded, budget.Max)
		}

		resp, err := l.oracle.Complete(ctx, llm.Request{
			System:   h.SystemPrompt,
			Messages: conv.ForOracle(),
			Tools:    defs,
		})
		res.Steps++
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, fmt.Errorf("oracle call: %w", ctxErr)
			}
			if !errors.Is(err, llm.ErrOracleUnavailable) {
				err = fmt.Errorf("%w: %w", llm.ErrOracleUnavailable, err)
			}
			return res, err
		}

		calls := make([]conversation.ToolCall, len(resp.ToolCalls))
		for i, tc := range resp.ToolCalls {
			seq++
			if tc.ID == "" {
				tc.ID = fmt.Sprintf("call_%d", seq)
			}
			if tc.Arguments == nil {
				tc.Arguments = map[string]any{}
			}
			calls[i] = tc
		}
		conv.Append(conversation.Assistant(resp.Text, calls...))

		log.Debug().
			Str("handler", h.Name).
			Int("step", res.Steps).
			Str("stop_reason", resp.StopReason).
			Int("tool_calls", len(calls)).
			Msg("agent iteration")

		if len(calls) == 0 {
			res.Answer = resp.Text
			res.Transitions = append(res.Transitions, StateDone)
			return res, nil
		}

		res.Transitions = append(res.Transitions, StateExecutingTools)
		results := l.execute(ctx, allowed, calls)
		for i, c := range calls {
			conv.Append(conversation.ToolResult(c, results[i]))
			res.ToolsUsed = append(res.ToolsUsed, c.Name)
		}
		res.Transitions = append(res.Transitions, StateAwaitingModel)
	}
}

// execute resolves every call and returns the result texts in call order.
// Failures become error text; nothing here aborts the loop.
func (l *ToolLoop) execute(ctx context.Context, allowed map[string]bool, calls []conversation.ToolCall) []string {
	results := make([]string, len(calls))
	if !l.parallel || len(calls) == 1 {
		for i, c := range calls {
			results[i] = l.invoke(ctx, allowed, c)
		}
		return results
	}

	var g errgroup.Group
	for i, c := range calls {
		g.Go(func() error {
			results[i] = l.invoke(ctx, allowed, c)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (l *ToolLoop) invoke(ctx context.Context, allowed map[string]bool, c conversation.ToolCall) string {
	ctx, span := tracer.StartSpan(ctx, "tool.invoke",
		attribute.String("tool", c.Name),
		attribute.String("call_id", c.ID),
	)

	var (
		out string
		err error
	)
	if !allowed[c.Name] {
		// not advertised to this handler, treat like an unregistered name
		err = fmt.Errorf("%w: %s", tools.ErrUnknownTool, c.Name)
	} else {
		out, err = l.registry.Invoke(ctx, c.Name, c.Arguments)
	}
	tracer.End(span, err)

	if err != nil {
		log.Warn().Err(err).Str("tool", c.Name).Str("call_id", c.ID).Msg("tool execution error")
	}
	return tools.ResultText(out, err)
}

func countCalls(conv *conversation.Conversation) int {
	n := 0
	for _, m := range conv.Messages() {
		n += len(m.ToolCalls)
	}
	return n
}
