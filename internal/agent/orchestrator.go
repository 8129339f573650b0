package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/intentgraph/intentgraph/internal/conversation"
	"github.com/intentgraph/intentgraph/internal/llm"
	"github.com/intentgraph/intentgraph/internal/tools"
	"github.com/intentgraph/intentgraph/internal/tracer"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// Outcome is the terminal status of a run
type Outcome string

const (
	OutcomeDone              Outcome = "done"
	OutcomeStepLimitExceeded Outcome = "step_limit_exceeded"
)

// Result is everything one run produced. Conversation is the full transcript
// including the intent annotation and every tool-role message.
type Result struct {
	RunID          string                     `json:"run_id"`
	Answer         string                     `json:"answer"`
	Intent         Intent                     `json:"intent"`
	Classification Classification             `json:"classification"`
	Handler        string                     `json:"handler"`
	Outcome        Outcome                    `json:"outcome"`
	Steps          int                        `json:"steps"`
	ToolsUsed      []string                   `json:"tools_used"`
	Transitions    []State                    `json:"transitions"`
	Duration       time.Duration              `json:"duration"`
	Conversation   *conversation.Conversation `json:"conversation"`
}

// Options are fixed at construction
type Options struct {
	// MaxSteps bounds oracle calls per run; 0 disables the bound
	MaxSteps      int
	ParallelTools bool
}

type RunOption func(*runOptions)

type runOptions struct {
	maxSteps int
}

// WithMaxSteps overrides the step budget for a single run
func WithMaxSteps(n int) RunOption {
	return func(o *runOptions) { o.maxSteps = n }
}

// Orchestrator wires classifier → dispatch → tool loop. It holds no
// per-run state, so one instance serves concurrent runs.
type Orchestrator struct {
	classifier Classifier
	table      *DispatchTable
	loop       *ToolLoop
	maxSteps   int
}

// NewOrchestrator checks that every handler's tools are registered
func NewOrchestrator(classifier Classifier, table *DispatchTable, registry *tools.Registry, oracle llm.Oracle, opts Options) (*Orchestrator, error) {
	for _, h := range table.Handlers() {
		if _, err := registry.Definitions(h.Tools...); err != nil {
			return nil, fmt.Errorf("handler %s: %w", h.Name, err)
		}
	}
	return &Orchestrator{
		classifier: classifier,
		table:      table,
		loop:       NewToolLoop(oracle, registry, opts.ParallelTools),
		maxSteps:   opts.MaxSteps,
	}, nil
}

// Run serves one user turn. history is never modified; the returned
// Conversation is a fresh copy extended with this turn.
//
// On ErrStepLimitExceeded the Result is returned alongside the error with
// Outcome set to OutcomeStepLimitExceeded.
func (o *Orchestrator) Run(ctx context.Context, userMessage string, history *conversation.Conversation, opts ...RunOption) (res *Result, err error) {
	ro := runOptions{maxSteps: o.maxSteps}
	for _, opt := range opts {
		opt(&ro)
	}

	start := time.Now()
	runID := uuid.NewString()
	ctx, span := tracer.StartSpan(ctx, "agent.run", attribute.String("run_id", runID))
	defer func() { tracer.End(span, err) }()

	conv := history.Clone()
	conv.Append(conversation.User(userMessage))

	cl, err := o.classify(ctx, userMessage)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("intent", string(cl.Intent)), attribute.Bool("fallback", cl.Fallback))
	conv.Append(conversation.Annotation(string(cl.Intent)))

	h, err := o.table.Route(cl.Intent)
	if err != nil {
		return nil, err
	}

	budget := &Budget{Max: ro.maxSteps}
	lr, loopErr := o.loop.Run(ctx, h, conv, budget)

	res = &Result{
		RunID:          runID,
		Intent:         cl.Intent,
		Classification: cl,
		Handler:        h.Name,
		Outcome:        OutcomeDone,
		Conversation:   conv,
		Duration:       time.Since(start),
	}
	if lr != nil {
		res.Answer = lr.Answer
		res.Steps = lr.Steps
		res.ToolsUsed = lr.ToolsUsed
		res.Transitions = lr.Transitions
	}

	switch {
	case loopErr == nil:
	case errors.Is(loopErr, ErrStepLimitExceeded):
		res.Outcome = OutcomeStepLimitExceeded
		return res, loopErr
	default:
		return nil, loopErr
	}

	log.Info().
		Str("run_id", runID).
		Str("intent", string(cl.Intent)).
		Bool("fallback", cl.Fallback).
		Int("steps", res.Steps).
		Strs("tools_used", res.ToolsUsed).
		Dur("duration", res.Duration).
		Msg("run completed")
	return res, nil
}

func (o *Orchestrator) classify(ctx context.Context, text string) (cl Classification, err error) {
	ctx, span := tracer.StartSpan(ctx, "agent.classify")
	defer func() { tracer.End(span, err) }()
	return o.classifier.Classify(ctx, text)
}

// Handlers exposes the dispatch table for introspection
func (o *Orchestrator) Handlers() []Handler {
	return o.table.Handlers()
}

// Mermaid renders the routing graph: classify fans out to one node per
// handler, handlers with tools loop through their tool node.
func (o *Orchestrator) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")
	b.WriteString("\t__start__([start]) --> classify\n")
	for _, h := range o.table.Handlers() {
		fmt.Fprintf(&b, "\tclassify -.->|%s| %s\n", h.Intent, h.Name)
	}
	for _, h := range o.table.Handlers() {
		if len(h.Tools) == 0 {
			fmt.Fprintf(&b, "\t%s --> __end__([end])\n", h.Name)
			continue
		}
		node := string(h.Intent) + "_tool"
		fmt.Fprintf(&b, "\t%s -.->|use_tool| %s[%s]\n", h.Name, node, strings.Join(h.Tools, ", "))
		fmt.Fprintf(&b, "\t%s --> %s\n", node, h.Name)
		fmt.Fprintf(&b, "\t%s -.->|end| __end__([end])\n", h.Name)
	}
	return b.String()
}
