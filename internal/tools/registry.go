package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/rs/zerolog/log"
)

type entry struct {
	tool     Tool
	resolved *jsonschema.Resolved
}

// Registry keeps the mapping between tool names and implementations.
// It is filled at start-up and read-only afterwards, so one instance can be
// shared by concurrent runs.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]entry
	approver Approver
	gated    map[string]bool
}

type RegistryOption func(*Registry)

// WithApprover routes gated tools through a.
// Tools named in require are gated in addition to those with RequiresApproval.
func WithApprover(a Approver, require ...string) RegistryOption {
	return func(r *Registry) {
		r.approver = a
		for _, name := range require {
			r.gated[name] = true
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools: make(map[string]entry),
		gated: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts a tool when its name is not in use
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidTool)
	}
	if tool.Execute == nil {
		return fmt.Errorf("%w: %s has no Execute func", ErrInvalidTool, tool.Name)
	}

	var resolved *jsonschema.Resolved
	if tool.InputSchema != nil {
		rs, err := tool.InputSchema.Resolve(nil)
		if err != nil {
			return fmt.Errorf("%w: %s schema: %v", ErrInvalidTool, tool.Name, err)
		}
		resolved = rs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name)
	}
	r.tools[tool.Name] = entry{tool: tool, resolved: resolved}
	return nil
}

// MustRegister panics on registration errors; meant for static wiring
func (r *Registry) MustRegister(tools ...Tool) *Registry {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return e.tool, nil
}

// Names lists the registered tool names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the named tools in the given order
func (r *Registry) Definitions(names ...string) ([]Tool, error) {
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		t, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Invoke runs the named tool. Every failure of the tool itself, including
// schema violations, rejected approvals and panics, comes back as a
// *ToolExecutionError.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	approver := r.approver
	gated := r.gated[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if args == nil {
		args = map[string]any{}
	}

	if e.resolved != nil {
		if err := e.resolved.Validate(args); err != nil {
			return "", &ToolExecutionError{Tool: name, Err: fmt.Errorf("invalid arguments: %w", err)}
		}
	}

	if e.tool.RequiresApproval || gated {
		if err := review(ctx, approver, name, args); err != nil {
			return "", &ToolExecutionError{Tool: name, Err: err}
		}
	}

	out, err := execute(ctx, e.tool, args)
	if err != nil {
		return "", &ToolExecutionError{Tool: name, Err: err}
	}
	return out, nil
}

func execute(ctx context.Context, t Tool, args map[string]any) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("tool", t.Name).Msg("tool panic recovered")
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return t.Execute(ctx, args)
}
