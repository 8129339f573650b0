// Package tools defines the Tool type, the Registry that owns the tool set
// and the built-in tools the intent handlers are bound to.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool represents a callable function the LLM can invoke
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Execute     func(ctx context.Context, input map[string]any) (string, error)

	// RequiresApproval routes every call through the registry's Approver
	RequiresApproval bool
}

// SchemaMap returns the input schema as a plain JSON object, the shape the
// provider SDKs expect.
func (t Tool) SchemaMap() map[string]any {
	if t.InputSchema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	b, err := json.Marshal(t.InputSchema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// NewTool derives the input schema from Args and decodes the raw arguments
// into it before calling fn.
func NewTool[Args any](name, description string, fn func(ctx context.Context, args Args) (string, error)) (Tool, error) {
	schema, err := jsonschema.For[Args](nil)
	if err != nil {
		return Tool{}, fmt.Errorf("schema for %s: %w", name, err)
	}
	return Tool{
		Name:        name,
		Description: description,
		InputSchema: schema,
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			var args Args
			b, err := json.Marshal(input)
			if err != nil {
				return "", fmt.Errorf("encode arguments: %w", err)
			}
			if err := json.Unmarshal(b, &args); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}
			return fn(ctx, args)
		},
	}, nil
}

// MustNewTool is NewTool for package-level tool constructors with static
// argument types.
func MustNewTool[Args any](name, description string, fn func(ctx context.Context, args Args) (string, error)) Tool {
	t, err := NewTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}
