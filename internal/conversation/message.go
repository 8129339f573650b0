// Package conversation holds the message types exchanged between the
// orchestrator, the oracle and the tools during one run.
package conversation

import "fmt"

// Role identifies the author of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a structured request, emitted by the oracle, to run a named tool
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is a single entry of a Conversation.
//
// Tool-role messages carry the ID of the call they resolve in ToolCallID and
// the tool name in Name. System messages with Intent set are routing
// annotations: they are kept in the transcript for auditing but never sent to
// the oracle.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Intent     string     `json:"intent,omitempty"`
}

// IsAnnotation reports whether m is an intent annotation
func (m Message) IsAnnotation() bool {
	return m.Role == RoleSystem && m.Intent != ""
}

func System(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

func User(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

func Assistant(text string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls}
}

// ToolResult builds the tool-role message answering call
func ToolResult(call ToolCall, text string) Message {
	return Message{Role: RoleTool, Content: text, ToolCallID: call.ID, Name: call.Name}
}

// Annotation builds the system-authored message recording a classification
func Annotation(intent string) Message {
	return Message{Role: RoleSystem, Content: fmt.Sprintf("[intent: %s]", intent), Intent: intent}
}
