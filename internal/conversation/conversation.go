package conversation

import (
	"encoding/json"
	"slices"
)

// Conversation is an append-only, ordered list of messages owned by one run.
// It is not safe for concurrent mutation.
type Conversation struct {
	messages []Message
}

// New returns a conversation seeded with a copy of msgs
func New(msgs ...Message) *Conversation {
	return &Conversation{messages: slices.Clone(msgs)}
}

func (c *Conversation) Append(msgs ...Message) {
	c.messages = append(c.messages, msgs...)
}

// Messages returns a copy of the transcript
func (c *Conversation) Messages() []Message {
	if c == nil {
		return nil
	}
	return slices.Clone(c.messages)
}

func (c *Conversation) Len() int {
	if c == nil {
		return 0
	}
	return len(c.messages)
}

func (c *Conversation) Last() (Message, bool) {
	if c == nil || len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Clone returns an independent copy; a nil receiver yields an empty conversation
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return New()
	}
	return New(c.messages...)
}

// ForOracle returns the messages an oracle should see, without annotations
func (c *Conversation) ForOracle() []Message {
	out := make([]Message, 0, c.Len())
	for _, m := range c.Messages() {
		if m.IsAnnotation() {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Pending returns the tool calls of the last assistant message that have no
// tool-role answer after it.
func (c *Conversation) Pending() []ToolCall {
	if c == nil {
		return nil
	}
	idx := -1
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleAssistant {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	answered := make(map[string]bool)
	for _, m := range c.messages[idx+1:] {
		if m.Role == RoleTool {
			answered[m.ToolCallID] = true
		}
	}
	var pending []ToolCall
	for _, call := range c.messages[idx].ToolCalls {
		if !answered[call.ID] {
			pending = append(pending, call)
		}
	}
	return pending
}

func (c *Conversation) MarshalJSON() ([]byte, error) {
	msgs := c.Messages()
	if msgs == nil {
		msgs = []Message{}
	}
	return json.Marshal(msgs)
}

func (c *Conversation) UnmarshalJSON(b []byte) error {
	var msgs []Message
	if err := json.Unmarshal(b, &msgs); err != nil {
		return err
	}
	c.messages = msgs
	return nil
}
