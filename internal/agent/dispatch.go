package agent

import (
	"fmt"
)

// Handler is the per-intent policy: a system prompt and the tools the oracle
// may call while serving that intent. Handlers carry no state.
type Handler struct {
	Name         string   `json:"name"`
	Intent       Intent   `json:"intent"`
	SystemPrompt string   `json:"system_prompt"`
	Tools        []string `json:"tools"`
}

// UnroutableIntentError is returned for a label that has no handler
type UnroutableIntentError struct {
	Intent Intent
}

func (e *UnroutableIntentError) Error() string {
	return fmt.Sprintf("no handler for intent %q", string(e.Intent))
}

// DispatchTable maps every intent to exactly one handler.
// Read-only after construction.
type DispatchTable struct {
	handlers map[Intent]Handler
	order    []Intent
}

func NewDispatchTable(handlers ...Handler) (*DispatchTable, error) {
	d := &DispatchTable{handlers: make(map[Intent]Handler, len(handlers))}
	for _, h := range handlers {
		if !h.Intent.Valid() {
			return nil, &UnroutableIntentError{Intent: h.Intent}
		}
		if _, dup := d.handlers[h.Intent]; dup {
			return nil, fmt.Errorf("duplicate handler for intent %q", h.Intent)
		}
		if h.Name == "" {
			h.Name = string(h.Intent) + "_handler"
		}
		d.handlers[h.Intent] = h
		d.order = append(d.order, h.Intent)
	}
	return d, nil
}

func (d *DispatchTable) Route(i Intent) (Handler, error) {
	h, ok := d.handlers[i]
	if !ok {
		return Handler{}, &UnroutableIntentError{Intent: i}
	}
	return h, nil
}

// Handlers returns the handlers in registration order
func (d *DispatchTable) Handlers() []Handler {
	out := make([]Handler, 0, len(d.order))
	for _, i := range d.order {
		out = append(out, d.handlers[i])
	}
	return out
}

// DefaultHandlers binds weather to get_weather, math to calculate and
// leaves chat without tools.
func DefaultHandlers() []Handler {
	return []Handler{
		{
			Name:         "weather_handler",
			Intent:       IntentWeather,
			SystemPrompt: "你是一个天气助手，可以帮助用户查询天气信息。",
			Tools:        []string{"get_weather"},
		},
		{
			Name:         "math_handler",
			Intent:       IntentMath,
			SystemPrompt: "你是一个数学计算助手，可以帮助用户进行数学计算。",
			Tools:        []string{"calculate"},
		},
		{
			Name:         "chat_handler",
			Intent:       IntentChat,
			SystemPrompt: "你是一个友好的助手，可以回答各种问题并进行对话。",
		},
	}
}
