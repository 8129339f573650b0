package commands

import (
	"bytes"
	"testing"

	"github.com/intentgraph/intentgraph/internal/conversation"
	"github.com/stretchr/testify/assert"
)

func TestPrintTranscript(t *testing.T) {
	call := conversation.ToolCall{ID: "call_1", Name: "calculate", Arguments: map[string]any{"expression": "123 + 456"}}
	conv := conversation.New(
		conversation.User("帮我计算一下 123 + 456 等于多少？"),
		conversation.Annotation("math"),
		conversation.Assistant("", call),
		conversation.ToolResult(call, "计算结果：123 + 456 = 579"),
		conversation.Assistant("123 + 456 等于 579。"),
	)

	var buf bytes.Buffer
	printTranscript(&buf, conv)
	assert.Equal(t, `[user] 帮我计算一下 123 + 456 等于多少？
[intent] math
[assistant] call calculate({"expression":"123 + 456"}) id=call_1
[tool calculate call_1] 计算结果：123 + 456 = 579
[assistant] 123 + 456 等于 579。
`, buf.String())
}
