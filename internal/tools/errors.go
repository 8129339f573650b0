package tools

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrDuplicateTool    = errors.New("tool already registered")
	ErrInvalidTool      = errors.New("invalid tool")
	ErrApprovalRejected = errors.New("rejected by reviewer")
)

// ToolExecutionError wraps any failure raised while running a tool
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// ResultText is what the oracle sees for a resolved call: the tool output,
// or the error text when the call failed.
func ResultText(result string, err error) string {
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return result
}
