package tools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Review is the information shown to whoever approves a tool call
type Review struct {
	Tool      string
	Arguments map[string]any
}

// Decision is the outcome of a review. Feedback is passed back to the
// oracle on rejection so it can correct the arguments and retry.
type Decision struct {
	Approved bool
	Feedback string
}

// Approver gates tool calls that need a human (or policy) decision
type Approver interface {
	Review(ctx context.Context, r Review) (Decision, error)
}

func review(ctx context.Context, a Approver, name string, args map[string]any) error {
	if a == nil {
		return fmt.Errorf("%w: no approver configured for %s", ErrApprovalRejected, name)
	}
	d, err := a.Review(ctx, Review{Tool: name, Arguments: args})
	if err != nil {
		return fmt.Errorf("approval: %w", err)
	}
	if !d.Approved {
		if d.Feedback == "" {
			return ErrApprovalRejected
		}
		return fmt.Errorf("%w: %s", ErrApprovalRejected, d.Feedback)
	}
	return nil
}

// ConfigApprover decides from allow / deny lists. Unlisted tools are denied.
type ConfigApprover struct {
	approve map[string]bool
	deny    map[string]bool
}

func NewConfigApprover(approve, deny []string) *ConfigApprover {
	a := &ConfigApprover{
		approve: make(map[string]bool, len(approve)),
		deny:    make(map[string]bool, len(deny)),
	}
	for _, name := range approve {
		a.approve[name] = true
	}
	for _, name := range deny {
		a.deny[name] = true
	}
	return a
}

func (a *ConfigApprover) Review(_ context.Context, r Review) (Decision, error) {
	switch {
	case a.deny[r.Tool]:
		return Decision{Feedback: fmt.Sprintf("tool %s is denied by policy", r.Tool)}, nil
	case a.approve[r.Tool]:
		return Decision{Approved: true}, nil
	default:
		return Decision{Feedback: fmt.Sprintf("tool %s is not on the approval list", r.Tool)}, nil
	}
}

var acceptWords = map[string]bool{"y": true, "yes": true, "是": true, "ok": true, "1": true}

// TerminalApprover prints a checklist and blocks on a line of input.
// An accept word approves; any other text is returned as feedback.
type TerminalApprover struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func NewTerminalApprover(in io.Reader, out io.Writer) *TerminalApprover {
	return &TerminalApprover{in: bufio.NewReader(in), out: out}
}

func (a *TerminalApprover) Review(ctx context.Context, r Review) (Decision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	keys := make([]string, 0, len(r.Arguments))
	for k := range r.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(a.out, strings.Repeat("=", 40))
	fmt.Fprintf(a.out, "tool call awaiting review: %s\n", r.Tool)
	for _, k := range keys {
		fmt.Fprintf(a.out, "  %s: %v\n", k, r.Arguments[k])
	}
	fmt.Fprintln(a.out, strings.Repeat("=", 40))
	fmt.Fprint(a.out, ">>> (y/n) enter 'y' to approve, or type corrections: ")

	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return Decision{}, fmt.Errorf("read approval: %w", err)
	}
	answer := strings.TrimSpace(line)
	if acceptWords[strings.ToLower(answer)] {
		return Decision{Approved: true}, nil
	}
	return Decision{Feedback: answer}, nil
}
