package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/intentgraph/intentgraph/internal/agent"
	"github.com/intentgraph/intentgraph/internal/conversation"
	"github.com/intentgraph/intentgraph/internal/server"
	"github.com/intentgraph/intentgraph/internal/tools"
	"github.com/spf13/cobra"
)

var (
	askConfirm    bool
	askMaxSteps   int
	askJSON       bool
	askKnowledge  bool
	askPermission string
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Run one message and print the transcript",
	Long: `Classify a message, route it to its handler and print the full
transcript, including the intent annotation and every tool call.

With --confirm each tool call is shown on stderr and waits for approval on
stdin: y/yes/是/ok/1 approves, anything else is sent back to the model as
feedback.

Examples:
  intentgraph ask "帮我计算一下 123 + 456 等于多少？"
  intentgraph ask --confirm "北京今天天气怎么样？"
  intentgraph ask --knowledge --permission IT组 "公司的考勤方式是什么？"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")
		c := *cfg

		var opts []server.BuildOption
		if askConfirm {
			opts = append(opts, server.WithApprover(tools.NewTerminalApprover(os.Stdin, cmd.ErrOrStderr())))
		}
		c.KnowledgeEnabled = askKnowledge

		app, err := server.Build(cmd.Context(), &c, opts...)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if askKnowledge {
			if app.Knowledge == nil {
				return errors.New("knowledge retrieval is unavailable, check knowledge_dir and embedding settings")
			}
			ans, err := app.Knowledge.Ask(cmd.Context(), message, askPermission)
			if ans != nil {
				if perr := printResult(out, ans, ans.Conversation, ans.Answer); perr != nil {
					return perr
				}
			}
			return err
		}

		var runOpts []agent.RunOption
		if cmd.Flags().Changed("max-steps") {
			runOpts = append(runOpts, agent.WithMaxSteps(askMaxSteps))
		}
		res, err := app.Orchestrator.Run(cmd.Context(), message, nil, runOpts...)
		if res != nil {
			if perr := printResult(out, res, res.Conversation, res.Answer); perr != nil {
				return perr
			}
		}
		return err
	},
}

func init() {
	askCmd.Flags().BoolVar(&askConfirm, "confirm", false, "approve each tool call on the terminal")
	askCmd.Flags().IntVar(&askMaxSteps, "max-steps", 0, "step budget for this run (0 = unlimited)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the result as JSON")
	askCmd.Flags().BoolVar(&askKnowledge, "knowledge", false, "answer from the knowledge base instead of intent routing")
	askCmd.Flags().StringVar(&askPermission, "permission", "", "permission group for knowledge retrieval")
}

func printResult(w io.Writer, v any, conv *conversation.Conversation, answer string) error {
	if askJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	printTranscript(w, conv)
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintln(w, answer)
	return nil
}

func printTranscript(w io.Writer, conv *conversation.Conversation) {
	for _, m := range conv.Messages() {
		switch {
		case m.IsAnnotation():
			fmt.Fprintf(w, "[intent] %s\n", m.Intent)
		case m.Role == conversation.RoleTool:
			fmt.Fprintf(w, "[tool %s %s] %s\n", m.Name, m.ToolCallID, m.Content)
		case len(m.ToolCalls) > 0:
			for _, call := range m.ToolCalls {
				args, _ := json.Marshal(call.Arguments)
				fmt.Fprintf(w, "[%s] call %s(%s) id=%s\n", m.Role, call.Name, args, call.ID)
			}
		default:
			fmt.Fprintf(w, "[%s] %s\n", m.Role, m.Content)
		}
	}
}
