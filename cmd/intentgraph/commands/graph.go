package commands

import (
	"fmt"

	"github.com/intentgraph/intentgraph/internal/server"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the routing graph as Mermaid",
	Long: `Print the classifier, handlers and tool edges as a Mermaid flowchart.

Example:
  intentgraph graph > graph.mmd`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := *cfg
		c.KnowledgeEnabled = false
		app, err := server.Build(cmd.Context(), &c)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), app.Orchestrator.Mermaid())
		return err
	},
}
