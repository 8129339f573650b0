// Package main provides the intentgraph CLI.
//
// Usage:
//
//	intentgraph [flags] <command> [args]
//
// Commands:
//
//	serve  - HTTP API server
//	ask    - run one message through the classifier and its handler
//	graph  - print the routing graph as Mermaid
package main

import (
	"fmt"
	"os"

	"github.com/intentgraph/intentgraph/cmd/intentgraph/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
