package commands

import (
	"context"
	"os"

	"github.com/intentgraph/intentgraph/internal/config"
	"github.com/intentgraph/intentgraph/internal/logger"
	"github.com/intentgraph/intentgraph/internal/tracer"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string

	cfg            *config.Config
	shutdownTracer = func(context.Context) error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "intentgraph",
	Short: "Intent-routed tool-calling agent",
	Long: `intentgraph classifies each user message into an intent (weather, math
or chat), routes it to the handler bound to that intent and runs the
handler's tool loop until the model gives a final answer.

Configuration is read from the file named by --config (or INTENTGRAPH_CONFIG)
and then from environment variables such as DASHSCOPE_API_KEY.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := os.Setenv("INTENTGRAPH_CONFIG", configFile); err != nil {
				return err
			}
		}
		c, err := config.Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.LogLevel = logLevel
		}
		logger.Setup(c.LogLevel, c.Environment)

		shutdown, err := tracer.Setup(c.TracingEnabled, c.TracingExporter)
		if err != nil {
			return err
		}
		shutdownTracer = shutdown
		cfg = c
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return shutdownTracer(context.Background())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (.yaml, .yml or .json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(graphCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
