package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bibfix/internal/api"
	"github.com/jackzampolin/bibfix/internal/server/endpoints"
)

var (
	serverURL   string
	waitTimeout time.Duration
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running bibfix server via HTTP.

These commands require a running server (bibfix serve).
Use --server to specify a custom server URL.

Examples:
  bibfix api health              # Check server health
  bibfix api wait --timeout 30s  # Block until the server is ready
  bibfix api fix refs.bib        # Fix a file through the JSON API
  bibfix api upload refs.bib     # Fix a file through the upload endpoint
  bibfix api status              # Show fix counters`,
}

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait until the server is ready",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.NewClient(getServerURL())
		if err := client.WaitReady(cmd.Context(), waitTimeout); err != nil {
			return fmt.Errorf("server not ready after %v: %w", waitTimeout, err)
		}
		fmt.Println("ready")
		return nil
	},
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	registry := api.NewRegistry()
	for _, ep := range endpoints.All() {
		registry.Register(ep)
	}
	registry.AddCommands(apiCmd, getServerURL)

	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", 30*time.Second, "How long to keep polling")
	apiCmd.AddCommand(waitCmd)

	rootCmd.AddCommand(apiCmd)
}
