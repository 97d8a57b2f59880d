package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bibfix/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bibfix server",
	Long: `Start the bibfix HTTP server.

The server provides:
  - /             - Upload page
  - /upload       - Multipart upload (field "bibfile"), returns the corrected file
  - /api/fix      - JSON API: {"content": "..."} in, corrected content and counts out
  - /health       - Basic server health check
  - /ready        - Readiness check
  - /status       - Version, uptime and fix counters
  - /api/settings - Active configuration
  - /swagger      - API documentation

Changes to the config file are picked up while running (log level,
tool name, upload limit). Host and port changes need a restart.

Examples:
  bibfix serve                    # Start on the configured address (default 127.0.0.1:8080)
  bibfix serve --port 3000        # Start on custom port
  bibfix serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cm.Get()

		// Set up logger
		levelVar := new(slog.LevelVar)
		levelVar.Set(cfg.SlogLevel())
		logger := newLogger(os.Stdout, cfg.Log.Format, levelVar)

		cm.SetLogger(logger)
		if file := cm.FileUsed(); file != "" {
			logger.Info("using config file", "path", file)
			cm.WatchConfig()
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: cm,
			LevelVar:      levelVar,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: server.port from config)")

	rootCmd.AddCommand(serveCmd)
}
