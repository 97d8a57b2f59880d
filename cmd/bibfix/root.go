package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bibfix/internal/api"
	"github.com/jackzampolin/bibfix/internal/config"
	"github.com/jackzampolin/bibfix/internal/home"
	"github.com/jackzampolin/bibfix/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "bibfix",
	Short: "Repair missing and malformed citation keys in BibTeX files",
	Long: `bibfix repairs the citation keys of BibTeX bibliographies.

For every document it:
  - replaces whitespace inside keys with underscores
  - gives entries without a key one built from the first word of the
    title and the year (e.g. Deep2020), or "Entry" when there is no title
  - suffixes generated keys that collide (Deep2020_2, Deep2020_3, ...)
  - prepends a comment saying how many entries were corrected

Files can be fixed locally (bibfix fix) or through the web server
(bibfix serve), which offers an upload page and a JSON API.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.bibfix/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "bibfix home directory (default: ~/.bibfix)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the home directory and loads the config from
// --config, the home directory, or the default search paths.
func loadConfig() (*home.Dir, *config.Manager, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}
	cm, err := config.NewManager(h.ConfigFile(cfgFile))
	if err != nil {
		return nil, nil, err
	}
	return h, cm, nil
}

// newLogger builds the slog logger described by the log config. The level
// is read from levelVar so it can change while running.
func newLogger(w io.Writer, format string, levelVar *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelVar}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
