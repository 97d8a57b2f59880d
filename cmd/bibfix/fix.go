package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bibfix/internal/bibtex"
	"github.com/jackzampolin/bibfix/internal/metrics"
	"github.com/jackzampolin/bibfix/internal/server/endpoints"
	"github.com/jackzampolin/bibfix/internal/textenc"
)

var (
	fixOutDir string
	fixStdout bool
)

// fixSummary is the report printed after a local fix run.
type fixSummary struct {
	Files  []endpoints.FixReport `json:"files" yaml:"files"`
	Totals metrics.Summary       `json:"totals" yaml:"totals"`
}

var fixCmd = &cobra.Command{
	Use:   "fix <file>...",
	Short: "Fix BibTeX files locally",
	Long: `Fix the citation keys of one or more BibTeX files without a server.

Each input is written as <name>_corrigido.bib next to the input, or in
--out-dir. With --stdout the corrected documents go to stdout and the
report to stderr.

Examples:
  bibfix fix refs.bib
  bibfix fix *.bib --out-dir fixed/
  bibfix fix refs.bib --stdout > refs.clean.bib`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cm.Get()

		levelVar := new(slog.LevelVar)
		levelVar.Set(cfg.SlogLevel())
		logger := newLogger(os.Stderr, cfg.Log.Format, levelVar)

		fixer := bibtex.NewFixer(bibtex.Options{ToolName: cfg.Fixer.ToolName, Logger: logger})
		rec := metrics.NewRecorder(len(args))

		summary := fixSummary{}
		for _, path := range args {
			report, err := fixFile(fixer, rec, path)
			if err != nil {
				return err
			}
			summary.Files = append(summary.Files, report)
		}
		summary.Totals = rec.Totals()

		return endpoints.PrintReport(summary, fixStdout)
	},
}

func fixFile(fixer *bibtex.Fixer, rec *metrics.Recorder, path string) (endpoints.FixReport, error) {
	start := time.Now()

	raw, err := os.ReadFile(path)
	if err != nil {
		return endpoints.FixReport{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	text, enc, err := textenc.Decode(raw)
	if err != nil {
		rec.RecordError(metrics.RecordOpts{Source: metrics.SourceCLI, Bytes: len(raw)}, "decode")
		return endpoints.FixReport{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	res := fixer.Fix(text)
	rec.RecordFix(metrics.RecordOpts{
		Source:   metrics.SourceCLI,
		Bytes:    len(raw),
		Encoding: string(enc),
		Duration: time.Since(start),
	}, res)

	dest, err := endpoints.WriteCorrected(path, fixOutDir, fixStdout, []byte(res.Text))
	if err != nil {
		return endpoints.FixReport{}, err
	}

	return endpoints.FixReport{
		File:      path,
		Output:    dest,
		RunID:     res.RunID,
		Encoding:  string(enc),
		Total:     res.Total,
		Corrected: res.Corrected,
		Dropped:   res.Dropped,
		Degraded:  res.Degraded,
	}, nil
}

func init() {
	fixCmd.Flags().StringVar(&fixOutDir, "out-dir", "", "Directory for corrected files (default: next to each input)")
	fixCmd.Flags().BoolVar(&fixStdout, "stdout", false, "Write corrected documents to stdout")

	rootCmd.AddCommand(fixCmd)
}
