package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bibfix/internal/api"
	"github.com/jackzampolin/bibfix/internal/bibtex"
	"github.com/jackzampolin/bibfix/internal/metrics"
	"github.com/jackzampolin/bibfix/internal/svcctx"
	"github.com/jackzampolin/bibfix/internal/textenc"
)

// FixRequest is the request body for POST /api/fix.
type FixRequest struct {
	Content string `json:"content"`
}

// FixResponse is the response for POST /api/fix.
type FixResponse struct {
	Content   string `json:"content"`
	RunID     string `json:"run_id"`
	Total     int    `json:"total"`
	Corrected int    `json:"corrected"`
	Dropped   int    `json:"dropped"`
	Degraded  bool   `json:"degraded"`
}

// FixReport summarizes one fixed file for CLI output.
type FixReport struct {
	File      string `json:"file" yaml:"file"`
	Output    string `json:"output,omitempty" yaml:"output,omitempty"`
	RunID     string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Encoding  string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	Total     int    `json:"total" yaml:"total"`
	Corrected int    `json:"corrected" yaml:"corrected"`
	Dropped   int    `json:"dropped" yaml:"dropped"`
	Degraded  bool   `json:"degraded" yaml:"degraded"`
}

// FixEndpoint handles POST /api/fix.
type FixEndpoint struct{}

var _ api.Endpoint = (*FixEndpoint)(nil)

func (e *FixEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/fix", e.handler
}

func (e *FixEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Fix BibTeX keys
//	@Description	Normalize, fill in and deduplicate the citation keys of a BibTeX document
//	@Tags			fix
//	@Accept			json
//	@Produce		json
//	@Param			request	body		FixRequest	true	"BibTeX document"
//	@Success		200		{object}	FixResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		413		{object}	ErrorResponse
//	@Router			/api/fix [post]
func (e *FixEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	maxBytes := svcctx.ConfigFrom(r.Context()).MaxUploadBytes()
	if r.ContentLength > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(maxBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	var req FixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(maxBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, _, err := runFix(r.Context(), []byte(req.Content), metrics.SourceAPI)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, FixResponse{
		Content:   res.Text,
		RunID:     res.RunID,
		Total:     res.Total,
		Corrected: res.Corrected,
		Dropped:   res.Dropped,
		Degraded:  res.Degraded,
	})
}

func (e *FixEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outDir string
	var toStdout bool
	cmd := &cobra.Command{
		Use:   "fix <file>",
		Short: "Fix a BibTeX file on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			// JSON strings are UTF-8, so decode before sending
			text, enc, err := textenc.Decode(raw)
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", path, err)
			}

			client := api.NewClient(getServerURL())
			var resp FixResponse
			if err := client.Post(ctx, "/api/fix", FixRequest{Content: text}, &resp); err != nil {
				return err
			}

			dest, err := WriteCorrected(path, outDir, toStdout, []byte(resp.Content))
			if err != nil {
				return err
			}
			return PrintReport(FixReport{
				File:      path,
				Output:    dest,
				RunID:     resp.RunID,
				Encoding:  string(enc),
				Total:     resp.Total,
				Corrected: resp.Corrected,
				Dropped:   resp.Dropped,
				Degraded:  resp.Degraded,
			}, toStdout)
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for the corrected file (default: next to the input)")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "Write the corrected document to stdout")
	return cmd
}

// runFix decodes raw, fixes it with the configured fixer and records the run.
func runFix(ctx context.Context, raw []byte, source string) (*bibtex.Result, textenc.Encoding, error) {
	start := time.Now()
	rec := svcctx.MetricsFrom(ctx)

	text, enc, err := textenc.Decode(raw)
	opts := metrics.RecordOpts{Source: source, Bytes: len(raw), Encoding: string(enc)}
	if err != nil {
		if rec != nil {
			opts.Duration = time.Since(start)
			rec.RecordError(opts, "decode")
		}
		return nil, "", err
	}

	res := svcctx.FixerFrom(ctx).Fix(text)
	if rec != nil {
		opts.Duration = time.Since(start)
		rec.RecordFix(opts, res)
	}
	return res, enc, nil
}

func tooLargeMessage(maxBytes int64) string {
	return fmt.Sprintf("Arquivo excede o limite de %d MB.", maxBytes>>20)
}

// WriteCorrected stores a corrected document for the file at src. With
// toStdout it goes to stdout and the returned path is empty; otherwise it
// is written as <base>_corrigido.bib in outDir, or next to src when outDir
// is empty.
func WriteCorrected(src, outDir string, toStdout bool, content []byte) (string, error) {
	if toStdout {
		if _, err := os.Stdout.Write(content); err != nil {
			return "", fmt.Errorf("failed to write output: %w", err)
		}
		return "", nil
	}

	if outDir == "" {
		outDir = filepath.Dir(src)
	} else if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	dest := filepath.Join(outDir, bibtex.CorrectedFileName(src))
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return dest, nil
}

// PrintReport writes report in the configured output format. When the
// document itself went to stdout the report goes to stderr.
func PrintReport(report any, toStdout bool) error {
	var w io.Writer = os.Stdout
	if toStdout {
		w = os.Stderr
	}
	return api.OutputTo(w, api.GetOutputFormat(), report)
}
