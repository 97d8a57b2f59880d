package endpoints

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bibfix/internal/api"
	"github.com/jackzampolin/bibfix/internal/bibtex"
	"github.com/jackzampolin/bibfix/internal/metrics"
	"github.com/jackzampolin/bibfix/internal/svcctx"
)

const (
	// UploadField is the multipart field carrying the .bib file.
	UploadField = "bibfile"

	// BibTeXContentType is the media type of corrected downloads.
	BibTeXContentType = "application/x-bibtex"

	msgNoFile       = "Nenhum arquivo enviado."
	msgNoFileChosen = "Nenhum arquivo selecionado."
)

// Response headers set on corrected downloads.
const (
	HeaderTotal     = "X-Bibtex-Total"
	HeaderCorrected = "X-Bibtex-Corrigidas"
	HeaderDropped   = "X-Bibtex-Descartadas"
	HeaderEncoding  = "X-Bibtex-Encoding"
	HeaderRunID     = "X-Bibtex-Run"
)

// UploadEndpoint handles POST /upload with a multipart .bib file and
// answers with the corrected file as a download.
type UploadEndpoint struct{}

var _ api.Endpoint = (*UploadEndpoint)(nil)

func (e *UploadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/upload", e.handler
}

func (e *UploadEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Upload and fix a BibTeX file
//	@Description	Upload a .bib file and download it with every citation key filled in and unique
//	@Tags			fix
//	@Accept			mpfd
//	@Produce		application/x-bibtex
//	@Param			bibfile	formData	file	true	"BibTeX file (UTF-8 or Latin-1)"
//	@Success		200		{file}		file
//	@Header			200		{integer}	X-Bibtex-Total			"Entries in the document"
//	@Header			200		{integer}	X-Bibtex-Corrigidas		"Entries that received a generated key"
//	@Header			200		{integer}	X-Bibtex-Descartadas	"Entries the parser could not keep"
//	@Header			200		{string}	X-Bibtex-Encoding		"Encoding the upload was decoded from"
//	@Header			200		{string}	X-Bibtex-Run			"Run ID"
//	@Failure		400		{object}	ErrorResponse
//	@Failure		413		{object}	ErrorResponse
//	@Router			/upload [post]
func (e *UploadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	maxBytes := svcctx.ConfigFrom(r.Context()).MaxUploadBytes()
	if r.ContentLength > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(maxBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(maxBytes))
		case errors.Is(err, http.ErrMissingFile) && r.MultipartForm != nil && r.MultipartForm.Value[UploadField] != nil:
			// A file input submitted with nothing chosen arrives as a plain value
			writeError(w, http.StatusBadRequest, msgNoFileChosen)
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			writeError(w, http.StatusBadRequest, msgNoFile)
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		}
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, msgNoFileChosen)
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	res, enc, err := runFix(r.Context(), raw, metrics.SourceUpload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := bibtex.CorrectedFileName(header.Filename)
	w.Header().Set("Content-Type", BibTeXContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set(HeaderTotal, strconv.Itoa(res.Total))
	w.Header().Set(HeaderCorrected, strconv.Itoa(res.Corrected))
	w.Header().Set(HeaderDropped, strconv.Itoa(res.Dropped))
	w.Header().Set(HeaderEncoding, string(enc))
	w.Header().Set(HeaderRunID, res.RunID)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, res.Text)
}

func (e *UploadEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outDir string
	var toStdout bool
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a BibTeX file and download the corrected copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			defer f.Close()

			client := api.NewClient(getServerURL())
			resp, err := client.Upload(ctx, "/upload", UploadField, filepath.Base(path), f)
			if err != nil {
				return err
			}

			dest, err := WriteCorrected(path, outDir, toStdout, resp.Body)
			if err != nil {
				return err
			}

			total, _ := strconv.Atoi(resp.Header.Get(HeaderTotal))
			corrected, _ := strconv.Atoi(resp.Header.Get(HeaderCorrected))
			dropped, _ := strconv.Atoi(resp.Header.Get(HeaderDropped))
			return PrintReport(FixReport{
				File:      path,
				Output:    dest,
				RunID:     resp.Header.Get(HeaderRunID),
				Encoding:  resp.Header.Get(HeaderEncoding),
				Total:     total,
				Corrected: corrected,
				Dropped:   dropped,
			}, toStdout)
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for the corrected file (default: next to the input)")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "Write the corrected document to stdout")
	return cmd
}
