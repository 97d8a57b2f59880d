package endpoints

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bibfix/internal/api"
	"github.com/jackzampolin/bibfix/web"
)

// StaticEndpoint serves the embedded upload page and its assets.
// Unknown paths get index.html.
type StaticEndpoint struct{}

var _ api.Endpoint = (*StaticEndpoint)(nil)

func (e *StaticEndpoint) Route() (string, string, http.HandlerFunc) {
	// Catch all unmatched GET requests
	return "GET", "/{path...}", e.handler
}

func (e *StaticEndpoint) RequiresInit() bool {
	return false
}

func (e *StaticEndpoint) Command(_ func() string) *cobra.Command {
	return nil // No CLI command for static files
}

func (e *StaticEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	distFS, err := web.DistFS()
	if err != nil {
		http.Error(w, "Frontend not available", http.StatusInternalServerError)
		return
	}

	filePath := strings.TrimPrefix(r.URL.Path, "/")
	if filePath != "" && filePath != "index.html" {
		if file, err := distFS.Open(filePath); err == nil {
			file.Close()
			http.FileServer(http.FS(distFS)).ServeHTTP(w, r)
			return
		}
	}

	// http.FileServer redirects /index.html to /, so the page is written directly
	indexFile, err := fs.ReadFile(distFS, "index.html")
	if err != nil {
		http.Error(w, "Frontend not available", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexFile)
}
