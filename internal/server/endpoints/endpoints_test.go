package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/bibfix/internal/api"
	"github.com/jackzampolin/bibfix/internal/config"
	"github.com/jackzampolin/bibfix/internal/metrics"
	"github.com/jackzampolin/bibfix/internal/svcctx"
	"github.com/jackzampolin/bibfix/internal/testutil"
)

const testConfig = `server:
  max_upload_mb: 1
fixer:
  tool_name: "bibfix test"
`

type testEnv struct {
	handler http.Handler
	metrics *metrics.Recorder
}

// newTestEnv routes every endpoint through a mux with services attached,
// the way the server does once started.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(testConfig), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	cm, err := config.NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create config manager: %v", err)
	}

	rec := metrics.NewRecorder(100)
	services := &svcctx.Services{
		ConfigManager: cm,
		Logger:        testutil.Logger(t),
		Metrics:       rec,
		StartedAt:     time.Now().Add(-time.Minute),
	}

	registry := api.NewRegistry()
	for _, ep := range All() {
		registry.Register(ep)
	}
	mux := http.NewServeMux()
	registry.RegisterRoutes(mux, func(h http.HandlerFunc) http.HandlerFunc { return h })

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	})
	return &testEnv{handler: handler, metrics: rec}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(uploadRequest(t, UploadField, "refs.bib", []byte(testutil.BibMissingKeys)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if ct := w.Header().Get("Content-Type"); ct != BibTeXContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	_, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
	if err != nil {
		t.Fatalf("bad Content-Disposition: %v", err)
	}
	if params["filename"] != "refs_corrigido.bib" {
		t.Errorf("filename = %q, want refs_corrigido.bib", params["filename"])
	}

	headers := map[string]string{
		HeaderTotal:     "3",
		HeaderCorrected: "2",
		HeaderDropped:   "0",
		HeaderEncoding:  "utf-8",
	}
	for name, want := range headers {
		if got := w.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if w.Header().Get(HeaderRunID) == "" {
		t.Errorf("%s should be set", HeaderRunID)
	}

	body := w.Body.String()
	wantPrefix := "% Corrigido automaticamente: 2 de 3 entradas sem ID.\n% Gerado por bibfix test.\n\n"
	if !strings.HasPrefix(body, wantPrefix) {
		t.Errorf("unexpected summary:\n%s", body)
	}
	for _, head := range []string{"@article{Smith2019,", "@article{Deep2020,", "@inproceedings{Deep2020_2,"} {
		if !strings.Contains(body, head) {
			t.Errorf("output missing %q:\n%s", head, body)
		}
	}

	totals := env.metrics.Totals()
	if totals.Runs != 1 || totals.Corrected != 2 || totals.Entries != 3 {
		t.Errorf("unexpected metrics %+v", totals)
	}
}

func TestUpload_Latin1(t *testing.T) {
	env := newTestEnv(t)

	content := []byte("@article{, title={Caf\xe9 Society}, year={2001}}\n")
	w := env.do(uploadRequest(t, UploadField, "cafe.bib", content))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get(HeaderEncoding); got != "latin-1" {
		t.Errorf("encoding = %q, want latin-1", got)
	}
	body := w.Body.String()
	if !strings.Contains(body, "@article{Caf2001,") {
		t.Errorf("expected generated key Caf2001:\n%s", body)
	}
	if !strings.Contains(body, "Café Society") {
		t.Errorf("title should be re-encoded as UTF-8:\n%s", body)
	}
}

func TestUpload_Errors(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing field", func(t *testing.T) {
		w := env.do(uploadRequest(t, "other", "refs.bib", []byte("@misc{a,}")))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		if msg := errorOf(t, w); msg != "Nenhum arquivo enviado." {
			t.Errorf("unexpected error %q", msg)
		}
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("@misc{a,}"))
		req.Header.Set("Content-Type", "text/plain")
		w := env.do(req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		if msg := errorOf(t, w); msg != "Nenhum arquivo enviado." {
			t.Errorf("unexpected error %q", msg)
		}
	})

	t.Run("no file selected", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="bibfile"; filename=""`)
		h.Set("Content-Type", "application/octet-stream")
		if _, err := mw.CreatePart(h); err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := env.do(req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		if msg := errorOf(t, w); msg != "Nenhum arquivo selecionado." {
			t.Errorf("unexpected error %q", msg)
		}
	})

	t.Run("too large", func(t *testing.T) {
		big := bytes.Repeat([]byte("%"), 2<<20)
		w := env.do(uploadRequest(t, UploadField, "big.bib", big))
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d", w.Code)
		}
	})
}

func TestFix(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(FixRequest{Content: "@article{Dal Maso2025, title={X}}\n@misc{, note={n}}\n"})
	req := httptest.NewRequest(http.MethodPost, "/api/fix", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := env.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp FixResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 2 || resp.Corrected != 1 || resp.Dropped != 0 || resp.Degraded {
		t.Errorf("unexpected counters %+v", resp)
	}
	if resp.RunID == "" {
		t.Error("run_id should be set")
	}
	for _, head := range []string{"@article{Dal_Maso2025,", "@misc{Entry,"} {
		if !strings.Contains(resp.Content, head) {
			t.Errorf("content missing %q:\n%s", head, resp.Content)
		}
	}

	by := env.metrics.BySource()
	if by[metrics.SourceAPI] == nil || by[metrics.SourceAPI].Runs != 1 {
		t.Errorf("expected one api run, got %+v", by)
	}
}

func TestFix_Errors(t *testing.T) {
	env := newTestEnv(t)

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/fix", strings.NewReader("{"))
		w := env.do(req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("too large", func(t *testing.T) {
		body, _ := json.Marshal(FixRequest{Content: strings.Repeat("x", 2<<20)})
		req := httptest.NewRequest(http.MethodPost, "/api/fix", bytes.NewReader(body))
		w := env.do(req)
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d", w.Code)
		}
	})
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/ready"} {
		w := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
	}

	// Without services the server is not ready yet
	w := httptest.NewRecorder()
	(&ReadyEndpoint{}).handler(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without services, got %d", w.Code)
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	env.do(uploadRequest(t, UploadField, "refs.bib", []byte(testutil.BibMissingKeys)))

	w := env.do(httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if resp.Server != "running" || resp.Version == "" || resp.Uptime == "" {
		t.Errorf("unexpected status %+v", resp)
	}
	if resp.Metrics == nil {
		t.Fatal("metrics missing from status")
	}
	if resp.Metrics.Totals.Runs != 1 || resp.Metrics.BySource[metrics.SourceUpload] == nil {
		t.Errorf("unexpected metrics %+v", resp.Metrics)
	}
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp SettingsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode settings: %v", err)
	}
	if resp.Config == nil || resp.Config.Fixer.ToolName != "bibfix test" {
		t.Errorf("unexpected config %+v", resp.Config)
	}
	if resp.Config.Server.MaxUploadMB != 1 {
		t.Errorf("expected max_upload_mb 1, got %d", resp.Config.Server.MaxUploadMB)
	}
	if !strings.HasSuffix(resp.File, "config.yaml") {
		t.Errorf("unexpected config file %q", resp.File)
	}
}

func TestStaticAndSwagger(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/", "/some/client/route"} {
		w := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), `name="bibfile"`) {
			t.Errorf("%s: upload form missing", path)
		}
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/swagger.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var spec map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &spec); err != nil {
		t.Fatalf("swagger.json is not valid JSON: %v", err)
	}
	paths, _ := spec["paths"].(map[string]any)
	for _, p := range []string{"/upload", "/api/fix"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("swagger.json missing path %s", p)
		}
	}
}

func TestCommands(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()
	getURL := func() string { return srv.URL }

	dir := t.TempDir()
	input := filepath.Join(dir, "refs.bib")
	if err := os.WriteFile(input, []byte(testutil.BibMissingKeys), 0o644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	t.Run("fix", func(t *testing.T) {
		outDir := filepath.Join(dir, "fixed")
		cmd := (&FixEndpoint{}).Command(getURL)
		cmd.SetArgs([]string{input, "--out-dir", outDir})
		if err := cmd.ExecuteContext(ctx); err != nil {
			t.Fatalf("fix command failed: %v", err)
		}

		out, err := os.ReadFile(filepath.Join(outDir, "refs_corrigido.bib"))
		if err != nil {
			t.Fatalf("corrected file not written: %v", err)
		}
		if !strings.Contains(string(out), "@inproceedings{Deep2020_2,") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("upload", func(t *testing.T) {
		cmd := (&UploadEndpoint{}).Command(getURL)
		cmd.SetArgs([]string{input})
		if err := cmd.ExecuteContext(ctx); err != nil {
			t.Fatalf("upload command failed: %v", err)
		}

		out, err := os.ReadFile(filepath.Join(dir, "refs_corrigido.bib"))
		if err != nil {
			t.Fatalf("corrected file not written: %v", err)
		}
		if !strings.HasPrefix(string(out), "% Corrigido automaticamente: 2 de 3 entradas sem ID.") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("ready", func(t *testing.T) {
		cmd := (&ReadyEndpoint{}).Command(getURL)
		cmd.SetArgs([]string{"--wait", "2s"})
		if err := cmd.ExecuteContext(ctx); err != nil {
			t.Fatalf("ready command failed: %v", err)
		}
	})

	t.Run("upload error surfaces server message", func(t *testing.T) {
		client := api.NewClient(srv.URL)
		_, err := client.Upload(ctx, "/upload", "wrong", "refs.bib", strings.NewReader("x"))
		if err == nil || !strings.Contains(err.Error(), "Nenhum arquivo enviado.") {
			t.Errorf("expected server error message, got %v", err)
		}
	})
}
