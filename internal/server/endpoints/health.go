package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bibfix/internal/api"
	"github.com/jackzampolin/bibfix/internal/metrics"
	"github.com/jackzampolin/bibfix/internal/svcctx"
	"github.com/jackzampolin/bibfix/version"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if svcctx.ServicesFrom(r.Context()) == nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "not_initialized"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if timeout > 0 {
				if err := client.WaitReady(cmd.Context(), timeout); err != nil {
					return fmt.Errorf("server not ready after %v: %w", timeout, err)
				}
			}
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "wait", 0, "Keep polling until the server is ready or this much time has passed")
	return cmd
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server    string         `json:"server"`
	Version   string         `json:"version"`
	StartedAt time.Time      `json:"started_at"`
	Uptime    string         `json:"uptime"`
	Home      string         `json:"home,omitempty"`
	Metrics   *MetricsStatus `json:"metrics,omitempty"`
}

// MetricsStatus reports fix-run counters since the server started.
type MetricsStatus struct {
	Totals   metrics.Summary             `json:"totals"`
	BySource map[string]*metrics.Summary `json:"by_source"`
	Latency  metrics.LatencyStats        `json:"latency"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Server status
//	@Description	Version, uptime and fix-run counters
//	@Tags			server
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ServicesFrom(r.Context())
	resp := StatusResponse{
		Server:    "running",
		Version:   version.GitRelease,
		StartedAt: svc.StartedAt,
		Uptime:    time.Since(svc.StartedAt).Round(time.Second).String(),
	}

	if h := svcctx.HomeFrom(r.Context()); h != nil {
		resp.Home = h.Path()
	}

	if rec := svcctx.MetricsFrom(r.Context()); rec != nil {
		resp.Metrics = &MetricsStatus{
			Totals:   rec.Totals(),
			BySource: rec.BySource(),
			Latency:  rec.Latency(),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			if api.GetOutputFormat() == api.OutputFormatJSON {
				return api.Output(resp)
			}

			fmt.Printf("Server:  %s\n", resp.Server)
			fmt.Printf("Version: %s\n", resp.Version)
			fmt.Printf("Uptime:  %s\n", resp.Uptime)
			if m := resp.Metrics; m != nil {
				fmt.Printf("Runs:    %d (%d failed, %d degraded)\n", m.Totals.Runs, m.Totals.ErrorCount, m.Totals.DegradedCount)
				fmt.Printf("Entries: %d (%d corrected, %d dropped)\n", m.Totals.Entries, m.Totals.Corrected, m.Totals.Dropped)
				fmt.Printf("Latency: p50 %.3fs  p95 %.3fs  max %.3fs\n", m.Latency.P50, m.Latency.P95, m.Latency.Max)

				sources := make([]string, 0, len(m.BySource))
				for s := range m.BySource {
					sources = append(sources, s)
				}
				sort.Strings(sources)
				for _, s := range sources {
					fmt.Printf("  %-7s %d runs, %d entries\n", s+":", m.BySource[s].Runs, m.BySource[s].Entries)
				}
			}
			return nil
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
