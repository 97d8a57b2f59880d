package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bibfix/internal/api"
	"github.com/jackzampolin/bibfix/internal/config"
	"github.com/jackzampolin/bibfix/internal/svcctx"
)

// SettingsResponse contains the active configuration.
type SettingsResponse struct {
	// File is the config file in use, empty when running on defaults.
	File   string         `json:"file,omitempty" yaml:"file,omitempty"`
	Config *config.Config `json:"config" yaml:"config"`
}

// SettingsEndpoint handles GET /api/settings.
type SettingsEndpoint struct{}

func (e *SettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings", e.handler
}

func (e *SettingsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Current settings
//	@Description	Get the configuration the server is running with, after hot reloads
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	SettingsResponse
//	@Router			/api/settings [get]
func (e *SettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := SettingsResponse{Config: svcctx.ConfigFrom(r.Context())}
	if cm := svcctx.ConfigManagerFrom(r.Context()); cm != nil {
		resp.File = cm.FileUsed()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *SettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Show the server's active settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SettingsResponse
			if err := client.Get(cmd.Context(), "/api/settings", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
