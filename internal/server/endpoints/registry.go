package endpoints

import (
	"github.com/jackzampolin/bibfix/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Fix endpoints
		&UploadEndpoint{},
		&FixEndpoint{},

		// Settings
		&SettingsEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{},
		&SwaggerUIEndpoint{},

		// Static files (catch-all, must be last)
		&StaticEndpoint{},
	}
}
