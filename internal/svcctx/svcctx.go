// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackzampolin/bibfix/internal/bibtex"
	"github.com/jackzampolin/bibfix/internal/config"
	"github.com/jackzampolin/bibfix/internal/home"
	"github.com/jackzampolin/bibfix/internal/metrics"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	ConfigManager *config.Manager
	Logger        *slog.Logger
	Home          *home.Dir
	Metrics       *metrics.Recorder
	StartedAt     time.Time
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// LoggerFrom extracts the logger from context.
// Falls back to slog.Default so handlers can always log.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// ConfigManagerFrom extracts the config manager from context.
func ConfigManagerFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigManager
	}
	return nil
}

// ConfigFrom returns the current config, or the defaults when no manager
// is attached.
func ConfigFrom(ctx context.Context) *config.Config {
	if cm := ConfigManagerFrom(ctx); cm != nil {
		return cm.Get()
	}
	return config.DefaultConfig()
}

// MetricsFrom extracts the metrics recorder from context.
func MetricsFrom(ctx context.Context) *metrics.Recorder {
	if s := ServicesFrom(ctx); s != nil {
		return s.Metrics
	}
	return nil
}

// FixerFrom builds a fixer from the current config and logger. Config is
// read on every call so hot-reloaded settings apply to the next run.
func FixerFrom(ctx context.Context) *bibtex.Fixer {
	return bibtex.NewFixer(bibtex.Options{
		ToolName: ConfigFrom(ctx).Fixer.ToolName,
		Logger:   LoggerFrom(ctx),
	})
}
