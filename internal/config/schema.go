package config

import (
	"log/slog"
	"strings"

	"github.com/jackzampolin/bibfix/internal/bibtex"
)

// Config holds bibfix configuration.
// Stored at: ./config.yaml or ~/.bibfix/config.yaml
type Config struct {
	Server ServerCfg `mapstructure:"server" yaml:"server" json:"server"`
	Fixer  FixerCfg  `mapstructure:"fixer" yaml:"fixer" json:"fixer"`
	Log    LogCfg    `mapstructure:"log" yaml:"log" json:"log"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host        string `mapstructure:"host" yaml:"host" json:"host"`
	Port        string `mapstructure:"port" yaml:"port" json:"port"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"` // Largest accepted .bib upload
}

// FixerCfg configures the key repair pipeline.
type FixerCfg struct {
	ToolName string `mapstructure:"tool_name" yaml:"tool_name" json:"tool_name"` // Label in the summary comment
}

// LogCfg configures logging.
type LogCfg struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`    // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format" json:"format"` // text or json
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host:        "127.0.0.1",
			Port:        "8080",
			MaxUploadMB: 16,
		},
		Fixer: FixerCfg{
			ToolName: bibtex.DefaultToolName,
		},
		Log: LogCfg{
			Level:  "info",
			Format: "text",
		},
	}
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// SlogLevel maps the configured level name to a slog level.
// Unknown names map to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
