// Package testutil holds helpers shared by server and endpoint tests.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ServerConfig returns configuration values for creating a test server.
// This avoids importing the server package directly.
type ServerConfig struct {
	Host       string
	Port       string
	HomeDir    string
	ConfigFile string
	Logger     *slog.Logger
}

// NewServerConfig creates configuration for a test server on a free port,
// with a config file in a temp home directory.
func NewServerConfig(t *testing.T) ServerConfig {
	t.Helper()

	port, err := FindFreePort()
	if err != nil {
		t.Fatalf("failed to find free port for HTTP: %v", err)
	}

	homeDir := t.TempDir()
	configFile := filepath.Join(homeDir, "config.yaml")
	content := fmt.Sprintf("server:\n  host: 127.0.0.1\n  port: %q\n  max_upload_mb: 1\n", port)
	if err := os.WriteFile(configFile, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	return ServerConfig{
		Host:       "127.0.0.1",
		Port:       port,
		HomeDir:    homeDir,
		ConfigFile: configFile,
		Logger:     Logger(t),
	}
}

// URL returns the server URL for the given config.
func (c ServerConfig) URL() string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(c.Host, c.Port))
}

// Logger returns a logger that discards output unless tests run verbose.
func Logger(t *testing.T) *slog.Logger {
	t.Helper()
	var w io.Writer = io.Discard
	if testing.Verbose() {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// FindFreePort finds an available TCP port and returns it as a string.
func FindFreePort() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer listener.Close()
	return fmt.Sprintf("%d", listener.Addr().(*net.TCPAddr).Port), nil
}

// WaitForShutdown waits for a channel to receive a value or timeout.
func WaitForShutdown(done <-chan error, timeout time.Duration) error {
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for shutdown")
	}
}

// Sample documents used across tests.
const (
	// BibMissingKeys has one keyed entry and two entries with empty keys
	// whose generated keys collide.
	BibMissingKeys = `@article{Smith2019,
  title = {Known Title},
  year = {2019}
}

@article{,
  title = {Deep Learning},
  year = {2020}
}

@inproceedings{,
  title = {Deep Networks},
  year = {2020}
}
`

	// BibWellFormed needs no corrections.
	BibWellFormed = `@book{Knuth1984,
  title = {The TeXbook},
  year = {1984}
}
`
)
