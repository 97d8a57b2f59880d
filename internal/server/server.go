package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/bibfix/internal/api"
	"github.com/jackzampolin/bibfix/internal/config"
	"github.com/jackzampolin/bibfix/internal/home"
	"github.com/jackzampolin/bibfix/internal/metrics"
	"github.com/jackzampolin/bibfix/internal/server/endpoints"
	"github.com/jackzampolin/bibfix/internal/svcctx"
)

// Server is the bibfix HTTP server.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	configMgr  *config.Manager
	levelVar   *slog.LevelVar
	metrics    *metrics.Recorder
	home       *home.Dir
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: server.host from config)
	Host string
	// Port is the port to listen on (default: server.port from config).
	// "0" picks a free port; see Addr.
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// LevelVar, when set, follows log.level across config reloads
	LevelVar *slog.LevelVar
	// Home is the bibfix home directory
	Home *home.Dir
	// Metrics receives one record per fix run (default: a new recorder)
	Metrics *metrics.Recorder
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewRecorder(metrics.DefaultHistory)
	}

	current := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		current = cfg.ConfigManager.Get()
	}
	if cfg.Host == "" {
		cfg.Host = current.Server.Host
	}
	if cfg.Port == "" {
		cfg.Port = current.Server.Port
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		levelVar:  cfg.LevelVar,
		metrics:   cfg.Metrics,
		home:      cfg.Home,
		logger:    cfg.Logger,
	}

	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(s.applyConfig)
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// applyConfig reacts to a hot-reloaded config. Host and port changes need a
// restart; everything else is read per request.
func (s *Server) applyConfig(c *config.Config) {
	if s.levelVar != nil {
		s.levelVar.Set(c.SlogLevel())
	}
	s.logger.Info("config reloaded",
		"log_level", c.Log.Level,
		"tool_name", c.Fixer.ToolName,
		"max_upload_mb", c.Server.MaxUploadMB,
	)
}

// Start starts the server.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	s.running = true

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		ConfigManager: s.configMgr,
		Logger:        s.logger,
		Home:          s.home,
		Metrics:       s.metrics,
		StartedAt:     time.Now(),
	}
	s.mu.Unlock()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.mu.Lock()
	s.running = false
	s.services = nil
	s.mu.Unlock()

	s.logger.Info("server stopped")
	return nil
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address. Once started it is the bound
// address, so a "0" port resolves to the real one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Metrics returns the server's metrics recorder.
func (s *Server) Metrics() *metrics.Recorder {
	return s.metrics
}

// Handler returns the HTTP handler with services attached, for use in
// tests without a listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) currentServices() *svcctx.Services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc := s.currentServices(); svc != nil {
			ctx = svcctx.WithServices(ctx, svc)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable before Start has wired the services.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svcctx.ServicesFrom(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
