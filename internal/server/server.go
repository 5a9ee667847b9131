package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// Config holds the HTTP listener configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the listener defaults. The write timeout has to
// outlast the slowest backend call or replies get cut off mid write.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            5010,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    90 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server wraps the HTTP listener lifecycle.
type Server struct {
	config Config
	http   *http.Server
}

// New creates the HTTP server around the given handler with HTTP/2 support
// enabled.
func New(cfg Config, handler http.Handler) (*Server, error) {
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	if err := http2.ConfigureServer(httpServer, nil); err != nil {
		return nil, fmt.Errorf("error configuring HTTP/2: %w", err)
	}

	return &Server{config: cfg, http: httpServer}, nil
}

// Run starts the listener and blocks until ctx is cancelled or the listener
// fails. On cancellation the server drains in-flight requests within the
// configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting http server", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}
