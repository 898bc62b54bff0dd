// SPDX-License-Identifier: MIT

// Package api serves the processor's observability surface: probes,
// metrics, the live-event table, and the operator force-alert override.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rgregg/frigate-event-processor/internal/config"
	"github.com/rgregg/frigate-event-processor/internal/engine"
	"github.com/rgregg/frigate-event-processor/internal/health"
	feplog "github.com/rgregg/frigate-event-processor/internal/log"
)

// EventSource is the engine surface the API reads and pokes.
type EventSource interface {
	Events(ctx context.Context) ([]engine.View, error)
	Event(ctx context.Context, id string) (engine.View, error)
	ForceAlert(ctx context.Context, id string) error
}

// Options wires the server.
type Options struct {
	Listen  string
	Engine  EventSource
	Health  *health.Manager
	Config  func() config.AppConfig // current config for the summary endpoint
	Version string
}

// Server is the HTTP server for the debug/observability API.
type Server struct {
	http   *http.Server
	logger zerolog.Logger
}

// New builds the server; Run starts it.
func New(opts Options) *Server {
	s := &Server{
		logger: feplog.WithComponent("api"),
	}
	s.http = &http.Server{
		Addr:              opts.Listen,
		Handler:           s.router(opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("event", "api.started").
			Str("listen", s.http.Addr).
			Msg("http api listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Str("event", "api.shutdown_error").Msg("graceful shutdown failed")
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}
