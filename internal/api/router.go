// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func (s *Server) router(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(httprate.Limit(
		120,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	))

	if opts.Health != nil {
		r.Get("/healthz", opts.Health.ServeHealth)
		r.Get("/readyz", opts.Health.ServeReady)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/events", s.handleEvents(opts.Engine))
		r.Get("/events/{id}", s.handleEvent(opts.Engine))
		r.Post("/events/{id}/alert", s.handleForceAlert(opts.Engine))
		r.Get("/config", s.handleConfig(opts))
	})

	return otelhttp.NewHandler(r, "fep-api")
}
