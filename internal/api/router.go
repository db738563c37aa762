package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// defaultMetricsPath is used when metrics are enabled without a path.
const defaultMetricsPath = "/metrics"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	// Prometheus exposition
	if s.metricsCfg.Enabled && s.exposition != nil {
		path := s.metricsCfg.Path
		if path == "" {
			path = defaultMetricsPath
		}
		r.Handle(path, s.exposition)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system/metrics", s.handleMetrics)

		r.Route("/stations", func(r chi.Router) {
			r.Get("/", s.handleListStations)
			r.Post("/", s.handleAddStation)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetStation)
				r.Delete("/", s.handleRemoveStation)
				r.Patch("/options", s.handleUpdateOptions)
				r.Get("/readings", s.handleGetReadings)
				r.Post("/refresh", s.handleRefresh)
				r.Post("/setup", s.handleRetrySetup)
			})
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stations := s.stations.List()
	available := 0
	reauth := 0
	for _, st := range stations {
		if st.Available() {
			available++
		}
		if st.Status().AuthFailed {
			reauth++
		}
	}

	status := "ok"
	if reauth > 0 {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"mqtt":    s.mqtt != nil && s.mqtt.IsConnected(),
		"stations": map[string]int{
			"loaded":          len(stations),
			"available":       available,
			"reauth_required": reauth,
		},
	})
}
