package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	if s.metricsHandler != nil {
		r.Method(http.MethodGet, s.metricsPath, s.metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/discovery", s.handleDiscovery)
			r.Get("/{device_id}", s.handleGetDevice)
			r.Post("/{device_id}/{attribute_id}", s.handleSetAttribute)
		})

		r.Post("/aprontest", s.handleRawCommand)
		r.Get("/commands", s.handleListCommands)
	})

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = "/api/ws"
	}
	r.Get(wsPath, s.handleWebSocket)

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.registry.Snapshot()
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
		"devices": snap.Len(),
	}
	if !snap.TakenAt().IsZero() {
		resp["snapshot_at"] = snap.TakenAt().UTC()
	}
	if s.bridge != nil {
		resp["mqtt_connected"] = s.bridge.GetMetrics().Connected
	}
	writeJSON(w, http.StatusOK, resp)
}
