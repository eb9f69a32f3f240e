package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yavuzozge/homeseer-dimmers/internal/auth"
)

// healthTimeout bounds the component checks behind GET /health.
const healthTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint (no auth, like the health check)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/ws-ticket", s.handleWSTicket)

			r.With(requirePermission(auth.PermLEDRead)).Get("/leds", s.handleGetLEDs)
			r.With(requirePermission(auth.PermLEDWrite)).Put("/leds", s.handlePutLEDs)
			r.With(requirePermission(auth.PermLEDWrite)).Post("/sync", s.handleSync)
			r.With(requirePermission(auth.PermPing)).Post("/ping", s.handlePing)
			r.With(requirePermission(auth.PermRunsRead)).Get("/runs", s.handleListRuns)
			r.With(requirePermission(auth.PermDevicesRead)).Get("/devices", s.handleListDevices)
		})
	})

	return r
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth reports "ok" when every component check passes and
// "degraded" (503) otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Version: s.version}
	if len(s.health) > 0 {
		resp.Components = make(map[string]string, len(s.health))
	}

	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.health[name](ctx); err != nil {
			resp.Components[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Components[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
