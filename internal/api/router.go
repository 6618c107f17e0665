package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gatehouse/internal/auth"
)

// buildRouter mounts every route under /api/v1.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(
		s.requestIDMiddleware,
		s.loggingMiddleware,
		s.recoveryMiddleware,
		s.corsMiddleware,
		s.bodySizeLimitMiddleware,
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.With(s.rateLimitMiddleware).Post("/auth/login", s.handleLogin)

		// WebSocket authenticates with a ticket, validated in the handler.
		r.Get("/ws", s.handleWebSocket)

		// Any authenticated principal.
		r.Group(func(r chi.Router) {
			r.Use(s.Require())

			r.Get("/auth/me", s.handleMe)
			r.Get("/roles", s.handleRoles)
		})

		// Operators only.
		r.Group(func(r chi.Router) {
			r.Use(s.Require(auth.RoleAdmin, auth.RoleSecurity))

			r.Get("/directory", s.handleDirectory)
			r.Get("/audit", s.handleListAudit)
			r.Post("/auth/ws-ticket", s.handleWSTicket)
		})
	})

	return r
}

// handleHealth is unauthenticated; it reveals counts only.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    s.version,
		"principals": s.authn.Directory().Len(),
		"ws_clients": s.hub.ClientCount(),
	})
}
