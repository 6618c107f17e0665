package api

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gatehouse/internal/audit"
	"github.com/nerrad567/gatehouse/internal/auth"
)

type contextKey string

const (
	ctxKeyRequestID contextKey = "request_id"
	ctxKeyClaims    contextKey = "claims"
	ctxKeyRoles     contextKey = "effective_roles"
)

// requestIDMiddleware echoes the caller's X-Request-ID or assigns a UUID.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id)))
	})
}

const maxRequestIDLen = 128

// loggingMiddleware writes one line per request. Headers are not logged.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(began).Milliseconds(),
			"request_id", requestIDFrom(r.Context()),
		)
	})
}

// recoveryMiddleware turns a handler panic into a 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("handler panicked",
					"panic", fmt.Sprint(v),
					"path", r.URL.Path,
					"request_id", requestIDFrom(r.Context()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware answers preflights and sets CORS headers for allowed origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", joinOrDefault(s.cfg.CORS.AllowedMethods, "GET, POST, OPTIONS"))
			w.Header().Set("Access-Control-Allow-Headers", joinOrDefault(s.cfg.CORS.AllowedHeaders, "Authorization, Content-Type, X-Request-ID"))
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

const maxRequestBodySize = 64 << 10

func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware applies the per-address login limiter, if enabled.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Middleware(next)
}

// Require returns middleware that admits a request only if its bearer
// token is valid, belongs to an active principal, and expands to at least
// one of roles. No roles means any authenticated principal.
//
// The decision is made fresh on every request. Unauthenticated requests
// get 401 and insufficient roles get 403; neither body names the reason.
func (s *Server) Require(roles ...auth.Role) func(http.Handler) http.Handler {
	required := slices.Clone(roles)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := s.guard.Check(bearerToken(r), required)
			if !d.Allowed {
				s.recordDenial(r, d)
				if d.Outcome == auth.OutcomeForbidden {
					writeError(w, http.StatusForbidden, "forbidden")
					return
				}
				writeUnauthorized(w, "authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyClaims, d.Claims)
			ctx = context.WithValue(ctx, ctxKeyRoles, d.Effective)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// recordDenial logs and audits a guard denial. Unauthenticated requests
// become session_rejected, forbidden ones access_denied.
func (s *Server) recordDenial(r *http.Request, d auth.Decision) {
	action := audit.ActionSessionRejected
	if d.Outcome == auth.OutcomeForbidden {
		action = audit.ActionAccessDenied
	}

	var subject string
	if d.Claims != nil {
		subject = d.Claims.Subject
	}

	s.logger.Info("request denied",
		"outcome", string(d.Outcome),
		"reason", d.Reason,
		"error", d.Err(),
		"subject", subject,
		"path", r.URL.Path,
		"request_id", requestIDFrom(r.Context()),
	)

	s.recorder.Record(s.eventFor(r, action, string(d.Outcome), d.Reason, subject, ""))
}

// eventFor builds an audit event carrying the request's metadata.
func (s *Server) eventFor(r *http.Request, action audit.Action, outcome, reason, subject, identifier string) audit.Event {
	return audit.Event{
		Action:     action,
		Outcome:    outcome,
		Reason:     reason,
		Subject:    subject,
		Identifier: identifier,
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: clientIP(r),
		RequestID:  requestIDFrom(r.Context()),
		CreatedAt:  s.now().UTC(),
	}
}

// ClaimsFromContext returns the verified claims stored by Require.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ctxKeyClaims).(*auth.Claims)
	return claims, ok && claims != nil
}

// EffectiveRolesFromContext returns the expanded roles stored by Require.
func EffectiveRolesFromContext(ctx context.Context) auth.RoleSet {
	roles, _ := ctx.Value(ctxKeyRoles).(auth.RoleSet) //nolint:errcheck // nil set on miss
	return roles
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string) //nolint:errcheck // empty on miss
	return id
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// clientIP returns the remote address without its port.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = strings.TrimSuffix(strings.TrimPrefix(r.RemoteAddr, "["), "]")
	}
	return ip
}

// isAllowedOrigin treats an empty list as allow-all.
func (s *Server) isAllowedOrigin(origin string) bool {
	allowed := s.cfg.CORS.AllowedOrigins
	return len(allowed) == 0 || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}

// statusWriter records the status for the access log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func joinOrDefault(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}
