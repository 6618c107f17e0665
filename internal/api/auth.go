package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gatehouse/internal/audit"
	"github.com/nerrad567/gatehouse/internal/auth"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// maxIdentifierLen caps a login identifier kept in the audit trail.
const maxIdentifierLen = 254

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string                `json:"access_token"`
	TokenType   string                `json:"token_type"`
	ExpiresIn   int                   `json:"expires_in"`
	ExpiresAt   time.Time             `json:"expires_at"`
	Principal   auth.PrincipalSummary `json:"principal"`
}

// meResponse is the response body for GET /auth/me.
type meResponse struct {
	Subject        string      `json:"subject"`
	Email          string      `json:"email"`
	Roles          []auth.Role `json:"roles"`
	EffectiveRoles []auth.Role `json:"effective_roles"`
	IssuedAt       time.Time   `json:"issued_at"`
	ExpiresAt      time.Time   `json:"expires_at"`
}

// handleLogin checks credentials against the directory and returns a
// bearer token. Every failure looks the same to the caller.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start := time.Now()
	res, err := s.authn.Login(req.Email, req.Password)
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.WriteLogin(err == nil, elapsed, s.now())
	}

	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Error("issuing token failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to generate token")
			return
		}
		s.logger.Info("login failed", "remote_addr", clientIP(r))
		s.recorder.Record(s.eventFor(r, audit.ActionLoginFailed,
			string(auth.OutcomeUnauthenticated), "invalid_credentials", "", auditIdentifier(req.Email)))
		writeUnauthorized(w, "invalid credentials")
		return
	}

	s.logger.Info("login succeeded", "subject", res.Principal.ID)
	s.recorder.Record(s.eventFor(r, audit.ActionLoginSucceeded,
		string(auth.OutcomeAuthorized), "", res.Principal.ID, res.Principal.Identifier))

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		ExpiresIn:   int(res.ExpiresIn.Seconds()),
		ExpiresAt:   res.ExpiresAt.UTC(),
		Principal:   res.Principal,
	})
}

// auditIdentifier returns the submitted login identifier when it looks like
// an email address, and "" otherwise. Anything else may be a mistyped secret.
func auditIdentifier(raw string) string {
	id := strings.TrimSpace(raw)
	if len(id) > maxIdentifierLen || !strings.Contains(id, "@") || strings.ContainsAny(id, " \t\r\n") {
		return ""
	}
	return id
}

// handleMe returns the caller's claims and expanded roles.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	resp := meResponse{
		Subject:        claims.Subject,
		Email:          claims.Email,
		Roles:          claims.Roles,
		EffectiveRoles: EffectiveRolesFromContext(r.Context()).Sorted(),
	}
	if claims.IssuedAt != nil {
		resp.IssuedAt = claims.IssuedAt.UTC()
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.UTC()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ticketStore holds pending WebSocket tickets. Tickets are single-use and
// expire after ticketTTL.
type ticketStore struct {
	mu      sync.Mutex
	tickets map[string]ticketEntry
	now     func() time.Time
}

type ticketEntry struct {
	subject   string
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{
		tickets: make(map[string]ticketEntry),
		now:     time.Now,
	}
}

// issue stores a fresh ticket for subject.
func (ts *ticketStore) issue(subject string) string {
	ticket := generateTicket()
	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{subject: subject, expiresAt: ts.now().Add(ticketTTL)}
	ts.mu.Unlock()
	return ticket
}

// consume validates and removes ticket.
func (ts *ticketStore) consume(ticket string) (ticketEntry, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}
	delete(ts.tickets, ticket)

	if !ts.now().Before(entry.expiresAt) {
		return ticketEntry{}, false
	}
	return entry, true
}

// sweep removes expired tickets.
func (ts *ticketStore) sweep() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	for ticket, entry := range ts.tickets {
		if !now.Before(entry.expiresAt) {
			delete(ts.tickets, ticket)
		}
	}
}

// handleWSTicket issues a single-use ticket for GET /ws so the bearer
// token never appears in a URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     s.tickets.issue(claims.Subject),
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// cleanTicketsLoop sweeps expired tickets until ctx is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.sweep()
		}
	}
}
