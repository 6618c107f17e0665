package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gatehouse/internal/audit"
)

// handleListAudit returns paginated audit events, newest first.
//
// Query parameters:
//   - action: login_succeeded, login_failed, access_denied, session_rejected
//   - subject: principal id
//   - outcome: authorized, unauthenticated, forbidden
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusServiceUnavailable, "audit store not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:  audit.Action(q.Get("action")),
		Subject: q.Get("subject"),
		Outcome: q.Get("outcome"),
	}

	if filter.Action != "" && !filter.Action.Valid() {
		writeError(w, http.StatusBadRequest, "unknown action: "+string(filter.Action))
		return
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list audit events")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
