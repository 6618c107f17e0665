package api

import (
	"net/http"

	"github.com/nerrad567/gatehouse/internal/auth"
)

// roleEntry is one row of the hierarchy table.
type roleEntry struct {
	Role     auth.Role   `json:"role"`
	Includes []auth.Role `json:"includes"`
}

// handleRoles returns the role hierarchy in canonical order.
func (s *Server) handleRoles(w http.ResponseWriter, _ *http.Request) {
	hierarchy := auth.Hierarchy()
	roles := make([]roleEntry, 0, len(auth.ValidRoles))
	for _, role := range auth.ValidRoles {
		roles = append(roles, roleEntry{Role: role, Includes: hierarchy[role]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

// handleDirectory lists every principal. Secret hashes are never
// serialised.
func (s *Server) handleDirectory(w http.ResponseWriter, _ *http.Request) {
	principals := s.authn.Directory().List()
	writeJSON(w, http.StatusOK, map[string]any{
		"principals": principals,
		"count":      len(principals),
	})
}
