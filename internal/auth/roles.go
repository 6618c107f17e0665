package auth

import (
	"slices"
	"strings"
)

// Role is an authorisation tag. The set of roles is closed.
type Role string

const (
	RoleUser       Role = "user"
	RoleDeveloper  Role = "developer"
	RoleAnalyst    Role = "analyst"
	RoleFinance    Role = "finance"
	RoleManagement Role = "management"
	RoleExecutive  Role = "executive"
	RoleSecurity   Role = "security"
	RoleAdmin      Role = "admin"
)

// ValidRoles lists every recognised role in canonical order.
var ValidRoles = []Role{
	RoleUser,
	RoleDeveloper,
	RoleAnalyst,
	RoleFinance,
	RoleManagement,
	RoleExecutive,
	RoleSecurity,
	RoleAdmin,
}

// roleClosure maps each role to every role it implies, itself included.
// This is the single source of truth for the hierarchy. Every entry is
// already transitively closed.
var roleClosure = map[Role][]Role{
	RoleUser:       {RoleUser},
	RoleDeveloper:  {RoleDeveloper, RoleUser},
	RoleAnalyst:    {RoleAnalyst, RoleUser},
	RoleFinance:    {RoleFinance, RoleAnalyst, RoleUser},
	RoleSecurity:   {RoleSecurity, RoleUser},
	RoleManagement: {RoleManagement, RoleDeveloper, RoleAnalyst, RoleUser},
	RoleExecutive:  {RoleExecutive, RoleManagement, RoleFinance, RoleDeveloper, RoleAnalyst, RoleUser},
	RoleAdmin: {
		RoleAdmin, RoleExecutive, RoleManagement, RoleFinance,
		RoleDeveloper, RoleAnalyst, RoleSecurity, RoleUser,
	},
}

// IsValidRole returns true if r is one of the recognised roles.
func IsValidRole(r Role) bool {
	_, ok := roleClosure[r]
	return ok
}

// Closure returns the roles implied by r, or nil for an unknown role.
func Closure(r Role) []Role {
	return slices.Clone(roleClosure[r])
}

// Hierarchy returns a copy of the full closure table.
func Hierarchy() map[Role][]Role {
	out := make(map[Role][]Role, len(roleClosure))
	for r, implied := range roleClosure {
		out[r] = slices.Clone(implied)
	}
	return out
}

// RoleSet is an unordered set of effective roles.
type RoleSet map[Role]struct{}

// Has reports whether r is in the set.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Sorted returns the members in canonical order.
func (s RoleSet) Sorted() []Role {
	out := make([]Role, 0, len(s))
	for _, r := range ValidRoles {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Expand returns the union of the closures of the assigned roles.
// Unrecognised tags contribute nothing. Expand(Expand(x).Sorted()) equals
// Expand(x).
func Expand(assigned []Role) RoleSet {
	set := make(RoleSet)
	for _, r := range assigned {
		for _, implied := range roleClosure[r] {
			set[implied] = struct{}{}
		}
	}
	return set
}

// Authorize reports whether effective satisfies required. Requirements
// are OR'd: any single match is enough. An empty requirement list only
// asks for authentication and always passes.
func Authorize(effective RoleSet, required []Role) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if effective.Has(r) {
			return true
		}
	}
	return false
}

// ParseRoles converts a comma-separated role list into recognised roles.
// Tags are trimmed and lower-cased, unknown tags are dropped and duplicates
// keep their first position. An empty result defaults to [user].
func ParseRoles(csv string) []Role {
	var roles []Role
	for _, part := range strings.Split(csv, ",") {
		r := Role(strings.ToLower(strings.TrimSpace(part)))
		if !IsValidRole(r) || slices.Contains(roles, r) {
			continue
		}
		roles = append(roles, r)
	}
	if len(roles) == 0 {
		return []Role{RoleUser}
	}
	return roles
}
