package auth

import (
	"errors"
	"slices"
	"time"
)

// Status is the lifecycle state of a directory principal.
type Status string

const (
	// StatusActive principals may log in and pass the guard.
	StatusActive Status = "active"

	// StatusDisabled principals are kept in the directory but refused
	// at login and at every guarded request.
	StatusDisabled Status = "disabled"
)

// Principal is an authenticatable identity held by the Directory.
type Principal struct {
	ID          string    `json:"id"`
	Identifier  string    `json:"identifier"`
	DisplayName string    `json:"display_name"`
	SecretHash  string    `json:"-"` // never serialised
	Roles       []Role    `json:"roles"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsActive reports whether the principal may authenticate.
func (p *Principal) IsActive() bool {
	return p.Status == StatusActive
}

// Summary returns the redacted form handed back to clients after login.
func (p *Principal) Summary() PrincipalSummary {
	return PrincipalSummary{
		ID:          p.ID,
		Identifier:  p.Identifier,
		DisplayName: p.DisplayName,
		Roles:       slices.Clone(p.Roles),
	}
}

func (p *Principal) clone() *Principal {
	c := *p
	c.Roles = slices.Clone(p.Roles)
	return &c
}

// PrincipalSummary is a principal without its secret hash or status.
type PrincipalSummary struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier"`
	DisplayName string `json:"display_name"`
	Roles       []Role `json:"roles"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrTokenInvalid        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token has expired")
	ErrInsufficientRole    = errors.New("insufficient role")
	ErrConfigurationGap    = errors.New("principal has no configured secret")
	ErrDuplicateIdentifier = errors.New("duplicate principal identifier")
	ErrSecretRequired      = errors.New("signing secret is required")
)
