package audit

import (
	"slices"
	"time"
)

// Action names the kind of authentication outcome being recorded.
type Action string

const (
	ActionLoginSucceeded  Action = "login_succeeded"
	ActionLoginFailed     Action = "login_failed"
	ActionAccessDenied    Action = "access_denied"    // authenticated but lacking a role
	ActionSessionRejected Action = "session_rejected" // missing, invalid or expired token
)

// Actions returns every known action in a stable order.
func Actions() []Action {
	return []Action{ActionLoginSucceeded, ActionLoginFailed, ActionAccessDenied, ActionSessionRejected}
}

// Valid reports whether a is one of Actions.
func (a Action) Valid() bool {
	return slices.Contains(Actions(), a)
}

// Event is one auditable authentication outcome. It never carries a token
// or a secret.
type Event struct {
	ID         string    `json:"id"`
	Action     Action    `json:"action"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Identifier string    `json:"identifier,omitempty"`
	Method     string    `json:"method,omitempty"`
	Path       string    `json:"path,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter controls which events List returns.
type Filter struct {
	Action  Action // optional
	Subject string // optional
	Outcome string // optional
	Limit   int    // default 50, max 200
	Offset  int
}

// ListResult is one page of events, newest first.
type ListResult struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}
