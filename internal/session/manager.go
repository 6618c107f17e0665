package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/gatehouse/internal/auth"
)

// ErrNoSession is returned by RequireSession when no unexpired token is
// stored.
var ErrNoSession = errors.New("no active session")

// Manager owns the stored access token and the authenticated signal.
type Manager struct {
	store         Store
	key           string
	now           func() time.Time
	authenticated *Signal[bool]
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithKey stores the token under key instead of StorageKey.
func WithKey(key string) Option {
	return func(m *Manager) { m.key = key }
}

// NewManager creates a manager over store. The authenticated signal
// starts at true only if the store already holds an unexpired token.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		key:   StorageKey,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.authenticated = NewSignal(!m.IsExpired())
	return m
}

// Authenticated returns the signal that tracks whether a usable session
// exists.
func (m *Manager) Authenticated() *Signal[bool] {
	return m.authenticated
}

// SetSession stores token and publishes whether it is unexpired.
func (m *Manager) SetSession(token string) error {
	if err := m.store.Set(m.key, token); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	m.authenticated.Publish(!m.IsExpired())
	return nil
}

// GetSession returns the stored token, if any.
func (m *Manager) GetSession() (string, bool, error) {
	token, ok, err := m.store.Get(m.key)
	if err != nil {
		return "", false, fmt.Errorf("reading session: %w", err)
	}
	if !ok || token == "" {
		return "", false, nil
	}
	return token, true, nil
}

// IsExpired reports whether the stored token is missing, unreadable,
// lacks an exp claim, or has exp at or before now. The signature is not
// checked.
func (m *Manager) IsExpired() bool {
	claims, ok := m.decode()
	if !ok || claims.ExpiresAt == nil {
		return true
	}
	return !m.now().Before(claims.ExpiresAt.Time)
}

// ClearSession removes the token and publishes false.
func (m *Manager) ClearSession() error {
	err := m.store.Remove(m.key)
	m.authenticated.Publish(false)
	if err != nil {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}

// CleanupSession clears an expired session, or republishes true for a
// live one. It reports whether the session is live.
func (m *Manager) CleanupSession() (bool, error) {
	if m.IsExpired() {
		return false, m.ClearSession()
	}
	m.authenticated.Publish(true)
	return true, nil
}

// RequireSession runs CleanupSession and returns ErrNoSession when no
// live session remains.
func (m *Manager) RequireSession() error {
	live, err := m.CleanupSession()
	if err != nil {
		return err
	}
	if !live {
		return ErrNoSession
	}
	return nil
}

// UserPayload decodes the stored token's claims for display. The result
// is not verified and must not drive access decisions.
func (m *Manager) UserPayload() (*auth.Claims, bool) {
	return m.decode()
}

func (m *Manager) decode() (*auth.Claims, bool) {
	token, ok, err := m.GetSession()
	if err != nil || !ok {
		return nil, false
	}
	claims := &auth.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}
