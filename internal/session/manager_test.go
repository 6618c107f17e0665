package session

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/gatehouse/internal/auth"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// issueToken signs a token for bob that expires ttl after fixedNow.
func issueToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	return issueTokenAt(t, fixedNow, ttl)
}

// issueTokenAt signs a token for bob minted at mint.
func issueTokenAt(t *testing.T, mint time.Time, ttl time.Duration) string {
	t.Helper()

	codec, err := auth.NewTokenCodec("session-test-secret-0123456789abcdef", "gatehouse", ttl)
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}
	token, err := codec.WithClock(func() time.Time { return mint }).Sign(auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "bob"},
		Email:            "bob@example.com",
		Roles:            []auth.Role{auth.RoleFinance},
	})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return token
}

func newTestManager(t *testing.T, clock *time.Time) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewManager(store, WithClock(func() time.Time { return *clock })), store
}

func recordSignal(m *Manager) *[]bool {
	var got []bool
	m.Authenticated().Subscribe(func(v bool) { got = append(got, v) })
	return &got
}

func TestManager_StartsUnauthenticated(t *testing.T) {
	clock := fixedNow
	m, _ := newTestManager(t, &clock)

	if m.Authenticated().Value() {
		t.Error("empty store should start unauthenticated")
	}
	if !m.IsExpired() {
		t.Error("IsExpired() should be true with no token")
	}
	if _, ok := m.UserPayload(); ok {
		t.Error("UserPayload() should be empty with no token")
	}
}

func TestManager_StartsFromStoredToken(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Set(StorageKey, issueToken(t, time.Hour)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	m := NewManager(store, WithClock(func() time.Time { return fixedNow }))
	if !m.Authenticated().Value() {
		t.Error("stored live token should start authenticated")
	}
}

func TestManager_SetSession(t *testing.T) {
	clock := fixedNow
	m, store := newTestManager(t, &clock)
	got := recordSignal(m)

	token := issueToken(t, time.Hour)
	if err := m.SetSession(token); err != nil {
		t.Fatalf("SetSession() error = %v", err)
	}

	if !slices.Equal(*got, []bool{false, true}) {
		t.Errorf("signal = %v, want [false true]", *got)
	}
	if v, _, _ := store.Get(StorageKey); v != token {
		t.Error("token should be stored under the session key")
	}
	if stored, ok, err := m.GetSession(); err != nil || !ok || stored != token {
		t.Errorf("GetSession() = %q, %v, %v", stored, ok, err)
	}
}

func TestManager_SetExpiredSessionPublishesFalse(t *testing.T) {
	clock := fixedNow.Add(2 * time.Hour)
	m, _ := newTestManager(t, &clock)
	got := recordSignal(m)

	if err := m.SetSession(issueToken(t, time.Hour)); err != nil {
		t.Fatalf("SetSession() error = %v", err)
	}
	if !slices.Equal(*got, []bool{false, false}) {
		t.Errorf("signal = %v, want [false false]", *got)
	}
}

func TestManager_IsExpired(t *testing.T) {
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "bob"}).
		SignedString([]byte("any-key"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	late := fixedNow.Add(990 * time.Millisecond)
	mid := fixedNow.Add(300 * time.Millisecond)

	tests := []struct {
		name  string
		token string
		at    time.Time
		want  bool
	}{
		{"fresh", issueToken(t, time.Second), fixedNow, false},
		{"just before exp", issueToken(t, time.Second), fixedNow.Add(999 * time.Millisecond), false},
		{"at exp", issueToken(t, time.Second), fixedNow.Add(time.Second), true},
		{"after exp", issueToken(t, time.Second), fixedNow.Add(2 * time.Second), true},
		{"1s minted late in second", issueTokenAt(t, late, time.Second), late.Add(20 * time.Millisecond), false},
		{"1s minted late just before ttl", issueTokenAt(t, late, time.Second), late.Add(999 * time.Millisecond), false},
		{"1s minted late past rounded exp", issueTokenAt(t, late, time.Second), fixedNow.Add(2 * time.Second), true},
		{"500ms at mint", issueTokenAt(t, mid, 500*time.Millisecond), mid, false},
		{"500ms just before ttl", issueTokenAt(t, mid, 500*time.Millisecond), mid.Add(499 * time.Millisecond), false},
		{"500ms at rounded exp", issueTokenAt(t, mid, 500*time.Millisecond), fixedNow.Add(time.Second), true},
		{"no exp claim", noExp, fixedNow, true},
		{"malformed", "not-a-jwt", fixedNow, true},
		{"bad base64 payload", "eyJhbGciOiJIUzI1NiJ9.%%%.sig", fixedNow, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := tt.at
			m, store := newTestManager(t, &clock)
			if err := store.Set(StorageKey, tt.token); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if got := m.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManager_ClearSession(t *testing.T) {
	clock := fixedNow
	m, store := newTestManager(t, &clock)
	if err := m.SetSession(issueToken(t, time.Hour)); err != nil {
		t.Fatalf("SetSession() error = %v", err)
	}
	got := recordSignal(m)

	if err := m.ClearSession(); err != nil {
		t.Fatalf("ClearSession() error = %v", err)
	}
	if !slices.Equal(*got, []bool{true, false}) {
		t.Errorf("signal = %v, want [true false]", *got)
	}
	if _, ok, _ := store.Get(StorageKey); ok {
		t.Error("token should be removed")
	}
}

func TestManager_CleanupSession(t *testing.T) {
	clock := fixedNow
	m, store := newTestManager(t, &clock)
	if err := m.SetSession(issueToken(t, time.Second)); err != nil {
		t.Fatalf("SetSession() error = %v", err)
	}
	got := recordSignal(m)

	live, err := m.CleanupSession()
	if err != nil || !live {
		t.Fatalf("CleanupSession() = %v, %v; want live", live, err)
	}
	if _, ok, _ := store.Get(StorageKey); !ok {
		t.Error("live token should be kept")
	}

	clock = fixedNow.Add(time.Second)
	live, err = m.CleanupSession()
	if err != nil || live {
		t.Fatalf("CleanupSession() = %v, %v; want cleared", live, err)
	}
	if _, ok, _ := store.Get(StorageKey); ok {
		t.Error("expired token should be removed")
	}
	if !slices.Equal(*got, []bool{true, true, false}) {
		t.Errorf("signal = %v, want [true true false]", *got)
	}
}

func TestManager_RequireSession(t *testing.T) {
	clock := fixedNow
	m, _ := newTestManager(t, &clock)

	if err := m.RequireSession(); !errors.Is(err, ErrNoSession) {
		t.Errorf("RequireSession() error = %v, want ErrNoSession", err)
	}

	if err := m.SetSession(issueToken(t, time.Minute)); err != nil {
		t.Fatalf("SetSession() error = %v", err)
	}
	if err := m.RequireSession(); err != nil {
		t.Errorf("RequireSession() error = %v, want nil", err)
	}

	clock = fixedNow.Add(time.Hour)
	if err := m.RequireSession(); !errors.Is(err, ErrNoSession) {
		t.Errorf("RequireSession() after expiry error = %v, want ErrNoSession", err)
	}
}

func TestManager_UserPayload(t *testing.T) {
	clock := fixedNow
	m, _ := newTestManager(t, &clock)
	if err := m.SetSession(issueToken(t, time.Hour)); err != nil {
		t.Fatalf("SetSession() error = %v", err)
	}

	claims, ok := m.UserPayload()
	if !ok {
		t.Fatal("UserPayload() should decode the stored token")
	}
	if claims.Subject != "bob" || claims.Email != "bob@example.com" {
		t.Errorf("claims = %+v", claims)
	}
	if !slices.Equal(claims.Roles, []auth.Role{auth.RoleFinance}) {
		t.Errorf("Roles = %v, want [finance]", claims.Roles)
	}
	if !claims.ExpiresAt.Time.Equal(fixedNow.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want now+1h", claims.ExpiresAt.Time)
	}
}

func TestManager_WithKey(t *testing.T) {
	clock := fixedNow
	store := NewMemoryStore()
	m := NewManager(store, WithKey("other"), WithClock(func() time.Time { return clock }))

	if err := m.SetSession(issueToken(t, time.Hour)); err != nil {
		t.Fatalf("SetSession() error = %v", err)
	}
	if _, ok, _ := store.Get("other"); !ok {
		t.Error("token should be stored under the custom key")
	}
	if _, ok, _ := store.Get(StorageKey); ok {
		t.Error("default key should be untouched")
	}
}
