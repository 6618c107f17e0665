package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/gatehouse/internal/audit"
	"github.com/nerrad567/gatehouse/internal/auth"
	"github.com/nerrad567/gatehouse/internal/infrastructure/config"
	"github.com/nerrad567/gatehouse/internal/infrastructure/logging"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

var (
	hashOnce sync.Once
	hashVal  string
	hashErr  error
)

// knownHash is an Argon2id hash of "correct-horse", computed once.
func knownHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() { hashVal, hashErr = auth.HashPassword("correct-horse") })
	if hashErr != nil {
		t.Fatalf("HashPassword() error = %v", hashErr)
	}
	return hashVal
}

// memAudit is an in-memory audit.Repository.
type memAudit struct {
	mu      sync.Mutex
	events  []audit.Event
	filters []audit.Filter
}

func (m *memAudit) Create(_ context.Context, evt *audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *evt)
	return nil
}

func (m *memAudit) List(_ context.Context, f audit.Filter) (*audit.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, f)
	return &audit.ListResult{Events: append([]audit.Event{}, m.events...), Total: len(m.events), Limit: f.Limit, Offset: f.Offset}, nil
}

func (m *memAudit) actions() []audit.Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.Action, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Action)
	}
	return out
}

type fakeLoginMetrics struct {
	mu      sync.Mutex
	results []bool
}

func (f *fakeLoginMetrics) WriteLogin(success bool, _ time.Duration, _ time.Time) {
	f.mu.Lock()
	f.results = append(f.results, success)
	f.mu.Unlock()
}

type testEnv struct {
	srv      *Server
	router   http.Handler
	codec    *auth.TokenCodec
	store    *memAudit
	recorder *audit.Recorder
	metrics  *fakeLoginMetrics
}

type envOption func(*Deps)

func withRateLimit(perMinute, burst int) envOption {
	return func(d *Deps) {
		d.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute, Burst: burst}
	}
}

func withoutAuditRepo() envOption {
	return func(d *Deps) { d.AuditRepo = nil }
}

// newTestEnv builds a server over a four-principal directory:
// alice (admin), bob (finance), carol (disabled), ops (security).
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	hash := knownHash(t)
	dir, err := auth.LoadDirectory(map[string]string{
		"GATEHOUSE_USER_ALICE_EMAIL":         "alice@example.com",
		"GATEHOUSE_USER_ALICE_ROLES":         "admin",
		"GATEHOUSE_USER_ALICE_PASSWORD_HASH": hash,
		"GATEHOUSE_USER_BOB_EMAIL":           "bob@example.com",
		"GATEHOUSE_USER_BOB_ROLES":           "finance",
		"GATEHOUSE_USER_BOB_PASSWORD_HASH":   hash,
		"GATEHOUSE_USER_CAROL_EMAIL":         "carol@example.com",
		"GATEHOUSE_USER_CAROL_STATUS":        "disabled",
		"GATEHOUSE_USER_CAROL_PASSWORD_HASH": hash,
		"GATEHOUSE_USER_OPS_EMAIL":           "ops@example.com",
		"GATEHOUSE_USER_OPS_ROLES":           "security",
		"GATEHOUSE_USER_OPS_PASSWORD_HASH":   hash,
	}, auth.DirectoryOptions{})
	if err != nil {
		t.Fatalf("LoadDirectory() error = %v", err)
	}

	codec, err := auth.NewTokenCodec(testSecret, "gatehouse", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}
	authn, err := auth.NewAuthenticator(dir, codec, nil)
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}

	log := logging.Discard()
	store := &memAudit{}
	recorder := audit.NewRecorder(store, log.Logger, 64)
	t.Cleanup(recorder.Close)
	metrics := &fakeLoginMetrics{}

	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:        log,
		Authenticator: authn,
		Guard:         auth.NewGuard(codec, dir),
		AuditRepo:     store,
		Recorder:      recorder,
		Metrics:       metrics,
		Version:       "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testEnv{
		srv:      srv,
		router:   srv.buildRouter(),
		codec:    codec,
		store:    store,
		recorder: recorder,
		metrics:  metrics,
	}
}

// do sends a request through the router. token is sent as a bearer
// token when non-empty.
func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// tokenFor signs a token for subject directly, bypassing login.
func (e *testEnv) tokenFor(t *testing.T, subject string, roles ...auth.Role) string {
	t.Helper()

	token, err := e.codec.Sign(auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Email:            subject + "@example.com",
		Roles:            roles,
	})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return token
}
