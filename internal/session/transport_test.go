package session

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// authRecorder captures the Authorization header of the last request.
type authRecorder struct{ last atomic.Value }

func (a *authRecorder) set(r *http.Request) { a.last.Store(r.Header.Get("Authorization")) }

func (a *authRecorder) get() string {
	v, _ := a.last.Load().(string)
	return v
}

func TestTransport(t *testing.T) {
	var rec authRecorder
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.set(r)
		if r.URL.Path == "/reject" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	clock := fixedNow
	m, store := newTestManager(t, &clock)
	client := &http.Client{Transport: NewTransport(m, nil)}

	get := func(path string) int {
		t.Helper()
		resp, err := client.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	get("/ok")
	if rec.get() != "" {
		t.Errorf("Authorization = %q, want none without a session", rec.get())
	}

	token := issueToken(t, time.Hour)
	if err := m.SetSession(token); err != nil {
		t.Fatalf("SetSession() error = %v", err)
	}
	get("/ok")
	if rec.get() != "Bearer "+token {
		t.Errorf("Authorization = %q, want bearer token", rec.get())
	}

	if status := get("/reject"); status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
	if _, ok, _ := store.Get(StorageKey); ok {
		t.Error("401 should clear the session")
	}
	if m.Authenticated().Value() {
		t.Error("401 should publish unauthenticated")
	}
}

func TestTransport_SkipsExpiredToken(t *testing.T) {
	var rec authRecorder
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.set(r)
	}))
	defer srv.Close()

	clock := fixedNow
	m, _ := newTestManager(t, &clock)
	if err := m.SetSession(issueToken(t, time.Second)); err != nil {
		t.Fatalf("SetSession() error = %v", err)
	}
	clock = fixedNow.Add(time.Minute)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := NewTransport(m, http.DefaultTransport).RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	resp.Body.Close()

	if rec.get() != "" {
		t.Errorf("Authorization = %q, want expired token withheld", rec.get())
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("caller's request should not be modified")
	}
}
