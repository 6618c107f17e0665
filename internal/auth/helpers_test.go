package auth

import (
	"sync"
	"testing"
	"time"
)

// testSecret meets the 32-character minimum enforced by config.
const testSecret = "test-secret-key-at-least-32-chars!"

// fixedNow sits on a whole second. Sub-second mint cases offset from it.
var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

var (
	hashOnce   sync.Once
	hashCached string
)

// knownHash returns an Argon2id hash of "correct-horse", computed once per run.
func knownHash(t *testing.T) string {
	t.Helper()

	hashOnce.Do(func() {
		h, err := HashPassword("correct-horse")
		if err != nil {
			panic(err)
		}
		hashCached = h
	})
	return hashCached
}

// newTestCodec returns a codec pinned to *clock so tests can move time.
func newTestCodec(t *testing.T, ttl time.Duration, clock *time.Time) *TokenCodec {
	t.Helper()

	codec, err := NewTokenCodec(testSecret, "gatehouse", ttl)
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}
	return codec.WithClock(func() time.Time { return *clock })
}

// testDirectory loads alice (admin), bob (finance) and carol (disabled user),
// all with the secret "correct-horse".
func testDirectory(t *testing.T) *Directory {
	t.Helper()

	hash := knownHash(t)
	dir, err := LoadDirectory(map[string]string{
		"GATEHOUSE_USER_ALICE_EMAIL":         "Alice@Example.com",
		"GATEHOUSE_USER_ALICE_ROLES":         "admin",
		"GATEHOUSE_USER_ALICE_PASSWORD_HASH": hash,
		"GATEHOUSE_USER_BOB_EMAIL":           "bob@example.com",
		"GATEHOUSE_USER_BOB_DISPLAY":         "Bob B",
		"GATEHOUSE_USER_BOB_ROLES":           "finance",
		"GATEHOUSE_USER_BOB_PASSWORD_HASH":   hash,
		"GATEHOUSE_USER_CAROL_EMAIL":         "carol@example.com",
		"GATEHOUSE_USER_CAROL_STATUS":        "disabled",
		"GATEHOUSE_USER_CAROL_PASSWORD_HASH": hash,
	}, DirectoryOptions{Now: func() time.Time { return fixedNow }})
	if err != nil {
		t.Fatalf("LoadDirectory() error = %v", err)
	}
	return dir
}
