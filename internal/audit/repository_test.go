package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gatehouse/internal/infrastructure/config"
	"github.com/nerrad567/gatehouse/internal/infrastructure/database"
	"github.com/nerrad567/gatehouse/migrations"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	evt := &Event{
		Action:     ActionLoginFailed,
		Outcome:    "unauthenticated",
		Reason:     "invalid_credentials",
		Identifier: "bob@example.com",
		Method:     "POST",
		Path:       "/api/v1/auth/login",
		RemoteAddr: "192.0.2.10",
		RequestID:  "req-1",
		CreatedAt:  baseTime,
	}
	if err := repo.Create(ctx, evt); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if evt.ID == "" {
		t.Error("Create() should assign an ID")
	}

	res, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || len(res.Events) != 1 {
		t.Fatalf("List() total=%d len=%d, want 1/1", res.Total, len(res.Events))
	}

	got := res.Events[0]
	if got.ID != evt.ID || got.Action != ActionLoginFailed || got.Identifier != "bob@example.com" {
		t.Errorf("List()[0] = %+v", got)
	}
	if got.Subject != "" {
		t.Errorf("Subject = %q, want empty for NULL column", got.Subject)
	}
	if !got.CreatedAt.Equal(baseTime) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, baseTime)
	}
	if res.Limit != defaultLimit {
		t.Errorf("Limit = %d, want default %d", res.Limit, defaultLimit)
	}
}

func TestSQLiteRepository_ListFiltersAndOrder(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	seed := []Event{
		{Action: ActionLoginSucceeded, Outcome: "authorized", Subject: "alice", CreatedAt: baseTime},
		{Action: ActionAccessDenied, Outcome: "forbidden", Reason: "insufficient_role", Subject: "bob", CreatedAt: baseTime.Add(time.Second)},
		{Action: ActionAccessDenied, Outcome: "forbidden", Reason: "insufficient_role", Subject: "bob", CreatedAt: baseTime.Add(1500 * time.Millisecond)},
		{Action: ActionSessionRejected, Outcome: "unauthenticated", Reason: "expired_token", CreatedAt: baseTime.Add(3 * time.Second)},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		res, err := repo.List(ctx, Filter{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(res.Events) != 4 {
			t.Fatalf("len = %d, want 4", len(res.Events))
		}
		if res.Events[0].Action != ActionSessionRejected {
			t.Errorf("first = %q, want newest event", res.Events[0].Action)
		}
		if !res.Events[1].CreatedAt.Equal(baseTime.Add(1500 * time.Millisecond)) {
			t.Errorf("second CreatedAt = %v, want fractional-second event", res.Events[1].CreatedAt)
		}
	})

	t.Run("by action", func(t *testing.T) {
		res, err := repo.List(ctx, Filter{Action: ActionAccessDenied})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Total != 2 {
			t.Errorf("Total = %d, want 2", res.Total)
		}
	})

	t.Run("by subject and outcome", func(t *testing.T) {
		res, err := repo.List(ctx, Filter{Subject: "alice", Outcome: "authorized"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Total != 1 || res.Events[0].Subject != "alice" {
			t.Errorf("List() = %+v", res)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		res, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Total != 4 || len(res.Events) != 2 {
			t.Errorf("total=%d len=%d, want 4/2", res.Total, len(res.Events))
		}
		if res.Events[1].Action != ActionLoginSucceeded {
			t.Errorf("last = %q, want oldest event", res.Events[1].Action)
		}
	})

	t.Run("limit capped", func(t *testing.T) {
		res, err := repo.List(ctx, Filter{Limit: 10_000, Offset: -3})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Limit != maxLimit || res.Offset != 0 {
			t.Errorf("limit=%d offset=%d, want %d/0", res.Limit, res.Offset, maxLimit)
		}
	})
}
