package database

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strings"
	"time"
)

// migrationName matches YYYYMMDD_HHMMSS_description.up.sql.
var migrationName = regexp.MustCompile(`^(\d{8}_\d{6})_(\w+)\.up\.sql$`)

// Migration is one forward schema change.
type Migration struct {
	Version string
	Name    string
	SQL     string
}

// Migrate applies, oldest first, every migration in src whose version is
// not in schema_migrations. Each runs in its own transaction: a failure
// keeps earlier ones committed and a re-run resumes at the failed one.
// Schema changes are additive, so there is no down direction.
func (db *DB) Migrate(ctx context.Context, src fs.FS) error {
	pending, err := db.pending(ctx, src)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %s_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// pending lists the migrations in src not yet applied, oldest first.
func (db *DB) pending(ctx context.Context, src fs.FS) ([]Migration, error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("creating schema_migrations: %w", err)
	}

	all, err := readMigrations(src)
	if err != nil {
		return nil, err
	}

	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("reading schema_migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("reading schema_migrations: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading schema_migrations: %w", err)
	}

	return slices.DeleteFunc(all, func(m Migration) bool { return applied[m.Version] }), nil
}

func (db *DB) apply(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}
	return tx.Commit()
}

// readMigrations loads the *.up.sql files at the root of src sorted by
// version. Other files are ignored; a nil src has no migrations.
func readMigrations(src fs.FS) ([]Migration, error) {
	if src == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(src, ".")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		m, ok := parseMigrationName(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		body, err := fs.ReadFile(src, e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		m.SQL = string(body)
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}

func parseMigrationName(file string) (Migration, bool) {
	sub := migrationName.FindStringSubmatch(file)
	if sub == nil {
		return Migration{}, false
	}
	return Migration{Version: sub[1], Name: sub[2]}, true
}
