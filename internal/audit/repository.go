// Package audit records authentication outcomes.
//
// Events are persisted to the auth_events table and fanned out to live
// sinks (MQTT, InfluxDB, WebSocket) by a Recorder.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page size bounds for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timestampLayout is fixed-width so created_at sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository stores and queries audit events.
type Repository interface {
	Create(ctx context.Context, evt *Event) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores events in the auth_events table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an already migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts evt. ID and CreatedAt are filled in when empty.
func (r *SQLiteRepository) Create(ctx context.Context, evt *Event) error {
	if evt.ID == "" {
		evt.ID = "evt-" + uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_events (id, action, outcome, reason, subject, identifier, method, path, remote_addr, request_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.ID, string(evt.Action), evt.Outcome,
		nullableString(evt.Reason), nullableString(evt.Subject), nullableString(evt.Identifier),
		nullableString(evt.Method), nullableString(evt.Path),
		nullableString(evt.RemoteAddr), nullableString(evt.RequestID),
		evt.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}

// nullableString maps "" to NULL for optional TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns events matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.Subject != "" {
		conditions = append(conditions, "subject = ?")
		args = append(args, filter.Subject)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM auth_events " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit events: %w", err)
	}

	query := `SELECT id, action, outcome, reason, subject, identifier, method, path, remote_addr, request_id, created_at
		FROM auth_events ` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?` //nolint:gosec // WHERE built from parameterised conditions
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit events: %w", err)
	}

	return &ListResult{
		Events: events,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var evt Event
	var action, createdAt string
	var reason, subject, identifier, method, path, remoteAddr, requestID sql.NullString

	if err := rows.Scan(&evt.ID, &action, &evt.Outcome, &reason, &subject, &identifier,
		&method, &path, &remoteAddr, &requestID, &createdAt); err != nil {
		return Event{}, fmt.Errorf("scanning audit event: %w", err)
	}

	evt.Action = Action(action)
	evt.Reason = reason.String
	evt.Subject = subject.String
	evt.Identifier = identifier.String
	evt.Method = method.String
	evt.Path = path.String
	evt.RemoteAddr = remoteAddr.String
	evt.RequestID = requestID.String

	t, err := time.Parse(timestampLayout, createdAt)
	if err != nil {
		return Event{}, fmt.Errorf("parsing audit event timestamp %q: %w", createdAt, err)
	}
	evt.CreatedAt = t

	return evt, nil
}
