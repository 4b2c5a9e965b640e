package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Event is one audit row.
type Event struct {
	ID        int64
	At        time.Time
	TraceID   string
	SessionID string
	Kind      string
	Outcome   string
	Provider  sql.NullString
	Detail    sql.NullString
}

// InsertEvent appends one audit row. Empty provider and detail are
// stored as NULL.
func (s *Store) InsertEvent(ctx context.Context, traceID, sessionID, kind, outcome, provider, detail string) error {
	var providerNull, detailNull sql.NullString
	if provider != "" {
		providerNull = sql.NullString{String: provider, Valid: true}
	}
	if detail != "" {
		detailNull = sql.NullString{String: detail, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (ts, trace_id, session_id, kind, outcome, provider, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, time.Now(), traceID, sessionID, kind, outcome, providerNull, detailNull)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// RecentEvents returns the newest audit rows, most recent first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, trace_id, session_id, kind, outcome, provider, detail
		FROM audit_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.At, &e.TraceID, &e.SessionID, &e.Kind, &e.Outcome, &e.Provider, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// CountEvents reports how many audit rows exist.
func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events").Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return n, nil
}
