package audit

import (
	"context"
	"database/sql"
)

// PostgresStore implements Recorder using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed audit store. The schema
// is managed by goose migrations (see migrations/).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, event *Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO a2a_audit_events (agent_id, event_type, method, reference, detail, created_at)
		VALUES ($1, $2, $3, $4, COALESCE(NULLIF($5, '')::JSONB, '{}'), NOW())
	`, event.AgentID, event.EventType, event.Method, event.Reference, event.Detail)
	return err
}

// ByAgent returns recorded events for one agent, oldest first.
func (s *PostgresStore) ByAgent(ctx context.Context, agentID string) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, event_type, COALESCE(method, ''), COALESCE(reference, ''), COALESCE(detail::TEXT, '{}'), created_at
		FROM a2a_audit_events
		WHERE agent_id = $1
		ORDER BY id ASC
	`, agentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.AgentID, &e.EventType, &e.Method, &e.Reference, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
