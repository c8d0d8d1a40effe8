package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowgate/flowgate/pkg/domain"
)

// PostgresLog persists audit events to a PostgreSQL table for
// multi-instance deployments.
type PostgresLog struct {
	db *pgxpool.Pool
}

// Schema is the DDL for the audit_events table.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    id            TEXT PRIMARY KEY,
    kind          TEXT NOT NULL,
    ts            TIMESTAMPTZ NOT NULL,
    execution_id  TEXT NOT NULL,
    agent_id      TEXT NOT NULL,
    payload       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_events_execution_idx ON audit_events (execution_id);
`

// NewPostgresLog creates a Postgres-backed audit log on an existing
// pool.
func NewPostgresLog(db *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (l *PostgresLog) EnsureSchema(ctx context.Context) error {
	_, err := l.db.Exec(ctx, Schema)
	return err
}

func (l *PostgresLog) Append(ctx context.Context, event domain.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(ctx,
		"INSERT INTO audit_events (id, kind, ts, execution_id, agent_id, payload) VALUES ($1, $2, $3, $4, $5, $6)",
		event.ID, event.Kind, event.Timestamp, event.ExecutionID, event.AgentID, payload)
	return err
}
