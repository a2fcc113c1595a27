package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists audit events in PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if err := initSchema(ctx, pool); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		kind TEXT NOT NULL,
		severity TEXT NOT NULL,
		handle TEXT NOT NULL,
		event_id TEXT,
		turn_id TEXT,
		decision TEXT,
		reason TEXT,
		detail JSONB NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS audit_events_handle_ts ON audit_events (handle, ts DESC);`)
	if err != nil {
		return fmt.Errorf("init audit schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, e Event) error {
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return fmt.Errorf("encode audit detail: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_events (id, ts, kind, severity, handle, event_id, turn_id, decision, reason, detail)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Timestamp, e.Kind, e.Severity, e.Handle, e.EventID, e.TurnID, e.Decision, e.Reason, detail)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByHandle(ctx context.Context, handle string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, ts, kind, severity, handle, event_id, turn_id, decision, reason, detail
		 FROM audit_events WHERE handle = $1 ORDER BY ts DESC LIMIT $2`, handle, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e      Event
			detail []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Kind, &e.Severity, &e.Handle,
			&e.EventID, &e.TurnID, &e.Decision, &e.Reason, &detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
