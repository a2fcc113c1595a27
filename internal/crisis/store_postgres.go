package crisis

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"compass/internal/domain"
)

// PostgresStore persists crisis events for compliance reporting. Matched terms
// are stored verbatim so a report can be reproduced against the list version.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS crisis_events (
		id TEXT PRIMARY KEY,
		handle TEXT NOT NULL,
		turn_id TEXT NOT NULL,
		category TEXT NOT NULL,
		severity TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		terms TEXT[] NOT NULL,
		terms_version TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);`)
	if err != nil {
		return nil, fmt.Errorf("init crisis_events schema: %w", err)
	}
	_, err = pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_crisis_events_handle ON crisis_events (handle, created_at);`)
	if err != nil {
		return nil, fmt.Errorf("init crisis_events index: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Append(ctx context.Context, event domain.CrisisEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crisis_events (id, handle, turn_id, category, severity, confidence, terms, terms_version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.Handle, event.TurnID, event.Category, event.Severity,
		event.Confidence, event.Terms, event.TermsVersion, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("append crisis event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByHandle(ctx context.Context, handle string) ([]domain.CrisisEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, handle, turn_id, category, severity, confidence, terms, terms_version, created_at
		 FROM crisis_events WHERE handle = $1 ORDER BY created_at`, handle)
	if err != nil {
		return nil, fmt.Errorf("list crisis events: %w", err)
	}
	defer rows.Close()

	var events []domain.CrisisEvent
	for rows.Next() {
		var e domain.CrisisEvent
		if err := rows.Scan(&e.ID, &e.Handle, &e.TurnID, &e.Category, &e.Severity,
			&e.Confidence, &e.Terms, &e.TermsVersion, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan crisis event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
