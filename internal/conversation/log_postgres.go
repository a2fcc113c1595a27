package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"compass/internal/domain"
	"compass/internal/platform/crypto"
)

// PostgresLog persists turns in PostgreSQL. Message text is encrypted at rest;
// everything else stays queryable for reporting.
type PostgresLog struct {
	pool   *pgxpool.Pool
	cipher *crypto.Cipher
}

func NewPostgresLog(ctx context.Context, pool *pgxpool.Pool, cipher *crypto.Cipher) (*PostgresLog, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			handle TEXT NOT NULL,
			seq BIGINT NOT NULL,
			event_id TEXT NOT NULL,
			inbound_encrypted TEXT NOT NULL,
			outbound_encrypted TEXT,
			suppressed BOOLEAN NOT NULL DEFAULT FALSE,
			suppress_reason TEXT,
			crisis_categories TEXT[],
			generation_failed BOOLEAN NOT NULL DEFAULT FALSE,
			provider TEXT,
			model TEXT,
			latency_ms BIGINT,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (handle, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_handle_seq ON turns (handle, seq DESC);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_turns_event_id ON turns (event_id) WHERE event_id <> '';`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("init turns schema: %w", err)
		}
	}
	return &PostgresLog{pool: pool, cipher: cipher}, nil
}

func (l *PostgresLog) Append(ctx context.Context, t *domain.Turn) error {
	inbound, err := l.cipher.Encrypt(t.InboundText)
	if err != nil {
		return fmt.Errorf("encrypt inbound: %w", err)
	}
	var outbound *string
	if t.OutboundText != "" {
		sealed, err := l.cipher.Encrypt(t.OutboundText)
		if err != nil {
			return fmt.Errorf("encrypt outbound: %w", err)
		}
		outbound = &sealed
	}

	cats := make([]string, 0, len(t.CrisisCategories))
	for _, c := range t.CrisisCategories {
		cats = append(cats, string(c))
	}

	// Appends for one handle run under the per-user lock, so the max+1
	// subquery cannot race with itself. The event_id conflict clause makes a
	// redelivered event a no-op instead of a second turn.
	row := l.pool.QueryRow(ctx,
		`INSERT INTO turns (id, handle, seq, event_id, inbound_encrypted, outbound_encrypted,
			suppressed, suppress_reason, crisis_categories, generation_failed,
			provider, model, latency_ms, created_at)
		 VALUES ($1, $2,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE handle = $2),
			$3, $4, $5, $6, NULLIF($7, ''), $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12, $13)
		 ON CONFLICT (event_id) WHERE event_id <> '' DO NOTHING
		 RETURNING seq`,
		t.ID, t.Handle, t.EventID, inbound, outbound,
		t.Suppressed, string(t.SuppressReason), cats, t.GenerationFailed,
		t.Provider, t.Model, t.LatencyMS, t.CreatedAt)
	err = row.Scan(&t.Seq)
	if errors.Is(err, pgx.ErrNoRows) {
		row := l.pool.QueryRow(ctx, `SELECT id, seq FROM turns WHERE event_id = $1`, t.EventID)
		if err := row.Scan(&t.ID, &t.Seq); err != nil {
			return fmt.Errorf("load existing turn: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (l *PostgresLog) Recent(ctx context.Context, handle string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, handle, seq, event_id, inbound_encrypted, outbound_encrypted,
			suppressed, COALESCE(suppress_reason, ''), crisis_categories, generation_failed,
			COALESCE(provider, ''), COALESCE(model, ''), COALESCE(latency_ms, 0), created_at
		 FROM turns WHERE handle = $1 ORDER BY seq DESC LIMIT $2`,
		handle, limit)
	if err != nil {
		return nil, fmt.Errorf("load recent turns: %w", err)
	}
	defer rows.Close()

	var newestFirst []domain.Turn
	for rows.Next() {
		var (
			t        domain.Turn
			inbound  string
			outbound *string
			reason   string
			cats     []string
		)
		if err := rows.Scan(&t.ID, &t.Handle, &t.Seq, &t.EventID, &inbound, &outbound,
			&t.Suppressed, &reason, &cats, &t.GenerationFailed,
			&t.Provider, &t.Model, &t.LatencyMS, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if t.InboundText, err = l.cipher.Decrypt(inbound); err != nil {
			return nil, fmt.Errorf("decrypt inbound: %w", err)
		}
		if outbound != nil {
			if t.OutboundText, err = l.cipher.Decrypt(*outbound); err != nil {
				return nil, fmt.Errorf("decrypt outbound: %w", err)
			}
		}
		t.SuppressReason = domain.SuppressReason(reason)
		for _, c := range cats {
			t.CrisisCategories = append(t.CrisisCategories, domain.CrisisCategory(c))
		}
		newestFirst = append(newestFirst, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	// Reverse to chronological order.
	for i, j := 0, len(newestFirst)-1; i < j; i, j = i+1, j-1 {
		newestFirst[i], newestFirst[j] = newestFirst[j], newestFirst[i]
	}
	return newestFirst, nil
}
