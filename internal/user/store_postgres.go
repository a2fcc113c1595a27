package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"compass/internal/domain"
	"compass/internal/platform/crypto"
	"compass/pkg/sentinel"
)

// PostgresStore persists users in PostgreSQL via pgx. Preferences carry
// whatever the user has told the companion about themselves, so the column
// is encrypted at rest; compliance state stays queryable JSONB for
// reporting.
type PostgresStore struct {
	pool   *pgxpool.Pool
	cipher *crypto.Cipher
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, cipher *crypto.Cipher) (*PostgresStore, error) {
	if err := initSchema(ctx, pool); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, cipher: cipher}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS users (
		handle TEXT PRIMARY KEY,
		verification TEXT NOT NULL,
		opt_in TEXT NOT NULL,
		compliance JSONB NOT NULL DEFAULT '{}',
		preferences_encrypted TEXT NOT NULL,
		last_seen_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("init users schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, handle string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT handle, verification, opt_in, compliance, preferences_encrypted, last_seen_at, created_at
		 FROM users WHERE handle = $1`, handle)

	var (
		u          domain.User
		compliance []byte
		sealed     string
		lastSeen   *time.Time
	)
	err := row.Scan(&u.Handle, &u.Verification, &u.OptIn, &compliance, &sealed, &lastSeen, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := json.Unmarshal(compliance, &u.Compliance); err != nil {
		return nil, fmt.Errorf("decode compliance state: %w", err)
	}
	preferences, err := s.cipher.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("decrypt preferences: %w", err)
	}
	if err := json.Unmarshal([]byte(preferences), &u.Preferences); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	u.LastSeenAt = lastSeen
	return &u, nil
}

func (s *PostgresStore) Create(ctx context.Context, u *domain.User) error {
	compliance, preferences, err := s.encodeUser(u)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO users (handle, verification, opt_in, compliance, preferences_encrypted, last_seen_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.Handle, u.Verification, u.OptIn, compliance, preferences, u.LastSeenAt, u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, u *domain.User) error {
	compliance, preferences, err := s.encodeUser(u)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET verification = $2, opt_in = $3, compliance = $4, preferences_encrypted = $5, last_seen_at = $6
		 WHERE handle = $1`,
		u.Handle, u.Verification, u.OptIn, compliance, preferences, u.LastSeenAt)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) encodeUser(u *domain.User) (compliance []byte, preferences string, err error) {
	if compliance, err = json.Marshal(u.Compliance); err != nil {
		return nil, "", fmt.Errorf("encode compliance state: %w", err)
	}
	prefs := u.Preferences
	if prefs == nil {
		prefs = map[string]string{}
	}
	raw, err := json.Marshal(prefs)
	if err != nil {
		return nil, "", fmt.Errorf("encode preferences: %w", err)
	}
	if preferences, err = s.cipher.Encrypt(string(raw)); err != nil {
		return nil, "", fmt.Errorf("encrypt preferences: %w", err)
	}
	return compliance, preferences, nil
}
