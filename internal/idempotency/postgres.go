package idempotency

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const idempotencyTableSQL = `
CREATE TABLE IF NOT EXISTS idempotency_records (
	key         TEXT PRIMARY KEY,
	status_code INT NOT NULL,
	response    BYTEA NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_idempotency_expires ON idempotency_records (expires_at);
`

// PostgresStore persists records in Postgres so replays survive restarts
// and are shared between replicas.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, idempotencyTableSQL); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (Record, error) {
	var rec Record
	err := s.pool.QueryRow(ctx, `
		SELECT key, status_code, response, created_at, expires_at
		FROM idempotency_records
		WHERE key = $1 AND expires_at > now()`, key,
	).Scan(&rec.Key, &rec.StatusCode, &rec.Response, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_records (key, status_code, response, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO NOTHING`,
		rec.Key, rec.StatusCode, rec.Response, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return err
	}
	// first-writer-wins; periodic cleanup of expired rows
	_, _ = s.pool.Exec(ctx, `DELETE FROM idempotency_records WHERE expires_at < now() - interval '1 hour'`)
	return nil
}
