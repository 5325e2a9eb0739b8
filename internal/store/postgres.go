package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wagerx/escrow-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL. All monetary values are
// stored as NUMERIC for exact decimal precision; status is stored in its
// string form so off-chain consumers can query it directly.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS wagers (
    id                 BIGINT PRIMARY KEY,
    participants       TEXT[] NOT NULL,
    amount             NUMERIC NOT NULL,
    condition          TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL,
    winner             TEXT NOT NULL DEFAULT '',
    charity_enabled    BOOLEAN NOT NULL DEFAULT FALSE,
    charity_percentage BIGINT NOT NULL DEFAULT 0,
    charity_address    TEXT NOT NULL DEFAULT '',
    charity_donated    NUMERIC NOT NULL DEFAULT 0,
    funded_by          TEXT[] NOT NULL DEFAULT '{}',
    created_at         TIMESTAMPTZ NOT NULL,
    resolved_at        TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS wagers_status_idx ON wagers (status);
`

// NewPostgresStore creates a PostgreSQL-backed store and ensures the mirror
// table exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("ensure wagers table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Ping reports database reachability for the health endpoint.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) UpsertWager(ctx context.Context, w *model.Wager) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO wagers (id, participants, amount, condition, status, winner,
		                     charity_enabled, charity_percentage, charity_address,
		                     charity_donated, funded_by, created_at, resolved_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6, $7, $8, $9, $10::NUMERIC, $11, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status,
		   winner = EXCLUDED.winner,
		   charity_donated = EXCLUDED.charity_donated,
		   funded_by = EXCLUDED.funded_by,
		   resolved_at = EXCLUDED.resolved_at`,
		int64(w.ID), w.Participants, w.Amount.String(), w.Condition,
		w.Status.String(), w.Winner,
		w.CharityEnabled, w.CharityPercentage, w.CharityAddress,
		w.CharityDonated.String(), w.FundedBy, w.CreatedAt, w.ResolvedAt,
	)
	return err
}

const selectColumns = `id, participants, amount::TEXT, condition, status, winner,
	charity_enabled, charity_percentage, charity_address,
	charity_donated::TEXT, funded_by, created_at, resolved_at`

func (s *PostgresStore) GetWager(ctx context.Context, id uint64) (*model.Wager, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM wagers WHERE id = $1`, int64(id))

	w, err := scanWager(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get wager %d: %w", id, err)
	}
	return w, nil
}

func (s *PostgresStore) ListWagers(ctx context.Context) ([]model.Wager, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM wagers ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectWagers(rows)
}

func (s *PostgresStore) ListWagersByStatus(ctx context.Context, status model.WagerStatus) ([]model.Wager, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM wagers WHERE status = $1 ORDER BY id DESC`,
		status.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectWagers(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWager(row rowScanner) (*model.Wager, error) {
	var (
		w          model.Wager
		id         int64
		amountS    string
		statusS    string
		donatedS   string
		resolvedAt *time.Time
	)

	if err := row.Scan(&id, &w.Participants, &amountS, &w.Condition, &statusS,
		&w.Winner, &w.CharityEnabled, &w.CharityPercentage, &w.CharityAddress,
		&donatedS, &w.FundedBy, &w.CreatedAt, &resolvedAt); err != nil {
		return nil, err
	}

	w.ID = uint64(id)
	w.ResolvedAt = resolvedAt

	status, err := model.ParseStatus(statusS)
	if err != nil {
		return nil, err
	}
	w.Status = status

	if w.Amount, err = decimal.NewFromString(amountS); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if w.CharityDonated, err = decimal.NewFromString(donatedS); err != nil {
		return nil, fmt.Errorf("parse charity_donated: %w", err)
	}
	return &w, nil
}

func collectWagers(rows pgx.Rows) ([]model.Wager, error) {
	var wagers []model.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, err
		}
		wagers = append(wagers, *w)
	}
	return wagers, rows.Err()
}
