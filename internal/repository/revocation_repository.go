package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/blog-service/internal/domain"
)

// RevocationLedger is the durable, authoritative record of revoked tokens.
type RevocationLedger interface {
	Record(ctx context.Context, rec *domain.RevocationRecord) error
	Contains(ctx context.Context, token string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	LoadActive(ctx context.Context, now time.Time) ([]string, error)
	EnsureSchema(ctx context.Context) error
}

type revocationLedger struct {
	pool *pgxpool.Pool
}

// NewRevocationLedger returns a Postgres-backed implementation.
func NewRevocationLedger(pool *pgxpool.Pool) RevocationLedger {
	return &revocationLedger{pool: pool}
}

// EnsureSchema creates the revoked_tokens table and its indexes if they do
// not exist yet. Safe to call on every boot.
func (r *revocationLedger) EnsureSchema(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS revoked_tokens (
            id BIGSERIAL PRIMARY KEY,
            token TEXT NOT NULL,
            subject_id BIGINT NOT NULL,
            namespace TEXT NOT NULL,
            reason TEXT NOT NULL,
            expires_at TIMESTAMPTZ NOT NULL,
            revoked_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_revoked_tokens_token ON revoked_tokens (token);
        CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expires_at ON revoked_tokens (expires_at);`

	_, err := r.pool.Exec(ctx, ddl)
	return err
}

func (r *revocationLedger) Record(ctx context.Context, rec *domain.RevocationRecord) error {
	const query = `
        INSERT INTO revoked_tokens (token, subject_id, namespace, reason, expires_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, revoked_at`

	return r.pool.QueryRow(ctx, query,
		rec.Token,
		rec.SubjectID,
		rec.Namespace,
		rec.Reason,
		rec.ExpiresAt,
	).Scan(&rec.ID, &rec.RevokedAt)
}

func (r *revocationLedger) Contains(ctx context.Context, token string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token=$1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, token).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *revocationLedger) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM revoked_tokens WHERE expires_at <= $1`

	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *revocationLedger) LoadActive(ctx context.Context, now time.Time) ([]string, error) {
	const query = `SELECT token FROM revoked_tokens WHERE expires_at > $1`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}
