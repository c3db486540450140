package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/blog-service/internal/domain"
)

// AccountRepository defines persistence access for credentialed accounts.
// Absence is reported as pgx.ErrNoRows, never as a synthesized error.
type AccountRepository interface {
	FindByUsername(ctx context.Context, ns domain.Namespace, username string) (*domain.Account, error)
	FindByEmail(ctx context.Context, ns domain.Namespace, email string) (*domain.Account, error)
	GetByID(ctx context.Context, ns domain.Namespace, id int64) (*domain.Account, error)
	UpdateLastLogin(ctx context.Context, ns domain.Namespace, id int64) error
}

// namespaceTables maps each account namespace to its backing table. Table
// names never come from request input.
var namespaceTables = map[domain.Namespace]string{
	domain.NamespaceUser:  "users",
	domain.NamespaceAdmin: "admins",
}

type accountRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	// lastLoginSupported is a startup capability probe result, one flag per
	// table, never re-checked per call.
	lastLoginSupported map[domain.Namespace]bool
}

// NewAccountRepository returns a Postgres-backed implementation. It probes
// each account table once for a last_login_at column so schemas predating
// that column keep working.
func NewAccountRepository(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (AccountRepository, error) {
	repo := &accountRepository{
		pool:               pool,
		logger:             logger,
		lastLoginSupported: make(map[domain.Namespace]bool, len(namespaceTables)),
	}

	const probe = `
        SELECT EXISTS (
            SELECT 1 FROM information_schema.columns
            WHERE table_name=$1 AND column_name='last_login_at')`

	for ns, table := range namespaceTables {
		var supported bool
		if err := pool.QueryRow(ctx, probe, table).Scan(&supported); err != nil {
			return nil, fmt.Errorf("probe %s schema: %w", table, err)
		}
		repo.lastLoginSupported[ns] = supported
		if !supported {
			logger.Warn("last_login_at column missing; login timestamps will not be recorded",
				zap.String("table", table))
		}
	}

	return repo, nil
}

func (r *accountRepository) FindByUsername(ctx context.Context, ns domain.Namespace, username string) (*domain.Account, error) {
	return r.findBy(ctx, ns, "username", username)
}

func (r *accountRepository) FindByEmail(ctx context.Context, ns domain.Namespace, email string) (*domain.Account, error) {
	return r.findBy(ctx, ns, "email", email)
}

func (r *accountRepository) GetByID(ctx context.Context, ns domain.Namespace, id int64) (*domain.Account, error) {
	table, err := tableFor(ns)
	if err != nil {
		return nil, err
	}
	return r.scanAccount(ctx, ns, r.accountQuery(ns, table, "id=$1"), id)
}

func (r *accountRepository) UpdateLastLogin(ctx context.Context, ns domain.Namespace, id int64) error {
	table, err := tableFor(ns)
	if err != nil {
		return err
	}
	if !r.lastLoginSupported[ns] {
		return nil
	}

	query := fmt.Sprintf(`UPDATE %s SET last_login_at=NOW() WHERE id=$1`, table)
	_, err = r.pool.Exec(ctx, query, id)
	return err
}

func (r *accountRepository) findBy(ctx context.Context, ns domain.Namespace, column, value string) (*domain.Account, error) {
	table, err := tableFor(ns)
	if err != nil {
		return nil, err
	}
	return r.scanAccount(ctx, ns, r.accountQuery(ns, table, column+"=$1"), value)
}

// accountQuery builds the account select for a table. On schemas without a
// last_login_at column the capability flag swaps in a NULL so lookups keep
// working, matching the write-side no-op.
func (r *accountRepository) accountQuery(ns domain.Namespace, table, predicate string) string {
	lastLogin := "last_login_at"
	if !r.lastLoginSupported[ns] {
		lastLogin = "NULL::timestamptz AS last_login_at"
	}
	return fmt.Sprintf(`
        SELECT id, username, email, password_hash, status, role, created_at, %s
        FROM %s WHERE %s`, lastLogin, table, predicate)
}

func (r *accountRepository) scanAccount(ctx context.Context, ns domain.Namespace, query string, arg any) (*domain.Account, error) {
	account := domain.Account{Namespace: ns}
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.Status,
		&account.Role,
		&account.CreatedAt,
		&account.LastLoginAt,
	); err != nil {
		return nil, err
	}
	return &account, nil
}

func tableFor(ns domain.Namespace) (string, error) {
	table, ok := namespaceTables[ns]
	if !ok {
		return "", fmt.Errorf("unknown account namespace %q", ns)
	}
	return table, nil
}
