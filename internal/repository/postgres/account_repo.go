package postgres

import (
	"context"
	"errors"

	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/model"
	"github.com/and161185/dolist/internal/repository"
	"github.com/jackc/pgx/v5"
)

var _ repository.AccountRepository = (*AccountRepo)(nil)

const selectAccount = `
SELECT id::text, provider, subject, email, display_name, pwd_hash, created_at
FROM accounts`

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO accounts (id, provider, subject, email, display_name, pwd_hash)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, a.ID, a.Provider, a.Subject, a.Email, a.DisplayName, a.PwdHash)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (*model.Account, error) {
	return r.scanOne(r.db.Pool.QueryRow(ctx, selectAccount+` WHERE id=$1`, id))
}

// GetBySubject selects an account by (provider, subject).
func (r *AccountRepo) GetBySubject(ctx context.Context, provider, subject string) (*model.Account, error) {
	return r.scanOne(r.db.Pool.QueryRow(ctx, selectAccount+` WHERE provider=$1 AND subject=$2`, provider, subject))
}

func (r *AccountRepo) scanOne(row pgx.Row) (*model.Account, error) {
	var a model.Account
	if err := row.Scan(&a.ID, &a.Provider, &a.Subject, &a.Email, &a.DisplayName, &a.PwdHash, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
