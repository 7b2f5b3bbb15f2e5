package repository

import (
	"context"

	"github.com/and161185/dolist/internal/model"
)

// AccountRepository provides access to identity provider accounts.
type AccountRepository interface {
	// Create inserts a new account; a duplicate (provider, subject) yields errs.ErrAlreadyExists.
	Create(ctx context.Context, a *model.Account) error
	// GetByID loads an account by id.
	GetByID(ctx context.Context, id string) (*model.Account, error)
	// GetBySubject loads an account by provider and subject.
	GetBySubject(ctx context.Context, provider, subject string) (*model.Account, error)
}
