package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/model"
)

const insertUser = `
INSERT INTO users (id, name, last_name, username, email, password, login, is_guest)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// ReplaceUsers deletes every user row and inserts u atomically.
func (s *Store) ReplaceUsers(ctx context.Context, u model.User) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if e := tx.Commit(); e != nil {
			err = e
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, insertUser,
		u.ID, u.Name, u.LastName, u.Username, u.Email, u.Password, u.Login, u.IsGuest)
	return err
}

// FirstUser returns the current user.
func (s *Store) FirstUser(ctx context.Context) (*model.User, error) {
	const q = `
SELECT id, name, last_name, username, email, password, login, is_guest
FROM users ORDER BY rowid LIMIT 1`
	var u model.User
	err := s.db.QueryRowContext(ctx, q).
		Scan(&u.ID, &u.Name, &u.LastName, &u.Username, &u.Email, &u.Password, &u.Login, &u.IsGuest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// SetLoginStatus updates the login flag of a user.
func (s *Store) SetLoginStatus(ctx context.Context, id string, login bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET login = ? WHERE id = ?`, login, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteAllUsers removes every user row.
func (s *Store) DeleteAllUsers(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users`)
	return err
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}
