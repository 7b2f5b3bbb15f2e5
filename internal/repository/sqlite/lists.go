package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/model"
	"github.com/and161185/dolist/internal/repository"
)

var _ repository.LocalStore = (*Store)(nil)

const (
	insertList = `INSERT INTO task_lists (id, userId, title, isCompleted, firebaseId) VALUES (?, ?, ?, ?, ?)`
	insertTask = `INSERT INTO tasks (id, listId, text, isCompleted, firebaseId) VALUES (?, ?, ?, ?, ?)`
	updateTask = `UPDATE tasks SET text = ?, isCompleted = ? WHERE id = ? AND listId = ?`
)

// CreateListWithTasks inserts the list header and all tasks atomically.
func (s *Store) CreateListWithTasks(ctx context.Context, l model.TaskList, tasks []model.Task) (err error) {
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

	if _, err = tx.ExecContext(ctx, insertList, l.ID, l.UserID, l.Title, l.IsCompleted, nullable(l.RemoteID)); err != nil {
		return err
	}
	for _, t := range tasks {
		if _, err = tx.ExecContext(ctx, insertTask, t.ID, l.ID, t.Text, t.IsCompleted, nullable(t.RemoteID)); err != nil {
			return err
		}
	}
	return nil
}

// GetList loads a list header.
func (s *Store) GetList(ctx context.Context, id string) (*model.TaskList, error) {
	const q = `SELECT id, userId, title, isCompleted, firebaseId FROM task_lists WHERE id = ?`
	var (
		l   model.TaskList
		rid sql.NullString
	)
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&l.ID, &l.UserID, &l.Title, &l.IsCompleted, &rid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	l.RemoteID = rid.String
	return &l, nil
}

// ListsByUser returns summaries of a user's lists narrowed by filter.
// A list without tasks is never reported as completed.
func (s *Store) ListsByUser(ctx context.Context, userID string, f model.Filter) ([]model.ListSummary, error) {
	q := `
SELECT l.id, l.userId, l.title, l.isCompleted, l.firebaseId,
       (SELECT COUNT(*) FROM tasks t WHERE t.listId = l.id),
       (SELECT COUNT(*) FROM tasks t WHERE t.listId = l.id AND t.isCompleted = 1)
FROM task_lists l
WHERE l.userId = ?`
	switch f {
	case model.FilterCompleted:
		q += ` AND l.isCompleted = 1 AND EXISTS (SELECT 1 FROM tasks t WHERE t.listId = l.id)`
	case model.FilterPending:
		q += ` AND (l.isCompleted = 0 OR NOT EXISTS (SELECT 1 FROM tasks t WHERE t.listId = l.id))`
	}
	q += ` ORDER BY l.rowid`

	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ListSummary
	for rows.Next() {
		var (
			ls  model.ListSummary
			rid sql.NullString
		)
		if err = rows.Scan(&ls.ID, &ls.UserID, &ls.Title, &ls.IsCompleted, &rid, &ls.Total, &ls.Done); err != nil {
			return nil, err
		}
		ls.RemoteID = rid.String
		out = append(out, ls)
	}
	return out, rows.Err()
}

// UpdateListTitle renames a list.
func (s *Store) UpdateListTitle(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE task_lists SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SetListCompleted stores the derived completion flag.
func (s *Store) SetListCompleted(ctx context.Context, id string, completed bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE task_lists SET isCompleted = ? WHERE id = ?`, completed, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SetListRemoteID records the mirrored document id.
func (s *Store) SetListRemoteID(ctx context.Context, id, remoteID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE task_lists SET firebaseId = ? WHERE id = ?`, nullable(remoteID), id)
	return err
}

// ApplyListEdit applies a whole edit session atomically.
func (s *Store) ApplyListEdit(ctx context.Context, ch repository.ListChanges) (err error) {
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

	res, err := tx.ExecContext(ctx, `UPDATE task_lists SET title = ? WHERE id = ?`, ch.Title, ch.ListID)
	if err != nil {
		return err
	}
	if err = expectOne(res); err != nil {
		return err
	}
	for _, id := range ch.Delete {
		if _, err = tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND listId = ?`, id, ch.ListID); err != nil {
			return err
		}
	}
	for _, t := range ch.Update {
		if _, err = tx.ExecContext(ctx, updateTask, t.Text, t.IsCompleted, t.ID, ch.ListID); err != nil {
			return err
		}
	}
	for _, t := range ch.Insert {
		if _, err = tx.ExecContext(ctx, insertTask, t.ID, ch.ListID, t.Text, t.IsCompleted, nullable(t.RemoteID)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteListCascade removes the tasks first, then the list, atomically.
func (s *Store) DeleteListCascade(ctx context.Context, id string) (err error) {
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

	if _, err = tx.ExecContext(ctx, `DELETE FROM tasks WHERE listId = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM task_lists WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
