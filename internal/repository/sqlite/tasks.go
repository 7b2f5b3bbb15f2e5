package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/model"
)

// InsertTask adds a task to an existing list.
func (s *Store) InsertTask(ctx context.Context, t model.Task) error {
	if _, err := s.GetList(ctx, t.ListID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, insertTask, t.ID, t.ListID, t.Text, t.IsCompleted, nullable(t.RemoteID))
	return err
}

// GetTask loads a single task.
func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	const q = `SELECT id, listId, text, isCompleted, firebaseId FROM tasks WHERE id = ?`
	var (
		t   model.Task
		rid sql.NullString
	)
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.ListID, &t.Text, &t.IsCompleted, &rid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	t.RemoteID = rid.String
	return &t, nil
}

// TasksByList returns the tasks of a list in creation order.
func (s *Store) TasksByList(ctx context.Context, listID string) ([]model.Task, error) {
	return tasksByList(ctx, s.db, listID)
}

func tasksByList(ctx context.Context, q querier, listID string) ([]model.Task, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, listId, text, isCompleted, firebaseId FROM tasks WHERE listId = ? ORDER BY rowid`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		var (
			t   model.Task
			rid sql.NullString
		)
		if err = rows.Scan(&t.ID, &t.ListID, &t.Text, &t.IsCompleted, &rid); err != nil {
			return nil, err
		}
		t.RemoteID = rid.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTask stores text and completion of a task.
func (s *Store) UpdateTask(ctx context.Context, t model.Task) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET text = ?, isCompleted = ? WHERE id = ?`,
		t.Text, t.IsCompleted, t.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteTask removes a single task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SetTaskRemoteID records the mirrored document id.
func (s *Store) SetTaskRemoteID(ctx context.Context, id, remoteID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET firebaseId = ? WHERE id = ?`, nullable(remoteID), id)
	return err
}
