// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/dolist/internal/model"
)

// UserStore holds the current session user. Normal operation keeps exactly one row.
type UserStore interface {
	// ReplaceUsers deletes every user row and inserts u in one transaction.
	ReplaceUsers(ctx context.Context, u model.User) error
	// FirstUser returns the current user or errs.ErrNotFound.
	FirstUser(ctx context.Context) (*model.User, error)
	// SetLoginStatus updates the session-active flag of a user.
	SetLoginStatus(ctx context.Context, id string, login bool) error
	// DeleteAllUsers removes every user row.
	DeleteAllUsers(ctx context.Context) error
}

// ListChanges is an edit applied to one list atomically.
type ListChanges struct {
	ListID string
	Title  string
	Insert []model.Task
	Update []model.Task
	Delete []string
}

// ListStore provides access to task lists.
type ListStore interface {
	// CreateListWithTasks inserts a list and its tasks in one transaction.
	CreateListWithTasks(ctx context.Context, l model.TaskList, tasks []model.Task) error
	// GetList loads a list by id or returns errs.ErrNotFound.
	GetList(ctx context.Context, id string) (*model.TaskList, error)
	// ListsByUser returns list summaries of a user narrowed by filter, in creation order.
	ListsByUser(ctx context.Context, userID string, f model.Filter) ([]model.ListSummary, error)
	// UpdateListTitle renames a list.
	UpdateListTitle(ctx context.Context, id, title string) error
	// SetListCompleted stores the derived completion flag.
	SetListCompleted(ctx context.Context, id string, completed bool) error
	// SetListRemoteID records the mirrored document id.
	SetListRemoteID(ctx context.Context, id, remoteID string) error
	// ApplyListEdit renames the list and inserts/updates/deletes its tasks in one transaction.
	ApplyListEdit(ctx context.Context, ch ListChanges) error
	// DeleteListCascade removes a list and all of its tasks in one transaction.
	DeleteListCascade(ctx context.Context, id string) error
}

// TaskStore provides access to tasks.
type TaskStore interface {
	// InsertTask adds a task to an existing list.
	InsertTask(ctx context.Context, t model.Task) error
	// GetTask loads a task by id or returns errs.ErrNotFound.
	GetTask(ctx context.Context, id string) (*model.Task, error)
	// TasksByList returns the tasks of a list in creation order.
	TasksByList(ctx context.Context, listID string) ([]model.Task, error)
	// UpdateTask stores text and completion of a task.
	UpdateTask(ctx context.Context, t model.Task) error
	// DeleteTask removes a single task.
	DeleteTask(ctx context.Context, id string) error
	// SetTaskRemoteID records the mirrored document id.
	SetTaskRemoteID(ctx context.Context, id, remoteID string) error
}

// LocalStore is the device-side store as a whole.
type LocalStore interface {
	UserStore
	ListStore
	TaskStore
}
