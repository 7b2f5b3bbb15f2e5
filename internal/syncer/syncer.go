// Package syncer pushes local list and task writes to the remote mirror.
// It never fails the caller: remote errors are logged and dropped.
package syncer

import (
	"context"

	"github.com/and161185/dolist/internal/model"
	"github.com/and161185/dolist/internal/remote"
	"github.com/and161185/dolist/internal/repository"
	"go.uber.org/zap"
)

// Store is the local store subset the coordinator reads and annotates.
type Store interface {
	GetList(ctx context.Context, id string) (*model.TaskList, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	TasksByList(ctx context.Context, listID string) ([]model.Task, error)
	SetListRemoteID(ctx context.Context, id, remoteID string) error
	SetTaskRemoteID(ctx context.Context, id, remoteID string) error
}

var _ Store = (repository.LocalStore)(nil)

// IdentitySource reports the identity provider's current principal, nil when signed out.
type IdentitySource interface {
	CurrentIdentity(ctx context.Context) (*model.Identity, error)
}

// Coordinator mirrors writes for signed-in, non-guest users.
type Coordinator struct {
	store  Store
	mirror remote.Mirror
	ids    IdentitySource
	log    *zap.Logger
}

// New constructs a Coordinator.
func New(store Store, mirror remote.Mirror, ids IdentitySource, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{store: store, mirror: mirror, ids: ids, log: log}
}

func (c *Coordinator) active(ctx context.Context, u *model.User) bool {
	if u == nil || u.IsGuest {
		return false
	}
	id, err := c.ids.CurrentIdentity(ctx)
	if err != nil {
		c.log.Warn("sync skipped: identity unavailable", zap.Error(err))
		return false
	}
	return id != nil
}

func (c *Coordinator) warn(msg string, err error, fields ...zap.Field) {
	c.log.Warn(msg, append(fields, zap.Error(err))...)
}

// SyncList deletes removedTaskIDs remotely, then upserts the list and all its tasks.
func (c *Coordinator) SyncList(ctx context.Context, u *model.User, listID string, removedTaskIDs ...string) {
	if !c.active(ctx, u) {
		return
	}
	for _, id := range removedTaskIDs {
		if err := c.mirror.DeleteTask(ctx, id); err != nil {
			c.warn("sync: delete task", err, zap.String("task", id))
		}
	}
	l, err := c.store.GetList(ctx, listID)
	if err != nil {
		c.warn("sync: load list", err, zap.String("list", listID))
		return
	}
	c.putList(ctx, l)

	tasks, err := c.store.TasksByList(ctx, listID)
	if err != nil {
		c.warn("sync: load tasks", err, zap.String("list", listID))
		return
	}
	for i := range tasks {
		c.putTask(ctx, &tasks[i])
	}
}

// SyncTask upserts one task and its list header.
func (c *Coordinator) SyncTask(ctx context.Context, u *model.User, taskID string) {
	if !c.active(ctx, u) {
		return
	}
	t, err := c.store.GetTask(ctx, taskID)
	if err != nil {
		c.warn("sync: load task", err, zap.String("task", taskID))
		return
	}
	c.putTask(ctx, t)
	c.syncHeader(ctx, t.ListID)
}

// SyncTaskRemoved deletes the task document and upserts the list header.
func (c *Coordinator) SyncTaskRemoved(ctx context.Context, u *model.User, listID, taskID string) {
	if !c.active(ctx, u) {
		return
	}
	if err := c.mirror.DeleteTask(ctx, taskID); err != nil {
		c.warn("sync: delete task", err, zap.String("task", taskID))
	}
	c.syncHeader(ctx, listID)
}

// SyncListDeleted removes the remote tasks of the list, then the list document.
func (c *Coordinator) SyncListDeleted(ctx context.Context, u *model.User, listID string) {
	if !c.active(ctx, u) {
		return
	}
	tasks, err := c.mirror.QueryTasksByList(ctx, listID)
	if err != nil {
		// keep the list document so the tasks are not orphaned remotely
		c.warn("sync: query remote tasks", err, zap.String("list", listID))
		return
	}
	for _, t := range tasks {
		if err := c.mirror.DeleteTask(ctx, t.ID); err != nil {
			c.warn("sync: delete task", err, zap.String("task", t.ID))
		}
	}
	if err := c.mirror.DeleteTaskList(ctx, listID); err != nil {
		c.warn("sync: delete list", err, zap.String("list", listID))
	}
}

func (c *Coordinator) syncHeader(ctx context.Context, listID string) {
	l, err := c.store.GetList(ctx, listID)
	if err != nil {
		c.warn("sync: load list", err, zap.String("list", listID))
		return
	}
	c.putList(ctx, l)
}

func (c *Coordinator) putList(ctx context.Context, l *model.TaskList) {
	if err := c.mirror.PutTaskList(ctx, *l); err != nil {
		c.warn("sync: put list", err, zap.String("list", l.ID))
		return
	}
	if l.RemoteID == "" {
		if err := c.store.SetListRemoteID(ctx, l.ID, l.ID); err != nil {
			c.warn("sync: record list remote id", err, zap.String("list", l.ID))
		}
	}
}

func (c *Coordinator) putTask(ctx context.Context, t *model.Task) {
	if err := c.mirror.PutTask(ctx, *t); err != nil {
		c.warn("sync: put task", err, zap.String("task", t.ID))
		return
	}
	if t.RemoteID == "" {
		if err := c.store.SetTaskRemoteID(ctx, t.ID, t.ID); err != nil {
			c.warn("sync: record task remote id", err, zap.String("task", t.ID))
		}
	}
}
