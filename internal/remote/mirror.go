// Package remote mirrors users, lists and tasks to the remote document store.
// Every call is bounded by the client timeout.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/model"
	"go.mongodb.org/mongo-driver/bson"
)

// Collection names.
const (
	CollUsers     = "users"
	CollTaskLists = "task_lists"
	CollTasks     = "tasks"
)

// DefaultTimeout bounds a single remote call.
const DefaultTimeout = 5 * time.Second

// DocumentStore is a keyed document collection store.
type DocumentStore interface {
	// Get returns the document or errs.ErrNotFound.
	Get(ctx context.Context, collection, id string) (bson.Raw, error)
	// Set creates or replaces the document with the given id.
	Set(ctx context.Context, collection, id string, doc any) error
	// Delete removes the document; a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Query returns the documents whose field equals value.
	Query(ctx context.Context, collection, field, value string) ([]bson.Raw, error)
}

// Mirror is the remote side of the reconciliation layer.
type Mirror interface {
	PutUser(ctx context.Context, u model.User) error
	// GetUser returns the remote profile or errs.ErrNotFound.
	GetUser(ctx context.Context, uid string) (*model.User, error)
	PutTaskList(ctx context.Context, l model.TaskList) error
	DeleteTaskList(ctx context.Context, id string) error
	PutTask(ctx context.Context, t model.Task) error
	DeleteTask(ctx context.Context, id string) error
	QueryTasksByList(ctx context.Context, listID string) ([]model.Task, error)
}

type userDoc struct {
	ID       string `bson:"_id"`
	Name     string `bson:"name"`
	LastName string `bson:"last_name"`
	Username string `bson:"username"`
	Email    string `bson:"email"`
	Password string `bson:"password"`
	Login    bool   `bson:"login"`
}

type listDoc struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"userId"`
	Title       string    `bson:"title"`
	IsCompleted bool      `bson:"isCompleted"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

type taskDoc struct {
	ID          string    `bson:"_id"`
	ListID      string    `bson:"listId"`
	Text        string    `bson:"text"`
	IsCompleted bool      `bson:"isCompleted"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

// Client implements Mirror on top of a DocumentStore.
type Client struct {
	store   DocumentStore
	timeout time.Duration
	now     func() time.Time
}

var _ Mirror = (*Client)(nil)

// NewClient constructs a mirror client. A non-positive timeout selects DefaultTimeout.
func NewClient(store DocumentStore, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{store: store, timeout: timeout, now: time.Now}
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// PutUser writes the profile document users/{id}.
func (c *Client) PutUser(ctx context.Context, u model.User) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	doc := userDoc{
		ID: u.ID, Name: u.Name, LastName: u.LastName, Username: u.Username,
		Email: u.Email, Password: u.Password, Login: u.Login,
	}
	if err := c.store.Set(ctx, CollUsers, u.ID, doc); err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser reads users/{uid}.
func (c *Client) GetUser(ctx context.Context, uid string) (*model.User, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	raw, err := c.store.Get(ctx, CollUsers, uid)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	var d userDoc
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if d.ID == "" {
		d.ID = uid
	}
	return &model.User{
		ID: d.ID, Name: d.Name, LastName: d.LastName, Username: d.Username,
		Email: d.Email, Password: d.Password, Login: d.Login,
	}, nil
}

// PutTaskList writes task_lists/{id}.
func (c *Client) PutTaskList(ctx context.Context, l model.TaskList) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	doc := listDoc{ID: l.ID, UserID: l.UserID, Title: l.Title, IsCompleted: l.IsCompleted, UpdatedAt: c.now().UTC()}
	if err := c.store.Set(ctx, CollTaskLists, l.ID, doc); err != nil {
		return fmt.Errorf("put list: %w", err)
	}
	return nil
}

// DeleteTaskList removes task_lists/{id}.
func (c *Client) DeleteTaskList(ctx context.Context, id string) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	if err := c.store.Delete(ctx, CollTaskLists, id); err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

// PutTask writes tasks/{id}.
func (c *Client) PutTask(ctx context.Context, t model.Task) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	doc := taskDoc{ID: t.ID, ListID: t.ListID, Text: t.Text, IsCompleted: t.IsCompleted, UpdatedAt: c.now().UTC()}
	if err := c.store.Set(ctx, CollTasks, t.ID, doc); err != nil {
		return fmt.Errorf("put task: %w", err)
	}
	return nil
}

// DeleteTask removes tasks/{id}.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	if err := c.store.Delete(ctx, CollTasks, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// QueryTasksByList returns the remote tasks whose listId equals listID.
func (c *Client) QueryTasksByList(ctx context.Context, listID string) ([]model.Task, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	raws, err := c.store.Query(ctx, CollTasks, "listId", listID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	out := make([]model.Task, 0, len(raws))
	for _, raw := range raws {
		var d taskDoc
		if err := bson.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		out = append(out, model.Task{ID: d.ID, ListID: d.ListID, Text: d.Text, IsCompleted: d.IsCompleted, RemoteID: d.ID})
	}
	return out, nil
}

// Disabled is the Mirror used when no remote store is configured; every call fails
// with errs.ErrRemoteUnavailable so callers take their offline paths.
type Disabled struct{}

var _ Mirror = Disabled{}

func (Disabled) PutUser(context.Context, model.User) error { return errs.ErrRemoteUnavailable }
func (Disabled) GetUser(context.Context, string) (*model.User, error) {
	return nil, errs.ErrRemoteUnavailable
}
func (Disabled) PutTaskList(context.Context, model.TaskList) error { return errs.ErrRemoteUnavailable }
func (Disabled) DeleteTaskList(context.Context, string) error      { return errs.ErrRemoteUnavailable }
func (Disabled) PutTask(context.Context, model.Task) error         { return errs.ErrRemoteUnavailable }
func (Disabled) DeleteTask(context.Context, string) error          { return errs.ErrRemoteUnavailable }
func (Disabled) QueryTasksByList(context.Context, string) ([]model.Task, error) {
	return nil, errs.ErrRemoteUnavailable
}
