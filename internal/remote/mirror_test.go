package remote_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/model"
	"github.com/and161185/dolist/internal/remote"
	"github.com/and161185/dolist/internal/remote/remotetest"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type slowStore struct{ remote.DocumentStore }

func (slowStore) Get(ctx context.Context, _, _ string) (bson.Raw, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestClient_UserDocumentShape(t *testing.T) {
	mem := remotetest.NewMemStore()
	c := remote.NewClient(mem, time.Second)
	ctx := context.Background()

	_, err := c.GetUser(ctx, "uid-1")
	require.ErrorIs(t, err, errs.ErrNotFound)

	in := model.User{ID: "uid-1", Name: "Ana", LastName: "Li", Username: "ana", Email: "ana@x.io", Login: true, IsGuest: true}
	require.NoError(t, c.PutUser(ctx, in))

	var raw bson.M
	require.True(t, mem.Lookup(remote.CollUsers, "uid-1", &raw))
	for _, k := range []string{"name", "last_name", "username", "email", "password", "login"} {
		require.Contains(t, raw, k)
	}
	require.NotContains(t, raw, "is_guest")

	got, err := c.GetUser(ctx, "uid-1")
	require.NoError(t, err)
	require.Equal(t, "Li", got.LastName)
	require.True(t, got.Login)
	require.False(t, got.IsGuest, "remote profiles are never guests")
}

func TestClient_ListsAndTasks(t *testing.T) {
	mem := remotetest.NewMemStore()
	c := remote.NewClient(mem, time.Second)
	ctx := context.Background()

	require.NoError(t, c.PutTaskList(ctx, model.TaskList{ID: "L", UserID: "u", Title: "Groceries"}))
	require.NoError(t, c.PutTask(ctx, model.Task{ID: "t1", ListID: "L", Text: "Milk"}))
	require.NoError(t, c.PutTask(ctx, model.Task{ID: "t2", ListID: "L", Text: "Eggs", IsCompleted: true}))
	require.NoError(t, c.PutTask(ctx, model.Task{ID: "x", ListID: "other", Text: "x"}))

	var list bson.M
	require.True(t, mem.Lookup(remote.CollTaskLists, "L", &list))
	require.Equal(t, "u", list["userId"])
	require.Contains(t, list, "updatedAt")

	tasks, err := c.QueryTasksByList(ctx, "L")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, "t1", tasks[0].RemoteID)
	require.True(t, tasks[1].IsCompleted)

	require.NoError(t, c.DeleteTask(ctx, "t1"))
	require.NoError(t, c.DeleteTaskList(ctx, "L"))
	require.False(t, mem.Has(remote.CollTaskLists, "L"))
	require.Equal(t, 2, mem.Count(remote.CollTasks))
}

func TestClient_WrapsStoreErrors(t *testing.T) {
	mem := remotetest.NewMemStore()
	c := remote.NewClient(mem, time.Second)
	boom := errors.New("network down")
	mem.Fail(boom)

	_, err := c.GetUser(context.Background(), "u")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, errs.ErrNotFound)
	require.ErrorIs(t, c.PutTask(context.Background(), model.Task{ID: "t"}), boom)
}

func TestClient_CallsAreBounded(t *testing.T) {
	c := remote.NewClient(slowStore{}, 20*time.Millisecond)

	start := time.Now()
	_, err := c.GetUser(context.Background(), "u")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestDisabled_AlwaysUnavailable(t *testing.T) {
	var m remote.Mirror = remote.Disabled{}
	_, err := m.GetUser(context.Background(), "u")
	require.ErrorIs(t, err, errs.ErrRemoteUnavailable)
	require.ErrorIs(t, m.PutTaskList(context.Background(), model.TaskList{}), errs.ErrRemoteUnavailable)
}
