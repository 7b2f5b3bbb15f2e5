package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/and161185/dolist/internal/migrate"
	"github.com/and161185/dolist/internal/model"
	"github.com/and161185/dolist/internal/remote"
	"github.com/and161185/dolist/internal/remote/remotetest"
	"github.com/and161185/dolist/internal/repository/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() { migrate.Quiet() }

type fixedIdentity struct {
	id  *model.Identity
	err error
}

func (f fixedIdentity) CurrentIdentity(context.Context) (*model.Identity, error) { return f.id, f.err }

var signedIn = fixedIdentity{id: &model.Identity{UID: "uid-1"}}

type fixture struct {
	store *sqlite.Store
	mem   *remotetest.MemStore
	logs  *observer.ObservedLogs
	c     *Coordinator
}

func newFixture(t *testing.T, ids IdentitySource) *fixture {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "dolist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	core, logs := observer.New(zap.WarnLevel)
	mem := remotetest.NewMemStore()
	return &fixture{
		store: s,
		mem:   mem,
		logs:  logs,
		c:     New(s, remote.NewClient(mem, 0), ids, zap.New(core)),
	}
}

var user = &model.User{ID: "uid-1", Name: "Ana", Login: true}

func TestSyncList_MirrorsListAndTasks_RecordsRemoteIDs(t *testing.T) {
	f := newFixture(t, signedIn)
	ctx := context.Background()
	require.NoError(t, f.store.CreateListWithTasks(ctx,
		model.TaskList{ID: "L", UserID: "uid-1", Title: "Groceries"},
		[]model.Task{{ID: "t1", Text: "Milk"}, {ID: "t2", Text: "Eggs"}}))

	f.c.SyncList(ctx, user, "L")

	require.True(t, f.mem.Has(remote.CollTaskLists, "L"))
	require.True(t, f.mem.Has(remote.CollTasks, "t1"))
	require.True(t, f.mem.Has(remote.CollTasks, "t2"))

	l, err := f.store.GetList(ctx, "L")
	require.NoError(t, err)
	require.Equal(t, "L", l.RemoteID)
	tk, err := f.store.GetTask(ctx, "t2")
	require.NoError(t, err)
	require.Equal(t, "t2", tk.RemoteID)
}

func TestSyncList_DeletesRemovedTasksFirst(t *testing.T) {
	f := newFixture(t, signedIn)
	ctx := context.Background()
	require.NoError(t, f.store.CreateListWithTasks(ctx,
		model.TaskList{ID: "L", UserID: "uid-1", Title: "x"}, []model.Task{{ID: "keep", Text: "a"}}))

	f.c.SyncList(ctx, user, "L", "gone")

	ops := f.mem.Ops()
	require.NotEmpty(t, ops)
	require.Equal(t, remotetest.Op{Kind: "delete", Collection: remote.CollTasks, ID: "gone"}, ops[0])
}

func TestSync_InactiveForGuestsAndSignedOut(t *testing.T) {
	ctx := context.Background()
	guest := &model.User{ID: "user_x", IsGuest: true, Login: true}

	cases := []struct {
		name string
		ids  IdentitySource
		u    *model.User
	}{
		{"guest", signedIn, guest},
		{"signed out", fixedIdentity{}, user},
		{"provider error", fixedIdentity{err: errors.New("boom")}, user},
		{"no user", signedIn, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t, c.ids)
			require.NoError(t, f.store.CreateListWithTasks(ctx,
				model.TaskList{ID: "L", UserID: "u", Title: "x"}, []model.Task{{ID: "t", Text: "a"}}))

			f.c.SyncList(ctx, c.u, "L")
			f.c.SyncTask(ctx, c.u, "t")
			f.c.SyncTaskRemoved(ctx, c.u, "L", "t")
			f.c.SyncListDeleted(ctx, c.u, "L")

			require.Empty(t, f.mem.Ops())
			l, err := f.store.GetList(ctx, "L")
			require.NoError(t, err)
			require.Empty(t, l.RemoteID)
		})
	}
}

func TestSyncTask_UpsertsTaskAndHeader(t *testing.T) {
	f := newFixture(t, signedIn)
	ctx := context.Background()
	require.NoError(t, f.store.CreateListWithTasks(ctx,
		model.TaskList{ID: "L", UserID: "uid-1", Title: "x", IsCompleted: true},
		[]model.Task{{ID: "t", Text: "a", IsCompleted: true}}))

	f.c.SyncTask(ctx, user, "t")

	var doc struct {
		IsCompleted bool `bson:"isCompleted"`
	}
	require.True(t, f.mem.Lookup(remote.CollTaskLists, "L", &doc))
	require.True(t, doc.IsCompleted)
	require.True(t, f.mem.Has(remote.CollTasks, "t"))
}

func TestSyncTaskRemoved(t *testing.T) {
	f := newFixture(t, signedIn)
	ctx := context.Background()
	require.NoError(t, f.store.CreateListWithTasks(ctx,
		model.TaskList{ID: "L", UserID: "uid-1", Title: "x"}, []model.Task{{ID: "t", Text: "a"}}))
	f.c.SyncList(ctx, user, "L")
	require.NoError(t, f.store.DeleteTask(ctx, "t"))

	f.c.SyncTaskRemoved(ctx, user, "L", "t")

	require.False(t, f.mem.Has(remote.CollTasks, "t"))
	require.True(t, f.mem.Has(remote.CollTaskLists, "L"))
}

func TestSyncListDeleted_TasksBeforeList(t *testing.T) {
	f := newFixture(t, signedIn)
	ctx := context.Background()
	require.NoError(t, f.store.CreateListWithTasks(ctx,
		model.TaskList{ID: "L", UserID: "uid-1", Title: "x"},
		[]model.Task{{ID: "t1", Text: "a"}, {ID: "t2", Text: "b"}}))
	f.c.SyncList(ctx, user, "L")
	before := len(f.mem.Ops())
	require.NoError(t, f.store.DeleteListCascade(ctx, "L"))

	f.c.SyncListDeleted(ctx, user, "L")

	ops := f.mem.Ops()[before:]
	require.Len(t, ops, 3)
	require.Equal(t, remote.CollTasks, ops[0].Collection)
	require.Equal(t, remote.CollTasks, ops[1].Collection)
	require.Equal(t, remotetest.Op{Kind: "delete", Collection: remote.CollTaskLists, ID: "L"}, ops[2])
	require.Zero(t, f.mem.Count(remote.CollTasks))
	require.Zero(t, f.mem.Count(remote.CollTaskLists))
}

func TestSync_RemoteFailuresAreSwallowedAndLogged(t *testing.T) {
	f := newFixture(t, signedIn)
	ctx := context.Background()
	require.NoError(t, f.store.CreateListWithTasks(ctx,
		model.TaskList{ID: "L", UserID: "uid-1", Title: "x"}, []model.Task{{ID: "t", Text: "a"}}))
	f.mem.Fail(errors.New("offline"))

	f.c.SyncList(ctx, user, "L")
	f.c.SyncListDeleted(ctx, user, "L")

	require.NotZero(t, f.logs.FilterMessage("sync: put list").Len())
	require.NotZero(t, f.logs.FilterMessage("sync: query remote tasks").Len())
	l, err := f.store.GetList(ctx, "L")
	require.NoError(t, err)
	require.Empty(t, l.RemoteID, "remote id is recorded only after a successful write")
}
