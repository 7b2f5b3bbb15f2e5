package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/migrate"
	"github.com/and161185/dolist/internal/model"
	"github.com/and161185/dolist/internal/repository"
	"github.com/stretchr/testify/require"
)

func init() { migrate.Quiet() }

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "dolist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedList(t *testing.T, s *Store, userID, listID string, tasks ...model.Task) {
	t.Helper()
	require.NoError(t, s.CreateListWithTasks(context.Background(),
		model.TaskList{ID: listID, UserID: userID, Title: listID}, tasks))
}

func TestStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dolist.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceUsers(ctx, model.User{ID: "u1", Name: "A", Login: true}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	u, err := s.FirstUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)
	require.True(t, u.Login)
}

func TestStore_ConcurrentOpenOnFreshFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dolist.db")

	const n = 8
	stores := make([]*Store, n)
	openErrs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stores[i], openErrs[i] = Open(ctx, path)
		}(i)
	}
	wg.Wait()
	for i := 0; i < n; i++ {
		require.NoError(t, openErrs[i])
		defer stores[i].Close()
	}

	require.NoError(t, stores[0].ReplaceUsers(ctx, model.User{ID: "u1", Login: true}))
	u, err := stores[n-1].FirstUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)

	var versions int
	require.NoError(t, stores[0].db.QueryRow(`SELECT COUNT(*) FROM goose_db_version WHERE version_id > 0`).Scan(&versions))
	require.Equal(t, 1, versions)
}

func TestStore_ReplaceUsers_KeepsSingleRow(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.FirstUser(ctx)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, s.ReplaceUsers(ctx, model.User{ID: "user_x", Name: "Guest", Username: "guest", Login: true, IsGuest: true}))
	require.NoError(t, s.ReplaceUsers(ctx, model.User{ID: "uid-1", Name: "Ana", LastName: "Li", Email: "ana@x.io", Login: true}))

	u, err := s.FirstUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "uid-1", u.ID)
	require.False(t, u.IsGuest)
	require.Equal(t, "Li", u.LastName)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	require.Equal(t, 1, n)
}

func TestStore_SetLoginStatus_And_DeleteAll(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceUsers(ctx, model.User{ID: "g", Login: true, IsGuest: true}))

	require.NoError(t, s.SetLoginStatus(ctx, "g", false))
	u, err := s.FirstUser(ctx)
	require.NoError(t, err)
	require.False(t, u.Login)

	require.ErrorIs(t, s.SetLoginStatus(ctx, "missing", true), errs.ErrNotFound)

	require.NoError(t, s.DeleteAllUsers(ctx))
	_, err = s.FirstUser(ctx)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_CreateListWithTasks_And_Read(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedList(t, s, "u", "L1",
		model.Task{ID: "t1", Text: "Milk"},
		model.Task{ID: "t2", Text: "Eggs", IsCompleted: true},
	)

	l, err := s.GetList(ctx, "L1")
	require.NoError(t, err)
	require.Equal(t, "u", l.UserID)
	require.Empty(t, l.RemoteID)

	tasks, err := s.TasksByList(ctx, "L1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, "Milk", tasks[0].Text)
	require.Equal(t, "L1", tasks[1].ListID)
	require.True(t, tasks[1].IsCompleted)

	_, err = s.GetList(ctx, "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.GetTask(ctx, "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_CreateListWithTasks_RollsBackOnDuplicateTask(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedList(t, s, "u", "L1", model.Task{ID: "t1", Text: "a"})

	err := s.CreateListWithTasks(ctx, model.TaskList{ID: "L2", UserID: "u", Title: "two"},
		[]model.Task{{ID: "t9", Text: "x"}, {ID: "t1", Text: "dup"}})
	require.Error(t, err)

	_, err = s.GetList(ctx, "L2")
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.GetTask(ctx, "t9")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_ListsByUser_Filters(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	seedList(t, s, "u", "done", model.Task{ID: "a", Text: "a", IsCompleted: true})
	require.NoError(t, s.SetListCompleted(ctx, "done", true))
	seedList(t, s, "u", "open", model.Task{ID: "b", Text: "b"}, model.Task{ID: "c", Text: "c", IsCompleted: true})
	seedList(t, s, "u", "empty")
	// a stale flag on an empty list must not surface as completed
	require.NoError(t, s.SetListCompleted(ctx, "empty", true))
	seedList(t, s, "other", "foreign", model.Task{ID: "d", Text: "d"})

	all, err := s.ListsByUser(ctx, "u", model.FilterAll)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "done", all[0].ID)
	require.Equal(t, 2, all[1].Total)
	require.Equal(t, 1, all[1].Done)

	completed, err := s.ListsByUser(ctx, "u", model.FilterCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, "done", completed[0].ID)

	pending, err := s.ListsByUser(ctx, "u", model.FilterPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "open", pending[0].ID)
	require.Equal(t, "empty", pending[1].ID)
}

func TestStore_ApplyListEdit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedList(t, s, "u", "L", model.Task{ID: "t1", Text: "one"}, model.Task{ID: "t2", Text: "two"})

	err := s.ApplyListEdit(ctx, repository.ListChanges{
		ListID: "L",
		Title:  "Renamed",
		Update: []model.Task{{ID: "t1", Text: "uno", IsCompleted: true}},
		Delete: []string{"t2"},
		Insert: []model.Task{{ID: "t3", Text: "tres"}},
	})
	require.NoError(t, err)

	l, err := s.GetList(ctx, "L")
	require.NoError(t, err)
	require.Equal(t, "Renamed", l.Title)

	tasks, err := s.TasksByList(ctx, "L")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, "uno", tasks[0].Text)
	require.True(t, tasks[0].IsCompleted)
	require.Equal(t, "t3", tasks[1].ID)

	err = s.ApplyListEdit(ctx, repository.ListChanges{ListID: "missing", Title: "x"})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_DeleteListCascade_LeavesNoOrphans(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedList(t, s, "u", "L", model.Task{ID: "t1", Text: "a"}, model.Task{ID: "t2", Text: "b"})
	seedList(t, s, "u", "K", model.Task{ID: "k1", Text: "keep"})

	require.NoError(t, s.DeleteListCascade(ctx, "L"))

	var orphans int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE listId = 'L'`).Scan(&orphans))
	require.Zero(t, orphans)

	kept, err := s.TasksByList(ctx, "K")
	require.NoError(t, err)
	require.Len(t, kept, 1)

	require.ErrorIs(t, s.DeleteListCascade(ctx, "L"), errs.ErrNotFound)
}

func TestStore_TaskCRUD_And_RemoteIDs(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedList(t, s, "u", "L")

	require.ErrorIs(t, s.InsertTask(ctx, model.Task{ID: "x", ListID: "nope", Text: "x"}), errs.ErrNotFound)

	require.NoError(t, s.InsertTask(ctx, model.Task{ID: "t", ListID: "L", Text: "write"}))
	require.NoError(t, s.UpdateTask(ctx, model.Task{ID: "t", Text: "rewrite", IsCompleted: true}))
	require.NoError(t, s.SetTaskRemoteID(ctx, "t", "t"))
	require.NoError(t, s.SetListRemoteID(ctx, "L", "L"))

	got, err := s.GetTask(ctx, "t")
	require.NoError(t, err)
	require.Equal(t, "rewrite", got.Text)
	require.True(t, got.IsCompleted)
	require.Equal(t, "t", got.RemoteID)

	l, err := s.GetList(ctx, "L")
	require.NoError(t, err)
	require.Equal(t, "L", l.RemoteID)

	require.NoError(t, s.UpdateListTitle(ctx, "L", "New"))
	require.NoError(t, s.DeleteTask(ctx, "t"))
	require.ErrorIs(t, s.DeleteTask(ctx, "t"), errs.ErrNotFound)
	require.ErrorIs(t, s.UpdateTask(ctx, model.Task{ID: "t"}), errs.ErrNotFound)
}
