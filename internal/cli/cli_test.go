package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/migrate"
	"github.com/stretchr/testify/require"
)

func init() { migrate.Quiet() }

type cliEnv struct {
	t   *testing.T
	cfg string
}

func newCLIEnv(t *testing.T) *cliEnv {
	dir := t.TempDir()
	t.Setenv("DOLIST_DATA_DIR", dir)
	t.Setenv("DOLIST_IDENTITY_ADDR", "127.0.0.1:1")
	t.Setenv("DOLIST_REMOTE_MONGO_URI", "")
	return &cliEnv{t: t, cfg: filepath.Join(dir, "config.yaml")}
}

func (e *cliEnv) run(stdin string, args ...string) (string, error) {
	e.t.Helper()
	root := NewRootCmd("test", "today")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.cfg}, args...))
	err := root.Execute()
	return out.String(), err
}

func (e *cliEnv) must(args ...string) string {
	e.t.Helper()
	out, err := e.run("", args...)
	require.NoError(e.t, err, "dolist %v: %s", args, out)
	return out
}

func TestCLI_GuestListLifecycle(t *testing.T) {
	e := newCLIEnv(t)

	out := e.must("--json", "status")
	require.Contains(t, out, `"destination": "auth"`)

	_, err := e.run("", "lists")
	require.ErrorIs(t, err, errs.ErrNotSignedIn)

	require.Contains(t, e.must("guest"), "guest")

	listID := strings.TrimSpace(e.must("create", "Groceries", "Milk", "Eggs"))
	require.NotEmpty(t, listID)

	var shown listView
	require.NoError(t, json.Unmarshal([]byte(e.must("--json", "show", listID)), &shown))
	require.Len(t, shown.Tasks, 2)
	require.False(t, shown.IsCompleted)

	for _, tk := range shown.Tasks {
		e.must("done", tk.ID)
	}
	require.Contains(t, e.must("lists", "--filter", "completed"), "Groceries")

	taskID := strings.TrimSpace(e.must("add-task", listID, "Bread"))
	require.NotContains(t, e.must("lists", "-f", "completed"), "Groceries")
	e.must("edit-task", taskID, "Rye bread")
	require.Contains(t, e.must("show", listID), "Rye bread")
	e.must("undone", shown.Tasks[0].ID)
	e.must("rm-task", taskID)
	e.must("rename", listID, "Weekly")
	require.Contains(t, e.must("lists"), "Weekly")

	e.must("rm-list", listID)
	require.NotContains(t, e.must("lists"), "Weekly")

	require.Contains(t, e.must("logout"), "signed out")
	require.Contains(t, e.must("--json", "status"), `"destination": "auth"`)
}

func TestCLI_ImportFromStdin(t *testing.T) {
	e := newCLIEnv(t)
	e.must("guest")

	out, err := e.run("lists:\n  - title: Done\n    tasks: [{text: a, done: true}]\n  - title: Open\n    tasks: [{text: b}]\n", "import", "-")
	require.NoError(t, err, out)
	require.Contains(t, out, "imported 2 lists")

	var sums []listView
	require.NoError(t, json.Unmarshal([]byte(e.must("--json", "lists", "-f", "pending")), &sums))
	require.Len(t, sums, 1)
	require.Equal(t, "Open", sums[0].Title)
}

func TestCLI_ValidationErrors(t *testing.T) {
	e := newCLIEnv(t)
	e.must("guest")

	_, err := e.run("", "create", "  ")
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = e.run("", "create", "Gym")
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = e.run("", "register", "--name", "A", "--last-name", "B", "-u", "ab", "-e", "nope", "-p", "secret1")
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = e.run("", "show", "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCLI_ConfigInitAndVersion(t *testing.T) {
	e := newCLIEnv(t)
	require.Contains(t, e.must("config", "init"), "config.yaml")
	_, err := e.run("", "config", "init")
	require.Error(t, err)
	require.Contains(t, e.must("config", "show"), "mongo_uri")
	require.Equal(t, "dolist test (today)\n", e.must("version"))
}
