// Package lists implements the list and task actions of the app. Every mutation
// writes the local store first, then recomputes list completion, then mirrors.
package lists

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/model"
	"github.com/and161185/dolist/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Recomputer keeps list completion derived from tasks.
type Recomputer interface {
	RecomputeCompletion(ctx context.Context, listID string) (bool, error)
	RecomputeAllForUser(ctx context.Context, userID string) (int, error)
}

// Syncer mirrors local writes. Implementations never fail the caller.
type Syncer interface {
	SyncList(ctx context.Context, u *model.User, listID string, removedTaskIDs ...string)
	SyncTask(ctx context.Context, u *model.User, taskID string)
	SyncTaskRemoved(ctx context.Context, u *model.User, listID, taskID string)
	SyncListDeleted(ctx context.Context, u *model.User, listID string)
}

// Service is the list/task use-case layer.
type Service struct {
	store  repository.LocalStore
	engine Recomputer
	sync   Syncer
	log    *zap.Logger
	newID  func() string
}

// NewService constructs a Service.
func NewService(store repository.LocalStore, engine Recomputer, sync Syncer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store: store, engine: engine, sync: sync, log: log,
		newID: func() string { return uuid.Must(uuid.NewV4()).String() },
	}
}

func validation(msg string) error { return fmt.Errorf("%w: %s", errs.ErrValidation, msg) }

func requireUser(u *model.User) error {
	if u == nil || !u.Login {
		return errs.ErrNotSignedIn
	}
	return nil
}

// ownedList loads a list and hides lists of other users behind ErrNotFound.
func (s *Service) ownedList(ctx context.Context, u *model.User, listID string) (*model.TaskList, error) {
	if err := requireUser(u); err != nil {
		return nil, err
	}
	l, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if l.UserID != u.ID {
		return nil, errs.ErrNotFound
	}
	return l, nil
}

func (s *Service) ownedTask(ctx context.Context, u *model.User, taskID string) (*model.Task, error) {
	if err := requireUser(u); err != nil {
		return nil, err
	}
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedList(ctx, u, t.ListID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) recompute(ctx context.Context, listID string) error {
	if _, err := s.engine.RecomputeCompletion(ctx, listID); err != nil {
		return fmt.Errorf("recompute completion: %w", err)
	}
	return nil
}

// CreateList stores a new list with one task per non-blank text. At least one
// text must be non-blank.
func (s *Service) CreateList(ctx context.Context, u *model.User, title string, taskTexts []string) (*model.TaskList, error) {
	if err := requireUser(u); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validation("title is required")
	}
	l := model.TaskList{ID: s.newID(), UserID: u.ID, Title: title}
	tasks := make([]model.Task, 0, len(taskTexts))
	for _, text := range taskTexts {
		if text = strings.TrimSpace(text); text != "" {
			tasks = append(tasks, model.Task{ID: s.newID(), ListID: l.ID, Text: text})
		}
	}
	if len(tasks) == 0 {
		return nil, validation("at least one task is required")
	}
	if err := s.store.CreateListWithTasks(ctx, l, tasks); err != nil {
		return nil, fmt.Errorf("create list: %w", err)
	}
	if err := s.recompute(ctx, l.ID); err != nil {
		return nil, err
	}
	s.sync.SyncList(ctx, u, l.ID)
	return s.store.GetList(ctx, l.ID)
}

// GetList returns a list of u with its tasks.
func (s *Service) GetList(ctx context.Context, u *model.User, listID string) (*model.TaskList, []model.Task, error) {
	l, err := s.ownedList(ctx, u, listID)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := s.store.TasksByList(ctx, listID)
	if err != nil {
		return nil, nil, fmt.Errorf("load tasks: %w", err)
	}
	return l, tasks, nil
}

// Lists returns the summaries of u's lists narrowed by f.
func (s *Service) Lists(ctx context.Context, u *model.User, f model.Filter) ([]model.ListSummary, error) {
	if err := requireUser(u); err != nil {
		return nil, err
	}
	out, err := s.store.ListsByUser(ctx, u.ID, f)
	if err != nil {
		return nil, fmt.Errorf("load lists: %w", err)
	}
	return out, nil
}

// EditList applies an edit session: the new title, edits of existing tasks,
// new tasks and removed ids. A task whose text was blanked is removed; a blank
// new task is ignored. The list must keep at least one task.
func (s *Service) EditList(ctx context.Context, u *model.User, e model.ListEdit) error {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return validation("title is required")
	}
	if _, err := s.ownedList(ctx, u, e.ListID); err != nil {
		return err
	}
	existing, err := s.store.TasksByList(ctx, e.ListID)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	inList := make(map[string]bool, len(existing))
	for _, t := range existing {
		inList[t.ID] = true
	}

	ch := repository.ListChanges{ListID: e.ListID, Title: title}
	removed := map[string]bool{}
	for _, id := range e.DeletedTaskIDs {
		if inList[id] && !removed[id] {
			removed[id] = true
			ch.Delete = append(ch.Delete, id)
		}
	}
	for _, te := range e.Tasks {
		text := strings.TrimSpace(te.Text)
		switch {
		case te.ID == "":
			if text != "" {
				ch.Insert = append(ch.Insert, model.Task{ID: s.newID(), ListID: e.ListID, Text: text, IsCompleted: te.IsCompleted})
			}
		case !inList[te.ID]:
			return fmt.Errorf("task %s: %w", te.ID, errs.ErrNotFound)
		case removed[te.ID]:
		case text == "":
			removed[te.ID] = true
			ch.Delete = append(ch.Delete, te.ID)
		default:
			ch.Update = append(ch.Update, model.Task{ID: te.ID, ListID: e.ListID, Text: text, IsCompleted: te.IsCompleted})
		}
	}

	if len(existing)-len(ch.Delete)+len(ch.Insert) == 0 {
		return validation("at least one task is required")
	}
	if err := s.store.ApplyListEdit(ctx, ch); err != nil {
		return fmt.Errorf("edit list: %w", err)
	}
	if err := s.recompute(ctx, e.ListID); err != nil {
		return err
	}
	s.sync.SyncList(ctx, u, e.ListID, ch.Delete...)
	return nil
}

// AddTask appends a task to a list of u.
func (s *Service) AddTask(ctx context.Context, u *model.User, listID, text string) (*model.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validation("task text is required")
	}
	if _, err := s.ownedList(ctx, u, listID); err != nil {
		return nil, err
	}
	t := model.Task{ID: s.newID(), ListID: listID, Text: text}
	if err := s.store.InsertTask(ctx, t); err != nil {
		return nil, fmt.Errorf("add task: %w", err)
	}
	if err := s.recompute(ctx, listID); err != nil {
		return nil, err
	}
	s.sync.SyncTask(ctx, u, t.ID)
	return &t, nil
}

// SetTaskCompleted checks or unchecks a task.
func (s *Service) SetTaskCompleted(ctx context.Context, u *model.User, taskID string, done bool) error {
	t, err := s.ownedTask(ctx, u, taskID)
	if err != nil {
		return err
	}
	if t.IsCompleted == done {
		return nil
	}
	t.IsCompleted = done
	return s.updateTask(ctx, u, t)
}

// UpdateTaskText changes the text of a task; blank text is rejected.
func (s *Service) UpdateTaskText(ctx context.Context, u *model.User, taskID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return validation("task text is required")
	}
	t, err := s.ownedTask(ctx, u, taskID)
	if err != nil {
		return err
	}
	t.Text = text
	return s.updateTask(ctx, u, t)
}

func (s *Service) updateTask(ctx context.Context, u *model.User, t *model.Task) error {
	if err := s.store.UpdateTask(ctx, *t); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if err := s.recompute(ctx, t.ListID); err != nil {
		return err
	}
	s.sync.SyncTask(ctx, u, t.ID)
	return nil
}

// RemoveTask deletes one task. The last task of a list cannot be removed; the
// list itself has to be deleted instead.
func (s *Service) RemoveTask(ctx context.Context, u *model.User, taskID string) error {
	t, err := s.ownedTask(ctx, u, taskID)
	if err != nil {
		return err
	}
	siblings, err := s.store.TasksByList(ctx, t.ListID)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	if len(siblings) <= 1 {
		return validation("a list needs at least one task; delete the list instead")
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("remove task: %w", err)
	}
	if err := s.recompute(ctx, t.ListID); err != nil {
		return err
	}
	s.sync.SyncTaskRemoved(ctx, u, t.ListID, taskID)
	return nil
}

// DeleteList removes a list and all of its tasks.
func (s *Service) DeleteList(ctx context.Context, u *model.User, listID string) error {
	if _, err := s.ownedList(ctx, u, listID); err != nil {
		return err
	}
	if err := s.store.DeleteListCascade(ctx, listID); err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	s.sync.SyncListDeleted(ctx, u, listID)
	return nil
}

// Import stores every list of in, then recomputes completion for all lists of u.
// It returns the number of lists created.
func (s *Service) Import(ctx context.Context, u *model.User, in []ImportList) (int, error) {
	if err := requireUser(u); err != nil {
		return 0, err
	}
	for i, il := range in {
		if strings.TrimSpace(il.Title) == "" {
			return 0, validation(fmt.Sprintf("list %d: title is required", i+1))
		}
		if !hasText(il.Tasks) {
			return 0, validation(fmt.Sprintf("list %d: at least one task is required", i+1))
		}
	}
	created := make([]string, 0, len(in))
	for _, il := range in {
		l := model.TaskList{ID: s.newID(), UserID: u.ID, Title: strings.TrimSpace(il.Title)}
		tasks := make([]model.Task, 0, len(il.Tasks))
		for _, it := range il.Tasks {
			if text := strings.TrimSpace(it.Text); text != "" {
				tasks = append(tasks, model.Task{ID: s.newID(), ListID: l.ID, Text: text, IsCompleted: it.Done})
			}
		}
		if err := s.store.CreateListWithTasks(ctx, l, tasks); err != nil {
			return len(created), fmt.Errorf("import %q: %w", l.Title, err)
		}
		created = append(created, l.ID)
	}
	n, err := s.engine.RecomputeAllForUser(ctx, u.ID)
	if err != nil {
		return len(created), fmt.Errorf("recompute completion: %w", err)
	}
	s.log.Info("lists imported", zap.Int("lists", len(created)), zap.Int("completed_changed", n))
	for _, id := range created {
		s.sync.SyncList(ctx, u, id)
	}
	return len(created), nil
}

func hasText(tasks []ImportTask) bool {
	for _, t := range tasks {
		if strings.TrimSpace(t.Text) != "" {
			return true
		}
	}
	return false
}
