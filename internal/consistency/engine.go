// Package consistency keeps the derived completion flag of lists in line with their tasks.
package consistency

import (
	"context"
	"fmt"

	"github.com/and161185/dolist/internal/model"
	"github.com/and161185/dolist/internal/repository"
	"go.uber.org/zap"
)

// Store is the local store subset the engine needs.
type Store interface {
	GetList(ctx context.Context, id string) (*model.TaskList, error)
	TasksByList(ctx context.Context, listID string) ([]model.Task, error)
	SetListCompleted(ctx context.Context, id string, completed bool) error
	ListsByUser(ctx context.Context, userID string, f model.Filter) ([]model.ListSummary, error)
}

var _ Store = (repository.LocalStore)(nil)

// Completed reports whether a list with these tasks is complete:
// it has at least one task and every task is completed.
func Completed(tasks []model.Task) bool {
	if len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if !t.IsCompleted {
			return false
		}
	}
	return true
}

// Engine recomputes list completion after task mutations.
type Engine struct {
	store Store
	log   *zap.Logger
}

// New constructs an Engine.
func New(store Store, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, log: log}
}

// RecomputeCompletion derives the list's flag from its tasks and writes it only
// when it differs from the stored value. It reports whether a write happened.
func (e *Engine) RecomputeCompletion(ctx context.Context, listID string) (bool, error) {
	l, err := e.store.GetList(ctx, listID)
	if err != nil {
		return false, fmt.Errorf("load list %s: %w", listID, err)
	}
	tasks, err := e.store.TasksByList(ctx, listID)
	if err != nil {
		return false, fmt.Errorf("load tasks of %s: %w", listID, err)
	}
	want := Completed(tasks)
	if want == l.IsCompleted {
		return false, nil
	}
	if err := e.store.SetListCompleted(ctx, listID, want); err != nil {
		return false, fmt.Errorf("store completion of %s: %w", listID, err)
	}
	e.log.Debug("list completion changed", zap.String("list", listID), zap.Bool("completed", want))
	return true, nil
}

// RecomputeAllForUser recomputes every list of userID and returns how many changed.
func (e *Engine) RecomputeAllForUser(ctx context.Context, userID string) (int, error) {
	lists, err := e.store.ListsByUser(ctx, userID, model.FilterAll)
	if err != nil {
		return 0, fmt.Errorf("load lists of %s: %w", userID, err)
	}
	changed := 0
	for _, l := range lists {
		ok, err := e.RecomputeCompletion(ctx, l.ID)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}
