package testsupport

import (
	"context"
	"testing"
	"time"

	"caseflow/internal/config"
	"caseflow/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// TaskOption customizes a seeded task.
type TaskOption func(*store.Task)

// WithStatus sets the seeded task's status.
func WithStatus(status store.TaskStatus) TaskOption {
	return func(task *store.Task) { task.Status = status }
}

// WithPriority sets the seeded task's priority.
func WithPriority(priority store.Priority) TaskOption {
	return func(task *store.Task) { task.Priority = priority }
}

// WithOwner sets the seeded task's owner.
func WithOwner(owner string) TaskOption {
	return func(task *store.Task) { task.OwnerID = owner }
}

// WithStage sets the seeded task's stage.
func WithStage(stage string) TaskOption {
	return func(task *store.Task) { task.StageID = stage }
}

// WithCase sets the seeded task's case.
func WithCase(caseID string) TaskOption {
	return func(task *store.Task) { task.CaseID = caseID }
}

// CreatedAgo backdates the seeded task's creation time.
func CreatedAgo(d time.Duration) TaskOption {
	return func(task *store.Task) { task.CreatedAt = time.Now().UTC().Add(-d) }
}

// StartedAgo sets the seeded task's start time relative to now.
func StartedAgo(d time.Duration) TaskOption {
	return func(task *store.Task) {
		started := time.Now().UTC().Add(-d)
		task.StartedAt = &started
	}
}

// CompletedAgo marks the seeded task done at a time relative to now.
func CompletedAgo(d time.Duration) TaskOption {
	return func(task *store.Task) {
		completed := time.Now().UTC().Add(-d)
		task.Status = store.StatusDone
		task.CompletedAt = &completed
	}
}

// SeedTask inserts a pending medium-priority task with the given id.
func SeedTask(t testing.TB, st *store.Store, id string, opts ...TaskOption) *store.Task {
	t.Helper()

	task := &store.Task{
		ID:       id,
		Title:    "Task " + id,
		Status:   store.StatusPending,
		Priority: store.PriorityMedium,
		CaseID:   "case-1",
		StageID:  "stage-1",
	}
	for _, opt := range opts {
		opt(task)
	}
	if err := st.InsertTask(context.Background(), task); err != nil {
		t.Fatalf("store.InsertTask(%s): %v", id, err)
	}
	return task
}

// MustGetTask fetches a task and fails the test if it is missing.
func MustGetTask(t testing.TB, st *store.Store, id string) *store.Task {
	t.Helper()

	task, err := st.GetTask(context.Background(), id)
	if err != nil {
		t.Fatalf("store.GetTask(%s): %v", id, err)
	}
	if task == nil {
		t.Fatalf("task %s not found", id)
	}
	return task
}
