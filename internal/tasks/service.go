package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"caseflow/internal/audit"
	"caseflow/internal/dependency"
	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/notify"
	"caseflow/internal/store"
)

// Input carries collaborator-supplied task attributes.
type Input struct {
	ID       string     `json:"id" validate:"required,max=128"`
	CaseID   string     `json:"caseId" validate:"max=128"`
	StageID  string     `json:"stageId" validate:"max=128"`
	Title    string     `json:"title" validate:"required,max=512"`
	Priority string     `json:"priority" validate:"required,oneof=low medium high critical"`
	OwnerID  string     `json:"ownerId" validate:"max=128"`
	Status   string     `json:"status,omitempty" validate:"omitempty,oneof=pending in-progress review done"`
	DueAt    *time.Time `json:"dueAt,omitempty"`
	// CreatedAt lets a sync preserve the collaborator's creation time.
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// StatusChange is a request to move a task through its lifecycle.
type StatusChange struct {
	TaskID          string `json:"taskId" validate:"required"`
	Status          string `json:"status" validate:"required,oneof=pending in-progress review done"`
	Actor           string `json:"actor"`
	ExpectedVersion *int64 `json:"expectedVersion,omitempty"`
}

// Service owns task records.
type Service struct {
	store    *store.Store
	audit    *audit.Recorder
	notifier *notify.Dispatcher
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a Service.
func New(st *store.Store, rec *audit.Recorder, notifier *notify.Dispatcher, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		audit:    rec,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "tasks"),
		now:      time.Now,
	}
}

// Upsert creates the task when it is unknown and otherwise updates its
// attributes. It reports whether the task was created.
func (s *Service) Upsert(ctx context.Context, in Input, actor string) (*store.Task, bool, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Priority = strings.ToLower(strings.TrimSpace(in.Priority))
	if err := errs.ValidateStruct("tasks", "upsert", in); err != nil {
		return nil, false, err
	}

	var (
		result  *store.Task
		created bool
	)
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		existing, err := tx.GetTask(ctx, in.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			task := &store.Task{
				ID:       in.ID,
				CaseID:   in.CaseID,
				StageID:  in.StageID,
				Title:    in.Title,
				Status:   store.StatusPending,
				Priority: store.Priority(in.Priority),
				OwnerID:  in.OwnerID,
				DueAt:    in.DueAt,
			}
			if in.Status != "" {
				task.Status = store.TaskStatus(in.Status)
			}
			if in.CreatedAt != nil {
				task.CreatedAt = in.CreatedAt.UTC()
			}
			now := s.now().UTC()
			if task.Status == store.StatusInProgress || task.Status == store.StatusReview {
				task.StartedAt = &now
			}
			if task.Status == store.StatusDone {
				task.CompletedAt = &now
			}
			if err := tx.InsertTask(ctx, task); err != nil {
				return err
			}
			if _, err := s.audit.RecordWith(ctx, tx, store.AuditEntry{
				EntityType: audit.EntityTask,
				EntityID:   task.ID,
				CaseID:     task.CaseID,
				Action:     audit.ActionTaskCreated,
				UserID:     actor,
				NewValue:   audit.Value(task.Title),
			}); err != nil {
				return err
			}
			result, created = task, true
			return nil
		}

		previous := describe(existing)
		existing.CaseID = in.CaseID
		existing.StageID = in.StageID
		existing.Title = in.Title
		existing.Priority = store.Priority(in.Priority)
		existing.OwnerID = in.OwnerID
		existing.DueAt = in.DueAt
		if describe(existing) == previous {
			result = existing
			return nil
		}
		if err := tx.UpdateTask(ctx, existing); err != nil {
			return err
		}
		if _, err := s.audit.RecordWith(ctx, tx, store.AuditEntry{
			EntityType:    audit.EntityTask,
			EntityID:      existing.ID,
			CaseID:        existing.CaseID,
			Action:        audit.ActionTaskUpdated,
			UserID:        actor,
			PreviousValue: audit.Value(previous),
			NewValue:      audit.Value(describe(existing)),
		}); err != nil {
			return err
		}
		result = existing
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// Get returns a task by id, archived or not.
func (s *Service) Get(ctx context.Context, id string) (*store.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errs.NotFound("tasks", "get", "task", id)
	}
	return task, nil
}

// List enumerates active tasks matching filter.
func (s *Service) List(ctx context.Context, filter store.TaskFilter) ([]*store.Task, error) {
	return s.store.ListTasks(ctx, filter)
}

// SetStatus moves a task to a new status. Starting work requires every
// blocking prerequisite to be done.
func (s *Service) SetStatus(ctx context.Context, change StatusChange) (*store.Task, error) {
	if err := errs.ValidateStruct("tasks", "set status", change); err != nil {
		return nil, err
	}
	next, _ := store.ParseStatus(change.Status)

	batch := s.notifier.Batch()
	var result *store.Task
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		task, err := tx.GetTask(ctx, change.TaskID)
		if err != nil {
			return err
		}
		if task == nil {
			return errs.NotFound("tasks", "set status", "task", change.TaskID)
		}
		if task.Archived {
			return errs.Validation("tasks", "set status", fmt.Sprintf("task %q is archived", task.ID))
		}
		if change.ExpectedVersion != nil && *change.ExpectedVersion != task.Version {
			return errs.Conflict("tasks", "set status", "task", task.ID)
		}
		if task.Status == next {
			result = task
			return nil
		}

		// Leaving pending starts the work, whatever the target status.
		if next == store.StatusInProgress || task.Status == store.StatusPending {
			check, err := dependency.Check(ctx, tx, task.ID)
			if err != nil {
				return err
			}
			if !check.CanStart {
				return errs.Validation("tasks", "set status",
					fmt.Sprintf("task %q is blocked by %s", task.ID, strings.Join(check.BlockedBy, ", ")))
			}
		}

		previous := task.Status
		now := s.now().UTC()
		task.Status = next
		if next != store.StatusPending && task.StartedAt == nil {
			task.StartedAt = &now
		}
		if next == store.StatusDone {
			task.CompletedAt = &now
		} else {
			task.CompletedAt = nil
		}
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		if _, err := s.audit.RecordWith(ctx, tx, store.AuditEntry{
			EntityType:    audit.EntityTask,
			EntityID:      task.ID,
			CaseID:        task.CaseID,
			Action:        audit.ActionStatusChanged,
			UserID:        change.Actor,
			PreviousValue: audit.Value(string(previous)),
			NewValue:      audit.Value(string(next)),
		}); err != nil {
			return err
		}
		if next == store.StatusDone && task.StageID != "" {
			if err := s.notifyStageCompletion(ctx, tx, batch, task); err != nil {
				return err
			}
		}
		result = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	batch.Flush(ctx)

	s.logger.InfoContext(ctx, "task status changed",
		logging.TaskID(result.ID),
		logging.String("status", string(result.Status)),
		logging.String(logging.FieldActor, change.Actor),
	)
	return result, nil
}

func (s *Service) notifyStageCompletion(ctx context.Context, tx *store.Tx, batch *notify.Batch, task *store.Task) error {
	stageTasks, err := tx.ListTasks(ctx, store.TaskFilter{CaseID: task.CaseID, StageID: task.StageID})
	if err != nil {
		return err
	}
	owners := make(map[string]struct{})
	for _, t := range stageTasks {
		if !t.IsDone() {
			return nil
		}
		if t.OwnerID != "" {
			owners[t.OwnerID] = struct{}{}
		}
	}
	recipients := make([]string, 0, len(owners))
	for owner := range owners {
		recipients = append(recipients, owner)
	}
	sort.Strings(recipients)
	for _, owner := range recipients {
		if err := batch.Add(ctx, tx, notify.StageCompleted(owner, task.StageID, task.CaseID)); err != nil {
			return err
		}
	}
	return nil
}

// Archive hides a task from enumeration. Archived tasks stay resolvable by id.
func (s *Service) Archive(ctx context.Context, id, actor string) (*store.Task, error) {
	var result *store.Task
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		task, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if task == nil {
			return errs.NotFound("tasks", "archive", "task", id)
		}
		if task.Archived {
			result = task
			return nil
		}
		task.Archived = true
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		if _, err := s.audit.RecordWith(ctx, tx, store.AuditEntry{
			EntityType: audit.EntityTask,
			EntityID:   task.ID,
			CaseID:     task.CaseID,
			Action:     audit.ActionTaskArchived,
			UserID:     actor,
		}); err != nil {
			return err
		}
		result = task
		return nil
	})
	return result, err
}

func describe(t *store.Task) string {
	due := ""
	if t.DueAt != nil {
		due = t.DueAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("title=%s priority=%s owner=%s case=%s stage=%s due=%s",
		t.Title, t.Priority, t.OwnerID, t.CaseID, t.StageID, due)
}
