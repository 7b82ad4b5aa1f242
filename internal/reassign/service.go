package reassign

import (
	"context"
	"log/slog"
	"strings"

	"caseflow/internal/audit"
	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/notify"
	"caseflow/internal/store"
)

// Result is the outcome for one task in a batch.
type Result struct {
	TaskID string `json:"taskId"`
	OK     bool   `json:"ok"`
	// Changed is false when the task already belonged to the new owner.
	Changed bool   `json:"changed"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// BatchReport summarizes a batch reassignment.
type BatchReport struct {
	Requested   int      `json:"requested"`
	Reassigned  int      `json:"reassigned"`
	Failed      int      `json:"failed"`
	NewAssignee string   `json:"newAssignee"`
	Results     []Result `json:"results"`
}

// Service reassigns tasks.
type Service struct {
	store    *store.Store
	audit    *audit.Recorder
	notifier *notify.Dispatcher
	logger   *slog.Logger
}

// New constructs a Service.
func New(st *store.Store, rec *audit.Recorder, notifier *notify.Dispatcher, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		audit:    rec,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "reassign"),
	}
}

// ReassignTask gives taskID to newAssignee. Assigning a task to its current
// owner succeeds without writing anything.
func (s *Service) ReassignTask(ctx context.Context, taskID, newAssignee, actor string) (*store.Task, error) {
	task, _, err := s.reassign(ctx, taskID, newAssignee, actor)
	return task, err
}

func (s *Service) reassign(ctx context.Context, taskID, newAssignee, actor string) (*store.Task, bool, error) {
	taskID = strings.TrimSpace(taskID)
	newAssignee = strings.TrimSpace(newAssignee)
	if taskID == "" {
		return nil, false, errs.Validation("reassign", "reassign task", "task id is required")
	}
	if newAssignee == "" {
		return nil, false, errs.Validation("reassign", "reassign task", "new assignee is required")
	}

	batch := s.notifier.Batch()
	var (
		result  *store.Task
		changed bool
	)
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return errs.NotFound("reassign", "reassign task", "task", taskID)
		}
		if task.OwnerID == newAssignee {
			result = task
			return nil
		}
		previous := task.OwnerID
		task.OwnerID = newAssignee
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		if _, err := s.audit.RecordWith(ctx, tx, store.AuditEntry{
			EntityType:    audit.EntityTask,
			EntityID:      task.ID,
			CaseID:        task.CaseID,
			Action:        audit.ActionReassigned,
			UserID:        actor,
			PreviousValue: audit.Value(previous),
			NewValue:      audit.Value(newAssignee),
		}); err != nil {
			return err
		}
		if err := batch.Add(ctx, tx, notify.TaskAssigned(task, actor)); err != nil {
			return err
		}
		result, changed = task, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	batch.Flush(ctx)

	if changed {
		s.logger.InfoContext(ctx, "task reassigned",
			logging.TaskID(result.ID),
			logging.String("owner", newAssignee),
			logging.String(logging.FieldActor, actor),
		)
	}
	return result, changed, nil
}

// BulkReassign reassigns each task independently and reports every outcome.
// A failing task never rolls back the others.
func (s *Service) BulkReassign(ctx context.Context, taskIDs []string, newAssignee, actor string) (*BatchReport, error) {
	if strings.TrimSpace(newAssignee) == "" {
		return nil, errs.Validation("reassign", "bulk reassign", "new assignee is required")
	}
	if len(taskIDs) == 0 {
		return nil, errs.Validation("reassign", "bulk reassign", "at least one task id is required")
	}
	return s.run(ctx, taskIDs, newAssignee, actor), nil
}

// ReassignAllFromUser moves every open task owned by fromUser to toUser.
// scope, when set, limits the sweep to one case. Done tasks keep their owner.
func (s *Service) ReassignAllFromUser(ctx context.Context, fromUser, toUser, scope, actor string) (*BatchReport, error) {
	fromUser = strings.TrimSpace(fromUser)
	toUser = strings.TrimSpace(toUser)
	switch {
	case fromUser == "":
		return nil, errs.Validation("reassign", "reassign all", "source user is required")
	case toUser == "":
		return nil, errs.Validation("reassign", "reassign all", "target user is required")
	case fromUser == toUser:
		return nil, errs.Validation("reassign", "reassign all", "source and target user are the same")
	}
	owned, err := s.store.ListTasks(ctx, store.TaskFilter{
		CaseID:      strings.TrimSpace(scope),
		OwnerID:     fromUser,
		ExcludeDone: true,
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(owned))
	for _, task := range owned {
		ids = append(ids, task.ID)
	}
	report := s.run(ctx, ids, toUser, actor)
	s.logger.InfoContext(ctx, "user tasks reassigned",
		logging.String("from", fromUser),
		logging.String("to", toUser),
		logging.Int("reassigned", report.Reassigned),
		logging.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Service) run(ctx context.Context, taskIDs []string, newAssignee, actor string) *BatchReport {
	report := &BatchReport{
		Requested:   len(taskIDs),
		NewAssignee: strings.TrimSpace(newAssignee),
		Results:     make([]Result, 0, len(taskIDs)),
	}
	for _, id := range taskIDs {
		if ctx.Err() != nil {
			report.Results = append(report.Results, failure(id, ctx.Err()))
			report.Failed++
			continue
		}
		_, changed, err := s.reassign(ctx, id, newAssignee, actor)
		if err != nil {
			s.logger.WarnContext(ctx, "reassignment failed",
				logging.TaskID(id),
				logging.Error(err),
			)
			report.Results = append(report.Results, failure(id, err))
			report.Failed++
			continue
		}
		report.Results = append(report.Results, Result{TaskID: id, OK: true, Changed: changed})
		if changed {
			report.Reassigned++
		}
	}
	return report
}

func failure(taskID string, err error) Result {
	return Result{TaskID: taskID, Error: err.Error(), Kind: errs.Kind(err)}
}
