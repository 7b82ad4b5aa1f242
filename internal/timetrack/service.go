package timetrack

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"caseflow/internal/audit"
	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/store"
)

// StartInput opens an entry.
type StartInput struct {
	TaskID      string `json:"taskId" validate:"required"`
	UserID      string `json:"userId" validate:"required"`
	Description string `json:"description,omitempty" validate:"max=1000"`
}

// Summary totals the closed entries of a task.
type Summary struct {
	TaskID       string  `json:"taskId"`
	Entries      int     `json:"entries"`
	OpenEntries  int     `json:"openEntries"`
	TotalSeconds float64 `json:"totalSeconds"`
	TotalHours   float64 `json:"totalHours"`
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service owns time entries.
type Service struct {
	store  *store.Store
	audit  *audit.Recorder
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service.
func New(st *store.Store, rec *audit.Recorder, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  st,
		audit:  rec,
		logger: logging.NewComponentLogger(logger, "timetrack"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens an entry for the user on the task. Only one entry per task and
// user may be open at a time.
func (s *Service) Start(ctx context.Context, in StartInput) (*store.TimeEntry, error) {
	in.TaskID = strings.TrimSpace(in.TaskID)
	in.UserID = strings.TrimSpace(in.UserID)
	if err := errs.ValidateStruct("timetrack", "start", in); err != nil {
		return nil, err
	}
	entry := &store.TimeEntry{
		ID:          uuid.NewString(),
		TaskID:      in.TaskID,
		UserID:      in.UserID,
		StartTime:   s.now().UTC(),
		Description: strings.TrimSpace(in.Description),
	}
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		task, err := tx.GetTask(ctx, in.TaskID)
		if err != nil {
			return err
		}
		if task == nil {
			return errs.NotFound("timetrack", "start", "task", in.TaskID)
		}
		if err := tx.InsertTimeEntry(ctx, entry); err != nil {
			return err
		}
		_, err = s.audit.RecordWith(ctx, tx, store.AuditEntry{
			EntityType: audit.EntityTimeEntry,
			EntityID:   entry.ID,
			CaseID:     task.CaseID,
			Action:     audit.ActionTimeStarted,
			UserID:     in.UserID,
			Metadata:   map[string]string{audit.MetaTaskID: task.ID},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "time entry started", logging.TaskID(entry.TaskID), logging.String(logging.FieldActor, entry.UserID))
	return entry, nil
}

// Stop closes the user's open entry on the task.
func (s *Service) Stop(ctx context.Context, taskID, userID string) (*store.TimeEntry, error) {
	taskID = strings.TrimSpace(taskID)
	userID = strings.TrimSpace(userID)
	if taskID == "" || userID == "" {
		return nil, errs.Validation("timetrack", "stop", "task id and user id are required")
	}
	var result *store.TimeEntry
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		entry, err := tx.OpenTimeEntry(ctx, taskID, userID)
		if err != nil {
			return err
		}
		if entry == nil {
			return errs.NotFound("timetrack", "stop", "open time entry for task", taskID)
		}
		end := s.now().UTC()
		if end.Before(entry.StartTime) {
			end = entry.StartTime
		}
		entry.EndTime = &end
		closed, err := tx.CloseTimeEntry(ctx, entry)
		if err != nil {
			return err
		}
		if !closed {
			return errs.Conflict("timetrack", "stop", "time entry", entry.ID)
		}
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		record := store.AuditEntry{
			EntityType: audit.EntityTimeEntry,
			EntityID:   entry.ID,
			Action:     audit.ActionTimeStopped,
			UserID:     userID,
			NewValue:   audit.Value(entry.Duration().String()),
			Metadata:   map[string]string{audit.MetaTaskID: taskID},
		}
		if task != nil {
			record.CaseID = task.CaseID
		}
		if _, err := s.audit.RecordWith(ctx, tx, record); err != nil {
			return err
		}
		result = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "time entry stopped",
		logging.TaskID(taskID),
		logging.Duration("duration", result.Duration()),
	)
	return result, nil
}

// Entries lists a task's entries ordered by start time.
func (s *Service) Entries(ctx context.Context, taskID string) ([]*store.TimeEntry, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, errs.Validation("timetrack", "entries", "task id is required")
	}
	return s.store.TimeEntries(ctx, taskID)
}

// Total sums the closed entries of a task. Open entries are counted but not timed.
func (s *Service) Total(ctx context.Context, taskID string) (Summary, error) {
	entries, err := s.Entries(ctx, taskID)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{TaskID: strings.TrimSpace(taskID), Entries: len(entries)}
	var total time.Duration
	for _, entry := range entries {
		if entry.EndTime == nil {
			summary.OpenEntries++
			continue
		}
		total += entry.Duration()
	}
	summary.TotalSeconds = total.Seconds()
	summary.TotalHours = total.Hours()
	return summary, nil
}
