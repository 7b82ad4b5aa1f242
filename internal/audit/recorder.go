package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/store"
)

// Entity types recorded by the engine.
const (
	EntityTask          = "task"
	EntityDependency    = "dependency"
	EntitySLARule       = "sla_rule"
	EntityApprovalChain = "approval_chain"
	EntityParallelGroup = "parallel_group"
	EntityTimeEntry     = "time_entry"
)

// Actions recorded by the engine.
const (
	ActionTaskCreated        = "task_created"
	ActionTaskUpdated        = "task_updated"
	ActionStatusChanged      = "status_changed"
	ActionTaskArchived       = "task_archived"
	ActionDependenciesSet    = "dependencies_set"
	ActionSLARuleSet         = "sla_rule_set"
	ActionSLARuleDeleted     = "sla_rule_deleted"
	ActionApprovalCreated    = "approval_created"
	ActionApprovalApproved   = "approval_approved"
	ActionApprovalRejected   = "approval_rejected"
	ActionGroupCreated       = "group_created"
	ActionGroupMemberRemoved = "group_member_removed"
	ActionReassigned         = "reassigned"
	ActionTimeStarted        = "time_started"
	ActionTimeStopped        = "time_stopped"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Writer appends audit rows and resolves the task an entry belongs to.
// *store.Store and *store.Tx both satisfy it.
type Writer interface {
	InsertAuditEntry(ctx context.Context, entry *store.AuditEntry) error
	GetTask(ctx context.Context, id string) (*store.Task, error)
}

// MetaTaskID is the metadata key naming the task an entry is scoped to when
// the entity itself is not a task.
const MetaTaskID = "task_id"

// taskOf returns the task id an entry refers to, if any.
func taskOf(entry *store.AuditEntry) string {
	if id := strings.TrimSpace(entry.Metadata[MetaTaskID]); id != "" {
		return id
	}
	switch entry.EntityType {
	case EntityTask, EntityDependency, EntityApprovalChain:
		return entry.EntityID
	}
	return ""
}

// Recorder appends and reads audit entries.
type Recorder struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a Recorder over st.
func New(st *store.Store, logger *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store:  st,
		logger: logging.NewComponentLogger(logger, "audit"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends entry outside any caller transaction.
func (r *Recorder) Record(ctx context.Context, entry store.AuditEntry) (*store.AuditEntry, error) {
	return r.RecordWith(ctx, r.store, entry)
}

// RecordWith appends entry through w, normally the caller's transaction.
func (r *Recorder) RecordWith(ctx context.Context, w Writer, entry store.AuditEntry) (*store.AuditEntry, error) {
	entry.EntityType = strings.TrimSpace(entry.EntityType)
	entry.EntityID = strings.TrimSpace(entry.EntityID)
	entry.Action = strings.TrimSpace(entry.Action)
	switch {
	case entry.EntityType == "":
		return nil, errs.Validation("audit", "record", "entity type is required")
	case entry.EntityID == "":
		return nil, errs.Validation("audit", "record", "entity id is required")
	case entry.Action == "":
		return nil, errs.Validation("audit", "record", "action is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}
	entry.CaseID = strings.TrimSpace(entry.CaseID)
	if entry.CaseID == "" {
		if taskID := taskOf(&entry); taskID != "" {
			task, err := w.GetTask(ctx, taskID)
			if err != nil {
				return nil, err
			}
			if task != nil {
				entry.CaseID = task.CaseID
			}
		}
	}
	if err := w.InsertAuditEntry(ctx, &entry); err != nil {
		return nil, err
	}
	r.logger.DebugContext(ctx, "audit entry recorded",
		logging.String("entity_type", entry.EntityType),
		logging.String("entity_id", entry.EntityID),
		logging.String("action", entry.Action),
		logging.String(logging.FieldActor, entry.UserID),
	)
	return &entry, nil
}

// Query lists entries for an entity type and/or id, newest first.
func (r *Recorder) Query(ctx context.Context, entityType, entityID string, limit int) ([]*store.AuditEntry, error) {
	return r.store.QueryAudit(ctx, store.AuditFilter{
		EntityType: strings.TrimSpace(entityType),
		EntityID:   strings.TrimSpace(entityID),
		Limit:      clampLimit(limit),
	})
}

// QueryByCase lists every entry attributed to a case, newest first.
func (r *Recorder) QueryByCase(ctx context.Context, caseID string, limit int) ([]*store.AuditEntry, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, errs.Validation("audit", "query by case", "case id is required")
	}
	return r.store.QueryAudit(ctx, store.AuditFilter{CaseID: caseID, Limit: clampLimit(limit)})
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Value returns a pointer to s for the optional previous/new value fields.
func Value(s string) *string {
	return &s
}
