package store

import (
	"strings"
	"time"
)

// TaskStatus represents the lifecycle of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
)

var allStatuses = []TaskStatus{StatusPending, StatusInProgress, StatusReview, StatusDone}

// AllStatuses returns every task status in lifecycle order.
func AllStatuses() []TaskStatus {
	out := make([]TaskStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a string to a known status.
func ParseStatus(value string) (TaskStatus, bool) {
	normalized := TaskStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Priority ranks task urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var allPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// AllPriorities returns every priority from lowest to highest.
func AllPriorities() []Priority {
	out := make([]Priority, len(allPriorities))
	copy(out, allPriorities)
	return out
}

// ParsePriority converts a string to a known priority, case-insensitively.
func ParsePriority(value string) (Priority, bool) {
	normalized := Priority(strings.ToLower(strings.TrimSpace(value)))
	for _, p := range allPriorities {
		if p == normalized {
			return p, true
		}
	}
	return "", false
}

// DependencyType distinguishes edges that gate a task start from reference-only edges.
type DependencyType string

const (
	DependencyBlocking      DependencyType = "blocking"
	DependencyInformational DependencyType = "informational"
)

// ParseDependencyType converts a string to a known dependency type.
func ParseDependencyType(value string) (DependencyType, bool) {
	switch DependencyType(strings.ToLower(strings.TrimSpace(value))) {
	case DependencyBlocking:
		return DependencyBlocking, true
	case DependencyInformational:
		return DependencyInformational, true
	}
	return "", false
}

// SLAState is the derived timing classification of a task.
type SLAState string

const (
	SLAOnTrack  SLAState = "on_track"
	SLAWarning  SLAState = "warning"
	SLABreached SLAState = "breached"
)

// Severity orders SLA states so that a larger value is worse.
func (s SLAState) Severity() int {
	switch s {
	case SLAWarning:
		return 1
	case SLABreached:
		return 2
	default:
		return 0
	}
}

// ApprovalStatus is shared by chains and their steps.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// CompletionRule selects how a parallel group decides it is complete.
type CompletionRule string

const (
	RuleAll        CompletionRule = "all"
	RuleAny        CompletionRule = "any"
	RulePercentage CompletionRule = "percentage"
)

// ParseCompletionRule converts a string to a known completion rule.
func ParseCompletionRule(value string) (CompletionRule, bool) {
	switch CompletionRule(strings.ToLower(strings.TrimSpace(value))) {
	case RuleAll:
		return RuleAll, true
	case RuleAny:
		return RuleAny, true
	case RulePercentage:
		return RulePercentage, true
	}
	return "", false
}

// NotificationType names the transition that produced an inbox event.
type NotificationType string

const (
	NotifyTaskAssigned     NotificationType = "task_assigned"
	NotifySLAWarning       NotificationType = "sla_warning"
	NotifySLABreach        NotificationType = "sla_breach"
	NotifyStageCompleted   NotificationType = "stage_completed"
	NotifyApprovalRequired NotificationType = "approval_required"
	NotifyApprovalApproved NotificationType = "approval_approved"
	NotifyApprovalRejected NotificationType = "approval_rejected"
)

// Task is the engine's synchronized copy of a case task.
type Task struct {
	ID          string     `json:"id"`
	CaseID      string     `json:"caseId,omitempty"`
	StageID     string     `json:"stageId,omitempty"`
	Title       string     `json:"title"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	OwnerID     string     `json:"ownerId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Archived    bool       `json:"archived,omitempty"`
	SLAState    SLAState   `json:"-"`
	Version     int64      `json:"version"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// EffectiveStart is the instant SLA and time-in-stage clocks run from.
func (t *Task) EffectiveStart() time.Time {
	if t.StartedAt != nil && !t.StartedAt.IsZero() {
		return *t.StartedAt
	}
	return t.CreatedAt
}

// IsDone reports whether the task reached its terminal status.
func (t *Task) IsDone() bool {
	return t.Status == StatusDone
}

// TaskFilter narrows task enumeration. Empty fields match everything.
type TaskFilter struct {
	CaseID          string
	StageID         string
	OwnerID         string
	Statuses        []TaskStatus
	ExcludeDone     bool
	IncludeArchived bool
}

// Dependency is one edge: TaskID depends on DependsOn.
type Dependency struct {
	TaskID    string         `json:"taskId"`
	DependsOn string         `json:"dependsOn"`
	Type      DependencyType `json:"type"`
	CreatedAt time.Time      `json:"createdAt"`
}

// SLARule holds thresholds for a priority, optionally narrowed to a scope.
type SLARule struct {
	Priority              Priority  `json:"priority" yaml:"priority"`
	Scope                 string    `json:"scope,omitempty" yaml:"scope,omitempty"`
	WarningThresholdHours float64   `json:"warningThresholdHours" yaml:"warning_hours"`
	BreachThresholdHours  float64   `json:"breachThresholdHours" yaml:"breach_hours"`
	UpdatedAt             time.Time `json:"updatedAt,omitempty" yaml:"-"`
}

// ApprovalStep is one approver's slot in a chain.
type ApprovalStep struct {
	Order      int            `json:"order"`
	ApproverID string         `json:"approverId"`
	Status     ApprovalStatus `json:"status"`
	Comments   string         `json:"comments,omitempty"`
	DecidedAt  *time.Time     `json:"decidedAt,omitempty"`
}

// ApprovalChain is the sequential approval state machine for one task.
type ApprovalChain struct {
	ID          string         `json:"id"`
	TaskID      string         `json:"taskId"`
	Steps       []ApprovalStep `json:"steps"`
	CurrentStep int            `json:"currentStep"`
	Status      ApprovalStatus `json:"status"`
	CreatedBy   string         `json:"createdBy,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Version     int64          `json:"version"`
}

// ParallelGroup is a set of tasks evaluated together under a completion rule.
type ParallelGroup struct {
	ID                  string         `json:"id"`
	StageID             string         `json:"stageId"`
	TaskIDs             []string       `json:"taskIds"`
	CompletionRule      CompletionRule `json:"completionRule"`
	CompletionThreshold *int           `json:"completionThreshold,omitempty"`
	CreatedBy           string         `json:"createdBy,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
	Version             int64          `json:"version"`
}

// TimeEntry records time a user spent on a task.
type TimeEntry struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"taskId"`
	UserID      string     `json:"userId"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Duration returns the closed length of the entry, or zero while it is open.
func (e *TimeEntry) Duration() time.Duration {
	if e.EndTime == nil {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}

// Notification is a user-facing inbox event.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	TaskID    string           `json:"taskId,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// AuditEntry is one append-only record of a state change.
type AuditEntry struct {
	ID            string            `json:"id"`
	EntityType    string            `json:"entityType"`
	EntityID      string            `json:"entityId"`
	CaseID        string            `json:"caseId,omitempty"`
	Action        string            `json:"action"`
	UserID        string            `json:"userId"`
	Timestamp     time.Time         `json:"timestamp"`
	PreviousValue *string           `json:"previousValue,omitempty"`
	NewValue      *string           `json:"newValue,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// AuditFilter narrows audit queries. Empty fields match everything.
type AuditFilter struct {
	EntityType string
	EntityID   string
	CaseID     string
	Limit      int
}
