package notify

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"caseflow/internal/store"
)

// Event is a notification before it is stored.
type Event struct {
	UserID  string
	Type    store.NotificationType
	Title   string
	Message string
	TaskID  string
}

var titleCaser = cases.Title(language.English)

// Label renders a notification type for display, e.g. "Approval Required".
func Label(t store.NotificationType) string {
	return titleCaser.String(strings.ReplaceAll(string(t), "_", " "))
}

// TaskAssigned tells the new owner a task is theirs.
func TaskAssigned(task *store.Task, actor string) Event {
	message := fmt.Sprintf("You were assigned %q", task.Title)
	if actor = strings.TrimSpace(actor); actor != "" {
		message = fmt.Sprintf("%s assigned you %q", actor, task.Title)
	}
	return Event{
		UserID:  task.OwnerID,
		Type:    store.NotifyTaskAssigned,
		Title:   "Task assigned",
		Message: message,
		TaskID:  task.ID,
	}
}

// SLAWarning tells the owner a task is approaching its breach threshold.
func SLAWarning(task *store.Task, hoursRemaining float64) Event {
	return Event{
		UserID:  task.OwnerID,
		Type:    store.NotifySLAWarning,
		Title:   "SLA warning",
		Message: fmt.Sprintf("%q breaches its SLA in %.1f hours", task.Title, hoursRemaining),
		TaskID:  task.ID,
	}
}

// SLABreach tells the owner a task is past its breach threshold.
func SLABreach(task *store.Task, hoursOverdue float64) Event {
	return Event{
		UserID:  task.OwnerID,
		Type:    store.NotifySLABreach,
		Title:   "SLA breached",
		Message: fmt.Sprintf("%q is %.1f hours past its SLA", task.Title, hoursOverdue),
		TaskID:  task.ID,
	}
}

// StageCompleted tells a stage participant every task in the stage is done.
func StageCompleted(userID, stageID, caseID string) Event {
	message := fmt.Sprintf("All tasks in stage %s are done", stageID)
	if caseID != "" {
		message = fmt.Sprintf("All tasks in stage %s of case %s are done", stageID, caseID)
	}
	return Event{
		UserID:  userID,
		Type:    store.NotifyStageCompleted,
		Title:   "Stage completed",
		Message: message,
	}
}

// ApprovalRequired asks an approver to act on their step.
func ApprovalRequired(task *store.Task, approverID string, step, total int) Event {
	return Event{
		UserID:  approverID,
		Type:    store.NotifyApprovalRequired,
		Title:   "Approval required",
		Message: fmt.Sprintf("%q needs your approval (step %d of %d)", task.Title, step+1, total),
		TaskID:  task.ID,
	}
}

// ApprovalApproved tells the task owner the chain finished approved.
func ApprovalApproved(task *store.Task) Event {
	return Event{
		UserID:  task.OwnerID,
		Type:    store.NotifyApprovalApproved,
		Title:   "Approval granted",
		Message: fmt.Sprintf("%q was approved by every approver", task.Title),
		TaskID:  task.ID,
	}
}

// ApprovalRejected tells the task owner the chain was rejected.
func ApprovalRejected(task *store.Task, approverID, comments string) Event {
	message := fmt.Sprintf("%q was rejected by %s", task.Title, approverID)
	if comments = strings.TrimSpace(comments); comments != "" {
		message += ": " + comments
	}
	return Event{
		UserID:  task.OwnerID,
		Type:    store.NotifyApprovalRejected,
		Title:   "Approval rejected",
		Message: message,
		TaskID:  task.ID,
	}
}
