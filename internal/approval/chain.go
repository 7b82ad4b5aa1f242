package approval

import (
	"fmt"
	"strings"
	"time"

	"caseflow/internal/errs"
	"caseflow/internal/store"
)

// Action is an approver's decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Outcome describes what a decision did to the chain.
type Outcome int

const (
	// Advanced means another approver is now current.
	Advanced Outcome = iota
	// Approved means the final step approved.
	Approved
	// Rejected means a step rejected and the chain is closed.
	Rejected
)

// NewChain builds a pending chain with one step per approver in the given order.
func NewChain(id, taskID string, approverIDs []string, createdBy string) (*store.ApprovalChain, error) {
	if len(approverIDs) == 0 {
		return nil, errs.Validation("approval", "create", "at least one approver is required")
	}
	steps := make([]store.ApprovalStep, 0, len(approverIDs))
	for idx, approver := range approverIDs {
		approver = strings.TrimSpace(approver)
		if approver == "" {
			return nil, errs.Validation("approval", "create", fmt.Sprintf("approver %d is empty", idx+1))
		}
		steps = append(steps, store.ApprovalStep{Order: idx, ApproverID: approver, Status: store.ApprovalPending})
	}
	return &store.ApprovalChain{
		ID:          id,
		TaskID:      taskID,
		Steps:       steps,
		CurrentStep: 0,
		Status:      store.ApprovalPending,
		CreatedBy:   createdBy,
	}, nil
}

// Decide applies one decision to chain in memory. It enforces that the chain
// is pending and that approverID holds the current step.
func Decide(chain *store.ApprovalChain, approverID string, action Action, comments string, at time.Time) (Outcome, error) {
	if chain.Status != store.ApprovalPending {
		return 0, errs.Wrap(errs.ErrChainNotPending, "approval", "process",
			fmt.Sprintf("chain for task %q is %s", chain.TaskID, chain.Status), nil)
	}
	if chain.CurrentStep < 0 || chain.CurrentStep >= len(chain.Steps) {
		return 0, fmt.Errorf("approval chain %s has current step %d of %d", chain.ID, chain.CurrentStep, len(chain.Steps))
	}
	step := &chain.Steps[chain.CurrentStep]
	if step.ApproverID != approverID {
		return 0, errs.Wrap(errs.ErrNotCurrentApprover, "approval", "process",
			fmt.Sprintf("step %d belongs to %q, not %q", chain.CurrentStep+1, step.ApproverID, approverID), nil)
	}

	decided := at.UTC()
	step.Comments = strings.TrimSpace(comments)
	step.DecidedAt = &decided

	switch action {
	case ActionApprove:
		step.Status = store.ApprovalApproved
		chain.CurrentStep++
		if chain.CurrentStep == len(chain.Steps) {
			chain.Status = store.ApprovalApproved
			return Approved, nil
		}
		return Advanced, nil
	case ActionReject:
		step.Status = store.ApprovalRejected
		chain.Status = store.ApprovalRejected
		return Rejected, nil
	default:
		return 0, errs.Validation("approval", "process", fmt.Sprintf("unknown action %q", action))
	}
}

// CurrentApprover returns who must act next, or "" for a terminal chain.
func CurrentApprover(chain *store.ApprovalChain) string {
	if chain.Status != store.ApprovalPending || chain.CurrentStep >= len(chain.Steps) {
		return ""
	}
	return chain.Steps[chain.CurrentStep].ApproverID
}
