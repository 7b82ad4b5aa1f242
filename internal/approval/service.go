package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"caseflow/internal/audit"
	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/notify"
	"caseflow/internal/store"
)

// CreateInput starts a chain for a task.
type CreateInput struct {
	TaskID      string   `json:"taskId" validate:"required"`
	ApproverIDs []string `json:"approverIds" validate:"required,min=1"`
	Actor       string   `json:"actor"`
}

// ProcessInput is one approver's decision.
type ProcessInput struct {
	TaskID     string `json:"taskId" validate:"required"`
	ApproverID string `json:"approverId" validate:"required"`
	Action     string `json:"action" validate:"required,oneof=approve reject"`
	Comments   string `json:"comments,omitempty" validate:"max=4000"`
}

// Service runs approval chains.
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
		logger:   logging.NewComponentLogger(logger, "approval"),
		now:      time.Now,
	}
}

// Create attaches a new chain to a task. A task whose chain is still pending
// cannot get another; a finished chain is replaced.
func (s *Service) Create(ctx context.Context, in CreateInput) (*store.ApprovalChain, error) {
	if err := errs.ValidateStruct("approval", "create", in); err != nil {
		return nil, err
	}
	chain, err := NewChain(uuid.NewString(), strings.TrimSpace(in.TaskID), in.ApproverIDs, in.Actor)
	if err != nil {
		return nil, err
	}

	batch := s.notifier.Batch()
	err = s.store.InTx(ctx, func(tx *store.Tx) error {
		task, err := tx.GetTask(ctx, chain.TaskID)
		if err != nil {
			return err
		}
		if task == nil {
			return errs.NotFound("approval", "create", "task", chain.TaskID)
		}
		existing, err := tx.GetApprovalChainByTask(ctx, task.ID)
		if err != nil {
			return err
		}
		var previous *string
		if existing != nil {
			if existing.Status == store.ApprovalPending {
				return errs.Validation("approval", "create", fmt.Sprintf("task %q already has a pending approval chain", task.ID))
			}
			previous = audit.Value(string(existing.Status))
			if err := tx.DeleteApprovalChain(ctx, existing.ID); err != nil {
				return err
			}
		}
		if err := tx.TouchTask(ctx, task.ID, task.Version); err != nil {
			return err
		}
		if err := tx.InsertApprovalChain(ctx, chain); err != nil {
			return err
		}
		if _, err := s.audit.RecordWith(ctx, tx, store.AuditEntry{
			EntityType:    audit.EntityApprovalChain,
			EntityID:      task.ID,
			CaseID:        task.CaseID,
			Action:        audit.ActionApprovalCreated,
			UserID:        in.Actor,
			PreviousValue: previous,
			NewValue:      audit.Value(approverList(chain)),
			Metadata:      map[string]string{"chain_id": chain.ID},
		}); err != nil {
			return err
		}
		return batch.Add(ctx, tx, notify.ApprovalRequired(task, chain.Steps[0].ApproverID, 0, len(chain.Steps)))
	})
	if err != nil {
		return nil, err
	}
	batch.Flush(ctx)

	s.logger.InfoContext(ctx, "approval chain created",
		logging.TaskID(chain.TaskID),
		logging.Int("steps", len(chain.Steps)),
		logging.String(logging.FieldActor, in.Actor),
	)
	return chain, nil
}

// Process applies an approver's decision to the task's chain.
func (s *Service) Process(ctx context.Context, in ProcessInput) (*store.ApprovalChain, error) {
	in.Action = strings.ToLower(strings.TrimSpace(in.Action))
	if err := errs.ValidateStruct("approval", "process", in); err != nil {
		return nil, err
	}

	batch := s.notifier.Batch()
	var result *store.ApprovalChain
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		chain, err := tx.GetApprovalChainByTask(ctx, in.TaskID)
		if err != nil {
			return err
		}
		if chain == nil {
			return errs.NotFound("approval", "process", "approval chain for task", in.TaskID)
		}
		task, err := tx.GetTask(ctx, in.TaskID)
		if err != nil {
			return err
		}
		if task == nil {
			return errs.NotFound("approval", "process", "task", in.TaskID)
		}

		step := chain.CurrentStep
		outcome, err := Decide(chain, in.ApproverID, Action(in.Action), in.Comments, s.now())
		if err != nil {
			return err
		}
		if err := tx.UpdateApprovalChain(ctx, chain); err != nil {
			return err
		}

		entry := store.AuditEntry{
			EntityType:    audit.EntityApprovalChain,
			EntityID:      task.ID,
			CaseID:        task.CaseID,
			UserID:        in.ApproverID,
			PreviousValue: audit.Value(string(store.ApprovalPending)),
			Metadata: map[string]string{
				"chain_id": chain.ID,
				"step":     strconv.Itoa(step + 1),
			},
		}
		if c := strings.TrimSpace(in.Comments); c != "" {
			entry.Metadata["comments"] = c
		}
		var ev notify.Event
		switch outcome {
		case Advanced:
			entry.Action = audit.ActionApprovalApproved
			entry.NewValue = audit.Value(string(store.ApprovalApproved))
			ev = notify.ApprovalRequired(task, CurrentApprover(chain), chain.CurrentStep, len(chain.Steps))
		case Approved:
			entry.Action = audit.ActionApprovalApproved
			entry.NewValue = audit.Value(string(store.ApprovalApproved))
			entry.Metadata["chain_status"] = string(chain.Status)
			ev = notify.ApprovalApproved(task)
		case Rejected:
			entry.Action = audit.ActionApprovalRejected
			entry.NewValue = audit.Value(string(store.ApprovalRejected))
			entry.Metadata["chain_status"] = string(chain.Status)
			ev = notify.ApprovalRejected(task, in.ApproverID, in.Comments)
		}
		if _, err := s.audit.RecordWith(ctx, tx, entry); err != nil {
			return err
		}
		if err := batch.Add(ctx, tx, ev); err != nil {
			return err
		}
		result = chain
		return nil
	})
	if err != nil {
		return nil, err
	}
	batch.Flush(ctx)

	s.logger.InfoContext(ctx, "approval decision recorded",
		logging.TaskID(result.TaskID),
		logging.String("action", in.Action),
		logging.String("chain_status", string(result.Status)),
		logging.String(logging.FieldActor, in.ApproverID),
	)
	return result, nil
}

// Get returns the chain attached to a task.
func (s *Service) Get(ctx context.Context, taskID string) (*store.ApprovalChain, error) {
	chain, err := s.store.GetApprovalChainByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if chain == nil {
		return nil, errs.NotFound("approval", "get", "approval chain for task", taskID)
	}
	return chain, nil
}

// PendingFor lists the pending chains whose current step belongs to approverID.
func (s *Service) PendingFor(ctx context.Context, approverID string) ([]*store.ApprovalChain, error) {
	approverID = strings.TrimSpace(approverID)
	if approverID == "" {
		return nil, errs.Validation("approval", "pending", "approver id is required")
	}
	chains, err := s.store.ListApprovalChains(ctx, store.ApprovalPending)
	if err != nil {
		return nil, err
	}
	out := make([]*store.ApprovalChain, 0, len(chains))
	for _, chain := range chains {
		if CurrentApprover(chain) == approverID {
			out = append(out, chain)
		}
	}
	return out, nil
}

func approverList(chain *store.ApprovalChain) string {
	ids := make([]string, 0, len(chain.Steps))
	for _, step := range chain.Steps {
		ids = append(ids, step.ApproverID)
	}
	return strings.Join(ids, ",")
}
