package parallel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"caseflow/internal/audit"
	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/store"
)

// CreateInput defines a new group.
type CreateInput struct {
	StageID   string   `json:"stageId" validate:"required,max=128"`
	TaskIDs   []string `json:"taskIds" validate:"required,min=2,dive,required"`
	Rule      string   `json:"completionRule" validate:"required,oneof=all any percentage"`
	Threshold *int     `json:"completionThreshold,omitempty" validate:"omitempty,gte=1,lte=100"`
	Actor     string   `json:"actor"`
}

// Service owns parallel groups.
type Service struct {
	store  *store.Store
	audit  *audit.Recorder
	logger *slog.Logger
}

// New constructs a Service.
func New(st *store.Store, rec *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		store:  st,
		audit:  rec,
		logger: logging.NewComponentLogger(logger, "parallel"),
	}
}

// Create stores a group of at least two existing, distinct tasks.
func (s *Service) Create(ctx context.Context, in CreateInput) (*store.ParallelGroup, error) {
	in.Rule = strings.ToLower(strings.TrimSpace(in.Rule))
	if err := errs.ValidateStruct("parallel", "create", in); err != nil {
		return nil, err
	}
	rule, _ := store.ParseCompletionRule(in.Rule)
	switch {
	case rule == store.RulePercentage && in.Threshold == nil:
		return nil, errs.Validation("parallel", "create", "completionThreshold is required for the percentage rule")
	case rule != store.RulePercentage && in.Threshold != nil:
		return nil, errs.Validation("parallel", "create", "completionThreshold only applies to the percentage rule")
	}

	ids := make([]string, 0, len(in.TaskIDs))
	seen := make(map[string]struct{}, len(in.TaskIDs))
	for _, raw := range in.TaskIDs {
		id := strings.TrimSpace(raw)
		if _, dup := seen[id]; dup {
			return nil, errs.Validation("parallel", "create", fmt.Sprintf("task %q listed more than once", id))
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	group := &store.ParallelGroup{
		ID:                  uuid.NewString(),
		StageID:             strings.TrimSpace(in.StageID),
		TaskIDs:             ids,
		CompletionRule:      rule,
		CompletionThreshold: in.Threshold,
		CreatedBy:           in.Actor,
	}
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		found, err := tx.GetTasks(ctx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				return errs.NotFound("parallel", "create", "task", id)
			}
		}
		if err := tx.InsertParallelGroup(ctx, group); err != nil {
			return err
		}
		_, err = s.audit.RecordWith(ctx, tx, store.AuditEntry{
			EntityType: audit.EntityParallelGroup,
			EntityID:   group.ID,
			CaseID:     found[ids[0]].CaseID,
			Action:     audit.ActionGroupCreated,
			UserID:     in.Actor,
			NewValue:   audit.Value(strings.Join(ids, ",")),
			Metadata:   ruleMetadata(group),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "parallel group created",
		logging.String("group_id", group.ID),
		logging.String("stage_id", group.StageID),
		logging.Int("members", len(ids)),
		logging.String("rule", string(rule)),
	)
	return group, nil
}

// Status evaluates a group against the current state of its members.
func (s *Service) Status(ctx context.Context, groupID string) (Status, error) {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return Status{}, err
	}
	tasks, err := s.store.GetTasks(ctx, group.TaskIDs)
	if err != nil {
		return Status{}, err
	}
	return Evaluate(group, tasks), nil
}

// Get returns a group with its members.
func (s *Service) Get(ctx context.Context, groupID string) (*store.ParallelGroup, error) {
	group, err := s.store.GetParallelGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, errs.NotFound("parallel", "get", "parallel group", groupID)
	}
	return group, nil
}

// List returns the groups of a stage, or every group when stageID is empty.
func (s *Service) List(ctx context.Context, stageID string) ([]*store.ParallelGroup, error) {
	return s.store.ListParallelGroups(ctx, strings.TrimSpace(stageID))
}

// RemoveMember drops a task from a group. A group never shrinks below two members.
func (s *Service) RemoveMember(ctx context.Context, groupID, taskID, actor string) (*store.ParallelGroup, error) {
	var result *store.ParallelGroup
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		group, err := tx.GetParallelGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if group == nil {
			return errs.NotFound("parallel", "remove member", "parallel group", groupID)
		}
		member := false
		for _, id := range group.TaskIDs {
			if id == taskID {
				member = true
				break
			}
		}
		if !member {
			return errs.NotFound("parallel", "remove member", "group member", taskID)
		}
		if len(group.TaskIDs) <= 2 {
			return errs.Validation("parallel", "remove member",
				fmt.Sprintf("group %q must keep at least two tasks", group.ID))
		}
		previous := strings.Join(group.TaskIDs, ",")
		if err := tx.RemoveParallelGroupMember(ctx, group, taskID); err != nil {
			return err
		}
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		entry := store.AuditEntry{
			EntityType:    audit.EntityParallelGroup,
			EntityID:      group.ID,
			Action:        audit.ActionGroupMemberRemoved,
			UserID:        actor,
			PreviousValue: audit.Value(previous),
			NewValue:      audit.Value(strings.Join(group.TaskIDs, ",")),
			Metadata:      map[string]string{audit.MetaTaskID: taskID},
		}
		if task != nil {
			entry.CaseID = task.CaseID
		}
		if _, err := s.audit.RecordWith(ctx, tx, entry); err != nil {
			return err
		}
		result = group
		return nil
	})
	return result, err
}

func ruleMetadata(group *store.ParallelGroup) map[string]string {
	meta := map[string]string{
		"stage_id": group.StageID,
		"rule":     string(group.CompletionRule),
	}
	if group.CompletionThreshold != nil {
		meta["threshold"] = strconv.Itoa(*group.CompletionThreshold)
	}
	return meta
}
