package dependency

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"caseflow/internal/audit"
	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/store"
)

// Reader is the read surface Check needs. *store.Store and *store.Tx satisfy it.
type Reader interface {
	GetTask(ctx context.Context, id string) (*store.Task, error)
	GetTasks(ctx context.Context, ids []string) (map[string]*store.Task, error)
	Dependencies(ctx context.Context, taskID string) ([]store.Dependency, error)
}

// Set is a task's outgoing edges grouped by type.
type Set struct {
	TaskID        string   `json:"taskId"`
	Blocking      []string `json:"blocking"`
	Informational []string `json:"informational"`
}

// Service owns dependency edges.
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
		logger: logging.NewComponentLogger(logger, "dependency"),
	}
}

// SetDependencies replaces taskID's edges of depType with dependsOn. An empty
// dependsOn clears that type. Blocking writes that would create a cycle fail
// with errs.ErrCycleDetected and store nothing.
func (s *Service) SetDependencies(ctx context.Context, taskID string, dependsOn []string, depType store.DependencyType, actor string) (*Set, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, errs.Validation("dependency", "set", "task id is required")
	}
	parsedType, ok := store.ParseDependencyType(string(depType))
	if !ok {
		return nil, errs.Validation("dependency", "set", fmt.Sprintf("unknown dependency type %q", depType))
	}
	targets, err := normalizeTargets(dependsOn)
	if err != nil {
		return nil, err
	}
	for _, target := range targets {
		if target == taskID {
			return nil, errs.Wrap(errs.ErrCycleDetected, "dependency", "set",
				fmt.Sprintf("task %q cannot depend on itself", taskID), nil)
		}
	}

	var result *Set
	err = s.store.InTx(ctx, func(tx *store.Tx) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return errs.NotFound("dependency", "set", "task", taskID)
		}
		found, err := tx.GetTasks(ctx, targets)
		if err != nil {
			return err
		}
		for _, target := range targets {
			if _, ok := found[target]; !ok {
				return errs.NotFound("dependency", "set", "task", target)
			}
		}

		if parsedType == store.DependencyBlocking {
			edges, err := tx.AllDependencies(ctx, store.DependencyBlocking)
			if err != nil {
				return err
			}
			if cycle := NewGraph(edges).FindCycle(taskID, targets); cycle != nil {
				return errs.Wrap(errs.ErrCycleDetected, "dependency", "set",
					"blocking path "+strings.Join(cycle, " -> "), nil)
			}
		}

		previous, err := tx.Dependencies(ctx, taskID)
		if err != nil {
			return err
		}
		if err := tx.TouchTask(ctx, task.ID, task.Version); err != nil {
			return err
		}
		if err := tx.ReplaceDependencies(ctx, taskID, parsedType, targets); err != nil {
			return err
		}

		if _, err := s.audit.RecordWith(ctx, tx, store.AuditEntry{
			EntityType:    audit.EntityDependency,
			EntityID:      taskID,
			CaseID:        task.CaseID,
			Action:        audit.ActionDependenciesSet,
			UserID:        actor,
			PreviousValue: audit.Value(strings.Join(filterType(previous, parsedType), ",")),
			NewValue:      audit.Value(strings.Join(targets, ",")),
			Metadata:      map[string]string{"type": string(parsedType)},
		}); err != nil {
			return err
		}

		current, err := tx.Dependencies(ctx, taskID)
		if err != nil {
			return err
		}
		result = group(taskID, current)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "dependencies set",
		logging.TaskID(taskID),
		logging.String("type", string(parsedType)),
		logging.Int("count", len(targets)),
		logging.String(logging.FieldActor, actor),
	)
	return result, nil
}

// CanStart reports whether every blocking prerequisite of taskID is done.
func (s *Service) CanStart(ctx context.Context, taskID string) (*StartCheck, error) {
	return Check(ctx, s.store, taskID)
}

// Check is CanStart against an arbitrary reader, typically a transaction.
func Check(ctx context.Context, r Reader, taskID string) (*StartCheck, error) {
	task, err := r.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errs.NotFound("dependency", "can start", "task", taskID)
	}
	deps, err := r.Dependencies(ctx, taskID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(deps))
	for _, dep := range deps {
		ids = append(ids, dep.DependsOn)
	}
	tasks, err := r.GetTasks(ctx, ids)
	if err != nil {
		return nil, err
	}
	check := Evaluate(taskID, deps, func(id string) (store.TaskStatus, bool) {
		t, ok := tasks[id]
		if !ok {
			return "", false
		}
		return t.Status, true
	})
	return &check, nil
}

// Get returns taskID's edges grouped by type.
func (s *Service) Get(ctx context.Context, taskID string) (*Set, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errs.NotFound("dependency", "get", "task", taskID)
	}
	deps, err := s.store.Dependencies(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return group(taskID, deps), nil
}

// Dependents returns the edges of tasks that depend on taskID.
func (s *Service) Dependents(ctx context.Context, taskID string) ([]store.Dependency, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errs.NotFound("dependency", "dependents", "task", taskID)
	}
	return s.store.Dependents(ctx, taskID)
}

func normalizeTargets(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, errs.Validation("dependency", "set", "dependency ids must not be empty")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func filterType(deps []store.Dependency, depType store.DependencyType) []string {
	var out []string
	for _, dep := range deps {
		if dep.Type == depType {
			out = append(out, dep.DependsOn)
		}
	}
	return out
}

func group(taskID string, deps []store.Dependency) *Set {
	set := &Set{
		TaskID:        taskID,
		Blocking:      filterType(deps, store.DependencyBlocking),
		Informational: filterType(deps, store.DependencyInformational),
	}
	if set.Blocking == nil {
		set.Blocking = []string{}
	}
	if set.Informational == nil {
		set.Informational = []string{}
	}
	return set
}
