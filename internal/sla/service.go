package sla

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"caseflow/internal/audit"
	"caseflow/internal/config"
	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/notify"
	"caseflow/internal/store"
)

// Rule sources reported with a status.
const (
	SourceScoped  = "scoped"
	SourceGlobal  = "global"
	SourceDefault = "default"
)

// Status is the derived SLA classification of one task.
type Status struct {
	TaskID         string         `json:"taskId"`
	CaseID         string         `json:"caseId,omitempty"`
	OwnerID        string         `json:"ownerId,omitempty"`
	Priority       store.Priority `json:"priority"`
	State          store.SLAState `json:"status"`
	ElapsedHours   float64        `json:"elapsedHours"`
	HoursRemaining *float64       `json:"hoursRemaining,omitempty"`
	HoursOverdue   *float64       `json:"hoursOverdue,omitempty"`
	Rule           *store.SLARule `json:"rule,omitempty"`
	RuleSource     string         `json:"ruleSource,omitempty"`
}

// Options tunes rule resolution. A nil UseDefault defers to sla.allow_default.
type Options struct {
	UseDefault *bool
}

// Service resolves rules and classifies tasks.
type Service struct {
	store    *store.Store
	audit    *audit.Recorder
	notifier *notify.Dispatcher
	cfg      *config.Config
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used for elapsed-time computation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service.
func New(cfg *config.Config, st *store.Store, rec *audit.Recorder, notifier *notify.Dispatcher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		audit:    rec,
		notifier: notifier,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "sla"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ruleReader interface {
	GetSLARule(ctx context.Context, priority store.Priority, scope string) (*store.SLARule, error)
}

// Resolve finds the rule for a priority and scope: scoped, then global, then
// the configured fallback when allowed.
func (s *Service) Resolve(ctx context.Context, priority store.Priority, scope string, opts Options) (*store.SLARule, string, error) {
	return s.resolve(ctx, s.store, priority, scope, opts)
}

func (s *Service) resolve(ctx context.Context, r ruleReader, priority store.Priority, scope string, opts Options) (*store.SLARule, string, error) {
	if scope != "" {
		rule, err := r.GetSLARule(ctx, priority, scope)
		if err != nil {
			return nil, "", err
		}
		if rule != nil {
			return rule, SourceScoped, nil
		}
	}
	rule, err := r.GetSLARule(ctx, priority, "")
	if err != nil {
		return nil, "", err
	}
	if rule != nil {
		return rule, SourceGlobal, nil
	}

	allow := s.cfg != nil && s.cfg.SLA.AllowDefault
	if opts.UseDefault != nil {
		allow = *opts.UseDefault
	}
	if allow && s.cfg != nil {
		if t, ok := s.cfg.DefaultThreshold(string(priority)); ok {
			return &store.SLARule{
				Priority:              priority,
				WarningThresholdHours: t.WarningHours,
				BreachThresholdHours:  t.BreachHours,
			}, SourceDefault, nil
		}
	}
	return nil, "", errs.Wrap(errs.ErrNoRuleConfigured, "sla", "resolve",
		fmt.Sprintf("no rule for priority %q", priority), nil)
}

// GetStatus classifies one task.
func (s *Service) GetStatus(ctx context.Context, taskID string, opts Options) (*Status, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errs.NotFound("sla", "get status", "task", taskID)
	}
	return s.statusFor(ctx, s.store, task, opts)
}

// StatusOf classifies an already loaded task.
func (s *Service) StatusOf(ctx context.Context, task *store.Task, opts Options) (*Status, error) {
	return s.statusFor(ctx, s.store, task, opts)
}

func (s *Service) statusFor(ctx context.Context, r ruleReader, task *store.Task, opts Options) (*Status, error) {
	rule, source, err := s.resolve(ctx, r, task.Priority, task.CaseID, opts)
	if err != nil {
		return nil, err
	}
	elapsed := s.now().Sub(task.EffectiveStart()).Hours()
	if elapsed < 0 {
		elapsed = 0
	}
	status := &Status{
		TaskID:       task.ID,
		CaseID:       task.CaseID,
		OwnerID:      task.OwnerID,
		Priority:     task.Priority,
		ElapsedHours: round(elapsed),
		Rule:         rule,
		RuleSource:   source,
	}
	if task.IsDone() {
		status.State = store.SLAOnTrack
		return status, nil
	}
	state, remaining, overdue := Classify(elapsed, *rule)
	status.State = state
	if state == store.SLABreached {
		status.HoursOverdue = &overdue
	} else {
		status.HoursRemaining = &remaining
	}
	return status, nil
}

// ItemFailure is a task the breach sweep could not evaluate.
type ItemFailure struct {
	TaskID string `json:"taskId"`
	Error  string `json:"error"`
	Kind   string `json:"kind"`
}

// BreachReport partitions a scope's open tasks by SLA state.
type BreachReport struct {
	Scope     string        `json:"scope,omitempty"`
	CheckedAt time.Time     `json:"checkedAt"`
	Checked   int           `json:"checked"`
	Warnings  []*Status     `json:"warnings"`
	Breaches  []*Status     `json:"breaches"`
	Notified  int           `json:"notified"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

// CheckBreaches scans every open task in scope. Warnings are ordered by least
// time remaining and breaches by most time overdue. With notifyOwners set, an
// owner is told once each time a task's state gets worse; every task is its
// own unit of work and per-task failures are reported, not returned.
func (s *Service) CheckBreaches(ctx context.Context, scope string, notifyOwners bool) (*BreachReport, error) {
	open, err := s.store.ListTasks(ctx, store.TaskFilter{CaseID: scope, ExcludeDone: true})
	if err != nil {
		return nil, err
	}
	report := &BreachReport{
		Scope:     scope,
		CheckedAt: s.now().UTC(),
		Warnings:  []*Status{},
		Breaches:  []*Status{},
	}
	for _, task := range open {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		status, err := s.statusFor(ctx, s.store, task, Options{})
		if err != nil {
			report.Failures = append(report.Failures, ItemFailure{TaskID: task.ID, Error: err.Error(), Kind: errs.Kind(err)})
			continue
		}
		report.Checked++
		switch status.State {
		case store.SLAWarning:
			report.Warnings = append(report.Warnings, status)
		case store.SLABreached:
			report.Breaches = append(report.Breaches, status)
		}
		if !notifyOwners {
			continue
		}
		notified, err := s.recordState(ctx, task, status)
		if err != nil {
			report.Failures = append(report.Failures, ItemFailure{TaskID: task.ID, Error: err.Error(), Kind: errs.Kind(err)})
			continue
		}
		if notified {
			report.Notified++
		}
	}

	sort.SliceStable(report.Warnings, func(i, j int) bool {
		return *report.Warnings[i].HoursRemaining < *report.Warnings[j].HoursRemaining
	})
	sort.SliceStable(report.Breaches, func(i, j int) bool {
		return *report.Breaches[i].HoursOverdue > *report.Breaches[j].HoursOverdue
	})

	s.logger.InfoContext(ctx, "sla sweep complete",
		logging.String("scope", scope),
		logging.Int("checked", report.Checked),
		logging.Int("warnings", len(report.Warnings)),
		logging.Int("breaches", len(report.Breaches)),
		logging.Int("notified", report.Notified),
		logging.Int("failures", len(report.Failures)),
	)
	return report, nil
}

// recordState persists the task's latest state and notifies the owner when it
// got worse. The compare-and-swap keeps concurrent sweeps from notifying twice.
func (s *Service) recordState(ctx context.Context, task *store.Task, status *Status) (bool, error) {
	if status.State == task.SLAState {
		return false, nil
	}
	batch := s.notifier.Batch()
	worse := status.State.Severity() > task.SLAState.Severity()
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		swapped, err := tx.SwapTaskSLAState(ctx, task.ID, task.SLAState, status.State)
		if err != nil || !swapped || !worse {
			return err
		}
		switch status.State {
		case store.SLAWarning:
			return batch.Add(ctx, tx, notify.SLAWarning(task, *status.HoursRemaining))
		case store.SLABreached:
			return batch.Add(ctx, tx, notify.SLABreach(task, *status.HoursOverdue))
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	sent := len(batch.Notifications()) > 0
	batch.Flush(ctx)
	return sent, nil
}
