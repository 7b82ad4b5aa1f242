package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"caseflow/internal/config"
	"caseflow/internal/dependency"
	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/sla"
	"caseflow/internal/store"
)

// MaxWindowDays bounds velocity queries.
const MaxWindowDays = 365

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

// Service computes analytics reports. Reports may be served from a cache
// shared by all callers; treat them as read-only.
type Service struct {
	cfg    *config.Config
	store  *store.Store
	sla    *sla.Service
	logger *slog.Logger
	now    func() time.Time
	cache  *resultCache
}

// New constructs a Service. slaSvc classifies tasks for overdue and breach counts.
func New(cfg *config.Config, st *store.Store, slaSvc *sla.Service, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		store:  st,
		sla:    slaSvc,
		logger: logging.NewComponentLogger(logger, "analytics"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = newResultCache(cfg.CacheTTL(), cfg.RequestTimeout(), s.now)
	return s
}

// Invalidate drops every cached report.
func (s *Service) Invalidate() {
	s.cache.purge()
}

// Metrics summarizes the tasks in scope. An empty scope covers every case.
func (s *Service) Metrics(ctx context.Context, scope string) (*Metrics, error) {
	scope = strings.TrimSpace(scope)
	return cached(ctx, s.cache, "metrics|"+scope, func(ctx context.Context) (*Metrics, error) {
		return s.computeMetrics(ctx, scope)
	})
}

func (s *Service) computeMetrics(ctx context.Context, scope string) (*Metrics, error) {
	var (
		tasks   []*store.Task
		entries []*store.TimeEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = s.store.ListTasks(gctx, store.TaskFilter{CaseID: scope})
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = s.store.TimeEntries(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	m := &Metrics{
		Scope:         scope,
		GeneratedAt:   now,
		TotalTasks:    len(tasks),
		ByStatus:      make(map[string]int, len(store.AllStatuses())),
		ByPriority:    make(map[string]int, len(store.AllPriorities())),
		StageProgress: []StageProgress{},
	}
	for _, status := range store.AllStatuses() {
		m.ByStatus[string(status)] = 0
	}
	for _, priority := range store.AllPriorities() {
		m.ByPriority[string(priority)] = 0
	}

	inScope := make(map[string]struct{}, len(tasks))
	stages := make(map[string]*StageProgress)
	for _, task := range tasks {
		inScope[task.ID] = struct{}{}
		m.ByStatus[string(task.Status)]++
		m.ByPriority[string(task.Priority)]++
		if task.StageID != "" {
			progress, ok := stages[task.StageID]
			if !ok {
				progress = &StageProgress{StageID: task.StageID}
				stages[task.StageID] = progress
			}
			progress.Total++
			if task.IsDone() {
				progress.Done++
			}
		}
		if task.IsDone() {
			m.Completed++
			continue
		}

		overdue := task.DueAt != nil && task.DueAt.Before(now)
		status, err := s.sla.StatusOf(ctx, task, sla.Options{})
		switch {
		case errors.Is(err, errs.ErrNoRuleConfigured):
			m.Unclassified++
		case err != nil:
			return nil, err
		case status.State == store.SLABreached:
			m.SLABreaches++
			overdue = true
		case status.State == store.SLAWarning:
			m.SLAWarnings++
		}
		if overdue {
			m.Overdue++
		}
	}

	for _, progress := range stages {
		progress.PercentComplete = percent(progress.Done, progress.Total)
		m.StageProgress = append(m.StageProgress, *progress)
	}
	sort.Slice(m.StageProgress, func(i, j int) bool {
		return m.StageProgress[i].StageID < m.StageProgress[j].StageID
	})

	var total time.Duration
	for _, entry := range entries {
		if entry.EndTime == nil {
			continue
		}
		if _, ok := inScope[entry.TaskID]; !ok && scope != "" {
			continue
		}
		total += entry.Duration()
		m.TimedEntries++
	}
	if m.TimedEntries > 0 {
		m.AverageCompletionHours = round2(total.Hours() / float64(m.TimedEntries))
	}

	s.logger.DebugContext(ctx, "metrics computed",
		logging.String("scope", scope),
		logging.Int("tasks", m.TotalTasks),
		logging.Int("breaches", m.SLABreaches),
	)
	return m, nil
}

// Velocity reports tasks completed per day over the trailing windowDays. A
// non-positive window uses the configured default.
func (s *Service) Velocity(ctx context.Context, scope string, windowDays int) (*Velocity, error) {
	scope = strings.TrimSpace(scope)
	if windowDays <= 0 {
		windowDays = s.cfg.Analytics.VelocityWindowDays
	}
	if windowDays < 1 || windowDays > MaxWindowDays {
		return nil, errs.Validation("analytics", "velocity",
			fmt.Sprintf("window must be between 1 and %d days", MaxWindowDays))
	}
	key := fmt.Sprintf("velocity|%s|%d", scope, windowDays)
	return cached(ctx, s.cache, key, func(ctx context.Context) (*Velocity, error) {
		return s.computeVelocity(ctx, scope, windowDays)
	})
}

func (s *Service) computeVelocity(ctx context.Context, scope string, windowDays int) (*Velocity, error) {
	done, err := s.store.ListTasks(ctx, store.TaskFilter{
		CaseID:   scope,
		Statuses: []store.TaskStatus{store.StatusDone},
	})
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	from := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	v := &Velocity{
		Scope:       scope,
		WindowDays:  windowDays,
		From:        from,
		To:          now,
		GeneratedAt: now,
		Daily:       []DailyCount{},
	}
	perDay := make(map[string]int)
	for _, task := range done {
		if task.CompletedAt == nil {
			continue
		}
		at := task.CompletedAt.UTC()
		if at.Before(from) || at.After(now) {
			continue
		}
		v.Completed++
		perDay[at.Format(time.DateOnly)]++
	}
	for day, count := range perDay {
		v.Daily = append(v.Daily, DailyCount{Date: day, Count: count})
	}
	sort.Slice(v.Daily, func(i, j int) bool { return v.Daily[i].Date < v.Daily[j].Date })
	v.PerDay = round2(float64(v.Completed) / float64(windowDays))
	return v, nil
}

// Bottlenecks ranks slow stages, lists blocked tasks and flags users whose
// open-task count exceeds the configured threshold.
func (s *Service) Bottlenecks(ctx context.Context, scope string) (*Bottlenecks, error) {
	scope = strings.TrimSpace(scope)
	return cached(ctx, s.cache, "bottlenecks|"+scope, func(ctx context.Context) (*Bottlenecks, error) {
		return s.computeBottlenecks(ctx, scope)
	})
}

func (s *Service) computeBottlenecks(ctx context.Context, scope string) (*Bottlenecks, error) {
	var (
		tasks []*store.Task
		deps  []store.Dependency
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = s.store.ListTasks(gctx, store.TaskFilter{CaseID: scope})
		return err
	})
	g.Go(func() error {
		var err error
		deps, err = s.store.AllDependencies(gctx, store.DependencyBlocking)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	report := &Bottlenecks{
		Scope:             scope,
		GeneratedAt:       now,
		SlowestStages:     []StageDuration{},
		BlockedTasks:      []dependency.StartCheck{},
		OverloadedUsers:   []UserLoad{},
		OverloadThreshold: s.cfg.Analytics.OverloadThreshold,
	}

	byID := make(map[string]*store.Task, len(tasks))
	type stageAcc struct {
		total time.Duration
		n     int
		open  int
	}
	stages := make(map[string]*stageAcc)
	load := make(map[string]int)
	for _, task := range tasks {
		byID[task.ID] = task
		if task.StageID != "" {
			acc, ok := stages[task.StageID]
			if !ok {
				acc = &stageAcc{}
				stages[task.StageID] = acc
			}
			acc.total += timeInStage(task, now)
			acc.n++
			if !task.IsDone() {
				acc.open++
			}
		}
		if !task.IsDone() && task.OwnerID != "" {
			load[task.OwnerID]++
		}
	}
	for stageID, acc := range stages {
		report.SlowestStages = append(report.SlowestStages, StageDuration{
			StageID:   stageID,
			MeanHours: round2(acc.total.Hours() / float64(acc.n)),
			Tasks:     acc.n,
			Open:      acc.open,
		})
	}
	sort.Slice(report.SlowestStages, func(i, j int) bool {
		a, b := report.SlowestStages[i], report.SlowestStages[j]
		if a.MeanHours != b.MeanHours {
			return a.MeanHours > b.MeanHours
		}
		return a.StageID < b.StageID
	})

	// Prerequisites may live outside the scope.
	var outside []string
	for _, dep := range deps {
		if _, ok := byID[dep.TaskID]; !ok {
			continue
		}
		if _, ok := byID[dep.DependsOn]; !ok {
			outside = append(outside, dep.DependsOn)
		}
	}
	if len(outside) > 0 {
		extra, err := s.store.GetTasks(ctx, outside)
		if err != nil {
			return nil, err
		}
		for id, task := range extra {
			if _, ok := byID[id]; !ok {
				byID[id] = task
			}
		}
	}
	statusOf := func(id string) (store.TaskStatus, bool) {
		task, ok := byID[id]
		if !ok {
			return "", false
		}
		return task.Status, true
	}
	for _, task := range tasks {
		if task.IsDone() {
			continue
		}
		check := dependency.Evaluate(task.ID, deps, statusOf)
		if !check.CanStart {
			report.BlockedTasks = append(report.BlockedTasks, check)
		}
	}

	for user, open := range load {
		if open > report.OverloadThreshold {
			report.OverloadedUsers = append(report.OverloadedUsers, UserLoad{UserID: user, OpenTasks: open})
		}
	}
	sort.Slice(report.OverloadedUsers, func(i, j int) bool {
		a, b := report.OverloadedUsers[i], report.OverloadedUsers[j]
		if a.OpenTasks != b.OpenTasks {
			return a.OpenTasks > b.OpenTasks
		}
		return a.UserID < b.UserID
	})
	return report, nil
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
