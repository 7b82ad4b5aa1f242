package sla_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"caseflow/internal/audit"
	"caseflow/internal/config"
	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/notify"
	"caseflow/internal/sla"
	"caseflow/internal/store"
	"caseflow/internal/testsupport"
)

type fixture struct {
	cfg      *config.Config
	st       *store.Store
	rec      *audit.Recorder
	notifier *notify.Dispatcher
	svc      *sla.Service
	now      time.Time
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	rec := audit.New(st, logging.NewNop())
	notifier := notify.New(st, nil, logging.NewNop())
	f := &fixture{cfg: cfg, st: st, rec: rec, notifier: notifier, now: time.Now().UTC()}
	f.svc = sla.New(cfg, st, rec, notifier, logging.NewNop(), sla.WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) seed(t *testing.T, id string, priority store.Priority, createdHoursAgo float64, opts ...testsupport.TaskOption) *store.Task {
	t.Helper()
	created := f.now.Add(-time.Duration(createdHoursAgo * float64(time.Hour)))
	opts = append([]testsupport.TaskOption{
		testsupport.WithPriority(priority),
		func(task *store.Task) { task.CreatedAt = created },
	}, opts...)
	return testsupport.SeedTask(t, f.st, id, opts...)
}

func TestHighPriorityTaskThirtyHoursOldIsWarning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SetRule(ctx, sla.RuleInput{Priority: "High", WarningThresholdHours: 24, BreachThresholdHours: 48}, "admin")
	require.NoError(t, err)
	f.seed(t, "T-1", store.PriorityHigh, 30)

	status, err := f.svc.GetStatus(ctx, "T-1", sla.Options{})
	require.NoError(t, err)
	require.Equal(t, store.SLAWarning, status.State)
	require.NotNil(t, status.HoursRemaining)
	require.InDelta(t, 18, *status.HoursRemaining, 0.01)
	require.Nil(t, status.HoursOverdue)
	require.Equal(t, sla.SourceGlobal, status.RuleSource)
}

func TestStartedAtTakesPrecedence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SetRule(ctx, sla.RuleInput{Priority: "low", WarningThresholdHours: 10, BreachThresholdHours: 20}, "admin")
	require.NoError(t, err)
	started := f.now.Add(-5 * time.Hour)
	f.seed(t, "T-1", store.PriorityLow, 100, func(task *store.Task) { task.StartedAt = &started })

	status, err := f.svc.GetStatus(ctx, "T-1", sla.Options{})
	require.NoError(t, err)
	require.Equal(t, store.SLAOnTrack, status.State)
	require.InDelta(t, 5, status.ElapsedHours, 0.01)
}

func TestDoneTaskAlwaysOnTrack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SetRule(ctx, sla.RuleInput{Priority: "critical", WarningThresholdHours: 1, BreachThresholdHours: 2}, "admin")
	require.NoError(t, err)
	f.seed(t, "T-1", store.PriorityCritical, 500, testsupport.WithStatus(store.StatusDone))

	status, err := f.svc.GetStatus(ctx, "T-1", sla.Options{})
	require.NoError(t, err)
	require.Equal(t, store.SLAOnTrack, status.State)
}

func TestRuleResolutionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "T-1", store.PriorityMedium, 50, testsupport.WithCase("c1"))

	_, err := f.svc.GetStatus(ctx, "T-1", sla.Options{})
	require.ErrorIs(t, err, errs.ErrNoRuleConfigured)

	useDefault := true
	status, err := f.svc.GetStatus(ctx, "T-1", sla.Options{UseDefault: &useDefault})
	require.NoError(t, err)
	require.Equal(t, sla.SourceDefault, status.RuleSource)
	require.Equal(t, 120.0, status.Rule.BreachThresholdHours)

	_, err = f.svc.SetRule(ctx, sla.RuleInput{Priority: "medium", WarningThresholdHours: 10, BreachThresholdHours: 40}, "admin")
	require.NoError(t, err)
	status, err = f.svc.GetStatus(ctx, "T-1", sla.Options{})
	require.NoError(t, err)
	require.Equal(t, sla.SourceGlobal, status.RuleSource)
	require.Equal(t, store.SLABreached, status.State)
	require.InDelta(t, 10, *status.HoursOverdue, 0.01)

	_, err = f.svc.SetRule(ctx, sla.RuleInput{Priority: "medium", Scope: "c1", WarningThresholdHours: 48, BreachThresholdHours: 96}, "admin")
	require.NoError(t, err)
	status, err = f.svc.GetStatus(ctx, "T-1", sla.Options{})
	require.NoError(t, err)
	require.Equal(t, sla.SourceScoped, status.RuleSource)
	require.Equal(t, store.SLAWarning, status.State)
}

func TestAllowDefaultFromConfig(t *testing.T) {
	f := newFixture(t, testsupport.WithSLADefaults())
	ctx := context.Background()
	f.seed(t, "T-1", store.PriorityCritical, 5)

	status, err := f.svc.GetStatus(ctx, "T-1", sla.Options{})
	require.NoError(t, err)
	require.Equal(t, store.SLAWarning, status.State)

	forbid := false
	_, err = f.svc.GetStatus(ctx, "T-1", sla.Options{UseDefault: &forbid})
	require.ErrorIs(t, err, errs.ErrNoRuleConfigured)
}

func TestSetRuleValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []sla.RuleInput{
		{Priority: "high", WarningThresholdHours: 48, BreachThresholdHours: 24},
		{Priority: "high", WarningThresholdHours: 24, BreachThresholdHours: 24},
		{Priority: "high", WarningThresholdHours: -1, BreachThresholdHours: 24},
		{Priority: "urgent", WarningThresholdHours: 1, BreachThresholdHours: 2},
	}
	for _, in := range cases {
		_, err := f.svc.SetRule(ctx, in, "admin")
		require.ErrorIs(t, err, errs.ErrValidation, "%+v", in)
	}
	rules, err := f.svc.Rules(ctx)
	require.NoError(t, err)
	require.Empty(t, rules)
}

func TestSetRuleUpsertsAndAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SetRule(ctx, sla.RuleInput{Priority: "high", WarningThresholdHours: 1, BreachThresholdHours: 2}, "admin")
	require.NoError(t, err)
	_, err = f.svc.SetRule(ctx, sla.RuleInput{Priority: "high", WarningThresholdHours: 3, BreachThresholdHours: 4}, "admin")
	require.NoError(t, err)

	rules, err := f.svc.Rules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, 4.0, rules[0].BreachThresholdHours)

	entries, err := f.rec.Query(ctx, audit.EntitySLARule, "high", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "warning=1h breach=2h", *entries[0].PreviousValue)

	require.NoError(t, f.svc.DeleteRule(ctx, "high", "", "admin"))
	require.ErrorIs(t, f.svc.DeleteRule(ctx, "high", "", "admin"), errs.ErrNotFound)
}

func TestLoadRulesIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	good := `
rules:
  - priority: critical
    warning_hours: 2
    breach_hours: 4
  - priority: high
    scope: case-7
    warning_hours: 12
    breach_hours: 24
`
	rules, err := f.svc.LoadRules(ctx, strings.NewReader(good), "ops")
	require.NoError(t, err)
	require.Len(t, rules, 2)

	bad := `
rules:
  - priority: low
    warning_hours: 5
    breach_hours: 10
  - priority: low
    warning_hours: 6
    breach_hours: 3
`
	_, err = f.svc.LoadRules(ctx, strings.NewReader(bad), "ops")
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Contains(t, err.Error(), "rule 2")

	_, err = f.svc.LoadRules(ctx, strings.NewReader("rules:\n  - priority: low\n    bogus: 1\n"), "ops")
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.svc.LoadRules(ctx, strings.NewReader(""), "ops")
	require.ErrorIs(t, err, errs.ErrValidation)

	stored, err := f.svc.Rules(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
}

func TestCheckBreachesPartitionsAndOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SetRule(ctx, sla.RuleInput{Priority: "high", WarningThresholdHours: 24, BreachThresholdHours: 48}, "admin")
	require.NoError(t, err)

	f.seed(t, "on-track", store.PriorityHigh, 1)
	f.seed(t, "warn-late", store.PriorityHigh, 40)
	f.seed(t, "warn-early", store.PriorityHigh, 30)
	f.seed(t, "breach-small", store.PriorityHigh, 50)
	f.seed(t, "breach-big", store.PriorityHigh, 90)
	f.seed(t, "done", store.PriorityHigh, 90, testsupport.WithStatus(store.StatusDone))
	f.seed(t, "no-rule", store.PriorityLow, 90)

	report, err := f.svc.CheckBreaches(ctx, "", false)
	require.NoError(t, err)
	require.Equal(t, 5, report.Checked)
	require.Equal(t, []string{"warn-late", "warn-early"}, ids(report.Warnings))
	require.Equal(t, []string{"breach-big", "breach-small"}, ids(report.Breaches))
	require.Len(t, report.Failures, 1)
	require.Equal(t, "no-rule", report.Failures[0].TaskID)
	require.Equal(t, "no_rule_configured", report.Failures[0].Kind)
}

func TestCheckBreachesNotifiesOnlyWhenWorse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SetRule(ctx, sla.RuleInput{Priority: "high", WarningThresholdHours: 24, BreachThresholdHours: 48}, "admin")
	require.NoError(t, err)
	f.seed(t, "T-1", store.PriorityHigh, 30, testsupport.WithOwner("bob"))

	report, err := f.svc.CheckBreaches(ctx, "", true)
	require.NoError(t, err)
	require.Equal(t, 1, report.Notified)

	report, err = f.svc.CheckBreaches(ctx, "", true)
	require.NoError(t, err)
	require.Zero(t, report.Notified)

	f.now = f.now.Add(20 * time.Hour)
	report, err = f.svc.CheckBreaches(ctx, "", true)
	require.NoError(t, err)
	require.Equal(t, 1, report.Notified)

	inbox, err := f.notifier.List(ctx, "bob", false, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	require.Equal(t, store.NotifySLABreach, inbox[0].Type)
	require.Equal(t, store.NotifySLAWarning, inbox[1].Type)
}

func ids(statuses []*sla.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, s.TaskID)
	}
	return out
}
