package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"caseflow/internal/engine"
	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/tasks"
	"caseflow/internal/testsupport"
)

func newEngine(t *testing.T, opts ...testsupport.ConfigOption) *engine.Engine {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	e, err := engine.New(cfg, st, logging.NewNop(), engine.WithRetryBackoff(0))
	require.NoError(t, err)
	return e
}

func TestRetryStopsOnSuccess(t *testing.T) {
	e := newEngine(t, testsupport.WithConflictRetries(3))
	calls := 0
	err := e.Retry(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errs.Conflict("test", "op", "task", "T-1")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryIsBounded(t *testing.T) {
	e := newEngine(t, testsupport.WithConflictRetries(2))
	calls := 0
	err := e.Retry(context.Background(), "op", func(context.Context) error {
		calls++
		return errs.Conflict("test", "op", "task", "T-1")
	})
	require.ErrorIs(t, err, errs.ErrConflictRetry)
	require.Equal(t, 3, calls)
}

func TestRetryPassesThroughOtherErrors(t *testing.T) {
	e := newEngine(t)
	calls := 0
	boom := errors.New("boom")
	err := e.Retry(context.Background(), "op", func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestEngineWiresComponents(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	task, err := engine.Do(ctx, e, "upsert", func(ctx context.Context) (*tasksResult, error) {
		task, created, err := e.Tasks.Upsert(ctx, tasks.Input{ID: "T-1", Title: "Review filing", Priority: "high", OwnerID: "alice"}, "sync")
		if err != nil {
			return nil, err
		}
		return &tasksResult{id: task.ID, created: created}, nil
	})
	require.NoError(t, err)
	require.True(t, task.created)

	_, err = e.Reassign.ReassignTask(ctx, "T-1", "bob", "lead")
	require.NoError(t, err)
	count, err := e.Notify.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	entries, err := e.Audit.Query(ctx, "task", "T-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestRetriedWriteDropsCachedAnalytics(t *testing.T) {
	e := newEngine(t, testsupport.WithCacheTTL(300))
	ctx := context.Background()

	before, err := e.Analytics.Metrics(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 0, before.TotalTasks)

	err = e.Retry(ctx, "upsert", func(ctx context.Context) error {
		_, _, err := e.Tasks.Upsert(ctx, tasks.Input{ID: "T-1", Title: "Intake", Priority: "low"}, "sync")
		return err
	})
	require.NoError(t, err)

	after, err := e.Analytics.Metrics(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 1, after.TotalTasks)
}

type tasksResult struct {
	id      string
	created bool
}
