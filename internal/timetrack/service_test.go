package timetrack_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"caseflow/internal/audit"
	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/testsupport"
	"caseflow/internal/timetrack"
)

func TestStartStopTotals(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	rec := audit.New(st, logging.NewNop())
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc := timetrack.New(st, rec, logging.NewNop(), timetrack.WithClock(func() time.Time { return now }))
	ctx := context.Background()
	testsupport.SeedTask(t, st, "T-1", testsupport.WithCase("c1"))

	_, err := svc.Start(ctx, timetrack.StartInput{TaskID: "T-1", UserID: "alice", Description: "drafting"})
	require.NoError(t, err)
	_, err = svc.Start(ctx, timetrack.StartInput{TaskID: "T-1", UserID: "alice"})
	require.ErrorIs(t, err, errs.ErrValidation)

	now = now.Add(90 * time.Minute)
	entry, err := svc.Stop(ctx, "T-1", "alice")
	require.NoError(t, err)
	require.Equal(t, 90*time.Minute, entry.Duration())

	_, err = svc.Stop(ctx, "T-1", "alice")
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = svc.Start(ctx, timetrack.StartInput{TaskID: "T-1", UserID: "bob"})
	require.NoError(t, err)

	summary, err := svc.Total(ctx, "T-1")
	require.NoError(t, err)
	require.Equal(t, 2, summary.Entries)
	require.Equal(t, 1, summary.OpenEntries)
	require.InDelta(t, 1.5, summary.TotalHours, 1e-9)

	entries, err := rec.QueryByCase(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, audit.ActionTimeStarted, entries[0].Action)
	require.Equal(t, audit.ActionTimeStopped, entries[1].Action)
}

func TestStartRequiresKnownTask(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	svc := timetrack.New(st, audit.New(st, logging.NewNop()), logging.NewNop())

	_, err := svc.Start(context.Background(), timetrack.StartInput{TaskID: "nope", UserID: "alice"})
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = svc.Start(context.Background(), timetrack.StartInput{TaskID: "nope"})
	require.ErrorIs(t, err, errs.ErrValidation)
}
