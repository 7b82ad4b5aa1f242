package parallel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"caseflow/internal/audit"
	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/parallel"
	"caseflow/internal/store"
	"caseflow/internal/testsupport"
)

func newService(t *testing.T) (*store.Store, *audit.Recorder, *parallel.Service) {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	rec := audit.New(st, logging.NewNop())
	return st, rec, parallel.New(st, rec, logging.NewNop())
}

func intPtr(v int) *int { return &v }

func TestCreateValidation(t *testing.T) {
	st, _, svc := newService(t)
	ctx := context.Background()
	testsupport.SeedTask(t, st, "A")
	testsupport.SeedTask(t, st, "B")

	cases := []struct {
		name string
		in   parallel.CreateInput
		want error
	}{
		{"one task", parallel.CreateInput{StageID: "s", TaskIDs: []string{"A"}, Rule: "all"}, errs.ErrValidation},
		{"duplicate task", parallel.CreateInput{StageID: "s", TaskIDs: []string{"A", "A"}, Rule: "all"}, errs.ErrValidation},
		{"unknown rule", parallel.CreateInput{StageID: "s", TaskIDs: []string{"A", "B"}, Rule: "most"}, errs.ErrValidation},
		{"missing threshold", parallel.CreateInput{StageID: "s", TaskIDs: []string{"A", "B"}, Rule: "percentage"}, errs.ErrValidation},
		{"threshold zero", parallel.CreateInput{StageID: "s", TaskIDs: []string{"A", "B"}, Rule: "percentage", Threshold: intPtr(0)}, errs.ErrValidation},
		{"threshold above 100", parallel.CreateInput{StageID: "s", TaskIDs: []string{"A", "B"}, Rule: "percentage", Threshold: intPtr(101)}, errs.ErrValidation},
		{"threshold on all", parallel.CreateInput{StageID: "s", TaskIDs: []string{"A", "B"}, Rule: "all", Threshold: intPtr(50)}, errs.ErrValidation},
		{"unknown task", parallel.CreateInput{StageID: "s", TaskIDs: []string{"A", "Z"}, Rule: "any"}, errs.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.in)
			require.ErrorIs(t, err, tc.want)
		})
	}

	groups, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Empty(t, groups)
}

func TestStatusTracksMemberProgress(t *testing.T) {
	st, rec, svc := newService(t)
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C", "D"} {
		testsupport.SeedTask(t, st, id)
	}

	group, err := svc.Create(ctx, parallel.CreateInput{
		StageID: "review", TaskIDs: []string{"A", "B", "C", "D"}, Rule: "Percentage", Threshold: intPtr(50), Actor: "lead",
	})
	require.NoError(t, err)

	status, err := svc.Status(ctx, group.ID)
	require.NoError(t, err)
	require.False(t, status.IsComplete)
	require.Equal(t, 4, status.TotalCount)

	markDone(t, st, "A")
	status, err = svc.Status(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, 1, status.CompletedCount)
	require.False(t, status.IsComplete)

	// Removing an open member shrinks the denominator: 1 of 3 is still below 50%.
	_, err = svc.RemoveMember(ctx, group.ID, "D", "lead")
	require.NoError(t, err)
	status, err = svc.Status(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, 3, status.TotalCount)
	require.False(t, status.IsComplete)

	markDone(t, st, "B")
	status, err = svc.Status(ctx, group.ID)
	require.NoError(t, err)
	require.True(t, status.IsComplete)

	entries, err := rec.Query(ctx, audit.EntityParallelGroup, group.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, audit.ActionGroupMemberRemoved, entries[0].Action)
	require.Equal(t, "50", entries[1].Metadata["threshold"])
}

func TestRemoveMemberKeepsTwo(t *testing.T) {
	st, _, svc := newService(t)
	ctx := context.Background()
	testsupport.SeedTask(t, st, "A")
	testsupport.SeedTask(t, st, "B")

	group, err := svc.Create(ctx, parallel.CreateInput{StageID: "s", TaskIDs: []string{"A", "B"}, Rule: "any"})
	require.NoError(t, err)

	_, err = svc.RemoveMember(ctx, group.ID, "A", "")
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = svc.RemoveMember(ctx, group.ID, "Z", "")
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = svc.Status(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)

	groups, err := svc.List(ctx, "s")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, []string{"A", "B"}, groups[0].TaskIDs)
}

func markDone(t *testing.T, st *store.Store, id string) {
	t.Helper()
	task := testsupport.MustGetTask(t, st, id)
	task.Status = store.StatusDone
	require.NoError(t, st.UpdateTask(context.Background(), task))
}
