package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"caseflow/internal/errs"
	"caseflow/internal/store"
	"caseflow/internal/testsupport"

	_ "modernc.org/sqlite"
)

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedTask(t, st, "T-1")

	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	task, err := reopened.GetTask(context.Background(), "T-1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task == nil || task.Title != "Task T-1" {
		t.Fatalf("unexpected task after reopen: %#v", task)
	}
}

func TestOpenRefusesNewerSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = version + 1"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := store.Open(cfg); !errors.Is(err, store.ErrSchemaTooNew) {
		t.Fatalf("expected ErrSchemaTooNew, got %v", err)
	}
}

func TestGetTaskMissingReturnsNil(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	task, err := st.GetTask(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task != nil {
		t.Fatalf("expected nil task, got %#v", task)
	}
}

func TestInsertTaskRejectsDuplicateID(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.SeedTask(t, st, "T-1")

	err := st.InsertTask(context.Background(), &store.Task{ID: "T-1", Title: "again", Priority: store.PriorityLow})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateTaskAdvancesVersion(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	task := testsupport.SeedTask(t, st, "T-1")
	ctx := context.Background()

	task.OwnerID = "alice"
	if err := st.UpdateTask(ctx, task); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if task.Version != 2 {
		t.Fatalf("expected version 2, got %d", task.Version)
	}

	stored := testsupport.MustGetTask(t, st, "T-1")
	if stored.OwnerID != "alice" || stored.Version != 2 {
		t.Fatalf("unexpected stored task: %#v", stored)
	}
}

func TestUpdateTaskStaleVersionConflicts(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.SeedTask(t, st, "T-1")
	ctx := context.Background()

	first := testsupport.MustGetTask(t, st, "T-1")
	second := testsupport.MustGetTask(t, st, "T-1")

	first.OwnerID = "alice"
	if err := st.UpdateTask(ctx, first); err != nil {
		t.Fatalf("first UpdateTask failed: %v", err)
	}

	second.OwnerID = "bob"
	err := st.UpdateTask(ctx, second)
	if !errors.Is(err, errs.ErrConflictRetry) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if stored := testsupport.MustGetTask(t, st, "T-1"); stored.OwnerID != "alice" {
		t.Fatalf("expected first writer to win, got owner %q", stored.OwnerID)
	}
}

func TestConcurrentTransactionsSecondWriterConflicts(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.SeedTask(t, st, "T-1")
	ctx := context.Background()

	tx1, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin tx1: %v", err)
	}
	defer tx1.Rollback()
	tx2, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin tx2: %v", err)
	}
	defer tx2.Rollback()

	a, err := tx1.GetTask(ctx, "T-1")
	if err != nil || a == nil {
		t.Fatalf("tx1 GetTask: %v", err)
	}
	b, err := tx2.GetTask(ctx, "T-1")
	if err != nil || b == nil {
		t.Fatalf("tx2 GetTask: %v", err)
	}

	a.OwnerID = "alice"
	if err := tx1.UpdateTask(ctx, a); err != nil {
		t.Fatalf("tx1 UpdateTask: %v", err)
	}
	if err := tx1.Commit(); err != nil {
		t.Fatalf("tx1 Commit: %v", err)
	}

	b.OwnerID = "bob"
	err = tx2.UpdateTask(ctx, b)
	if err == nil {
		err = tx2.Commit()
	}
	if !errors.Is(err, errs.ErrConflictRetry) {
		t.Fatalf("expected second writer to conflict, got %v", err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertTask(ctx, &store.Task{ID: "T-9", Title: "x", Priority: store.PriorityLow}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if task, _ := st.GetTask(ctx, "T-9"); task != nil {
		t.Fatalf("expected rollback, found %#v", task)
	}
}

func TestListTasksFilters(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SeedTask(t, st, "A", testsupport.WithOwner("alice"), testsupport.WithCase("c1"))
	testsupport.SeedTask(t, st, "B", testsupport.WithOwner("alice"), testsupport.WithCase("c2"), testsupport.WithStatus(store.StatusDone))
	testsupport.SeedTask(t, st, "C", testsupport.WithOwner("bob"), testsupport.WithCase("c1"))
	archived := testsupport.SeedTask(t, st, "D", testsupport.WithOwner("alice"), testsupport.WithCase("c1"))
	archived.Archived = true
	if err := st.UpdateTask(ctx, archived); err != nil {
		t.Fatalf("archive: %v", err)
	}

	cases := []struct {
		name   string
		filter store.TaskFilter
		want   []string
	}{
		{"all active", store.TaskFilter{}, []string{"A", "B", "C"}},
		{"owner", store.TaskFilter{OwnerID: "alice"}, []string{"A", "B"}},
		{"case", store.TaskFilter{CaseID: "c1"}, []string{"A", "C"}},
		{"open only", store.TaskFilter{OwnerID: "alice", ExcludeDone: true}, []string{"A"}},
		{"archived included", store.TaskFilter{CaseID: "c1", IncludeArchived: true}, []string{"A", "C", "D"}},
		{"statuses", store.TaskFilter{Statuses: []store.TaskStatus{store.StatusDone}}, []string{"B"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tasks, err := st.ListTasks(ctx, tc.filter)
			if err != nil {
				t.Fatalf("ListTasks failed: %v", err)
			}
			var got []string
			for _, task := range tasks {
				got = append(got, task.ID)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestReplaceDependenciesSwapsOneType(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C", "D"} {
		testsupport.SeedTask(t, st, id)
	}

	if err := st.ReplaceDependencies(ctx, "D", store.DependencyBlocking, []string{"A", "B"}); err != nil {
		t.Fatalf("ReplaceDependencies blocking: %v", err)
	}
	if err := st.ReplaceDependencies(ctx, "D", store.DependencyInformational, []string{"C"}); err != nil {
		t.Fatalf("ReplaceDependencies informational: %v", err)
	}
	if err := st.ReplaceDependencies(ctx, "D", store.DependencyBlocking, []string{"B"}); err != nil {
		t.Fatalf("ReplaceDependencies blocking again: %v", err)
	}

	deps, err := st.Dependencies(ctx, "D")
	if err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	if len(deps) != 2 || deps[0].DependsOn != "B" || deps[1].DependsOn != "C" {
		t.Fatalf("unexpected edges: %#v", deps)
	}
	if deps[0].Type != store.DependencyBlocking || deps[1].Type != store.DependencyInformational {
		t.Fatalf("unexpected edge types: %#v", deps)
	}

	dependents, err := st.Dependents(ctx, "C")
	if err != nil {
		t.Fatalf("Dependents: %v", err)
	}
	if len(dependents) != 1 || dependents[0].TaskID != "D" {
		t.Fatalf("unexpected dependents: %#v", dependents)
	}
}

func TestApprovalChainRoundTrip(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SeedTask(t, st, "T-1")

	chain := &store.ApprovalChain{
		ID:     "chain-1",
		TaskID: "T-1",
		Status: store.ApprovalPending,
		Steps: []store.ApprovalStep{
			{Order: 0, ApproverID: "a", Status: store.ApprovalPending},
			{Order: 1, ApproverID: "b", Status: store.ApprovalPending},
		},
	}
	if err := st.InsertApprovalChain(ctx, chain); err != nil {
		t.Fatalf("InsertApprovalChain: %v", err)
	}

	stale, err := st.GetApprovalChainByTask(ctx, "T-1")
	if err != nil || stale == nil {
		t.Fatalf("GetApprovalChainByTask: %v", err)
	}

	decided := time.Now().UTC()
	chain.Steps[0].Status = store.ApprovalApproved
	chain.Steps[0].DecidedAt = &decided
	chain.CurrentStep = 1
	if err := st.UpdateApprovalChain(ctx, chain); err != nil {
		t.Fatalf("UpdateApprovalChain: %v", err)
	}

	fetched, err := st.GetApprovalChain(ctx, "chain-1")
	if err != nil {
		t.Fatalf("GetApprovalChain: %v", err)
	}
	if fetched.CurrentStep != 1 || fetched.Steps[0].Status != store.ApprovalApproved || fetched.Steps[0].DecidedAt == nil {
		t.Fatalf("unexpected chain: %#v", fetched)
	}

	stale.Status = store.ApprovalRejected
	if err := st.UpdateApprovalChain(ctx, stale); !errors.Is(err, errs.ErrConflictRetry) {
		t.Fatalf("expected stale chain update to conflict, got %v", err)
	}
}

func TestParallelGroupMembership(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C"} {
		testsupport.SeedTask(t, st, id)
	}
	threshold := 50
	group := &store.ParallelGroup{
		ID:                  "g-1",
		StageID:             "stage-1",
		TaskIDs:             []string{"C", "A", "B"},
		CompletionRule:      store.RulePercentage,
		CompletionThreshold: &threshold,
	}
	if err := st.InsertParallelGroup(ctx, group); err != nil {
		t.Fatalf("InsertParallelGroup: %v", err)
	}
	if err := st.RemoveParallelGroupMember(ctx, group, "A"); err != nil {
		t.Fatalf("RemoveParallelGroupMember: %v", err)
	}

	fetched, err := st.GetParallelGroup(ctx, "g-1")
	if err != nil {
		t.Fatalf("GetParallelGroup: %v", err)
	}
	if len(fetched.TaskIDs) != 2 || fetched.TaskIDs[0] != "C" || fetched.TaskIDs[1] != "B" {
		t.Fatalf("unexpected members: %v", fetched.TaskIDs)
	}
	if fetched.CompletionThreshold == nil || *fetched.CompletionThreshold != 50 || fetched.Version != 2 {
		t.Fatalf("unexpected group: %#v", fetched)
	}
}

func TestOpenTimeEntryIsUniquePerTaskAndUser(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SeedTask(t, st, "T-1")

	now := time.Now().UTC()
	if err := st.InsertTimeEntry(ctx, &store.TimeEntry{ID: "e1", TaskID: "T-1", UserID: "u", StartTime: now}); err != nil {
		t.Fatalf("InsertTimeEntry: %v", err)
	}
	err := st.InsertTimeEntry(ctx, &store.TimeEntry{ID: "e2", TaskID: "T-1", UserID: "u", StartTime: now})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for second open entry, got %v", err)
	}
	if err := st.InsertTimeEntry(ctx, &store.TimeEntry{ID: "e3", TaskID: "T-1", UserID: "v", StartTime: now}); err != nil {
		t.Fatalf("other user should be able to open an entry: %v", err)
	}
}

func TestQueryAuditNewestFirst(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Now().UTC()
	for i, action := range []string{"created", "updated", "archived"} {
		entry := &store.AuditEntry{
			ID:         action,
			EntityType: "task",
			EntityID:   "T-1",
			CaseID:     "c1",
			Action:     action,
			UserID:     "u",
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			Metadata:   map[string]string{"step": action},
		}
		if err := st.InsertAuditEntry(ctx, entry); err != nil {
			t.Fatalf("InsertAuditEntry: %v", err)
		}
	}

	entries, err := st.QueryAudit(ctx, store.AuditFilter{CaseID: "c1", Limit: 2})
	if err != nil {
		t.Fatalf("QueryAudit: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != "archived" || entries[1].Action != "updated" {
		t.Fatalf("unexpected order: %#v", entries)
	}
	if entries[0].Metadata["step"] != "archived" {
		t.Fatalf("metadata not decoded: %#v", entries[0].Metadata)
	}
}
