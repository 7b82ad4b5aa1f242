package notify_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/notify"
	"caseflow/internal/store"
	"caseflow/internal/testsupport"
)

type recordingPusher struct {
	mu    sync.Mutex
	notes []*store.Notification
	err   error
}

func (p *recordingPusher) Push(_ context.Context, n *store.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, n)
	return p.err
}

func TestBatchStoresInTransactionAndFlushesAfterCommit(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	pusher := &recordingPusher{}
	d := notify.New(st, pusher, logging.NewNop())
	ctx := context.Background()
	task := &store.Task{ID: "T-1", Title: "Review filing", OwnerID: "bob"}

	batch := d.Batch()
	err := st.InTx(ctx, func(tx *store.Tx) error {
		if err := batch.Add(ctx, tx, notify.TaskAssigned(task, "alice")); err != nil {
			return err
		}
		// no recipient, dropped
		return batch.Add(ctx, tx, notify.ApprovalApproved(&store.Task{ID: "T-2", Title: "x"}))
	})
	require.NoError(t, err)
	require.Len(t, batch.Notifications(), 1)
	require.Empty(t, pusher.notes)

	batch.Flush(ctx)
	require.Len(t, pusher.notes, 1)
	require.Equal(t, store.NotifyTaskAssigned, pusher.notes[0].Type)

	inbox, err := d.List(ctx, "bob", false, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Equal(t, `alice assigned you "Review filing"`, inbox[0].Message)
}

func TestFlushSwallowsPushFailures(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	pusher := &recordingPusher{err: errors.New("offline")}
	d := notify.New(st, pusher, logging.NewNop())
	ctx := context.Background()

	batch := d.Batch()
	require.NoError(t, batch.Add(ctx, st, notify.StageCompleted("bob", "stage-1", "case-1")))
	batch.Flush(ctx)
	require.Len(t, pusher.notes, 1)
}

func TestInboxReadState(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	d := notify.New(st, nil, logging.NewNop())
	ctx := context.Background()
	task := &store.Task{ID: "T-1", Title: "Draft", OwnerID: "bob"}

	batch := d.Batch()
	require.NoError(t, batch.Add(ctx, st, notify.SLAWarning(task, 3)))
	require.NoError(t, batch.Add(ctx, st, notify.SLABreach(task, 1)))
	require.NoError(t, batch.Add(ctx, st, notify.ApprovalRequired(task, "carol", 0, 2)))

	count, err := d.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	first := batch.Notifications()[0]
	require.NoError(t, d.MarkRead(ctx, first.ID, "bob"))
	require.ErrorIs(t, d.MarkRead(ctx, first.ID, "carol"), errs.ErrNotFound)

	unread, err := d.List(ctx, "bob", true, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, store.NotifySLABreach, unread[0].Type)

	changed, err := d.MarkAllRead(ctx, "bob")
	require.NoError(t, err)
	require.EqualValues(t, 1, changed)

	count, err = d.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = d.List(ctx, "", false, 0)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestNtfyPusherFormatsRequest(t *testing.T) {
	type captured struct {
		title, tags, priority, body string
	}
	var (
		mu  sync.Mutex
		got []captured
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Types = []string{"sla_breach"}
	pusher := notify.NewPusher(cfg)
	ctx := context.Background()

	require.NoError(t, pusher.Push(ctx, &store.Notification{UserID: "bob", Type: store.NotifySLABreach, Message: "late"}))
	require.NoError(t, pusher.Push(ctx, &store.Notification{UserID: "bob", Type: store.NotifyTaskAssigned, Message: "filtered"}))

	require.Len(t, got, 1)
	require.Equal(t, "Caseflow - Sla Breach", got[0].title)
	require.Equal(t, "caseflow,sla,alert", got[0].tags)
	require.Equal(t, "high", got[0].priority)
	require.Equal(t, "@bob late", got[0].body)
}

func TestNtfyPusherReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	err := notify.NewPusher(cfg).Push(context.Background(), &store.Notification{Type: store.NotifyTaskAssigned})
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}

func TestLabel(t *testing.T) {
	require.Equal(t, "Approval Required", notify.Label(store.NotifyApprovalRequired))
	require.Equal(t, "Stage Completed", notify.Label(store.NotifyStageCompleted))
}
