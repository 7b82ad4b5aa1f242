package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/store"
)

// Writer stores inbox records. *store.Store and *store.Tx both satisfy it.
type Writer interface {
	InsertNotification(ctx context.Context, n *store.Notification) error
}

// Dispatcher stores inbox events and mirrors them outward.
type Dispatcher struct {
	store  *store.Store
	pusher Pusher
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Dispatcher. A nil pusher disables outbound delivery.
func New(st *store.Store, pusher Pusher, logger *slog.Logger) *Dispatcher {
	if pusher == nil {
		pusher = noopPusher{}
	}
	return &Dispatcher{
		store:  st,
		pusher: pusher,
		logger: logging.NewComponentLogger(logger, "notify"),
		now:    time.Now,
	}
}

// Batch collects the notifications produced by one transaction.
type Batch struct {
	d     *Dispatcher
	notes []*store.Notification
}

// Batch starts a new collection for a single unit of work.
func (d *Dispatcher) Batch() *Batch {
	return &Batch{d: d}
}

// Add stores ev through w. Events without a recipient are dropped.
func (b *Batch) Add(ctx context.Context, w Writer, ev Event) error {
	if strings.TrimSpace(ev.UserID) == "" {
		return nil
	}
	note := &store.Notification{
		ID:        uuid.NewString(),
		UserID:    ev.UserID,
		Type:      ev.Type,
		Title:     ev.Title,
		Message:   ev.Message,
		TaskID:    ev.TaskID,
		CreatedAt: b.d.now().UTC(),
	}
	if err := w.InsertNotification(ctx, note); err != nil {
		return err
	}
	b.notes = append(b.notes, note)
	return nil
}

// Notifications returns what the batch stored so far.
func (b *Batch) Notifications() []*store.Notification {
	return b.notes
}

// Flush pushes the batch outward. Call it only after the transaction commits.
func (b *Batch) Flush(ctx context.Context) {
	for _, note := range b.notes {
		if err := b.d.pusher.Push(ctx, note); err != nil {
			b.d.logger.WarnContext(ctx, "notification push failed",
				logging.String(logging.FieldEventType, string(note.Type)),
				logging.String("user_id", note.UserID),
				logging.Error(err),
			)
		}
	}
	b.notes = nil
}

// List returns a user's notifications newest first.
func (d *Dispatcher) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*store.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errs.Validation("notify", "list", "user id is required")
	}
	if limit <= 0 {
		limit = 50
	}
	return d.store.ListNotifications(ctx, userID, unreadOnly, limit)
}

// MarkRead flags one notification read.
func (d *Dispatcher) MarkRead(ctx context.Context, id, userID string) error {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(userID) == "" {
		return errs.Validation("notify", "mark read", "notification id and user id are required")
	}
	found, err := d.store.MarkNotificationRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !found {
		return errs.NotFound("notify", "mark read", "notification", id)
	}
	return nil
}

// MarkAllRead flags every unread notification of a user and returns how many changed.
func (d *Dispatcher) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, errs.Validation("notify", "mark all read", "user id is required")
	}
	return d.store.MarkAllNotificationsRead(ctx, userID)
}

// UnreadCount counts a user's unread notifications.
func (d *Dispatcher) UnreadCount(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, errs.Validation("notify", "unread count", "user id is required")
	}
	return d.store.UnreadNotificationCount(ctx, userID)
}
