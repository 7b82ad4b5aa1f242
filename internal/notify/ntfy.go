package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"caseflow/internal/config"
	"caseflow/internal/store"
)

const userAgent = "Caseflow-Go/0.1.0"

// Pusher mirrors stored notifications to an outbound channel.
type Pusher interface {
	Push(ctx context.Context, n *store.Notification) error
}

// NewPusher builds an ntfy pusher when a topic is configured and a no-op otherwise.
func NewPusher(cfg *config.Config) Pusher {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopPusher{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyPusher{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled:  cfg.NotificationEnabled,
	}
}

type ntfyPusher struct {
	endpoint string
	client   *http.Client
	enabled  func(string) bool
}

func (n *ntfyPusher) Push(ctx context.Context, note *store.Notification) error {
	if n == nil || n.client == nil || note == nil {
		return nil
	}
	if n.enabled != nil && !n.enabled(string(note.Type)) {
		return nil
	}

	message := note.Message
	if note.UserID != "" {
		message = fmt.Sprintf("@%s %s", note.UserID, message)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", "Caseflow - "+Label(note.Type))
	req.Header.Set("Tags", strings.Join(tagsFor(note.Type), ","))
	if priority := priorityFor(note.Type); priority != "" {
		req.Header.Set("Priority", priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func tagsFor(t store.NotificationType) []string {
	tags := []string{"caseflow"}
	switch t {
	case store.NotifySLAWarning:
		tags = append(tags, "sla", "warning")
	case store.NotifySLABreach:
		tags = append(tags, "sla", "alert")
	case store.NotifyTaskAssigned:
		tags = append(tags, "assignment")
	case store.NotifyStageCompleted:
		tags = append(tags, "stage", "completed")
	default:
		tags = append(tags, "approval")
	}
	return tags
}

func priorityFor(t store.NotificationType) string {
	switch t {
	case store.NotifySLABreach:
		return "high"
	case store.NotifyStageCompleted:
		return "low"
	default:
		return ""
	}
}

type noopPusher struct{}

func (noopPusher) Push(context.Context, *store.Notification) error { return nil }
