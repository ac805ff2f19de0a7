package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"shotsync/internal/config"
)

const userAgent = "shotsync/0.1.0"

// RetryFailedAction is the ntfy view action attached to retry-exhausted
// notifications. Clients that register the scheme trigger a bulk retry.
const RetryFailedAction = "view, Retry failed uploads, shotsync://queue/retry-failed, clear=true"

// Event identifies a notification category.
type Event string

const (
	EventUploadRetryExhausted Event = "upload_retry_exhausted"
	EventReconcileSummary     Event = "reconcile_summary"
	EventHydrationFailed      Event = "hydration_failed"
	EventTestNotification     Event = "test"
)

// Payload carries event-specific fields.
type Payload map[string]any

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When cfg is nil or no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		toggles:  cfg.Notifications,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
	actions  string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	toggles  config.Notifications
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || n.client == nil || !n.enabled(event) {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventUploadRetryExhausted:
		return n.toggles.Uploads
	case EventReconcileSummary:
		return n.toggles.Reconcile
	case EventHydrationFailed:
		return n.toggles.Hydration
	default:
		return true
	}
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventUploadRetryExhausted:
		count := intValue(payload, "failed")
		body := fmt.Sprintf("Upload failed after %d attempts", intValue(payload, "attempts"))
		if name := stringValue(payload, "projectName"); name != "" {
			body += " in " + name
		}
		if count > 1 {
			body += fmt.Sprintf("\n%d uploads are waiting for a retry", count)
		}
		if errText := stringValue(payload, "error"); errText != "" {
			body += "\nLast error: " + errText
		}
		return message{
			title:    "shotsync - Upload Failed",
			body:     body,
			tags:     []string{"shotsync", "upload", "failed"},
			priority: "high",
			actions:  RetryFailedAction,
		}, true
	case EventReconcileSummary:
		synced := intValue(payload, "synced")
		skipped := intValue(payload, "skipped")
		failed := intValue(payload, "failed")
		title := "shotsync - Projects Synced"
		body := fmt.Sprintf("Synced %d projects to the cloud", synced)
		if skipped > 0 || failed > 0 {
			title = "shotsync - Projects Need Attention"
			body = fmt.Sprintf("Synced %d, skipped %d, failed %d", synced, skipped, failed)
			if skipped > 0 {
				body += "\nSkipped projects kept their cloud copy; see logs for details"
			}
		}
		return message{
			title: title,
			body:  body,
			tags:  []string{"shotsync", "reconcile", "completed"},
		}, true
	case EventHydrationFailed:
		body := "Could not load project"
		if name := stringValue(payload, "projectName"); name != "" {
			body += ": " + name
		}
		if errText := stringValue(payload, "error"); errText != "" {
			body += "\n" + errText
		}
		return message{
			title:    "shotsync - Load Failed",
			body:     body,
			tags:     []string{"shotsync", "hydrate", "error"},
			priority: "high",
		}, true
	case EventTestNotification:
		return message{
			title:    "shotsync - Test",
			body:     "Notification system test",
			tags:     []string{"shotsync", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}
	if msg.actions != "" {
		req.Header.Set("Actions", msg.actions)
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

func stringValue(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return ""
	}
}

func intValue(payload Payload, key string) int {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// Recorder captures published events in memory. Tests and the CLI dry-run
// path use it in place of ntfy.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

// Recorded is one captured publish call.
type Recorded struct {
	Event   Event
	Payload Payload
}

func (r *Recorder) Publish(_ context.Context, event Event, payload Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Event: event, Payload: payload})
	return nil
}

// Events returns the captured calls in order.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Count returns how many times event was published.
func (r *Recorder) Count(event Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Event == event {
			n++
		}
	}
	return n
}
