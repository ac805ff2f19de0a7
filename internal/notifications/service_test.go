package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"shotsync/internal/config"
	"shotsync/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventReconcileSummary, notifications.Payload{"synced": 1}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
		expectActions  string
	}{
		{
			name:  "upload retry exhausted",
			event: notifications.EventUploadRetryExhausted,
			payload: notifications.Payload{
				"projectName": "Pilot",
				"attempts":    3,
				"failed":      2,
				"error":       "transfer failed",
			},
			expectTitle:    "shotsync - Upload Failed",
			expectMessage:  "Upload failed after 3 attempts in Pilot\n2 uploads are waiting for a retry\nLast error: transfer failed",
			expectTags:     "shotsync,upload,failed",
			expectPriority: "high",
			expectActions:  notifications.RetryFailedAction,
		},
		{
			name:          "reconcile clean",
			event:         notifications.EventReconcileSummary,
			payload:       notifications.Payload{"synced": 4},
			expectTitle:   "shotsync - Projects Synced",
			expectMessage: "Synced 4 projects to the cloud",
			expectTags:    "shotsync,reconcile,completed",
		},
		{
			name:          "reconcile with skips",
			event:         notifications.EventReconcileSummary,
			payload:       notifications.Payload{"synced": 2, "skipped": 1, "failed": 0},
			expectTitle:   "shotsync - Projects Need Attention",
			expectMessage: "Synced 2, skipped 1, failed 0\nSkipped projects kept their cloud copy; see logs for details",
			expectTags:    "shotsync,reconcile,completed",
		},
		{
			name:           "hydration failed",
			event:          notifications.EventHydrationFailed,
			payload:        notifications.Payload{"projectName": "Pilot", "error": "validation failed"},
			expectTitle:    "shotsync - Load Failed",
			expectMessage:  "Could not load project: Pilot\nvalidation failed",
			expectTags:     "shotsync,hydrate,error",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				actions  string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				captured.actions = r.Header.Get("Actions")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
			if captured.actions != tc.expectActions {
				t.Fatalf("expected actions %q, got %q", tc.expectActions, captured.actions)
			}
		})
	}
}

func TestNtfyServiceHonorsCategoryToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Uploads = false
	cfg.Notifications.Reconcile = false
	cfg.Notifications.Hydration = false

	svc := notifications.NewService(&cfg)
	disabled := []notifications.Event{
		notifications.EventUploadRetryExhausted,
		notifications.EventReconcileSummary,
		notifications.EventHydrationFailed,
		notifications.Event("unknown"),
	}
	for _, event := range disabled {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for disabled event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic gone", http.StatusNotFound)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTestNotification, nil); err == nil {
		t.Fatalf("expected error for 404 response")
	}
}

func TestRecorderCapturesEvents(t *testing.T) {
	rec := &notifications.Recorder{}
	_ = rec.Publish(context.Background(), notifications.EventReconcileSummary, notifications.Payload{"synced": 1})
	_ = rec.Publish(context.Background(), notifications.EventReconcileSummary, nil)
	if rec.Count(notifications.EventReconcileSummary) != 2 {
		t.Fatalf("expected 2 recorded events, got %d", rec.Count(notifications.EventReconcileSummary))
	}
	if got := rec.Events()[0].Payload["synced"]; got != 1 {
		t.Fatalf("unexpected payload: %v", got)
	}
}
