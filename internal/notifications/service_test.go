package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"routekeeper/internal/config"
	"routekeeper/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if notifications.Enabled(svc) {
		t.Fatal("expected notifications to be disabled without a topic")
	}
	if err := svc.Publish(context.Background(), notifications.EventRouteSaved, notifications.Payload{"name": "walk"}); err != nil {
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
	}{
		{
			name:          "route saved",
			event:         notifications.EventRouteSaved,
			payload:       notifications.Payload{"name": "Morning loop", "distanceKm": "4.21", "elapsed": "00:41:07"},
			expectTitle:   "Route saved",
			expectMessage: "Morning loop: 4.21 km in 00:41:07",
			expectTags:    "routekeeper,route,saved",
		},
		{
			name:           "save failed with rescue file",
			event:          notifications.EventSaveFailed,
			payload:        notifications.Payload{"error": "disk full", "rescuePath": "/data/rescue.json"},
			expectTitle:    "Route not saved",
			expectMessage:  "Could not save route: disk full\nRoute written to /data/rescue.json",
			expectTags:     "routekeeper,route,error",
			expectPriority: "high",
		},
		{
			name:          "route restored",
			event:         notifications.EventRouteRestored,
			payload:       notifications.Payload{"distanceKm": "1.50", "events": "42"},
			expectTitle:   "Route restored",
			expectMessage: "Resumed interrupted route: 1.50 km, 42 events",
			expectTags:    "routekeeper,recovery",
		},
		{
			name:           "source failed",
			event:          notifications.EventSourceFailed,
			payload:        notifications.Payload{"source": "gpx", "error": "unexpected EOF"},
			expectTitle:    "Position source failed",
			expectMessage:  "gpx: unexpected EOF",
			expectTags:     "routekeeper,position,error",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeoutSeconds = 5

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
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic reserved", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTestNotification, nil)
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 403: topic reserved") {
		t.Fatalf("expected ntfy status error, got %v", err)
	}
}

func TestUnknownEventsAreIgnored(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for unknown event")
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	if err := notifications.NewService(&cfg).Publish(context.Background(), "lap_completed", nil); err != nil {
		t.Fatalf("expected unknown event to be ignored, got %v", err)
	}
}
