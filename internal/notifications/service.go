package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"routekeeper/internal/config"
)

const userAgent = "routekeeper/1"

// Event identifies a route milestone.
type Event string

const (
	EventRouteSaved       Event = "route_saved"
	EventSaveFailed       Event = "save_failed"
	EventRouteRestored    Event = "route_restored"
	EventBackupDiscarded  Event = "backup_discarded"
	EventSourceFailed     Event = "source_failed"
	EventTestNotification Event = "test"
)

// Payload carries the values a message is rendered from.
type Payload map[string]string

// Service publishes milestones.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op one when
// notifications.ntfy_topic is empty.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{endpoint: topic, client: &http.Client{Timeout: timeout}}
}

// Enabled reports whether svc delivers anything.
func Enabled(svc Service) bool {
	if svc == nil {
		return false
	}
	_, noop := svc.(noopService)
	return !noop
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

func render(event Event, p Payload) (message, bool) {
	switch event {
	case EventRouteSaved:
		return message{
			title: "Route saved",
			body:  fmt.Sprintf("%s: %s km in %s", p["name"], p["distanceKm"], p["elapsed"]),
			tags:  []string{"routekeeper", "route", "saved"},
		}, true
	case EventSaveFailed:
		body := "Could not save route: " + p["error"]
		if rescue := p["rescuePath"]; rescue != "" {
			body += "\nRoute written to " + rescue
		}
		return message{
			title:    "Route not saved",
			body:     body,
			tags:     []string{"routekeeper", "route", "error"},
			priority: "high",
		}, true
	case EventRouteRestored:
		return message{
			title: "Route restored",
			body:  fmt.Sprintf("Resumed interrupted route: %s km, %s events", p["distanceKm"], p["events"]),
			tags:  []string{"routekeeper", "recovery"},
		}, true
	case EventBackupDiscarded:
		return message{
			title:    "Backup discarded",
			body:     "The interrupted route could not be read and was discarded",
			tags:     []string{"routekeeper", "recovery", "warning"},
			priority: "high",
		}, true
	case EventSourceFailed:
		return message{
			title:    "Position source failed",
			body:     fmt.Sprintf("%s: %s", p["source"], p["error"]),
			tags:     []string{"routekeeper", "position", "error"},
			priority: "high",
		}, true
	case EventTestNotification:
		return message{
			title:    "routekeeper test",
			body:     "Notification test",
			tags:     []string{"routekeeper", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
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
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
