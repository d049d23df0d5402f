package ipc

import (
	"routekeeper/internal/daemon"
	"routekeeper/internal/engine"
	"routekeeper/internal/timeline"
)

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse carries daemon and engine status.
type StatusResponse struct {
	Status daemon.Status `json:"status"`
}

// StartRequest begins a new route.
type StartRequest struct{}

// PauseRequest pauses the route.
type PauseRequest struct{}

// ResumeRequest resumes the route.
type ResumeRequest struct{}

// ResetRequest abandons the route.
type ResetRequest struct{}

// StateResponse reports the engine state after a transition.
type StateResponse struct {
	Engine engine.Status `json:"engine"`
}

// StopRequest ends the route, saving it under Name when Save is set.
type StopRequest struct {
	Name string `json:"name"`
	Save bool   `json:"save"`
}

// StopResponse carries the outcome of Stop. SaveError is set when the route
// ended but could not be saved.
type StopResponse struct {
	Result    engine.StopResult `json:"result"`
	SaveError string            `json:"saveError,omitempty"`
}

// NoteRequest adds a text note.
type NoteRequest struct {
	Text string `json:"text"`
}

// AttachRequest adds a media attachment. Data is a data URL.
type AttachRequest struct {
	Kind string `json:"kind"`
	Data string `json:"data"`
}

// EventResponse carries the appended event.
type EventResponse struct {
	Event timeline.Event `json:"event"`
}

// TimelineRequest fetches the live route.
type TimelineRequest struct{}

// TimelineResponse carries the live route.
type TimelineResponse struct {
	State    engine.State      `json:"state"`
	Timeline timeline.Timeline `json:"timeline"`
}

// TestNotificationRequest sends a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports whether a notification was sent.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
