package api

import (
	"routekeeper/internal/engine"
	"routekeeper/internal/sessions"
	"routekeeper/internal/timeline"
)

// FixRequest is one raw position fix. A JSON array of them is accepted too.
type FixRequest struct {
	Lat      float64 `json:"lat" validate:"latitude"`
	Lng      float64 `json:"lng" validate:"longitude"`
	Accuracy float64 `json:"accuracy" validate:"gte=0"`
}

// NoteRequest adds a text note at the current position.
type NoteRequest struct {
	Text string `json:"text" validate:"required"`
}

// AttachmentRequest adds a media attachment at the current position. Data is
// a data URL or bare base64.
type AttachmentRequest struct {
	Type string `json:"type" validate:"required,oneof=photo audio video"`
	Data string `json:"data" validate:"required"`
}

// StopRequest ends the route, saving it under Name when Save is set.
type StopRequest struct {
	Name string `json:"name"`
	Save bool   `json:"save"`
}

// FixResponse reports how many fixes were handed to the engine.
type FixResponse struct {
	Published int `json:"published"`
}

// SessionSummary is a saved session without its events.
type SessionSummary struct {
	Index           int    `json:"index"`
	ID              string `json:"id"`
	Name            string `json:"name"`
	SavedAt         string `json:"savedAt"`
	Elapsed         string `json:"elapsed"`
	TotalDistanceKm string `json:"totalDistanceKm"`
	Events          int    `json:"events"`
}

// SessionDetail is a saved session with its events.
type SessionDetail struct {
	SessionSummary
	Route []timeline.Event `json:"route"`
}

// TimelineResponse is the live route.
type TimelineResponse struct {
	State    engine.State      `json:"state"`
	Timeline timeline.Timeline `json:"timeline"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func summarizeSession(index int, s sessions.Session) SessionSummary {
	return SessionSummary{
		Index:           index,
		ID:              s.ID,
		Name:            s.Name,
		SavedAt:         s.SavedAt,
		Elapsed:         s.Elapsed,
		TotalDistanceKm: s.TotalDistanceKm,
		Events:          len(s.Events),
	}
}
