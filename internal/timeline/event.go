// Package timeline models the ordered, append-only event log of one route:
// accepted locations plus notes, photos, audio and video annotations.
package timeline

import (
	"errors"
	"fmt"
	"time"

	"routekeeper/internal/geo"
)

// Kind discriminates the event union.
type Kind string

const (
	KindLocation Kind = "location"
	KindNote     Kind = "note"
	KindPhoto    Kind = "photo"
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
)

// Valid reports whether k is a known event kind.
func (k Kind) Valid() bool {
	switch k {
	case KindLocation, KindNote, KindPhoto, KindAudio, KindVideo:
		return true
	}
	return false
}

// ParseKind maps a user-supplied name onto a Kind.
func ParseKind(value string) (Kind, error) {
	k := Kind(value)
	if !k.Valid() {
		return "", fmt.Errorf("unknown event kind %q", value)
	}
	return k, nil
}

// Event is one entry of the timeline. Exactly the payload field matching
// Kind is populated; locations carry no payload. Binary attachments are kept
// as text (data URLs or base64).
type Event struct {
	Kind      Kind      `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Coords    geo.Point `json:"coords"`
	Text      string    `json:"text,omitempty"`
	ImageData string    `json:"imageData,omitempty"`
	AudioData string    `json:"audioData,omitempty"`
	VideoData string    `json:"videoData,omitempty"`
}

// ErrInvalidEvent marks events whose kind and payload do not agree.
var ErrInvalidEvent = errors.New("invalid event")

// Location builds a location event.
func Location(ts int64, p geo.Point) Event {
	return Event{Kind: KindLocation, Timestamp: ts, Coords: p}
}

// Note builds a text annotation.
func Note(ts int64, p geo.Point, text string) Event {
	return Event{Kind: KindNote, Timestamp: ts, Coords: p, Text: text}
}

// Attachment builds a photo, audio, or video event carrying data.
func Attachment(kind Kind, ts int64, p geo.Point, data string) (Event, error) {
	ev := Event{Kind: kind, Timestamp: ts, Coords: p}
	switch kind {
	case KindPhoto:
		ev.ImageData = data
	case KindAudio:
		ev.AudioData = data
	case KindVideo:
		ev.VideoData = data
	default:
		return Event{}, fmt.Errorf("%w: %q is not an attachment kind", ErrInvalidEvent, kind)
	}
	return ev, nil
}

// Payload returns the text or binary-as-text carried by the event.
func (e Event) Payload() string {
	switch e.Kind {
	case KindNote:
		return e.Text
	case KindPhoto:
		return e.ImageData
	case KindAudio:
		return e.AudioData
	case KindVideo:
		return e.VideoData
	default:
		return ""
	}
}

// Time converts the millisecond timestamp to a UTC time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

// Validate checks the union invariants.
func (e Event) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Kind)
	}
	if !e.Coords.Finite() {
		return fmt.Errorf("%w: non-finite coordinates", ErrInvalidEvent)
	}
	if e.Timestamp < 0 {
		return fmt.Errorf("%w: negative timestamp", ErrInvalidEvent)
	}
	set := 0
	for _, field := range []string{e.Text, e.ImageData, e.AudioData, e.VideoData} {
		if field != "" {
			set++
		}
	}
	switch {
	case e.Kind == KindLocation && set != 0:
		return fmt.Errorf("%w: location carries a payload", ErrInvalidEvent)
	case e.Kind != KindLocation && set > 1:
		return fmt.Errorf("%w: %s carries more than one payload", ErrInvalidEvent, e.Kind)
	case e.Kind != KindLocation && set == 1 && e.Payload() == "":
		return fmt.Errorf("%w: %s payload in wrong field", ErrInvalidEvent, e.Kind)
	}
	return nil
}
