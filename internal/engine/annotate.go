package engine

import (
	"fmt"
	"strings"

	"routekeeper/internal/geo"
	"routekeeper/internal/logging"
	"routekeeper/internal/timeline"
)

// Annotation is what a media adapter delivers: a note text or an attachment
// payload, pinned to a time and place.
type Annotation struct {
	Kind      timeline.Kind
	Timestamp int64
	Coords    geo.Point
	Payload   string
}

// AddAnnotation appends a note, photo, audio, or video event. Annotations
// are only accepted while Tracking.
func (e *Engine) AddAnnotation(a Annotation) (timeline.Event, error) {
	if a.Kind == timeline.KindLocation {
		return timeline.Event{}, fmt.Errorf("%w: locations come from the position source", timeline.ErrInvalidEvent)
	}
	if strings.TrimSpace(a.Payload) == "" {
		return timeline.Event{}, fmt.Errorf("%w: empty %s payload", timeline.ErrInvalidEvent, a.Kind)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return timeline.Event{}, ErrClosed
	}
	if e.state != Tracking {
		return timeline.Event{}, transitionErr("add "+string(a.Kind), e.state)
	}
	return e.appendAnnotationLocked(a)
}

// Annotate stamps payload with the current time and the last accepted
// position and appends it.
func (e *Engine) Annotate(kind timeline.Kind, payload string) (timeline.Event, error) {
	e.mu.Lock()
	last := e.acc.Last()
	if last == nil {
		if ev, ok := e.tl.LastLocation(); ok {
			last = &ev.Coords
		}
	}
	now := e.now().UnixMilli()
	state := e.state
	e.mu.Unlock()

	if last == nil {
		if state != Tracking {
			return timeline.Event{}, transitionErr("add "+string(kind), state)
		}
		return timeline.Event{}, ErrNoPosition
	}
	return e.AddAnnotation(Annotation{Kind: kind, Timestamp: now, Coords: *last, Payload: payload})
}

// AddNote is shorthand for a text annotation at the current position.
func (e *Engine) AddNote(text string) (timeline.Event, error) {
	return e.Annotate(timeline.KindNote, text)
}

func (e *Engine) appendAnnotationLocked(a Annotation) (timeline.Event, error) {
	ts := e.clampTimestampLocked(a.Timestamp)
	var ev timeline.Event
	if a.Kind == timeline.KindNote {
		ev = timeline.Note(ts, a.Coords, a.Payload)
	} else {
		var err error
		ev, err = timeline.Attachment(a.Kind, ts, a.Coords, a.Payload)
		if err != nil {
			return timeline.Event{}, err
		}
	}
	if err := e.tl.Append(ev); err != nil {
		return timeline.Event{}, err
	}
	e.logger.Info("annotation added",
		logging.String(logging.FieldEventType, "annotation_added"),
		logging.String("kind", string(a.Kind)),
		logging.Int("payload_bytes", len(a.Payload)),
	)
	return ev, nil
}
