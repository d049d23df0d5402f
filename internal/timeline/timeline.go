package timeline

import (
	"errors"
	"fmt"
)

// ErrOutOfOrder is returned when an append would move time backwards.
var ErrOutOfOrder = errors.New("event timestamp precedes the last event")

// Timeline is the live record of one route.
type Timeline struct {
	Events          []Event `json:"events"`
	TotalDistanceKm float64 `json:"totalDistanceKm"`
	ElapsedMs       int64   `json:"elapsedMs"`
}

// Append adds ev to the end of the log. Events must arrive in
// non-decreasing timestamp order.
func (t *Timeline) Append(ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if last := t.LastTimestamp(); len(t.Events) > 0 && ev.Timestamp < last {
		return fmt.Errorf("%w: %d < %d", ErrOutOfOrder, ev.Timestamp, last)
	}
	t.Events = append(t.Events, ev)
	return nil
}

// LastTimestamp returns the timestamp of the newest event, or 0.
func (t Timeline) LastTimestamp() int64 {
	if len(t.Events) == 0 {
		return 0
	}
	return t.Events[len(t.Events)-1].Timestamp
}

// Len returns the number of events.
func (t Timeline) Len() int {
	return len(t.Events)
}

// Locations returns the location events in order.
func (t Timeline) Locations() []Event {
	return Filter(t.Events, KindLocation)
}

// LastLocation returns the newest location event, if any.
func (t Timeline) LastLocation() (Event, bool) {
	for i := len(t.Events) - 1; i >= 0; i-- {
		if t.Events[i].Kind == KindLocation {
			return t.Events[i], true
		}
	}
	return Event{}, false
}

// Clone returns a deep copy safe to hand to exporters and backups.
func (t Timeline) Clone() Timeline {
	out := Timeline{TotalDistanceKm: t.TotalDistanceKm, ElapsedMs: t.ElapsedMs}
	if t.Events != nil {
		out.Events = make([]Event, len(t.Events))
		copy(out.Events, t.Events)
	}
	return out
}

// Reset empties the timeline.
func (t *Timeline) Reset() {
	*t = Timeline{}
}

// Filter returns the events of the given kinds, preserving order.
func Filter(events []Event, kinds ...Kind) []Event {
	var out []Event
	for _, ev := range events {
		for _, k := range kinds {
			if ev.Kind == k {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}

// Count tallies events per kind.
func Count(events []Event) map[Kind]int {
	counts := make(map[Kind]int, 5)
	for _, ev := range events {
		counts[ev.Kind]++
	}
	return counts
}
