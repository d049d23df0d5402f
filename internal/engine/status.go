package engine

import (
	"time"

	"routekeeper/internal/geo"
	"routekeeper/internal/stopwatch"
	"routekeeper/internal/timeline"
)

// Status is a point-in-time view of the engine for display.
type Status struct {
	State        State                 `json:"state"`
	DistanceKm   float64               `json:"distanceKm"`
	ElapsedMs    int64                 `json:"elapsedMs"`
	ElapsedText  string                `json:"elapsed"`
	Events       int                   `json:"events"`
	Kinds        map[timeline.Kind]int `json:"kinds,omitempty"`
	LastPoint    *geo.Point            `json:"lastPoint,omitempty"`
	StartedAt    time.Time             `json:"startedAt,omitzero"`
	LastFixAt    time.Time             `json:"lastFixAt,omitzero"`
	LastBackupAt time.Time             `json:"lastBackupAt,omitzero"`
	Verdicts     map[string]int        `json:"verdicts,omitempty"`
	LastError    string                `json:"lastError,omitempty"`
}

// Status snapshots the engine. While tracking the elapsed reading is
// refreshed first.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Tracking {
		e.tl.ElapsedMs = e.watch.Tick().Milliseconds()
	}
	st := Status{
		State:        e.state,
		DistanceKm:   e.tl.TotalDistanceKm,
		ElapsedMs:    e.tl.ElapsedMs,
		ElapsedText:  stopwatch.Format(time.Duration(e.tl.ElapsedMs) * time.Millisecond),
		Events:       e.tl.Len(),
		LastPoint:    e.acc.Last(),
		StartedAt:    e.watch.StartedAt(),
		LastFixAt:    e.lastFixAt,
		LastBackupAt: e.lastBackupAt,
	}
	if st.Events > 0 {
		st.Kinds = timeline.Count(e.tl.Events)
	}
	if len(e.counters) > 0 {
		st.Verdicts = make(map[string]int, len(e.counters))
		for v, n := range e.counters {
			st.Verdicts[v.String()] = n
		}
	}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	return st
}
