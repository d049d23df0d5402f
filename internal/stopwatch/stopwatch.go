// Package stopwatch tracks the elapsed time of a route with pause/resume
// semantics and renders it as HH:MM:SS.
package stopwatch

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Stopwatch is a wall-clock timer whose reading only advances on Tick.
// It is not safe for concurrent use; the engine serializes access.
type Stopwatch struct {
	now       func() time.Time
	startedAt time.Time
	elapsed   time.Duration
	running   bool
}

// New returns a stopped stopwatch. A nil clock uses time.Now.
func New(now func() time.Time) *Stopwatch {
	if now == nil {
		now = time.Now
	}
	return &Stopwatch{now: now}
}

// Start runs the clock, rebasing startedAt to now - elapsed so a resumed
// stopwatch continues where it stopped.
func (s *Stopwatch) Start() {
	if s.running {
		return
	}
	s.startedAt = s.now().Add(-s.elapsed)
	s.running = true
}

// Tick recomputes elapsed while running and returns the current reading.
func (s *Stopwatch) Tick() time.Duration {
	if s.running {
		s.elapsed = s.now().Sub(s.startedAt)
		if s.elapsed < 0 {
			s.elapsed = 0
		}
	}
	return s.elapsed
}

// Stop takes a final reading and freezes the clock.
func (s *Stopwatch) Stop() time.Duration {
	elapsed := s.Tick()
	s.running = false
	return elapsed
}

// Restore freezes the stopwatch at elapsed, e.g. from a backup snapshot.
func (s *Stopwatch) Restore(elapsed time.Duration) {
	if elapsed < 0 {
		elapsed = 0
	}
	s.running = false
	s.elapsed = elapsed
	s.startedAt = time.Time{}
}

// Reset stops the clock and zeroes it.
func (s *Stopwatch) Reset() {
	s.Restore(0)
}

// Elapsed returns the last computed reading.
func (s *Stopwatch) Elapsed() time.Duration {
	return s.elapsed
}

// StartedAt returns the (rebased) start instant; zero when never started.
func (s *Stopwatch) StartedAt() time.Time {
	return s.startedAt
}

// Running reports whether the clock advances on Tick.
func (s *Stopwatch) Running() bool {
	return s.running
}

// Format renders d as zero-padded HH:MM:SS. Hours are not wrapped at 24.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// Parse reverses Format.
func Parse(value string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("parse elapsed %q: want HH:MM:SS", value)
	}
	var fields [3]int64
	for i, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("parse elapsed %q: invalid field %q", value, part)
		}
		if i > 0 && n > 59 {
			return 0, fmt.Errorf("parse elapsed %q: field %q out of range", value, part)
		}
		fields[i] = n
	}
	return time.Duration(fields[0])*time.Hour +
		time.Duration(fields[1])*time.Minute +
		time.Duration(fields[2])*time.Second, nil
}
