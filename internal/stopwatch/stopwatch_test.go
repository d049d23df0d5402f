package stopwatch_test

import (
	"testing"
	"time"

	"routekeeper/internal/stopwatch"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStopwatchExcludesPausedTime(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	sw := stopwatch.New(clock.Now)

	sw.Start()
	clock.Advance(10 * time.Second)
	if got := sw.Tick(); got != 10*time.Second {
		t.Fatalf("unexpected elapsed after 10s: %v", got)
	}

	clock.Advance(5 * time.Second)
	if got := sw.Stop(); got != 15*time.Second {
		t.Fatalf("pause should take a final reading, got %v", got)
	}

	clock.Advance(time.Hour)
	if got := sw.Tick(); got != 15*time.Second {
		t.Fatalf("paused stopwatch advanced: %v", got)
	}

	sw.Start()
	if want := clock.Now().Add(-15 * time.Second); !sw.StartedAt().Equal(want) {
		t.Fatalf("expected rebased start %v, got %v", want, sw.StartedAt())
	}
	clock.Advance(3 * time.Second)
	if got := sw.Tick(); got != 18*time.Second {
		t.Fatalf("expected continuous reading across pause, got %v", got)
	}
}

func TestStopwatchRestoreThenStart(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	sw := stopwatch.New(clock.Now)
	sw.Restore(90 * time.Second)
	if sw.Running() {
		t.Fatal("restore should leave the stopwatch stopped")
	}
	sw.Start()
	clock.Advance(10 * time.Second)
	if got := sw.Tick(); got != 100*time.Second {
		t.Fatalf("unexpected elapsed after restore: %v", got)
	}
	sw.Reset()
	if sw.Elapsed() != 0 || sw.Running() {
		t.Fatalf("unexpected state after reset: %v running=%v", sw.Elapsed(), sw.Running())
	}
}

func TestFormatAndParse(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{59*time.Second + 900*time.Millisecond, "00:00:59"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
		{27 * time.Hour, "27:00:00"},
		{-time.Second, "00:00:00"},
	}
	for _, tc := range tests {
		if got := stopwatch.Format(tc.d); got != tc.want {
			t.Fatalf("Format(%v) = %q want %q", tc.d, got, tc.want)
		}
	}

	d, err := stopwatch.Parse("01:02:03")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if d != time.Hour+2*time.Minute+3*time.Second {
		t.Fatalf("unexpected parsed duration: %v", d)
	}
	for _, bad := range []string{"", "1:2", "aa:00:00", "00:61:00", "00:00:-1"} {
		if _, err := stopwatch.Parse(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
