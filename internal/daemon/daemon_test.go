package daemon_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"routekeeper/internal/config"
	"routekeeper/internal/daemon"
	"routekeeper/internal/engine"
	"routekeeper/internal/geo"
	"routekeeper/internal/kvstore"
	"routekeeper/internal/logging"
	"routekeeper/internal/notifications"
	"routekeeper/internal/position"
	"routekeeper/internal/testsupport"
)

func manualTicks(o *engine.Options) {
	o.TimerInterval = 0
	o.BackupInterval = 0
}

func newDaemon(t *testing.T, cfg *config.Config, store *kvstore.Store, opts ...daemon.Option) *daemon.Daemon {
	t.Helper()
	opts = append([]daemon.Option{daemon.WithEngineOptions(manualTicks)}, opts...)
	d, err := daemon.New(cfg, store, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.APIAddress == "" || status.RunID == "" || status.LockPath != cfg.LockPath() {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Engine.State != engine.Idle {
		t.Fatalf("expected idle engine, got %s", status.Engine.State)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other := newDaemon(t, cfg, store)
	if err := other.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected lock contention, got %v", err)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	select {
	case <-d.Done():
	default:
		t.Fatal("expected Done to be closed after Stop")
	}
}

func TestStartFailsPreflight(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPositionFile("file", "absent.jsonl"))
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected preflight failure for missing position file")
	}
}

// interruptedRoute records three fixes and stops the daemon without ending
// the route, leaving it in the backup slot.
func interruptedRoute(t *testing.T, cfg *config.Config, store *kvstore.Store) {
	t.Helper()
	push := position.NewPush()
	d := newDaemon(t, cfg, store, daemon.WithSource(push))
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := d.Begin(ctx, true); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for i := range 3 {
		if err := push.Publish(geo.Fix{Lat: 0, Lng: float64(i) * 0.001, AccuracyMeters: 3}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	d.Stop()
}

func TestBeginAppliesRecoveryPolicy(t *testing.T) {
	tests := []struct {
		name       string
		policy     string
		prompt     engine.RecoveryDecider
		want       engine.Recovery
		wantState  engine.State
		wantEvents int
	}{
		{name: "restore", policy: "restore", want: engine.Restored, wantState: engine.Tracking, wantEvents: 3},
		{name: "discard", policy: "discard", want: engine.Declined, wantState: engine.Tracking, wantEvents: 0},
		{
			name:   "prompt declined",
			policy: "prompt",
			prompt: func(s engine.Summary) bool {
				return s.Locations != 3
			},
			want:       engine.Declined,
			wantState:  engine.Tracking,
			wantEvents: 0,
		},
		{name: "prompt without terminal", policy: "prompt", want: engine.Restored, wantState: engine.Tracking, wantEvents: 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithRecovery(tc.policy))
			store := testsupport.MustOpenStore(t, cfg)
			interruptedRoute(t, cfg, store)

			var opts []daemon.Option
			opts = append(opts, daemon.WithSource(position.NewPush()))
			if tc.prompt != nil {
				opts = append(opts, daemon.WithPrompt(tc.prompt))
			}
			d := newDaemon(t, cfg, store, opts...)
			ctx := context.Background()
			if err := d.Start(ctx); err != nil {
				t.Fatalf("Start: %v", err)
			}
			got, err := d.Begin(ctx, true)
			if err != nil {
				t.Fatalf("Begin: %v", err)
			}
			if got != tc.want {
				t.Fatalf("recovery = %s, want %s", got, tc.want)
			}
			st := d.Status(ctx).Engine
			if st.State != tc.wantState || st.Events != tc.wantEvents {
				t.Fatalf("unexpected engine status: %+v", st)
			}
		})
	}
}

func TestStopTrackingSavesSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	push := position.NewPush()
	d := newDaemon(t, cfg, store, daemon.WithSource(push))
	ctx := context.Background()

	if err := d.StartTracking(ctx); err != nil {
		t.Fatalf("StartTracking: %v", err)
	}
	for i := range 2 {
		if err := push.Publish(geo.Fix{Lat: 0, Lng: float64(i) * 0.001}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if _, err := d.Attach("note", "gate"); err != nil {
		t.Fatalf("Attach note: %v", err)
	}
	result, err := d.StopTracking(ctx, "Loop", true)
	if err != nil {
		t.Fatalf("StopTracking: %v", err)
	}
	if !result.Saved || result.Summary.Events != 3 {
		t.Fatalf("unexpected stop result: %+v", result)
	}
	if got := d.Status(ctx).Sessions; got != 1 {
		t.Fatalf("expected one saved session, got %d", got)
	}
}

type recordingNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingNotifier) snapshot() ([]notifications.Event, []notifications.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Event(nil), r.events...), append([]notifications.Payload(nil), r.payloads...)
}

func TestMilestonesAreNotified(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRecovery("restore"))
	store := testsupport.MustOpenStore(t, cfg)
	interruptedRoute(t, cfg, store)

	rec := &recordingNotifier{}
	d := newDaemon(t, cfg, store, daemon.WithSource(position.NewPush()), daemon.WithNotifier(rec))
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := d.Begin(ctx, true); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := d.StopTracking(ctx, "Recovered walk", true); err != nil {
		t.Fatalf("StopTracking: %v", err)
	}
	if _, err := d.StopTracking(ctx, "again", true); !errors.Is(err, engine.ErrInvalidTransition) {
		t.Fatalf("expected transition error for second stop, got %v", err)
	}

	events, payloads := rec.snapshot()
	want := []notifications.Event{notifications.EventRouteRestored, notifications.EventRouteSaved}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
	if payloads[0]["events"] != "3" || payloads[0]["distanceKm"] != "0.22" {
		t.Fatalf("unexpected restore payload: %v", payloads[0])
	}
	if payloads[1]["name"] != "Recovered walk" || payloads[1]["distanceKm"] != "0.22" {
		t.Fatalf("unexpected saved payload: %v", payloads[1])
	}
}

func TestTestNotificationDisabledWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store, daemon.WithSource(position.NewPush()))
	sent, err := d.TestNotification(context.Background())
	if err != nil || sent {
		t.Fatalf("expected disabled notifications, got sent=%v err=%v", sent, err)
	}

	rec := &recordingNotifier{}
	d = newDaemon(t, cfg, store, daemon.WithSource(position.NewPush()), daemon.WithNotifier(rec))
	if sent, err := d.TestNotification(context.Background()); err != nil || !sent {
		t.Fatalf("expected test notification to be sent, got sent=%v err=%v", sent, err)
	}
}
