package ipc_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"routekeeper/internal/daemon"
	"routekeeper/internal/engine"
	"routekeeper/internal/geo"
	"routekeeper/internal/ipc"
	"routekeeper/internal/logging"
	"routekeeper/internal/position"
	"routekeeper/internal/testsupport"
	"routekeeper/internal/timeline"
)

func startServer(t *testing.T) (*ipc.Client, *position.Push) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	store := testsupport.MustOpenStore(t, cfg)
	push := position.NewPush()
	d, err := daemon.New(cfg, store, logging.NewNop(),
		daemon.WithSource(push),
		daemon.WithEngineOptions(func(o *engine.Options) {
			o.TimerInterval = 0
			o.BackupInterval = 0
		}),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(cfg.Paths.DataDir, "rk.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, push
}

func TestIPCServerClient(t *testing.T) {
	client, push := startServer(t)

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.Status.Engine.State != engine.Idle {
		t.Fatalf("expected idle engine, got %s", status.Status.Engine.State)
	}

	notify, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification RPC failed: %v", err)
	}
	if notify.Sent {
		t.Fatalf("expected notifications disabled without a topic, got %+v", notify)
	}

	started, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if started.Engine.State != engine.Tracking {
		t.Fatalf("expected tracking after start, got %s", started.Engine.State)
	}

	for i := range 3 {
		if err := push.Publish(geo.Fix{Lat: 0, Lng: float64(i) * 0.001, AccuracyMeters: 4}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	note, err := client.Note("bridge")
	if err != nil {
		t.Fatalf("Note RPC failed: %v", err)
	}
	if note.Event.Kind != timeline.KindNote || note.Event.Text != "bridge" {
		t.Fatalf("unexpected note event: %+v", note.Event)
	}
	if _, err := client.Attach("audio", "data:audio/ogg;base64,T2dnUw=="); err != nil {
		t.Fatalf("Attach RPC failed: %v", err)
	}

	paused, err := client.Pause()
	if err != nil || paused.Engine.State != engine.Paused {
		t.Fatalf("Pause RPC: %v %+v", err, paused)
	}
	if _, err := client.Pause(); !errors.Is(err, engine.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition from second pause, got %v", err)
	}
	if _, err := client.Note("while paused"); !errors.Is(err, engine.ErrInvalidTransition) {
		t.Fatalf("expected notes to be refused while paused, got %v", err)
	}
	if _, err := client.Resume(); err != nil {
		t.Fatalf("Resume RPC failed: %v", err)
	}

	tl, err := client.Timeline()
	if err != nil {
		t.Fatalf("Timeline RPC failed: %v", err)
	}
	if tl.State != engine.Tracking || tl.Timeline.Len() != 5 {
		t.Fatalf("unexpected timeline: state=%s events=%d", tl.State, tl.Timeline.Len())
	}

	stopped, err := client.Stop("Harbour", true)
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if stopped.SaveError != "" || !stopped.Result.Saved || stopped.Result.Session == nil {
		t.Fatalf("expected saved session, got %+v", stopped)
	}
	if stopped.Result.Session.TotalDistanceKm != "0.22" {
		t.Fatalf("unexpected saved distance %q", stopped.Result.Session.TotalDistanceKm)
	}

	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.Status.Sessions != 1 || status.Status.Engine.State != engine.Idle {
		t.Fatalf("unexpected status after stop: %+v", status.Status)
	}
}

func TestIPCErrorsKeepTheirKind(t *testing.T) {
	client, _ := startServer(t)

	if _, err := client.Stop("x", true); !errors.Is(err, engine.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for stop while idle, got %v", err)
	}
	var remote *ipc.RemoteError
	_, err := client.Resume()
	if !errors.As(err, &remote) || remote.Code != "transition" || !strings.Contains(remote.Message, "resume") {
		t.Fatalf("unexpected remote error: %#v", err)
	}

	if _, err := client.Start(); err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if _, err := client.Note("no fix yet"); !errors.Is(err, engine.ErrNoPosition) {
		t.Fatalf("expected no position error, got %v", err)
	}
	if _, err := client.Attach("sketch", "abc"); !errors.Is(err, timeline.ErrInvalidEvent) {
		t.Fatalf("expected invalid event for unknown kind, got %v", err)
	}

	stopped, err := client.Stop("", true)
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if stopped.SaveError == "" || stopped.Result.Saved {
		t.Fatalf("expected blank name to surface a save error, got %+v", stopped)
	}
}
