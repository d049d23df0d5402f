package position_test

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"routekeeper/internal/config"
	"routekeeper/internal/geo"
	"routekeeper/internal/logging"
	"routekeeper/internal/position"
)

type collector struct {
	mu     sync.Mutex
	fixes  []geo.Fix
	errs   []error
	signal chan struct{}
}

func newCollector() *collector {
	return &collector{signal: make(chan struct{}, 64)}
}

func (c *collector) onFix(f geo.Fix) {
	c.mu.Lock()
	c.fixes = append(c.fixes, f)
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *collector) onError(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-c.signal:
		case <-deadline:
			t.Fatalf("timed out waiting for %d callbacks (got %d)", n, i)
		}
	}
}

func TestLinesParsesFixesAndReportsBadLines(t *testing.T) {
	input := strings.Join([]string{
		`{"lat":1,"lng":2,"accuracy":5}`,
		``,
		`# comment`,
		`{"lat":1,`,
		`{"lat":95,"lng":0,"accuracy":1}`,
		`{"lat":1.001,"lng":2,"accuracy":30,"altitude":12}`,
	}, "\n")
	src := position.NewLines("test", func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(input)), nil
	}, logging.NewNop())

	c := newCollector()
	sub, err := src.Subscribe(c.onFix, c.onError)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	c.wait(t, 4)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.fixes) != 2 || c.fixes[1].AccuracyMeters != 30 {
		t.Fatalf("unexpected fixes: %+v", c.fixes)
	}
	if len(c.errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", c.errs)
	}
	if !strings.Contains(c.errs[0].Error(), "line 4") {
		t.Fatalf("expected line number in error, got %v", c.errs[0])
	}
}

func TestLinesOpenFailureIsUnavailable(t *testing.T) {
	src := position.NewLines("missing", func() (io.ReadCloser, error) {
		return nil, os.ErrNotExist
	}, logging.NewNop())
	if _, err := src.Subscribe(func(geo.Fix) {}, nil); !errors.Is(err, position.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestLinesStopsAfterUnsubscribe(t *testing.T) {
	pr, pw := io.Pipe()
	src := position.NewLines("pipe", func() (io.ReadCloser, error) { return pr, nil }, logging.NewNop())
	c := newCollector()
	sub, err := src.Subscribe(c.onFix, c.onError)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := io.WriteString(pw, `{"lat":0,"lng":0,"accuracy":1}`+"\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	c.wait(t, 1)
	sub.Unsubscribe()
	sub.Unsubscribe()

	if _, err := io.WriteString(pw, `{"lat":0,"lng":0,"accuracy":1}`+"\n"); err == nil {
		t.Fatal("expected write to closed pipe to fail")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.fixes) != 1 || len(c.errs) != 0 {
		t.Fatalf("unexpected callbacks after unsubscribe: fixes=%d errs=%v", len(c.fixes), c.errs)
	}
}

func TestStreamSurvivesResubscribe(t *testing.T) {
	pr, pw := io.Pipe()
	src := position.NewStream("stdin", pr, logging.NewNop())

	first := newCollector()
	sub, err := src.Subscribe(first.onFix, first.onError)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	sub.Unsubscribe()

	second := newCollector()
	sub, err = src.Subscribe(second.onFix, second.onError)
	if err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	for i := range 5 {
		line := fmt.Sprintf(`{"lat":0,"lng":%d,"accuracy":3}`, i)
		if _, err := io.WriteString(pw, line+"\n"); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	second.wait(t, 5)

	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()
	if len(second.fixes) != 5 || second.fixes[4].Lng != 4 {
		t.Fatalf("expected all 5 fixes on the second subscription, got %+v", second.fixes)
	}
	if len(first.fixes) != 0 {
		t.Fatalf("expected no fixes after unsubscribe, got %d", len(first.fixes))
	}
}

func TestStreamDropsLinesWithoutSubscriberAndEnds(t *testing.T) {
	pr, pw := io.Pipe()
	src := position.NewStream("stdin", pr, logging.NewNop())

	c := newCollector()
	sub, err := src.Subscribe(c.onFix, c.onError)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := io.WriteString(pw, `{"lat":1,"lng":1,"accuracy":1}`+"\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	c.wait(t, 1)
	sub.Unsubscribe()

	// The reader keeps draining while idle, so the writer never blocks.
	if _, err := io.WriteString(pw, `{"lat":2,"lng":2,"accuracy":1}`+"\n"); err != nil {
		t.Fatalf("write while idle: %v", err)
	}
	_ = pw.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := src.Subscribe(func(geo.Fix) {}, nil)
		if errors.Is(err, position.ErrUnavailable) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected ErrUnavailable after EOF, got %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.fixes) != 1 {
		t.Fatalf("expected the idle line to be dropped, got %+v", c.fixes)
	}
}

func TestReplayEmitsTrackPoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.gpx")
	doc := `<?xml version="1.0"?><gpx version="1.1" creator="t"><trk><trkseg>` +
		`<trkpt lat="0" lon="0"/><trkpt lat="0" lon="0.001"/><trkpt lat="0" lon="0.002"/>` +
		`</trkseg></trk></gpx>`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write gpx: %v", err)
	}

	c := newCollector()
	src := position.NewReplay(path, time.Millisecond, 7, logging.NewNop())
	sub, err := src.Subscribe(c.onFix, c.onError)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	c.wait(t, 3)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fixes[2].Lng != 0.002 || c.fixes[0].AccuracyMeters != 7 {
		t.Fatalf("unexpected fixes: %+v", c.fixes)
	}
}

func TestReplayWithoutPointsIsUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.gpx")
	if err := os.WriteFile(path, []byte(`<gpx version="1.1"></gpx>`), 0o644); err != nil {
		t.Fatalf("write gpx: %v", err)
	}
	src := position.NewReplay(path, 0, 5, logging.NewNop())
	if _, err := src.Subscribe(func(geo.Fix) {}, nil); !errors.Is(err, position.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	missing := position.NewReplay(filepath.Join(t.TempDir(), "nope.gpx"), 0, 5, logging.NewNop())
	if _, err := missing.Subscribe(func(geo.Fix) {}, nil); !errors.Is(err, position.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for missing file, got %v", err)
	}
}

func TestPushDeliversToCurrentSubscriber(t *testing.T) {
	push := position.NewPush()
	if err := push.Publish(geo.Fix{Lat: 1, Lng: 1}); !errors.Is(err, position.ErrNoSubscriber) {
		t.Fatalf("expected ErrNoSubscriber, got %v", err)
	}

	var got []geo.Fix
	first, _ := push.Subscribe(func(f geo.Fix) { got = append(got, f) }, nil)
	second, _ := push.Subscribe(func(f geo.Fix) { got = append(got, f) }, nil)
	first.Unsubscribe()
	if !push.Active() {
		t.Fatal("stale unsubscribe must not remove the newer subscriber")
	}
	if err := push.Publish(geo.Fix{Lat: 1, Lng: 2, AccuracyMeters: 3}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := push.Publish(geo.Fix{Lat: 100, Lng: 2}); err == nil {
		t.Fatal("expected out-of-range latitude to be rejected")
	}
	second.Unsubscribe()
	if push.Active() {
		t.Fatal("expected no subscriber")
	}
	if len(got) != 1 || got[0].Lng != 2 {
		t.Fatalf("unexpected deliveries: %+v", got)
	}
}

func TestValidateFix(t *testing.T) {
	tests := []struct {
		name string
		fix  geo.Fix
		ok   bool
	}{
		{"valid", geo.Fix{Lat: 45, Lng: -120, AccuracyMeters: 3}, true},
		{"negative accuracy", geo.Fix{Lat: 0, Lng: 0, AccuracyMeters: -1}, false},
		{"longitude range", geo.Fix{Lat: 0, Lng: 181}, false},
		{"nan", geo.Fix{Lat: math.NaN(), Lng: 0}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := position.ValidateFix(tc.fix)
			if (err == nil) != tc.ok {
				t.Fatalf("ValidateFix(%+v) = %v", tc.fix, err)
			}
		})
	}
}

func TestFromConfigSelectsSource(t *testing.T) {
	cfg := config.Default()
	cfg.Position.Source = "http"
	if _, err := position.FromConfig(&cfg, nil, logging.NewNop()); !errors.Is(err, position.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable without push source, got %v", err)
	}
	push := position.NewPush()
	src, err := position.FromConfig(&cfg, push, logging.NewNop())
	if err != nil || src != position.Source(push) {
		t.Fatalf("expected push source, got %v err=%v", src, err)
	}
	cfg.Position.Source = "stdin"
	if src, _ := position.FromConfig(&cfg, nil, logging.NewNop()); src == nil {
		t.Fatal("expected stdin source")
	} else if _, ok := src.(*position.Stream); !ok {
		t.Fatalf("expected stdin to use a shared stream, got %T", src)
	}
	cfg.Position.Source = "gpx"
	cfg.Position.Path = "/tmp/x.gpx"
	if src, _ := position.FromConfig(&cfg, nil, logging.NewNop()); src == nil {
		t.Fatal("expected replay source")
	}
}
