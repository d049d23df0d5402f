package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"routekeeper/internal/geo"
	"routekeeper/internal/timeline"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// EastwardRoute returns n location events one millidegree of longitude
// apart along the equator (about 111 m per leg), one second apart.
func EastwardRoute(n int) timeline.Timeline {
	var tl timeline.Timeline
	var prev *geo.Point
	for i := range n {
		p := geo.Point{Lat: 0, Lng: float64(i) * 0.001}
		tl.Events = append(tl.Events, timeline.Location(int64(1_700_000_000_000+i*1000), p))
		if prev != nil {
			tl.TotalDistanceKm += geo.Haversine(*prev, p)
		}
		prev = &p
	}
	tl.ElapsedMs = int64(n) * 1000
	return tl
}
