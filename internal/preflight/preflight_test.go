package preflight

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"routekeeper/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckReadableFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "fixes.jsonl")
	if err := os.WriteFile(f, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckReadableFile("fixes", f); !r.Passed {
		t.Fatalf("expected readable file to pass: %s", r.Detail)
	}
	if r := CheckReadableFile("fixes", dir); r.Passed {
		t.Fatal("expected directory to fail")
	}
	if r := CheckReadableFile("fixes", ""); r.Passed {
		t.Fatal("expected empty path to fail")
	}
}

func TestCheckBindAvailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	defer ln.Close()

	if r := CheckBindAvailable(context.Background(), "api", ln.Addr().String()); r.Passed {
		t.Fatal("expected occupied address to fail")
	}
	if r := CheckBindAvailable(context.Background(), "api", "127.0.0.1:0"); !r.Passed {
		t.Fatalf("expected ephemeral port to pass: %s", r.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAllReportsMissingPositionFile(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPositionFile("gpx", "missing.gpx"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Position gpx" {
		t.Fatalf("expected only the gpx check to fail, got %+v", failed)
	}
	err := Err(results)
	if err == nil || !strings.Contains(err.Error(), "missing.gpx") {
		t.Fatalf("expected error naming the file, got %v", err)
	}
}
