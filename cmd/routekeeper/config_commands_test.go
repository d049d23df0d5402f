package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"routekeeper/internal/testsupport"
)

func TestConfigInitWritesSample(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	target := filepath.Join(home, "conf", "routekeeper.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config at %s: %v", target, err)
	}

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected existing config to be refused, got %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, "", ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowMasksToken(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("s3cret"))
	cfg.Paths.APIBind = ""
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"config", "show"}, "", configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, configPath)
	requireContains(t, out, "********")
	requireContains(t, out, "max_jump_km")
	if strings.Contains(out, "s3cret") {
		t.Fatalf("expected token to be masked, got %q", out)
	}
}

func TestConfigValidateRunsPreflight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"config", "validate"}, "", configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "[OK]")
	requireContains(t, out, "Configuration valid")

	broken := testsupport.NewConfig(t, testsupport.WithPositionFile("gpx", "missing.gpx"))
	broken.Paths.APIBind = ""
	brokenPath := filepath.Join(testsupport.BaseDir(broken), "config.toml")
	writeTestConfig(t, brokenPath, broken)
	out, _, err = runCLI(t, []string{"config", "validate"}, "", brokenPath)
	if err == nil {
		t.Fatalf("expected preflight failure, got output %q", out)
	}
	requireContains(t, out, "[ERROR]")
}
