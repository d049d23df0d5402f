package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"routekeeper/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("ROUTEKEEPER_API_TOKEN", "env-token")
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "routekeeper")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIToken != "env-token" {
		t.Fatalf("expected API token from env, got %q", cfg.Paths.APIToken)
	}
	if cfg.Tracking.MaxAccuracyMeters != 25 {
		t.Fatalf("unexpected accuracy threshold: %v", cfg.Tracking.MaxAccuracyMeters)
	}
	if cfg.Tracking.MaxJumpKm != 0.2 {
		t.Fatalf("unexpected jump threshold: %v", cfg.Tracking.MaxJumpKm)
	}
	if cfg.BackupInterval().Seconds() != 20 {
		t.Fatalf("unexpected backup interval: %v", cfg.BackupInterval())
	}
	if cfg.TimerInterval().Seconds() != 1 {
		t.Fatalf("unexpected timer interval: %v", cfg.TimerInterval())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "routekeeper.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		Tracking struct {
			MaxJumpKm float64 `toml:"max_jump_km"`
			Recovery  string  `toml:"recovery"`
		} `toml:"tracking"`
		Logging struct {
			Level string `toml:"level"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Tracking.MaxJumpKm = 1.5
	custom.Tracking.Recovery = " Restore "
	custom.Logging.Level = "WARNING"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.DataDir != custom.Paths.DataDir {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Tracking.MaxJumpKm != 1.5 {
		t.Fatalf("expected jump threshold override, got %v", cfg.Tracking.MaxJumpKm)
	}
	if cfg.Tracking.Recovery != "restore" {
		t.Fatalf("expected normalized recovery policy, got %q", cfg.Tracking.Recovery)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected warning level to normalize to warn, got %q", cfg.Logging.Level)
	}
	if cfg.Tracking.MaxAccuracyMeters != 25 {
		t.Fatalf("expected untouched defaults to survive, got %v", cfg.Tracking.MaxAccuracyMeters)
	}
}

func TestValidateReportsTOMLKeys(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "non-positive jump threshold",
			mutate: func(c *config.Config) { c.Tracking.MaxJumpKm = 0 },
			want:   "tracking.max_jump_km must be greater than 0",
		},
		{
			name:   "unknown recovery policy",
			mutate: func(c *config.Config) { c.Tracking.Recovery = "maybe" },
			want:   "tracking.recovery must be one of",
		},
		{
			name:   "unknown position source",
			mutate: func(c *config.Config) { c.Position.Source = "serial" },
			want:   "position.source must be one of",
		},
		{
			name:   "file source without path",
			mutate: func(c *config.Config) { c.Position.Source = "file" },
			want:   "position.path must be set",
		},
		{
			name: "backup faster than timer",
			mutate: func(c *config.Config) {
				c.Tracking.TimerIntervalSeconds = 30
				c.Tracking.BackupIntervalSeconds = 20
			},
			want: "backup_interval_seconds must not be shorter",
		},
		{
			name:   "relative share url",
			mutate: func(c *config.Config) { c.Export.ShareBaseURL = "not a url" },
			want:   "export.share_base_url must be an absolute URL",
		},
		{
			name:   "bare ntfy topic",
			mutate: func(c *config.Config) { c.Notifications.NtfyTopic = "my-routes" },
			want:   "notifications.ntfy_topic must be an absolute URL",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("unexpected error: got %q want substring %q", err.Error(), tc.want)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	path := filepath.Join(tempDir, "nested", "config.toml")

	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Position.Source != "stdin" {
		t.Fatalf("unexpected sample position source: %q", cfg.Position.Source)
	}
}
