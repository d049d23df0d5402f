package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	ExportDir string `toml:"export_dir"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// Tracking contains the sample filter thresholds and timer cadences.
type Tracking struct {
	// MaxAccuracyMeters rejects fixes whose accuracy radius exceeds this value.
	MaxAccuracyMeters float64 `toml:"max_accuracy_meters" validate:"gt=0"`
	// MaxJumpKm rejects fixes further than this from the last accepted point.
	// It is a tunable noise guard, not a physical speed limit.
	MaxJumpKm             float64 `toml:"max_jump_km" validate:"gt=0"`
	TimerIntervalSeconds  int     `toml:"timer_interval_seconds" validate:"gt=0"`
	BackupIntervalSeconds int     `toml:"backup_interval_seconds" validate:"gt=0"`
	// ReanchorOnResume drops the last accepted point when tracking resumes so
	// movement made while paused does not trip the jump filter.
	ReanchorOnResume bool   `toml:"reanchor_on_resume"`
	Recovery         string `toml:"recovery" validate:"oneof=prompt restore discard"`
}

// Position selects the source of raw position fixes.
type Position struct {
	Source               string  `toml:"source" validate:"oneof=stdin file gpx http"`
	Path                 string  `toml:"path"`
	ReplayIntervalMillis int     `toml:"replay_interval_ms" validate:"gt=0"`
	ReplayAccuracyMeters float64 `toml:"replay_accuracy_meters" validate:"gte=0"`
}

// Export contains settings for the export encoders.
type Export struct {
	ShareBaseURL string `toml:"share_base_url" validate:"omitempty,url"`
	ShareParam   string `toml:"share_param" validate:"required"`
	GPXCreator   string `toml:"gpx_creator" validate:"required"`
}

// Notifications configures push notifications for route milestones.
type Notifications struct {
	// NtfyTopic is the full ntfy topic URL. Empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic" validate:"omitempty,url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds" validate:"gte=0"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" validate:"oneof=console json"`
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
}

// Config encapsulates all configuration values for routekeeper.
//
// Configuration sections by subsystem:
//   - Paths: data, log and export directories plus the HTTP API bind address
//   - Tracking: sample filter thresholds, timer cadences, recovery policy
//   - Position: where raw fixes come from
//   - Export: share link and GPX settings
//   - Notifications: ntfy topic for route milestones
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tracking      Tracking      `toml:"tracking"`
	Position      Position      `toml:"position"`
	Export        Export        `toml:"export"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/routekeeper/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("routekeeper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories. The export
// directory is created lazily by the export commands.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the SQLite file backing the key-value store.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.DataDir, "routekeeper.db")
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "routekeeper.sock")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "routekeeper.lock")
}

// LogPath returns the daemon log file, or "" when file logging is off.
func (c *Config) LogPath() string {
	if c.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "routekeeper.log")
}

// TimerInterval returns the elapsed-time tick cadence.
func (c *Config) TimerInterval() time.Duration {
	return time.Duration(c.Tracking.TimerIntervalSeconds) * time.Second
}

// BackupInterval returns the auto-backup tick cadence.
func (c *Config) BackupInterval() time.Duration {
	return time.Duration(c.Tracking.BackupIntervalSeconds) * time.Second
}

// ReplayInterval returns the delay between replayed GPX fixes.
func (c *Config) ReplayInterval() time.Duration {
	return time.Duration(c.Position.ReplayIntervalMillis) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
