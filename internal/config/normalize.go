package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTracking()
	if err := c.normalizePosition(); err != nil {
		return err
	}
	c.normalizeExport()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = defaultExportDir
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("ROUTEKEEPER_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeTracking() {
	c.Tracking.Recovery = strings.ToLower(strings.TrimSpace(c.Tracking.Recovery))
	if c.Tracking.Recovery == "" {
		c.Tracking.Recovery = defaultRecovery
	}
}

func (c *Config) normalizePosition() error {
	c.Position.Source = strings.ToLower(strings.TrimSpace(c.Position.Source))
	if c.Position.Source == "" {
		c.Position.Source = defaultPositionSource
	}
	if strings.TrimSpace(c.Position.Path) == "" {
		c.Position.Path = ""
		return nil
	}
	var err error
	if c.Position.Path, err = expandPath(c.Position.Path); err != nil {
		return fmt.Errorf("position.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeExport() {
	c.Export.ShareBaseURL = strings.TrimSpace(c.Export.ShareBaseURL)
	c.Export.ShareParam = strings.TrimSpace(c.Export.ShareParam)
	if c.Export.ShareParam == "" {
		c.Export.ShareParam = defaultShareParam
	}
	c.Export.GPXCreator = strings.TrimSpace(c.Export.GPXCreator)
	if c.Export.GPXCreator == "" {
		c.Export.GPXCreator = defaultGPXCreator
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch level {
	case "":
		c.Logging.Level = defaultLogLevel
	case "warning":
		c.Logging.Level = "warn"
	default:
		c.Logging.Level = level
	}
}
