package engine

import (
	"log/slog"
	"time"

	"routekeeper/internal/config"
	"routekeeper/internal/geo"
)

// Options tunes an Engine. Intervals that are zero or negative disable the
// corresponding background ticker; TickElapsed and TickBackup can then be
// driven by the caller.
type Options struct {
	Filter           geo.Filter
	TimerInterval    time.Duration
	BackupInterval   time.Duration
	ReanchorOnResume bool
	// RescueDir receives a JSON export of the route when saving on stop fails.
	RescueDir string
	// OnSourceError is called without the engine lock held for each error
	// reported by the live position subscription.
	OnSourceError func(error)
	Clock         func() time.Time
	Logger        *slog.Logger
}

// OptionsFromConfig maps the tracking section of cfg onto Options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Filter: geo.Filter{
			MaxAccuracyMeters: cfg.Tracking.MaxAccuracyMeters,
			MaxJumpKm:         cfg.Tracking.MaxJumpKm,
		},
		TimerInterval:    cfg.TimerInterval(),
		BackupInterval:   cfg.BackupInterval(),
		ReanchorOnResume: cfg.Tracking.ReanchorOnResume,
		RescueDir:        cfg.Paths.DataDir,
		Logger:           logger,
	}
}
