package config

const (
	defaultDataDir               = "~/.local/share/routekeeper"
	defaultLogDir                = "~/.local/share/routekeeper/logs"
	defaultExportDir             = "~/routekeeper/exports"
	defaultAPIBind               = "127.0.0.1:7488"
	defaultMaxAccuracyMeters     = 25
	defaultMaxJumpKm             = 0.2
	defaultTimerIntervalSeconds  = 1
	defaultBackupIntervalSeconds = 20
	defaultRecovery              = "prompt"
	defaultPositionSource        = "stdin"
	defaultReplayIntervalMillis  = 1000
	defaultReplayAccuracyMeters  = 5
	defaultShareParam            = "route"
	defaultGPXCreator            = "routekeeper"
	defaultNtfyTimeoutSeconds    = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			ExportDir: defaultExportDir,
			APIBind:   defaultAPIBind,
		},
		Tracking: Tracking{
			MaxAccuracyMeters:     defaultMaxAccuracyMeters,
			MaxJumpKm:             defaultMaxJumpKm,
			TimerIntervalSeconds:  defaultTimerIntervalSeconds,
			BackupIntervalSeconds: defaultBackupIntervalSeconds,
			Recovery:              defaultRecovery,
		},
		Position: Position{
			Source:               defaultPositionSource,
			ReplayIntervalMillis: defaultReplayIntervalMillis,
			ReplayAccuracyMeters: defaultReplayAccuracyMeters,
		},
		Export: Export{
			ShareParam: defaultShareParam,
			GPXCreator: defaultGPXCreator,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
