package config

const (
	defaultConfigPath                = "~/.config/shotsync/config.toml"
	defaultDataDir                   = "~/.local/share/shotsync"
	defaultLogDir                    = "~/.local/share/shotsync/logs"
	defaultBlobDir                   = "~/.local/share/shotsync/remote/blobs"
	defaultRecordsDir                = "~/.local/share/shotsync/remote/records"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultDrainIntervalSeconds      = 2
	defaultBatchSize                 = 5
	defaultMaxRetries                = 3
	defaultBackoffBaseSeconds        = 1
	defaultBackoffMaxSeconds         = 60
	defaultTaskTimeoutSeconds        = 60
	defaultQuiescentDelayMS          = 1500
	defaultClockSkewToleranceSeconds = 5
	defaultNotifyRequestTimeout      = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			BlobDir:    defaultBlobDir,
			RecordsDir: defaultRecordsDir,
		},
		Sync: Sync{
			DrainIntervalSeconds:      defaultDrainIntervalSeconds,
			BatchSize:                 defaultBatchSize,
			MaxRetries:                defaultMaxRetries,
			BackoffBaseSeconds:        defaultBackoffBaseSeconds,
			BackoffMaxSeconds:         defaultBackoffMaxSeconds,
			TaskTimeoutSeconds:        defaultTaskTimeoutSeconds,
			QuiescentDelayMS:          defaultQuiescentDelayMS,
			ClockSkewToleranceSeconds: defaultClockSkewToleranceSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Uploads:        true,
			Reconcile:      true,
			Hydration:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
