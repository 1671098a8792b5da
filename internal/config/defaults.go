package config

const (
	defaultDataDir              = "~/.local/share/roost/data"
	defaultLogDir               = "~/.local/share/roost/logs"
	defaultAPIBind              = "127.0.0.1:7411"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultClaimStaleSeconds    = 3600
	defaultHeartbeatTTLSeconds  = 300
	defaultStallThresholdMs     = 300000
	defaultSweepIntervalSeconds = 60
	defaultHistoryLimit         = 50
	defaultNotifyTimeout        = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Coordination: Coordination{
			ClaimStaleSeconds:    defaultClaimStaleSeconds,
			HeartbeatTTLSeconds:  defaultHeartbeatTTLSeconds,
			StallThresholdMs:     defaultStallThresholdMs,
			SweepIntervalSeconds: defaultSweepIntervalSeconds,
			HistoryLimit:         defaultHistoryLimit,
		},
		Notifications: Notifications{
			RequestTimeout:   defaultNotifyTimeout,
			ShadowActivation: true,
			AgentOffline:     true,
			Errors:           true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
