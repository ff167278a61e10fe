package config

import "time"

const (
	defaultConfigPath               = "~/.config/ydhouse/config.toml"
	defaultLogDir                   = "~/.local/share/ydhouse/logs"
	defaultStateDir                 = "~/.local/share/ydhouse"
	defaultAPIBind                  = "127.0.0.1:7489"
	defaultInactivityTimeoutSeconds = 15
	defaultPollIntervalMillis       = 100
	defaultTerminateGraceMillis     = 1000
	defaultStderrTailLines          = 20
	defaultSleepInterval            = 2
	defaultMaxSleepInterval         = 5
	defaultSleepRequests            = 20
	defaultSocketTimeout            = 8
	defaultRetries                  = 1
	defaultFullScanSocketTimeout    = 10
	defaultFullScanRetries          = 2
	defaultFallbackPortStart        = 8080
	defaultFallbackPortEnd          = 8089
	defaultRAGModel                 = "gpt-4o-mini"
	defaultSubscriberBuffer         = 256
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
			APIBind:  defaultAPIBind,
		},
		Supervisor: Supervisor{
			InactivityTimeoutSeconds: defaultInactivityTimeoutSeconds,
			PollIntervalMillis:       defaultPollIntervalMillis,
			TerminateGraceMillis:     defaultTerminateGraceMillis,
			StderrTailLines:          defaultStderrTailLines,
		},
		Downloader: Downloader{
			SleepInterval:         defaultSleepInterval,
			MaxSleepInterval:      defaultMaxSleepInterval,
			SleepRequests:         defaultSleepRequests,
			SocketTimeout:         defaultSocketTimeout,
			Retries:               defaultRetries,
			FullScanSocketTimeout: defaultFullScanSocketTimeout,
			FullScanRetries:       defaultFullScanRetries,
		},
		MediaServer: MediaServer{
			AllowedOrigins:    []string{"tauri://localhost", "http://localhost:3000"},
			FallbackPortStart: defaultFallbackPortStart,
			FallbackPortEnd:   defaultFallbackPortEnd,
		},
		RAG: RAG{
			DefaultModel: defaultRAGModel,
		},
		Events: Events{
			SubscriberBuffer: defaultSubscriberBuffer,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// InactivityTimeout returns the supervisor idle limit as a duration.
func (c *Config) InactivityTimeout() time.Duration {
	return time.Duration(c.Supervisor.InactivityTimeoutSeconds) * time.Second
}

// PollInterval returns the supervisor watcher sampling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Supervisor.PollIntervalMillis) * time.Millisecond
}

// TerminateGrace returns how long a worker may run after TERM before it is killed.
func (c *Config) TerminateGrace() time.Duration {
	return time.Duration(c.Supervisor.TerminateGraceMillis) * time.Millisecond
}
