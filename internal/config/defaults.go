package config

const (
	defaultStateDir            = "~/.local/share/zbridge"
	defaultLogDirName          = "logs"
	defaultScriptTimeout       = 120
	defaultMemoryBlockSize     = 400000
	defaultWorkfileExtension   = ".zpr"
	defaultRetryAttempts       = 1
	defaultRetryDelayMillis    = 500
	defaultWorkdirTemplate     = "{root}/{project}/{asset}/work/{task}"
	defaultMetadataDir         = ".metadata"
	defaultCoordinatorSecret   = "zbridge"
	defaultDialTimeoutMillis   = 1000
	defaultPollIntervalMillis  = 100
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultWorkfileHistory     = true
	defaultOverwriteContainers = false
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Host: Host{
			ScriptTimeout:     defaultScriptTimeout,
			MemoryBlockSize:   defaultMemoryBlockSize,
			WorkfileExtension: defaultWorkfileExtension,
			RetryAttempts:     defaultRetryAttempts,
			RetryDelayMillis:  defaultRetryDelayMillis,
		},
		Workdir: Workdir{
			Template:    defaultWorkdirTemplate,
			MetadataDir: defaultMetadataDir,
		},
		Registry: Registry{
			OverwriteExisting: defaultOverwriteContainers,
		},
		Coordinator: Coordinator{
			DialTimeoutMillis:  defaultDialTimeoutMillis,
			PollIntervalMillis: defaultPollIntervalMillis,
		},
		Tools: map[string]Tool{},
		Workfile: Workfile{
			History: defaultWorkfileHistory,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
